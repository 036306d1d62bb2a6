// Package security validates operator-supplied identifiers, URLs, and paths
// before they reach filesystem or process boundaries, and redacts credentials
// from text destined for logs.
package security

// Package execshell wraps external process execution for the git binary,
// providing structured logging, credential redaction, and bounded timeouts
// for mirror clone and push operations.
package execshell

// Package naming maps GitLab project paths to unique GitHub repository
// names, resolving collisions deterministically within a planning batch.
package naming

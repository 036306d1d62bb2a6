// Package github manages the destination side of a migration: organization
// preflight checks, repository existence, creation, deletion, and
// availability polling against the GitHub REST API.
package github

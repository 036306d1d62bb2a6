// Package gitlab enumerates migratable projects beneath a GitLab namespace,
// walking nested subgroups exactly once through the platform REST API.
package gitlab

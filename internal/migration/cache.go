package migration

import "context"

// ExistenceCache remembers destination repository existence answers for the
// lifetime of one run. Entries change only on observed events (a create or
// a delete); they are never expired by time.
type ExistenceCache struct {
	entries map[string]bool
}

// NewExistenceCache constructs an empty cache.
func NewExistenceCache() *ExistenceCache {
	return &ExistenceCache{entries: make(map[string]bool)}
}

// Lookup returns the cached answer for the name and whether one is present.
func (cache *ExistenceCache) Lookup(repositoryName string) (bool, bool) {
	exists, known := cache.entries[repositoryName]
	return exists, known
}

// Store records the existence answer for the name.
func (cache *ExistenceCache) Store(repositoryName string, exists bool) {
	cache.entries[repositoryName] = exists
}

// cachedExistenceChecker answers name-collision queries from the cache,
// falling back to the destination registry and caching the result.
type cachedExistenceChecker struct {
	executionContext context.Context
	cache            *ExistenceCache
	registry         TargetRegistry
}

func (checker cachedExistenceChecker) RepositoryNameExists(repositoryName string) (bool, error) {
	if exists, known := checker.cache.Lookup(repositoryName); known {
		return exists, nil
	}

	exists, existenceError := checker.registry.RepositoryExists(checker.executionContext, repositoryName)
	if existenceError != nil {
		return false, existenceError
	}
	checker.cache.Store(repositoryName, exists)
	return exists, nil
}

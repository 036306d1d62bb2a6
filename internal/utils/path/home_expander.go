// Package pathutils provides filesystem path helpers shared by configuration
// handling, currently tilde expansion for operator-supplied directories.
package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const tildePrefixConstant = "~"

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// HomeExpander rewrites leading tilde shortcuts in paths to the user's home
// directory. The home lookup runs once and is reused across calls.
type HomeExpander struct {
	provideHomeDirectory HomeDirectoryProvider
	resolvedHome         string
	resolutionError      error
	resolveOnce          sync.Once
}

// NewHomeExpander constructs a HomeExpander backed by os.UserHomeDir.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(os.UserHomeDir)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with a custom home
// directory lookup.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &HomeExpander{provideHomeDirectory: provider}
}

// Expand resolves a leading tilde to the user's home directory. Paths without
// a tilde prefix, and paths whose home lookup fails, come back unchanged.
func (expander *HomeExpander) Expand(candidatePath string) string {
	if expander == nil || len(candidatePath) == 0 {
		return candidatePath
	}
	if !strings.HasPrefix(candidatePath, tildePrefixConstant) {
		return candidatePath
	}

	homeDirectory := expander.homeDirectory()
	if len(homeDirectory) == 0 {
		return candidatePath
	}

	if candidatePath == tildePrefixConstant {
		return homeDirectory
	}

	remainderPath := strings.TrimPrefix(candidatePath, tildePrefixConstant)
	if remainderPath[0] != '/' && remainderPath[0] != os.PathSeparator {
		return candidatePath
	}
	return filepath.Join(homeDirectory, strings.TrimLeft(remainderPath, string(os.PathSeparator)+"/"))
}

func (expander *HomeExpander) homeDirectory() string {
	expander.resolveOnce.Do(func() {
		expander.resolvedHome, expander.resolutionError = expander.provideHomeDirectory()
	})
	if expander.resolutionError != nil {
		return ""
	}
	return expander.resolvedHome
}

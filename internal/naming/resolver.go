package naming

import (
	"fmt"
	"strings"

	"github.com/meeghele/au-revoir-gitlab/internal/security"
)

const (
	fallbackRepositoryNameConstant       = "repo"
	pathSegmentSeparatorConstant         = "/"
	identifierSuffixTemplateConstant     = "_gl%d"
	duplicateSuffixConstant              = "_dup"
	numericSuffixTemplateConstant        = "%s%s_%d"
	initialNumericSuffixValueConstant    = 2
	existenceCheckErrorTemplateConstant  = "existence check for candidate %q failed: %w"
	missingSourceIdentifierValueConstant = int64(0)
)

// ExistenceChecker reports whether a repository name is already taken at the
// destination. Implementations are expected to cache lookups.
type ExistenceChecker interface {
	RepositoryNameExists(name string) (bool, error)
}

// Options configures name resolution for one planning batch.
type Options struct {
	RootNamespace string
	NamePrefix    string
	Separator     string
	ForceReimport bool
}

// Resolver assigns destination repository names one project at a time,
// remembering every assignment so later resolutions in the same batch cannot
// collide. Resolution is a strict left-to-right fold with no backtracking.
type Resolver struct {
	options          Options
	existenceChecker ExistenceChecker
	usedNames        map[string]struct{}
}

// NewResolver constructs a Resolver backed by the supplied existence checker.
func NewResolver(options Options, existenceChecker ExistenceChecker) *Resolver {
	return &Resolver{
		options:          options,
		existenceChecker: existenceChecker,
		usedNames:        make(map[string]struct{}),
	}
}

// SanitizeRepositoryName reduces a candidate to the safe character policy and
// substitutes a fallback when nothing survives sanitization.
func SanitizeRepositoryName(candidate string) string {
	sanitized := security.SanitizeCandidateName(candidate)
	if len(sanitized) == 0 {
		return fallbackRepositoryNameConstant
	}
	return sanitized
}

// MapProjectName derives the base destination name for a source project path:
// the root namespace segment is stripped (case-insensitively), remaining
// segments join with the separator, and an optional prefix is prepended.
func MapProjectName(pathWithNamespace string, rootNamespace string, namePrefix string, separator string) string {
	segments := make([]string, 0)
	for _, segment := range strings.Split(pathWithNamespace, pathSegmentSeparatorConstant) {
		if len(segment) > 0 {
			segments = append(segments, segment)
		}
	}

	if len(segments) > 0 && strings.EqualFold(segments[0], rootNamespace) {
		segments = segments[1:]
	}

	candidate := strings.Join(segments, separator)
	if len(candidate) == 0 {
		candidate = strings.ReplaceAll(pathWithNamespace, pathSegmentSeparatorConstant, separator)
	}

	if len(namePrefix) > 0 {
		candidate = namePrefix + separator + candidate
	}

	return SanitizeRepositoryName(candidate)
}

// Resolve assigns a unique destination name for the project path and source
// identifier, recording it in the batch-scoped used-name set.
func (resolver *Resolver) Resolve(pathWithNamespace string, sourceIdentifier int64) (string, error) {
	baseName := MapProjectName(pathWithNamespace, resolver.options.RootNamespace, resolver.options.NamePrefix, resolver.options.Separator)
	resolvedName := baseName

	identifierSuffix := duplicateSuffixConstant
	if sourceIdentifier > missingSourceIdentifierValueConstant {
		identifierSuffix = fmt.Sprintf(identifierSuffixTemplateConstant, sourceIdentifier)
	}

	if resolver.isUsed(resolvedName) {
		resolvedName = SanitizeRepositoryName(baseName + identifierSuffix)
	}

	colliding, collisionError := resolver.isColliding(resolvedName)
	if collisionError != nil {
		return "", collisionError
	}

	if colliding {
		candidate := SanitizeRepositoryName(baseName + identifierSuffix)
		numericSuffix := initialNumericSuffixValueConstant
		for {
			candidateColliding, candidateError := resolver.isColliding(candidate)
			if candidateError != nil {
				return "", candidateError
			}
			if !candidateColliding {
				break
			}
			candidate = SanitizeRepositoryName(fmt.Sprintf(numericSuffixTemplateConstant, baseName, identifierSuffix, numericSuffix))
			numericSuffix++
		}
		resolvedName = candidate
	}

	resolver.usedNames[resolvedName] = struct{}{}
	return resolvedName, nil
}

func (resolver *Resolver) isUsed(name string) bool {
	_, used := resolver.usedNames[name]
	return used
}

// isColliding reports whether the candidate is taken within this batch or,
// unless force-reimport is active, already present at the destination.
func (resolver *Resolver) isColliding(candidate string) (bool, error) {
	if resolver.isUsed(candidate) {
		return true, nil
	}
	if resolver.options.ForceReimport {
		return false, nil
	}

	exists, existenceError := resolver.existenceChecker.RepositoryNameExists(candidate)
	if existenceError != nil {
		return false, fmt.Errorf(existenceCheckErrorTemplateConstant, candidate, existenceError)
	}
	return exists, nil
}

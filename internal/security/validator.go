package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	maximumRepositoryNameLengthConstant = 100
	maximumURLLengthConstant            = 2048
	maximumUsernameLengthConstant       = 100
	maximumNamespaceLengthConstant      = 255
	maximumFilePathLengthConstant       = 500

	emptyValueMessageConstant             = "value must be a non-empty string"
	lengthExceededMessageTemplateConstant = "value exceeds maximum length of %d"
	pathCharactersMessageConstant         = "value contains invalid path characters"
	controlCharactersMessageConstant      = "value contains null bytes or control characters"
	pathTraversalMessageConstant          = "value contains path traversal sequences"
	invalidCharactersMessageConstant      = "value contains invalid characters"
	emptyAfterSanitizationMessageConstant = "value contains no valid characters"
	unsupportedSchemeMessageConstant      = "URL must use http, https, or SSH (git@) scheme"
	schemeNotAllowedTemplateConstant      = "URL scheme %q not in allowed schemes %v"
	validationErrorTemplateConstant       = "%s: %s"

	repositoryNameFieldLabelConstant = "repository name"
	urlFieldLabelConstant            = "url"
	usernameFieldLabelConstant       = "username"
	namespaceFieldLabelConstant      = "namespace"
	filePathFieldLabelConstant       = "file path"

	httpsSchemePrefixConstant   = "https://"
	httpSchemePrefixConstant    = "http://"
	sshURLPrefixConstant        = "git@"
	sshSchemeNameConstant       = "ssh"
	schemeSeparatorConstant     = "://"
	parentDirectorySequence     = ".."
	forwardSlashConstant        = "/"
	backslashConstant           = "\\"
	nullByteConstant            = "\x00"
	dashReplacementConstant     = "-"
	sanitizationTrimSetConstant = "-."
)

var (
	safeUsernamePattern   = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	safeNamespacePattern  = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)
	unsafeCharacterRunSet = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	consecutiveDashRunSet = regexp.MustCompile(`-+`)
)

// Suspicious URL substrings that warrant an operator warning without failing validation.
var suspiciousURLPatterns = []string{
	"javascript:",
	"data:",
	"file:",
	"ftp:",
	"localhost",
	"127.0.0.1",
	"0.0.0.0",
	"169.254.",
	"10.",
	"192.168.",
	"172.",
}

// ValidationError reports a rejected input value together with the field it belongs to.
type ValidationError struct {
	FieldName string
	Message   string
}

// Error describes the validation failure.
func (validationError ValidationError) Error() string {
	return fmt.Sprintf(validationErrorTemplateConstant, validationError.FieldName, validationError.Message)
}

// Validator screens raw operator input before it is used in paths, URLs, or process invocations.
type Validator struct{}

// NewValidator constructs a Validator.
func NewValidator() Validator {
	return Validator{}
}

// ValidateRepositoryName checks length, traversal, and character policy, returning the sanitized name.
func (validator Validator) ValidateRepositoryName(name string) (string, error) {
	if len(name) == 0 {
		return "", ValidationError{FieldName: repositoryNameFieldLabelConstant, Message: emptyValueMessageConstant}
	}
	if len(name) > maximumRepositoryNameLengthConstant {
		return "", ValidationError{FieldName: repositoryNameFieldLabelConstant, Message: fmt.Sprintf(lengthExceededMessageTemplateConstant, maximumRepositoryNameLengthConstant)}
	}
	if strings.Contains(name, parentDirectorySequence) || strings.Contains(name, forwardSlashConstant) || strings.Contains(name, backslashConstant) {
		return "", ValidationError{FieldName: repositoryNameFieldLabelConstant, Message: pathCharactersMessageConstant}
	}
	if containsControlCharacters(name) {
		return "", ValidationError{FieldName: repositoryNameFieldLabelConstant, Message: controlCharactersMessageConstant}
	}

	sanitized := SanitizeCandidateName(name)
	if len(sanitized) == 0 {
		return "", ValidationError{FieldName: repositoryNameFieldLabelConstant, Message: emptyAfterSanitizationMessageConstant}
	}

	return sanitized, nil
}

// ValidateURL checks length, control characters, and the scheme allowlist.
func (validator Validator) ValidateURL(rawURL string, allowedSchemes []string) (string, error) {
	if len(rawURL) == 0 {
		return "", ValidationError{FieldName: urlFieldLabelConstant, Message: emptyValueMessageConstant}
	}
	if len(rawURL) > maximumURLLengthConstant {
		return "", ValidationError{FieldName: urlFieldLabelConstant, Message: fmt.Sprintf(lengthExceededMessageTemplateConstant, maximumURLLengthConstant)}
	}
	if strings.Contains(rawURL, nullByteConstant) || containsDisallowedControlCharacters(rawURL) {
		return "", ValidationError{FieldName: urlFieldLabelConstant, Message: controlCharactersMessageConstant}
	}

	hasSupportedPrefix := strings.HasPrefix(rawURL, httpsSchemePrefixConstant) ||
		strings.HasPrefix(rawURL, httpSchemePrefixConstant) ||
		strings.HasPrefix(rawURL, sshURLPrefixConstant)
	if !hasSupportedPrefix {
		return "", ValidationError{FieldName: urlFieldLabelConstant, Message: unsupportedSchemeMessageConstant}
	}

	if len(allowedSchemes) > 0 {
		scheme := sshSchemeNameConstant
		if !strings.HasPrefix(rawURL, sshURLPrefixConstant) {
			scheme = strings.ToLower(strings.SplitN(rawURL, schemeSeparatorConstant, 2)[0])
		}
		schemeAllowed := false
		for _, allowedScheme := range allowedSchemes {
			if strings.EqualFold(scheme, allowedScheme) {
				schemeAllowed = true
				break
			}
		}
		if !schemeAllowed {
			return "", ValidationError{FieldName: urlFieldLabelConstant, Message: fmt.Sprintf(schemeNotAllowedTemplateConstant, scheme, allowedSchemes)}
		}
	}

	return rawURL, nil
}

// SuspiciousURLPatterns returns the suspicious substrings present in the URL, if any.
func (validator Validator) SuspiciousURLPatterns(rawURL string) []string {
	lowercaseURL := strings.ToLower(rawURL)
	detected := make([]string, 0, len(suspiciousURLPatterns))
	for _, pattern := range suspiciousURLPatterns {
		if strings.Contains(lowercaseURL, pattern) {
			detected = append(detected, pattern)
		}
	}
	return detected
}

// ValidateUsername checks length and the safe-character policy.
func (validator Validator) ValidateUsername(username string) (string, error) {
	if len(username) == 0 {
		return "", ValidationError{FieldName: usernameFieldLabelConstant, Message: emptyValueMessageConstant}
	}
	if len(username) > maximumUsernameLengthConstant {
		return "", ValidationError{FieldName: usernameFieldLabelConstant, Message: fmt.Sprintf(lengthExceededMessageTemplateConstant, maximumUsernameLengthConstant)}
	}
	if containsControlCharacters(username) {
		return "", ValidationError{FieldName: usernameFieldLabelConstant, Message: controlCharactersMessageConstant}
	}
	if !safeUsernamePattern.MatchString(username) {
		return "", ValidationError{FieldName: usernameFieldLabelConstant, Message: invalidCharactersMessageConstant}
	}
	return username, nil
}

// ValidateNamespace checks length, traversal, and the namespace character policy.
func (validator Validator) ValidateNamespace(namespace string) (string, error) {
	if len(namespace) == 0 {
		return "", ValidationError{FieldName: namespaceFieldLabelConstant, Message: emptyValueMessageConstant}
	}
	if len(namespace) > maximumNamespaceLengthConstant {
		return "", ValidationError{FieldName: namespaceFieldLabelConstant, Message: fmt.Sprintf(lengthExceededMessageTemplateConstant, maximumNamespaceLengthConstant)}
	}
	if containsControlCharacters(namespace) {
		return "", ValidationError{FieldName: namespaceFieldLabelConstant, Message: controlCharactersMessageConstant}
	}
	if strings.Contains(namespace, parentDirectorySequence) {
		return "", ValidationError{FieldName: namespaceFieldLabelConstant, Message: pathTraversalMessageConstant}
	}
	if !safeNamespacePattern.MatchString(namespace) {
		return "", ValidationError{FieldName: namespaceFieldLabelConstant, Message: invalidCharactersMessageConstant}
	}
	return namespace, nil
}

// ValidateFilePath checks length, traversal, and null bytes, returning the cleaned path.
func (validator Validator) ValidateFilePath(path string) (string, error) {
	if len(path) == 0 {
		return "", ValidationError{FieldName: filePathFieldLabelConstant, Message: emptyValueMessageConstant}
	}
	if len(path) > maximumFilePathLengthConstant {
		return "", ValidationError{FieldName: filePathFieldLabelConstant, Message: fmt.Sprintf(lengthExceededMessageTemplateConstant, maximumFilePathLengthConstant)}
	}
	if strings.Contains(path, nullByteConstant) {
		return "", ValidationError{FieldName: filePathFieldLabelConstant, Message: controlCharactersMessageConstant}
	}
	if strings.Contains(path, parentDirectorySequence) {
		return "", ValidationError{FieldName: filePathFieldLabelConstant, Message: pathTraversalMessageConstant}
	}
	return filepath.Clean(path), nil
}

// SanitizeCandidateName reduces arbitrary text to the safe repository-name
// character set: unsafe runs become a dash, dash runs collapse, and leading
// or trailing dash/dot characters are trimmed. Applying it twice yields the
// same result.
func SanitizeCandidateName(name string) string {
	sanitized := unsafeCharacterRunSet.ReplaceAllString(name, dashReplacementConstant)
	sanitized = consecutiveDashRunSet.ReplaceAllString(sanitized, dashReplacementConstant)
	return strings.Trim(sanitized, sanitizationTrimSetConstant)
}

func containsControlCharacters(value string) bool {
	if strings.Contains(value, nullByteConstant) {
		return true
	}
	for _, character := range value {
		if character < 32 {
			return true
		}
	}
	return false
}

func containsDisallowedControlCharacters(value string) bool {
	for _, character := range value {
		if character < 32 && character != '\t' && character != '\n' && character != '\r' {
			return true
		}
	}
	return false
}

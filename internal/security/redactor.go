package security

import "regexp"

const (
	redactedURLCredentialsReplacementConstant = "https://[REDACTED]@"
	redactedTokenReplacementConstant          = "token=[REDACTED]"
	redactedPasswordReplacementConstant       = "password=[REDACTED]"
	redactedGitLabTokenReplacementConstant    = "[GITLAB_TOKEN_REDACTED]"
	redactedGitHubTokenReplacementConstant    = "[GITHUB_TOKEN_REDACTED]"
)

type redactionRule struct {
	pattern     *regexp.Regexp
	replacement string
}

var redactionRules = []redactionRule{
	{pattern: regexp.MustCompile(`https://[^:/@]+:[^@]+@`), replacement: redactedURLCredentialsReplacementConstant},
	{pattern: regexp.MustCompile(`(?i)token[=:\s]+\S+`), replacement: redactedTokenReplacementConstant},
	{pattern: regexp.MustCompile(`(?i)password[=:\s]+\S+`), replacement: redactedPasswordReplacementConstant},
	{pattern: regexp.MustCompile(`(?i)glpat[-_][A-Za-z0-9_-]+`), replacement: redactedGitLabTokenReplacementConstant},
	{pattern: regexp.MustCompile(`(?i)ghp_[A-Za-z0-9_]+`), replacement: redactedGitHubTokenReplacementConstant},
	{pattern: regexp.MustCompile(`(?i)gho_[A-Za-z0-9_]+`), replacement: redactedGitHubTokenReplacementConstant},
	{pattern: regexp.MustCompile(`(?i)ghu_[A-Za-z0-9_]+`), replacement: redactedGitHubTokenReplacementConstant},
	{pattern: regexp.MustCompile(`(?i)ghs_[A-Za-z0-9_]+`), replacement: redactedGitHubTokenReplacementConstant},
	{pattern: regexp.MustCompile(`(?i)ghr_[A-Za-z0-9_]+`), replacement: redactedGitHubTokenReplacementConstant},
}

// RedactCredentials masks embedded URL credentials, token and password
// assignments, and platform token prefixes so the message is safe to log.
func RedactCredentials(message string) string {
	if len(message) == 0 {
		return message
	}

	redacted := message
	for _, rule := range redactionRules {
		redacted = rule.pattern.ReplaceAllString(redacted, rule.replacement)
	}
	return redacted
}

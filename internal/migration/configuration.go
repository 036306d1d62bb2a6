package migration

import (
	"fmt"
	"strings"

	"github.com/meeghele/au-revoir-gitlab/internal/security"
	pathutils "github.com/meeghele/au-revoir-gitlab/internal/utils/path"
)

var stagingPathHomeExpander = pathutils.NewHomeExpander()

const (
	defaultGitLabURLConstant        = "https://gitlab.com"
	defaultGitHubAPIURLConstant     = "https://api.github.com"
	defaultFlattenSeparatorConstant = "-"
	defaultRetryDelaySecondsValue   = 3.0
	defaultStagingBasePathConstant  = "/tmp/au-revoir-gitlab"

	missingGitLabTokenMessageConstant     = "gitlab token is required (--gl-token or GITLAB_TOKEN)"
	missingGitLabNamespaceMessageConstant = "gitlab namespace is required (--gl-namespace)"
	missingGitHubTokenMessageConstant     = "github token is required (--gh-token or GITHUB_TOKEN)"
	missingGitHubOrganizationMessage      = "github organization is required (--gh-org)"
	invalidVisibilityTemplateConstant     = "invalid visibility %q: expected private or public"
	invalidTransportTemplateConstant      = "invalid %s %q: expected https or ssh"
	cloneMethodFieldLabelConstant         = "clone method"
	pushMethodFieldLabelConstant          = "push method"

	configurationGitLabURLKeyConstant        = "gl_url"
	configurationGitLabTokenKeyConstant      = "gl_token"
	configurationGitLabUsernameKeyConstant   = "gl_username"
	configurationGitHubAPIKeyConstant        = "gh_api"
	configurationGitHubTokenKeyConstant      = "gh_token"
	configurationDryRunKeyConstant           = "dry_run"
	configurationIncludeArchivedKeyConstant  = "include_archived"
	configurationForceReimportKeyConstant    = "force_reimport"
	configurationNoWaitKeyConstant           = "no_wait"
	configurationFlattenSeparatorKeyConstant = "flatten_sep"
	configurationVisibilityKeyConstant       = "visibility"
	configurationRetryDelayKeyConstant       = "retry_delay"
	configurationStagingDirectoryKeyConstant = "clone_temp_dir"
	configurationCloneMethodKeyConstant      = "clone_method"
	configurationPushMethodKeyConstant       = "push_method"

	gitlabTokenEnvironmentVariableConstant    = "GITLAB_TOKEN"
	gitlabUsernameEnvironmentVariableConstant = "GITLAB_USERNAME"
	githubTokenEnvironmentVariableConstant    = "GITHUB_TOKEN"
)

// TransportMethod selects the git transport for clone or push operations.
type TransportMethod string

// Supported transport methods.
const (
	TransportHTTPS TransportMethod = "https"
	TransportSSH   TransportMethod = "ssh"
)

// Visibility selects the visibility of created destination repositories.
type Visibility string

// Supported destination visibilities.
const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// CommandConfiguration captures every knob of a sync run.
type CommandConfiguration struct {
	GitLabURL          string          `mapstructure:"gl_url"`
	GitLabToken        string          `mapstructure:"gl_token"`
	GitLabNamespace    string          `mapstructure:"gl_namespace"`
	GitLabUsername     string          `mapstructure:"gl_username"`
	GitHubAPIURL       string          `mapstructure:"gh_api"`
	GitHubToken        string          `mapstructure:"gh_token"`
	GitHubOrganization string          `mapstructure:"gh_org"`
	DryRun             bool            `mapstructure:"dry_run"`
	ExcludePattern     string          `mapstructure:"exclude"`
	IncludeArchived    bool            `mapstructure:"include_archived"`
	ForceReimport      bool            `mapstructure:"force_reimport"`
	SkipWait           bool            `mapstructure:"no_wait"`
	NamePrefix         string          `mapstructure:"name_prefix"`
	FlattenSeparator   string          `mapstructure:"flatten_sep"`
	TargetVisibility   Visibility      `mapstructure:"visibility"`
	RetryDelaySeconds  float64         `mapstructure:"retry_delay"`
	StagingBasePath    string          `mapstructure:"clone_temp_dir"`
	CloneMethod        TransportMethod `mapstructure:"clone_method"`
	PushMethod         TransportMethod `mapstructure:"push_method"`
}

// DefaultCommandConfiguration returns baseline configuration values for a
// sync run.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		GitLabURL:         defaultGitLabURLConstant,
		GitHubAPIURL:      defaultGitHubAPIURLConstant,
		FlattenSeparator:  defaultFlattenSeparatorConstant,
		TargetVisibility:  VisibilityPrivate,
		RetryDelaySeconds: defaultRetryDelaySecondsValue,
		StagingBasePath:   defaultStagingBasePathConstant,
		CloneMethod:       TransportHTTPS,
		PushMethod:        TransportHTTPS,
	}
}

// DefaultConfigurationValues exposes viper defaults for the sync configuration
// subtree rooted at rootKey.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + "." + configurationGitLabURLKeyConstant:        defaults.GitLabURL,
		rootKey + "." + configurationGitHubAPIKeyConstant:        defaults.GitHubAPIURL,
		rootKey + "." + configurationDryRunKeyConstant:           defaults.DryRun,
		rootKey + "." + configurationIncludeArchivedKeyConstant:  defaults.IncludeArchived,
		rootKey + "." + configurationForceReimportKeyConstant:    defaults.ForceReimport,
		rootKey + "." + configurationNoWaitKeyConstant:           defaults.SkipWait,
		rootKey + "." + configurationFlattenSeparatorKeyConstant: defaults.FlattenSeparator,
		rootKey + "." + configurationVisibilityKeyConstant:       string(defaults.TargetVisibility),
		rootKey + "." + configurationRetryDelayKeyConstant:       defaults.RetryDelaySeconds,
		rootKey + "." + configurationStagingDirectoryKeyConstant: defaults.StagingBasePath,
		rootKey + "." + configurationCloneMethodKeyConstant:      string(defaults.CloneMethod),
		rootKey + "." + configurationPushMethodKeyConstant:       string(defaults.PushMethod),
	}
}

// EnvironmentAliases maps sync configuration keys to the unprefixed
// environment variables the tool honors for credentials.
func EnvironmentAliases(rootKey string) map[string][]string {
	return map[string][]string{
		rootKey + "." + configurationGitLabTokenKeyConstant:    {gitlabTokenEnvironmentVariableConstant},
		rootKey + "." + configurationGitLabUsernameKeyConstant: {gitlabUsernameEnvironmentVariableConstant},
		rootKey + "." + configurationGitHubTokenKeyConstant:    {githubTokenEnvironmentVariableConstant},
	}
}

// Sanitize trims whitespace from every textual value.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.GitLabURL = strings.TrimSpace(configuration.GitLabURL)
	sanitized.GitLabToken = strings.TrimSpace(configuration.GitLabToken)
	sanitized.GitLabNamespace = strings.TrimSpace(configuration.GitLabNamespace)
	sanitized.GitLabUsername = strings.TrimSpace(configuration.GitLabUsername)
	sanitized.GitHubAPIURL = strings.TrimSpace(configuration.GitHubAPIURL)
	sanitized.GitHubToken = strings.TrimSpace(configuration.GitHubToken)
	sanitized.GitHubOrganization = strings.TrimSpace(configuration.GitHubOrganization)
	sanitized.ExcludePattern = strings.TrimSpace(configuration.ExcludePattern)
	sanitized.NamePrefix = strings.TrimSpace(configuration.NamePrefix)
	sanitized.StagingBasePath = stagingPathHomeExpander.Expand(strings.TrimSpace(configuration.StagingBasePath))
	sanitized.TargetVisibility = Visibility(strings.ToLower(strings.TrimSpace(string(configuration.TargetVisibility))))
	sanitized.CloneMethod = TransportMethod(strings.ToLower(strings.TrimSpace(string(configuration.CloneMethod))))
	sanitized.PushMethod = TransportMethod(strings.ToLower(strings.TrimSpace(string(configuration.PushMethod))))
	return sanitized
}

// Validate checks required values and enumerations.
func (configuration CommandConfiguration) Validate() error {
	if len(configuration.GitLabToken) == 0 {
		return AuthenticationError{Message: missingGitLabTokenMessageConstant}
	}
	if len(configuration.GitLabNamespace) == 0 {
		return ConfigurationError{Message: missingGitLabNamespaceMessageConstant}
	}
	if len(configuration.GitHubToken) == 0 {
		return AuthenticationError{Message: missingGitHubTokenMessageConstant}
	}
	if len(configuration.GitHubOrganization) == 0 {
		return ConfigurationError{Message: missingGitHubOrganizationMessage}
	}

	if _, namespaceError := security.NewValidator().ValidateNamespace(configuration.GitLabNamespace); namespaceError != nil {
		return namespaceError
	}

	switch configuration.TargetVisibility {
	case VisibilityPrivate, VisibilityPublic:
	default:
		return ConfigurationError{Message: fmt.Sprintf(invalidVisibilityTemplateConstant, configuration.TargetVisibility)}
	}

	if transportError := validateTransportMethod(cloneMethodFieldLabelConstant, configuration.CloneMethod); transportError != nil {
		return transportError
	}
	return validateTransportMethod(pushMethodFieldLabelConstant, configuration.PushMethod)
}

func validateTransportMethod(fieldLabel string, method TransportMethod) error {
	switch method {
	case TransportHTTPS, TransportSSH:
		return nil
	default:
		return ConfigurationError{Message: fmt.Sprintf(invalidTransportTemplateConstant, fieldLabel, method)}
	}
}

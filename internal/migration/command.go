package migration

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meeghele/au-revoir-gitlab/internal/execshell"
	"github.com/meeghele/au-revoir-gitlab/internal/github"
	"github.com/meeghele/au-revoir-gitlab/internal/gitlab"
	"github.com/meeghele/au-revoir-gitlab/internal/ratelimit"
	"github.com/meeghele/au-revoir-gitlab/internal/transfer"
	"github.com/meeghele/au-revoir-gitlab/internal/utils"
	flagutils "github.com/meeghele/au-revoir-gitlab/internal/utils/flags"
)

const (
	commandUseConstant              = "sync"
	commandShortDescriptionConstant = "Migrate every repository of a GitLab namespace into a GitHub organization"
	commandLongDescriptionConstant  = "sync discovers every project beneath a GitLab namespace (subgroups included), plans collision-free destination names, creates the repositories in the GitHub organization, and mirrors each one with git clone --mirror and git push --mirror."

	gitlabCallsPerMinuteConstant = 30
	githubCallsPerMinuteConstant = 50

	gitlabURLFlagNameConstant         = "gl-url"
	gitlabURLFlagUsageConstant        = "GitLab instance URL"
	gitlabTokenFlagNameConstant       = "gl-token"
	gitlabTokenFlagUsageConstant      = "GitLab private token (env GITLAB_TOKEN)"
	gitlabNamespaceFlagNameConstant   = "gl-namespace"
	gitlabNamespaceFlagUsageConstant  = "GitLab namespace (group path) to migrate"
	gitlabUsernameFlagNameConstant    = "gl-username"
	gitlabUsernameFlagUsageConstant   = "GitLab username for HTTPS git auth (env GITLAB_USERNAME)"
	githubAPIFlagNameConstant         = "gh-api"
	githubAPIFlagUsageConstant        = "GitHub API endpoint"
	githubTokenFlagNameConstant       = "gh-token"
	githubTokenFlagUsageConstant      = "GitHub token (env GITHUB_TOKEN)"
	githubOrganizationFlagName        = "gh-org"
	githubOrganizationFlagUsage       = "Destination GitHub organization"
	dryRunFlagNameConstant            = "dry-run"
	dryRunFlagShorthandConstant       = "d"
	dryRunFlagUsageConstant           = "Print the migration plan without changing anything"
	excludeFlagNameConstant           = "exclude"
	excludeFlagShorthandConstant      = "e"
	excludeFlagUsageConstant          = "Skip projects and subgroups whose path contains this substring"
	includeArchivedFlagNameConstant   = "include-archived"
	includeArchivedFlagUsageConstant  = "Include archived projects"
	forceReimportFlagNameConstant     = "force-reimport"
	forceReimportFlagUsageConstant    = "Delete and recreate destination repositories that already exist"
	noWaitFlagNameConstant            = "no-wait"
	noWaitFlagUsageConstant           = "Skip waiting for created repositories to become visible"
	namePrefixFlagNameConstant        = "name-prefix"
	namePrefixFlagUsageConstant       = "Prefix prepended to every destination repository name"
	flattenSeparatorFlagNameConstant  = "flatten-sep"
	flattenSeparatorFlagUsageConstant = "Separator used when flattening subgroup paths"
	visibilityFlagNameConstant        = "visibility"
	visibilityFlagUsageConstant       = "Visibility for created repositories"
	retryDelayFlagNameConstant        = "retry-delay"
	retryDelayFlagUsageConstant       = "Seconds to wait between availability poll attempts"
	stagingDirectoryFlagNameConstant  = "clone-temp-dir"
	stagingDirectoryFlagUsageConstant = "Staging directory for mirror clones"
	cloneMethodFlagNameConstant       = "clone-method"
	cloneMethodFlagUsageConstant      = "Transport for source clones"
	pushMethodFlagNameConstant        = "push-method"
	pushMethodFlagUsageConstant       = "Transport for destination pushes"

	configurationFileInUseMessageConstant = "Using configuration file"
	logFieldConfigurationFileConstant     = "config_file"
)

var (
	visibilityChoices = []string{string(VisibilityPrivate), string(VisibilityPublic)}
	transportChoices  = []string{string(TransportHTTPS), string(TransportSSH)}
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ServiceProvider constructs the migration service from its dependencies. A
// custom provider substitutes collaborators in tests.
type ServiceProvider func(dependencies ServiceDependencies, configuration CommandConfiguration) (*Service, error)

// CommandBuilder assembles the sync Cobra command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() CommandConfiguration
	ServiceProvider       ServiceProvider
}

// Build constructs the sync command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runSync,
	}

	defaults := DefaultCommandConfiguration()
	flags := command.Flags()
	flags.String(gitlabURLFlagNameConstant, defaults.GitLabURL, gitlabURLFlagUsageConstant)
	flags.String(gitlabTokenFlagNameConstant, "", gitlabTokenFlagUsageConstant)
	flags.String(gitlabNamespaceFlagNameConstant, "", gitlabNamespaceFlagUsageConstant)
	flags.String(gitlabUsernameFlagNameConstant, "", gitlabUsernameFlagUsageConstant)
	flags.String(githubAPIFlagNameConstant, defaults.GitHubAPIURL, githubAPIFlagUsageConstant)
	flags.String(githubTokenFlagNameConstant, "", githubTokenFlagUsageConstant)
	flags.String(githubOrganizationFlagName, "", githubOrganizationFlagUsage)
	flags.BoolP(dryRunFlagNameConstant, dryRunFlagShorthandConstant, false, dryRunFlagUsageConstant)
	flags.StringP(excludeFlagNameConstant, excludeFlagShorthandConstant, "", excludeFlagUsageConstant)
	flags.Bool(includeArchivedFlagNameConstant, false, includeArchivedFlagUsageConstant)
	flags.Bool(forceReimportFlagNameConstant, false, forceReimportFlagUsageConstant)
	flags.Bool(noWaitFlagNameConstant, false, noWaitFlagUsageConstant)
	flags.String(namePrefixFlagNameConstant, "", namePrefixFlagUsageConstant)
	flags.String(flattenSeparatorFlagNameConstant, defaults.FlattenSeparator, flattenSeparatorFlagUsageConstant)
	flags.String(visibilityFlagNameConstant, string(defaults.TargetVisibility), flagutils.FormatChoiceUsage(string(defaults.TargetVisibility), visibilityChoices, visibilityFlagUsageConstant))
	flags.Float64(retryDelayFlagNameConstant, defaults.RetryDelaySeconds, retryDelayFlagUsageConstant)
	flags.String(stagingDirectoryFlagNameConstant, defaults.StagingBasePath, stagingDirectoryFlagUsageConstant)
	flags.String(cloneMethodFlagNameConstant, string(defaults.CloneMethod), flagutils.FormatChoiceUsage(string(defaults.CloneMethod), transportChoices, cloneMethodFlagUsageConstant))
	flags.String(pushMethodFlagNameConstant, string(defaults.PushMethod), flagutils.FormatChoiceUsage(string(defaults.PushMethod), transportChoices, pushMethodFlagUsageConstant))

	return command, nil
}

func (builder *CommandBuilder) runSync(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	applyFlagOverrides(command, &configuration)
	configuration = configuration.Sanitize()
	if validationError := configuration.Validate(); validationError != nil {
		return validationError
	}

	logger := builder.resolveLogger()
	if configurationFilePath, pathAvailable := utils.NewCommandContextAccessor().ConfigurationFilePath(command.Context()); pathAvailable {
		logger.Debug(configurationFileInUseMessageConstant, zap.String(logFieldConfigurationFileConstant, configurationFilePath))
	}

	service, serviceError := builder.assembleService(logger, command, configuration)
	if serviceError != nil {
		return serviceError
	}
	return service.Run(command.Context())
}

func (builder *CommandBuilder) assembleService(logger *zap.Logger, command *cobra.Command, configuration CommandConfiguration) (*Service, error) {
	sourceClient, sourceError := gitlab.NewClient(gitlab.ClientOptions{
		BaseURL:     configuration.GitLabURL,
		Token:       configuration.GitLabToken,
		Logger:      logger,
		RateLimiter: ratelimit.NewLimiter(gitlabCallsPerMinuteConstant, logger),
	})
	if sourceError != nil {
		return nil, sourceError
	}

	targetClient, targetError := github.NewClient(github.ClientOptions{
		APIBaseURL:   configuration.GitHubAPIURL,
		Token:        configuration.GitHubToken,
		Organization: configuration.GitHubOrganization,
		RetryDelay:   time.Duration(configuration.RetryDelaySeconds * float64(time.Second)),
		Logger:       logger,
		RateLimiter:  ratelimit.NewLimiter(githubCallsPerMinuteConstant, logger),
	})
	if targetError != nil {
		return nil, targetError
	}

	shellExecutor, executorError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner())
	if executorError != nil {
		return nil, executorError
	}

	transferWorker, workerError := transfer.NewWorker(transfer.Options{
		StagingBasePath:     configuration.StagingBasePath,
		Logger:              logger,
		GitExecutor:         shellExecutor,
		AvailabilityChecker: targetClient,
	})
	if workerError != nil {
		return nil, workerError
	}

	dependencies := ServiceDependencies{
		Logger:         logger,
		SourceCatalog:  sourceClient,
		TargetRegistry: targetClient,
		Transferrer:    transferWorker,
		Output:         command.OutOrStdout(),
	}
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(dependencies, configuration)
	}
	return NewService(dependencies, configuration)
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider != nil {
		return builder.ConfigurationProvider()
	}
	return DefaultCommandConfiguration()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider != nil {
		if logger := builder.LoggerProvider(); logger != nil {
			return logger
		}
	}
	return zap.NewNop()
}

// applyFlagOverrides copies explicitly changed flag values over the loaded
// configuration, so flags beat file and environment values.
func applyFlagOverrides(command *cobra.Command, configuration *CommandConfiguration) {
	flags := command.Flags()
	if flags.Changed(gitlabURLFlagNameConstant) {
		configuration.GitLabURL, _ = flags.GetString(gitlabURLFlagNameConstant)
	}
	if flags.Changed(gitlabTokenFlagNameConstant) {
		configuration.GitLabToken, _ = flags.GetString(gitlabTokenFlagNameConstant)
	}
	if flags.Changed(gitlabNamespaceFlagNameConstant) {
		configuration.GitLabNamespace, _ = flags.GetString(gitlabNamespaceFlagNameConstant)
	}
	if flags.Changed(gitlabUsernameFlagNameConstant) {
		configuration.GitLabUsername, _ = flags.GetString(gitlabUsernameFlagNameConstant)
	}
	if flags.Changed(githubAPIFlagNameConstant) {
		configuration.GitHubAPIURL, _ = flags.GetString(githubAPIFlagNameConstant)
	}
	if flags.Changed(githubTokenFlagNameConstant) {
		configuration.GitHubToken, _ = flags.GetString(githubTokenFlagNameConstant)
	}
	if flags.Changed(githubOrganizationFlagName) {
		configuration.GitHubOrganization, _ = flags.GetString(githubOrganizationFlagName)
	}
	if flags.Changed(dryRunFlagNameConstant) {
		configuration.DryRun, _ = flags.GetBool(dryRunFlagNameConstant)
	}
	if flags.Changed(excludeFlagNameConstant) {
		configuration.ExcludePattern, _ = flags.GetString(excludeFlagNameConstant)
	}
	if flags.Changed(includeArchivedFlagNameConstant) {
		configuration.IncludeArchived, _ = flags.GetBool(includeArchivedFlagNameConstant)
	}
	if flags.Changed(forceReimportFlagNameConstant) {
		configuration.ForceReimport, _ = flags.GetBool(forceReimportFlagNameConstant)
	}
	if flags.Changed(noWaitFlagNameConstant) {
		configuration.SkipWait, _ = flags.GetBool(noWaitFlagNameConstant)
	}
	if flags.Changed(namePrefixFlagNameConstant) {
		configuration.NamePrefix, _ = flags.GetString(namePrefixFlagNameConstant)
	}
	if flags.Changed(flattenSeparatorFlagNameConstant) {
		configuration.FlattenSeparator, _ = flags.GetString(flattenSeparatorFlagNameConstant)
	}
	if flags.Changed(visibilityFlagNameConstant) {
		visibilityValue, _ := flags.GetString(visibilityFlagNameConstant)
		configuration.TargetVisibility = Visibility(visibilityValue)
	}
	if flags.Changed(retryDelayFlagNameConstant) {
		configuration.RetryDelaySeconds, _ = flags.GetFloat64(retryDelayFlagNameConstant)
	}
	if flags.Changed(stagingDirectoryFlagNameConstant) {
		configuration.StagingBasePath, _ = flags.GetString(stagingDirectoryFlagNameConstant)
	}
	if flags.Changed(cloneMethodFlagNameConstant) {
		cloneMethodValue, _ := flags.GetString(cloneMethodFlagNameConstant)
		configuration.CloneMethod = TransportMethod(cloneMethodValue)
	}
	if flags.Changed(pushMethodFlagNameConstant) {
		pushMethodValue, _ := flags.GetString(pushMethodFlagNameConstant)
		configuration.PushMethod = TransportMethod(pushMethodValue)
	}
}

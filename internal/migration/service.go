package migration

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/meeghele/au-revoir-gitlab/internal/github"
	"github.com/meeghele/au-revoir-gitlab/internal/gitlab"
	"github.com/meeghele/au-revoir-gitlab/internal/naming"
	"github.com/meeghele/au-revoir-gitlab/internal/transfer"
)

// Transfers run strictly sequentially and the run aborts on the first
// failed project.
const abortOnFirstFailureConstant = true

const (
	planningProgressIntervalConstant = 25
	publicSourceVisibilityConstant   = "public"

	serviceLoggerMissingMessageConstant      = "migration service logger not configured"
	serviceSourceMissingMessageConstant      = "migration service source catalog not configured"
	serviceTargetMissingMessageConstant      = "migration service target registry not configured"
	serviceTransferrerMissingMessageConstant = "migration service transferrer not configured"

	usernameRequiredMessageConstant = "gitlab username required for private/internal project import with HTTPS clone method; set --gl-username or GITLAB_USERNAME, or use --clone-method ssh"

	nothingToMigrateMessageConstant    = "No projects found under namespace"
	planningProgressMessageConstant    = "Planning destination names"
	dryRunCompletedMessageConstant     = "Dry-run completed"
	missionAccomplishedMessageConstant = "Mission accomplished"

	dryRunLineTemplateConstant = "[%d/%d] would import: %s -> %s/%s\n"
	syncLineTemplateConstant   = "[%d/%d] sync: %s -> %s/%s\n"

	logFieldNamespaceConstant = "namespace"
	logFieldPlannedConstant   = "planned"
	logFieldTotalConstant     = "total"
)

// SourceCatalog discovers the projects to migrate.
type SourceCatalog interface {
	Connect(executionContext context.Context) error
	ListProjects(executionContext context.Context, namespace string, excludePattern string, includeArchived bool) ([]gitlab.Project, error)
}

// TargetRegistry manages destination repositories.
type TargetRegistry interface {
	Connect(executionContext context.Context) error
	RepositoryExists(executionContext context.Context, repositoryName string) (bool, error)
	CreateRepository(executionContext context.Context, repositoryName string, private bool, description string) error
	DeleteRepository(executionContext context.Context, repositoryName string) error
	GitPushURL(repositoryName string, protocol github.PushProtocol) string
}

// RepositoryTransferrer moves one repository from source to destination.
type RepositoryTransferrer interface {
	Transfer(executionContext context.Context, request transfer.Request) error
}

// ServiceDependencies carries the collaborators of a Service.
type ServiceDependencies struct {
	Logger         *zap.Logger
	SourceCatalog  SourceCatalog
	TargetRegistry TargetRegistry
	Transferrer    RepositoryTransferrer
	Output         io.Writer
}

// plannedProject pairs a discovered project with its resolved destination
// name, preserving discovery order.
type plannedProject struct {
	project         gitlab.Project
	destinationName string
}

// Service runs the migration pipeline.
type Service struct {
	logger         *zap.Logger
	sourceCatalog  SourceCatalog
	targetRegistry TargetRegistry
	transferrer    RepositoryTransferrer
	output         io.Writer
	configuration  CommandConfiguration
	existenceCache *ExistenceCache
}

// NewService constructs a Service from its dependencies and the run
// configuration.
func NewService(dependencies ServiceDependencies, configuration CommandConfiguration) (*Service, error) {
	if dependencies.Logger == nil {
		return nil, errors.New(serviceLoggerMissingMessageConstant)
	}
	if dependencies.SourceCatalog == nil {
		return nil, errors.New(serviceSourceMissingMessageConstant)
	}
	if dependencies.TargetRegistry == nil {
		return nil, errors.New(serviceTargetMissingMessageConstant)
	}
	if dependencies.Transferrer == nil {
		return nil, errors.New(serviceTransferrerMissingMessageConstant)
	}

	output := dependencies.Output
	if output == nil {
		output = io.Discard
	}

	return &Service{
		logger:         dependencies.Logger,
		sourceCatalog:  dependencies.SourceCatalog,
		targetRegistry: dependencies.TargetRegistry,
		transferrer:    dependencies.Transferrer,
		output:         output,
		configuration:  configuration,
		existenceCache: NewExistenceCache(),
	}, nil
}

// Run executes a migration: connect, discover, plan, then either print the
// dry-run plan or transfer every planned project in order.
func (service *Service) Run(executionContext context.Context) error {
	if connectError := service.sourceCatalog.Connect(executionContext); connectError != nil {
		return connectError
	}
	if connectError := service.targetRegistry.Connect(executionContext); connectError != nil {
		return connectError
	}

	projects, listError := service.sourceCatalog.ListProjects(
		executionContext,
		service.configuration.GitLabNamespace,
		service.configuration.ExcludePattern,
		service.configuration.IncludeArchived,
	)
	if listError != nil {
		return listError
	}
	if len(projects) == 0 {
		service.logger.Info(nothingToMigrateMessageConstant, zap.String(logFieldNamespaceConstant, service.configuration.GitLabNamespace))
		return nil
	}

	plan, planError := service.planNames(executionContext, projects)
	if planError != nil {
		return planError
	}

	if service.configuration.DryRun {
		for planIndex, plannedEntry := range plan {
			fmt.Fprintf(service.output, dryRunLineTemplateConstant,
				planIndex+1, len(plan),
				plannedEntry.project.PathWithNamespace,
				service.configuration.GitHubOrganization, plannedEntry.destinationName,
			)
		}
		service.logger.Info(dryRunCompletedMessageConstant, zap.Int(logFieldTotalConstant, len(plan)))
		return nil
	}

	for planIndex, plannedEntry := range plan {
		if processError := service.processProject(executionContext, plannedEntry, planIndex+1, len(plan)); processError != nil {
			if abortOnFirstFailureConstant {
				return processError
			}
		}
	}

	service.logger.Info(missionAccomplishedMessageConstant, zap.Int(logFieldTotalConstant, len(plan)))
	return nil
}

// planNames resolves a destination name for every project in discovery
// order, reporting progress periodically.
func (service *Service) planNames(executionContext context.Context, projects []gitlab.Project) ([]plannedProject, error) {
	resolver := naming.NewResolver(naming.Options{
		RootNamespace: service.configuration.GitLabNamespace,
		NamePrefix:    service.configuration.NamePrefix,
		Separator:     service.configuration.FlattenSeparator,
		ForceReimport: service.configuration.ForceReimport,
	}, cachedExistenceChecker{
		executionContext: executionContext,
		cache:            service.existenceCache,
		registry:         service.targetRegistry,
	})

	plan := make([]plannedProject, 0, len(projects))
	for projectIndex, project := range projects {
		destinationName, resolveError := resolver.Resolve(project.PathWithNamespace, project.Identifier)
		if resolveError != nil {
			return nil, resolveError
		}
		plan = append(plan, plannedProject{project: project, destinationName: destinationName})

		plannedCount := projectIndex + 1
		if plannedCount == len(projects) || plannedCount%planningProgressIntervalConstant == 0 {
			service.logger.Info(planningProgressMessageConstant,
				zap.Int(logFieldPlannedConstant, plannedCount),
				zap.Int(logFieldTotalConstant, len(projects)),
			)
		}
	}
	return plan, nil
}

func (service *Service) processProject(executionContext context.Context, plannedEntry plannedProject, position int, total int) error {
	fmt.Fprintf(service.output, syncLineTemplateConstant,
		position, total,
		plannedEntry.project.PathWithNamespace,
		service.configuration.GitHubOrganization, plannedEntry.destinationName,
	)

	destinationName := plannedEntry.destinationName
	exists, existenceError := cachedExistenceChecker{
		executionContext: executionContext,
		cache:            service.existenceCache,
		registry:         service.targetRegistry,
	}.RepositoryNameExists(destinationName)
	if existenceError != nil {
		return existenceError
	}

	if exists && service.configuration.ForceReimport {
		if deleteError := service.targetRegistry.DeleteRepository(executionContext, destinationName); deleteError != nil {
			return deleteError
		}
		service.existenceCache.Store(destinationName, false)
		exists = false
	}

	if !exists {
		private := service.configuration.TargetVisibility == VisibilityPrivate
		if createError := service.targetRegistry.CreateRepository(executionContext, destinationName, private, plannedEntry.project.Description); createError != nil {
			return createError
		}
		service.existenceCache.Store(destinationName, true)
	}

	sourceURL := plannedEntry.project.HTTPURLToRepo
	if service.configuration.CloneMethod == TransportSSH {
		sourceURL = plannedEntry.project.SSHURLToRepo
	}

	if service.configuration.CloneMethod == TransportHTTPS &&
		plannedEntry.project.Visibility != publicSourceVisibilityConstant &&
		len(service.configuration.GitLabUsername) == 0 {
		return AuthenticationError{Message: usernameRequiredMessageConstant}
	}

	pushProtocol := github.PushProtocolHTTPS
	if service.configuration.PushMethod == TransportSSH {
		pushProtocol = github.PushProtocolSSH
	}

	return service.transferrer.Transfer(executionContext, transfer.Request{
		RepositoryName:       destinationName,
		SourceURL:            sourceURL,
		SourceUsername:       service.configuration.GitLabUsername,
		SourceToken:          service.configuration.GitLabToken,
		DestinationURL:       service.targetRegistry.GitPushURL(destinationName, pushProtocol),
		DestinationToken:     service.configuration.GitHubToken,
		PushOverHTTPS:        pushProtocol == github.PushProtocolHTTPS,
		SkipAvailabilityWait: service.configuration.SkipWait,
	})
}

package migration_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meeghele/au-revoir-gitlab/internal/github"
	"github.com/meeghele/au-revoir-gitlab/internal/gitlab"
	"github.com/meeghele/au-revoir-gitlab/internal/migration"
	"github.com/meeghele/au-revoir-gitlab/internal/transfer"
)

const (
	testNamespaceConstant    = "example"
	testOrganizationConstant = "acme"
)

type fakeSourceCatalog struct {
	projects []gitlab.Project
}

func (catalog *fakeSourceCatalog) Connect(executionContext context.Context) error {
	return nil
}

func (catalog *fakeSourceCatalog) ListProjects(executionContext context.Context, namespace string, excludePattern string, includeArchived bool) ([]gitlab.Project, error) {
	return catalog.projects, nil
}

type fakeTargetRegistry struct {
	existingRepositories map[string]bool
	existenceQueries     []string
	operationLog         []string
}

func (registry *fakeTargetRegistry) Connect(executionContext context.Context) error {
	return nil
}

func (registry *fakeTargetRegistry) RepositoryExists(executionContext context.Context, repositoryName string) (bool, error) {
	registry.existenceQueries = append(registry.existenceQueries, repositoryName)
	return registry.existingRepositories[repositoryName], nil
}

func (registry *fakeTargetRegistry) CreateRepository(executionContext context.Context, repositoryName string, private bool, description string) error {
	registry.operationLog = append(registry.operationLog, "create:"+repositoryName)
	return nil
}

func (registry *fakeTargetRegistry) DeleteRepository(executionContext context.Context, repositoryName string) error {
	registry.operationLog = append(registry.operationLog, "delete:"+repositoryName)
	return nil
}

func (registry *fakeTargetRegistry) GitPushURL(repositoryName string, protocol github.PushProtocol) string {
	return fmt.Sprintf("https://github.com/%s/%s.git", testOrganizationConstant, repositoryName)
}

type fakeTransferrer struct {
	requests     []transfer.Request
	failuresLeft int
}

func (transferrer *fakeTransferrer) Transfer(executionContext context.Context, request transfer.Request) error {
	transferrer.requests = append(transferrer.requests, request)
	if transferrer.failuresLeft > 0 {
		transferrer.failuresLeft--
		return errors.New("mirror push rejected")
	}
	return nil
}

func baseConfiguration() migration.CommandConfiguration {
	configuration := migration.DefaultCommandConfiguration()
	configuration.GitLabToken = "glpat-source"
	configuration.GitLabNamespace = testNamespaceConstant
	configuration.GitLabUsername = "mirror-bot"
	configuration.GitHubToken = "ghp_destination"
	configuration.GitHubOrganization = testOrganizationConstant
	return configuration
}

func sampleProjects() []gitlab.Project {
	return []gitlab.Project{
		{
			Identifier:        1001,
			PathWithNamespace: "example/alpha",
			Description:       "alpha service",
			Visibility:        "private",
			HTTPURLToRepo:     "https://gitlab.example.com/example/alpha.git",
			SSHURLToRepo:      "git@gitlab.example.com:example/alpha.git",
		},
		{
			Identifier:        1002,
			PathWithNamespace: "example/tools/beta",
			Description:       "beta tool",
			Visibility:        "private",
			HTTPURLToRepo:     "https://gitlab.example.com/example/tools/beta.git",
			SSHURLToRepo:      "git@gitlab.example.com:example/tools/beta.git",
		},
	}
}

func newServiceUnderTest(
	testInstance *testing.T,
	configuration migration.CommandConfiguration,
	catalog *fakeSourceCatalog,
	registry *fakeTargetRegistry,
	transferrer *fakeTransferrer,
) (*migration.Service, *bytes.Buffer) {
	outputBuffer := &bytes.Buffer{}
	service, serviceError := migration.NewService(migration.ServiceDependencies{
		Logger:         zap.NewNop(),
		SourceCatalog:  catalog,
		TargetRegistry: registry,
		Transferrer:    transferrer,
		Output:         outputBuffer,
	}, configuration)
	require.NoError(testInstance, serviceError)
	return service, outputBuffer
}

func TestRunDryRunIssuesNoMutatingCalls(testInstance *testing.T) {
	configuration := baseConfiguration()
	configuration.DryRun = true

	catalog := &fakeSourceCatalog{projects: sampleProjects()}
	registry := &fakeTargetRegistry{existingRepositories: map[string]bool{}}
	transferrer := &fakeTransferrer{}

	service, outputBuffer := newServiceUnderTest(testInstance, configuration, catalog, registry, transferrer)
	require.NoError(testInstance, service.Run(context.Background()))

	require.Empty(testInstance, registry.operationLog)
	require.Empty(testInstance, transferrer.requests)
	require.Contains(testInstance, outputBuffer.String(), "[1/2] would import: example/alpha -> acme/alpha")
	require.Contains(testInstance, outputBuffer.String(), "[2/2] would import: example/tools/beta -> acme/tools-beta")
}

func TestRunTransfersEveryPlannedProjectInOrder(testInstance *testing.T) {
	configuration := baseConfiguration()

	catalog := &fakeSourceCatalog{projects: sampleProjects()}
	registry := &fakeTargetRegistry{existingRepositories: map[string]bool{}}
	transferrer := &fakeTransferrer{}

	service, outputBuffer := newServiceUnderTest(testInstance, configuration, catalog, registry, transferrer)
	require.NoError(testInstance, service.Run(context.Background()))

	require.Equal(testInstance, []string{"create:alpha", "create:tools-beta"}, registry.operationLog)
	require.Len(testInstance, transferrer.requests, 2)

	firstRequest := transferrer.requests[0]
	require.Equal(testInstance, "alpha", firstRequest.RepositoryName)
	require.Equal(testInstance, "https://gitlab.example.com/example/alpha.git", firstRequest.SourceURL)
	require.Equal(testInstance, "https://github.com/acme/alpha.git", firstRequest.DestinationURL)
	require.True(testInstance, firstRequest.PushOverHTTPS)

	require.Contains(testInstance, outputBuffer.String(), "[1/2] sync: example/alpha -> acme/alpha")
}

func TestRunForceReimportDeletesThenRecreates(testInstance *testing.T) {
	configuration := baseConfiguration()
	configuration.ForceReimport = true

	catalog := &fakeSourceCatalog{projects: sampleProjects()[:1]}
	registry := &fakeTargetRegistry{existingRepositories: map[string]bool{"alpha": true}}
	transferrer := &fakeTransferrer{}

	service, _ := newServiceUnderTest(testInstance, configuration, catalog, registry, transferrer)
	require.NoError(testInstance, service.Run(context.Background()))

	require.Equal(testInstance, []string{"delete:alpha", "create:alpha"}, registry.operationLog)
	require.Len(testInstance, transferrer.requests, 1)
	// The cache answers every later lookup, so the registry is queried once.
	require.Equal(testInstance, []string{"alpha"}, registry.existenceQueries)
}

func TestRunCachesExistenceAnswersAcrossPlanningAndSync(testInstance *testing.T) {
	configuration := baseConfiguration()

	catalog := &fakeSourceCatalog{projects: sampleProjects()[:1]}
	registry := &fakeTargetRegistry{existingRepositories: map[string]bool{}}
	transferrer := &fakeTransferrer{}

	service, _ := newServiceUnderTest(testInstance, configuration, catalog, registry, transferrer)
	require.NoError(testInstance, service.Run(context.Background()))

	require.Equal(testInstance, []string{"alpha"}, registry.existenceQueries)
}

func TestRunAbortsOnFirstTransferFailure(testInstance *testing.T) {
	configuration := baseConfiguration()

	catalog := &fakeSourceCatalog{projects: sampleProjects()}
	registry := &fakeTargetRegistry{existingRepositories: map[string]bool{}}
	transferrer := &fakeTransferrer{failuresLeft: 1}

	service, _ := newServiceUnderTest(testInstance, configuration, catalog, registry, transferrer)
	require.Error(testInstance, service.Run(context.Background()))

	require.Len(testInstance, transferrer.requests, 1)
	require.Equal(testInstance, []string{"create:alpha"}, registry.operationLog)
}

func TestRunRequiresUsernameForPrivateHTTPSClones(testInstance *testing.T) {
	configuration := baseConfiguration()
	configuration.GitLabUsername = ""

	catalog := &fakeSourceCatalog{projects: sampleProjects()[:1]}
	registry := &fakeTargetRegistry{existingRepositories: map[string]bool{}}
	transferrer := &fakeTransferrer{}

	service, _ := newServiceUnderTest(testInstance, configuration, catalog, registry, transferrer)
	runError := service.Run(context.Background())
	require.Error(testInstance, runError)

	var authenticationFailure migration.AuthenticationError
	require.ErrorAs(testInstance, runError, &authenticationFailure)
	require.Empty(testInstance, transferrer.requests)
}

func TestRunAllowsPublicProjectsWithoutUsername(testInstance *testing.T) {
	configuration := baseConfiguration()
	configuration.GitLabUsername = ""

	publicProject := sampleProjects()[0]
	publicProject.Visibility = "public"

	catalog := &fakeSourceCatalog{projects: []gitlab.Project{publicProject}}
	registry := &fakeTargetRegistry{existingRepositories: map[string]bool{}}
	transferrer := &fakeTransferrer{}

	service, _ := newServiceUnderTest(testInstance, configuration, catalog, registry, transferrer)
	require.NoError(testInstance, service.Run(context.Background()))
	require.Len(testInstance, transferrer.requests, 1)
}

func TestRunWithEmptyNamespaceSucceeds(testInstance *testing.T) {
	configuration := baseConfiguration()

	catalog := &fakeSourceCatalog{projects: nil}
	registry := &fakeTargetRegistry{existingRepositories: map[string]bool{}}
	transferrer := &fakeTransferrer{}

	service, _ := newServiceUnderTest(testInstance, configuration, catalog, registry, transferrer)
	require.NoError(testInstance, service.Run(context.Background()))
	require.Empty(testInstance, registry.operationLog)
	require.Empty(testInstance, transferrer.requests)
}

func TestRunUsesSSHSourceURLWhenConfigured(testInstance *testing.T) {
	configuration := baseConfiguration()
	configuration.CloneMethod = migration.TransportSSH
	configuration.PushMethod = migration.TransportSSH

	catalog := &fakeSourceCatalog{projects: sampleProjects()[:1]}
	registry := &fakeTargetRegistry{existingRepositories: map[string]bool{}}
	transferrer := &fakeTransferrer{}

	service, _ := newServiceUnderTest(testInstance, configuration, catalog, registry, transferrer)
	require.NoError(testInstance, service.Run(context.Background()))

	require.Len(testInstance, transferrer.requests, 1)
	require.Equal(testInstance, "git@gitlab.example.com:example/alpha.git", transferrer.requests[0].SourceURL)
	require.False(testInstance, transferrer.requests[0].PushOverHTTPS)
}

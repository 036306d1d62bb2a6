package gitlab_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meeghele/au-revoir-gitlab/internal/gitlab"
	"github.com/meeghele/au-revoir-gitlab/internal/ratelimit"
)

const (
	testNamespaceConstant   = "example"
	testRateLimitConstant   = 1000
	testTokenValueConstant  = "glpat-test-token"
	contentTypeHeaderName   = "Content-Type"
	jsonContentTypeConstant = "application/json"
)

type fakeGitLabServer struct {
	server                *httptest.Server
	projectListCallCounts map[string]int
}

func newFakeGitLabServer(testInstance *testing.T) *fakeGitLabServer {
	fake := &fakeGitLabServer{projectListCallCounts: map[string]int{}}

	handler := http.NewServeMux()
	handler.HandleFunc("/api/v4/user", func(responseWriter http.ResponseWriter, request *http.Request) {
		if request.Header.Get("PRIVATE-TOKEN") != testTokenValueConstant {
			responseWriter.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(responseWriter, map[string]any{"id": 1, "username": "operator"})
	})
	handler.HandleFunc("/api/v4/groups/example", func(responseWriter http.ResponseWriter, request *http.Request) {
		writeJSON(responseWriter, map[string]any{"id": 10, "full_path": "example"})
	})
	handler.HandleFunc("/api/v4/groups/10/projects", func(responseWriter http.ResponseWriter, request *http.Request) {
		fake.projectListCallCounts["10"]++
		writeJSON(responseWriter, []map[string]any{
			{
				"id":                  101,
				"path_with_namespace": "example/root-project",
				"visibility":          "private",
				"http_url_to_repo":    "https://gitlab.example.com/example/root-project.git",
			},
			{
				"id":                  102,
				"path_with_namespace": "example/archived-project",
				"archived":            true,
				"http_url_to_repo":    "https://gitlab.example.com/example/archived-project.git",
			},
		})
	})
	handler.HandleFunc("/api/v4/groups/10/descendant_groups", func(responseWriter http.ResponseWriter, request *http.Request) {
		// The same subgroup appears twice to exercise duplicate protection.
		writeJSON(responseWriter, []map[string]any{
			{"id": 20, "full_path": "example/tools"},
			{"id": 20, "full_path": "example/tools"},
			{"id": 30, "full_path": "example/legacy"},
		})
	})
	handler.HandleFunc("/api/v4/groups/20/projects", func(responseWriter http.ResponseWriter, request *http.Request) {
		fake.projectListCallCounts["20"]++
		writeJSON(responseWriter, []map[string]any{
			{
				"id":                  201,
				"path_with_namespace": "example/tools/builder",
				"visibility":          "private",
				"http_url_to_repo":    "https://gitlab.example.com/example/tools/builder.git",
			},
		})
	})
	handler.HandleFunc("/api/v4/groups/30/projects", func(responseWriter http.ResponseWriter, request *http.Request) {
		fake.projectListCallCounts["30"]++
		writeJSON(responseWriter, []map[string]any{
			{
				"id":                  301,
				"path_with_namespace": "example/legacy/old-service",
				"visibility":          "private",
				"http_url_to_repo":    "https://gitlab.example.com/example/legacy/old-service.git",
			},
		})
	})

	fake.server = httptest.NewServer(handler)
	testInstance.Cleanup(fake.server.Close)
	return fake
}

func writeJSON(responseWriter http.ResponseWriter, payload any) {
	responseWriter.Header().Set(contentTypeHeaderName, jsonContentTypeConstant)
	_ = json.NewEncoder(responseWriter).Encode(payload)
}

func newConnectedClient(testInstance *testing.T, fake *fakeGitLabServer) *gitlab.Client {
	client, creationError := gitlab.NewClient(gitlab.ClientOptions{
		BaseURL:     fake.server.URL,
		Token:       testTokenValueConstant,
		Logger:      zap.NewNop(),
		RateLimiter: ratelimit.NewLimiter(testRateLimitConstant, zap.NewNop()),
	})
	require.NoError(testInstance, creationError)
	require.NoError(testInstance, client.Connect(context.Background()))
	return client
}

func TestConnectRejectsInvalidToken(testInstance *testing.T) {
	fake := newFakeGitLabServer(testInstance)

	client, creationError := gitlab.NewClient(gitlab.ClientOptions{
		BaseURL:     fake.server.URL,
		Token:       "glpat-wrong-token",
		Logger:      zap.NewNop(),
		RateLimiter: ratelimit.NewLimiter(testRateLimitConstant, zap.NewNop()),
	})
	require.NoError(testInstance, creationError)

	connectError := client.Connect(context.Background())
	require.Error(testInstance, connectError)
	require.IsType(testInstance, gitlab.AuthenticationError{}, connectError)
}

func TestListProjectsWalksRootBeforeDescendants(testInstance *testing.T) {
	fake := newFakeGitLabServer(testInstance)
	client := newConnectedClient(testInstance, fake)

	projects, listError := client.ListProjects(context.Background(), testNamespaceConstant, "", false)
	require.NoError(testInstance, listError)

	projectPaths := make([]string, 0, len(projects))
	for _, project := range projects {
		projectPaths = append(projectPaths, project.PathWithNamespace)
	}

	require.Equal(testInstance, []string{
		"example/root-project",
		"example/tools/builder",
		"example/legacy/old-service",
	}, projectPaths)
}

func TestListProjectsVisitsDuplicateSubgroupOnce(testInstance *testing.T) {
	fake := newFakeGitLabServer(testInstance)
	client := newConnectedClient(testInstance, fake)

	_, listError := client.ListProjects(context.Background(), testNamespaceConstant, "", false)
	require.NoError(testInstance, listError)

	require.Equal(testInstance, 1, fake.projectListCallCounts["20"])
}

func TestListProjectsHonorsArchivedAndExcludeFilters(testInstance *testing.T) {
	fake := newFakeGitLabServer(testInstance)
	client := newConnectedClient(testInstance, fake)

	withArchived, listError := client.ListProjects(context.Background(), testNamespaceConstant, "", true)
	require.NoError(testInstance, listError)
	require.Len(testInstance, withArchived, 4)

	legacyCallsBeforeExclusion := fake.projectListCallCounts["30"]
	excluded, excludeError := client.ListProjects(context.Background(), testNamespaceConstant, "legacy", false)
	require.NoError(testInstance, excludeError)
	for _, project := range excluded {
		require.NotContains(testInstance, project.PathWithNamespace, "legacy")
	}
	require.Equal(testInstance, legacyCallsBeforeExclusion, fake.projectListCallCounts["30"])
}

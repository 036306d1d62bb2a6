package github_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meeghele/au-revoir-gitlab/internal/github"
	"github.com/meeghele/au-revoir-gitlab/internal/ratelimit"
)

const (
	testOrganizationConstant = "acme"
	testRateLimitConstant    = 1000
	testTokenValueConstant   = "ghp_test_token"
)

type fakeGitHubServer struct {
	server                 *httptest.Server
	membershipState        string
	membershipRole         string
	membershipStatusCode   int
	organizationStatusCode int
	existingRepositories   map[string]bool
	availabilityResponses  []int
	availabilityCallCount  int
	createdRepositories    []map[string]any
	deletedRepositories    []string
}

func newFakeGitHubServer(testInstance *testing.T) *fakeGitHubServer {
	fake := &fakeGitHubServer{
		membershipState:        "active",
		membershipRole:         "admin",
		membershipStatusCode:   http.StatusOK,
		organizationStatusCode: http.StatusOK,
		existingRepositories:   map[string]bool{},
	}

	handler := http.NewServeMux()
	handler.HandleFunc("/orgs/acme", func(responseWriter http.ResponseWriter, request *http.Request) {
		if fake.organizationStatusCode != http.StatusOK {
			responseWriter.WriteHeader(fake.organizationStatusCode)
			return
		}
		writeJSON(responseWriter, map[string]any{"login": testOrganizationConstant})
	})
	handler.HandleFunc("/user/memberships/orgs/acme", func(responseWriter http.ResponseWriter, request *http.Request) {
		if fake.membershipStatusCode != http.StatusOK {
			responseWriter.WriteHeader(fake.membershipStatusCode)
			return
		}
		writeJSON(responseWriter, map[string]any{"state": fake.membershipState, "role": fake.membershipRole})
	})
	handler.HandleFunc("/orgs/acme/repos", func(responseWriter http.ResponseWriter, request *http.Request) {
		var requestBody map[string]any
		require.NoError(testInstance, json.NewDecoder(request.Body).Decode(&requestBody))
		fake.createdRepositories = append(fake.createdRepositories, requestBody)
		responseWriter.WriteHeader(http.StatusCreated)
	})
	handler.HandleFunc("/repos/acme/", func(responseWriter http.ResponseWriter, request *http.Request) {
		repositoryName := request.URL.Path[len("/repos/acme/"):]

		if request.Method == http.MethodDelete {
			fake.deletedRepositories = append(fake.deletedRepositories, repositoryName)
			responseWriter.WriteHeader(http.StatusNoContent)
			return
		}

		if len(fake.availabilityResponses) > 0 {
			statusCode := fake.availabilityResponses[0]
			fake.availabilityResponses = fake.availabilityResponses[1:]
			fake.availabilityCallCount++
			responseWriter.WriteHeader(statusCode)
			return
		}

		if fake.existingRepositories[repositoryName] {
			writeJSON(responseWriter, map[string]any{"name": repositoryName})
			return
		}
		responseWriter.WriteHeader(http.StatusNotFound)
	})

	fake.server = httptest.NewServer(handler)
	testInstance.Cleanup(fake.server.Close)
	return fake
}

func writeJSON(responseWriter http.ResponseWriter, payload any) {
	responseWriter.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(responseWriter).Encode(payload)
}

func newClientForServer(testInstance *testing.T, fake *fakeGitHubServer) *github.Client {
	client, creationError := github.NewClient(github.ClientOptions{
		APIBaseURL:   fake.server.URL,
		Token:        testTokenValueConstant,
		Organization: testOrganizationConstant,
		RetryDelay:   0,
		Logger:       zap.NewNop(),
		RateLimiter:  ratelimit.NewLimiter(testRateLimitConstant, zap.NewNop()),
	})
	require.NoError(testInstance, creationError)
	return client
}

func TestConnectPreflight(testInstance *testing.T) {
	testCases := []struct {
		name                   string
		organizationStatusCode int
		membershipStatusCode   int
		membershipState        string
		expectedErrorType      error
	}{
		{name: "active membership connects", organizationStatusCode: http.StatusOK, membershipStatusCode: http.StatusOK, membershipState: "active"},
		{name: "invalid token", organizationStatusCode: http.StatusUnauthorized, membershipStatusCode: http.StatusOK, membershipState: "active", expectedErrorType: github.AuthenticationError{}},
		{name: "organization not visible", organizationStatusCode: http.StatusNotFound, membershipStatusCode: http.StatusOK, membershipState: "active", expectedErrorType: github.APIError{}},
		{name: "forbidden organization", organizationStatusCode: http.StatusForbidden, membershipStatusCode: http.StatusOK, membershipState: "active", expectedErrorType: github.APIError{}},
		{name: "pending membership rejected", organizationStatusCode: http.StatusOK, membershipStatusCode: http.StatusOK, membershipState: "pending", expectedErrorType: github.APIError{}},
		{name: "unreadable membership only warns", organizationStatusCode: http.StatusOK, membershipStatusCode: http.StatusNotFound},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			fake := newFakeGitHubServer(subtestInstance)
			fake.organizationStatusCode = testCase.organizationStatusCode
			fake.membershipStatusCode = testCase.membershipStatusCode
			fake.membershipState = testCase.membershipState

			client := newClientForServer(subtestInstance, fake)
			connectError := client.Connect(context.Background())

			if testCase.expectedErrorType == nil {
				require.NoError(subtestInstance, connectError)
				return
			}
			require.Error(subtestInstance, connectError)
			require.IsType(subtestInstance, testCase.expectedErrorType, connectError)
		})
	}
}

func TestRepositoryExists(testInstance *testing.T) {
	fake := newFakeGitHubServer(testInstance)
	fake.existingRepositories["present"] = true

	client := newClientForServer(testInstance, fake)
	require.NoError(testInstance, client.Connect(context.Background()))

	presentExists, presentError := client.RepositoryExists(context.Background(), "present")
	require.NoError(testInstance, presentError)
	require.True(testInstance, presentExists)

	missingExists, missingError := client.RepositoryExists(context.Background(), "missing")
	require.NoError(testInstance, missingError)
	require.False(testInstance, missingExists)
}

func TestCreateRepositoryDisablesInitialContent(testInstance *testing.T) {
	fake := newFakeGitHubServer(testInstance)
	client := newClientForServer(testInstance, fake)
	require.NoError(testInstance, client.Connect(context.Background()))

	createError := client.CreateRepository(context.Background(), "imported-repo", true, "migrated repository")
	require.NoError(testInstance, createError)

	require.Len(testInstance, fake.createdRepositories, 1)
	createdRepository := fake.createdRepositories[0]
	require.Equal(testInstance, "imported-repo", createdRepository["name"])
	require.Equal(testInstance, true, createdRepository["private"])
	require.Equal(testInstance, true, createdRepository["has_issues"])
	require.Equal(testInstance, false, createdRepository["has_projects"])
	require.Equal(testInstance, false, createdRepository["has_wiki"])
	require.Equal(testInstance, false, createdRepository["auto_init"])
}

func TestDeleteRepository(testInstance *testing.T) {
	fake := newFakeGitHubServer(testInstance)
	client := newClientForServer(testInstance, fake)
	require.NoError(testInstance, client.Connect(context.Background()))

	require.NoError(testInstance, client.DeleteRepository(context.Background(), "obsolete"))
	require.Equal(testInstance, []string{"obsolete"}, fake.deletedRepositories)
}

func TestWaitRepositoryAvailable(testInstance *testing.T) {
	testCases := []struct {
		name                  string
		availabilityResponses []int
		attempts              int
		expectError           bool
		expectedCallCount     int
	}{
		{
			name:                  "available after eventual consistency delay",
			availabilityResponses: []int{http.StatusNotFound, http.StatusNotFound, http.StatusOK},
			attempts:              5,
			expectedCallCount:     3,
		},
		{
			name:                  "exhausts attempts",
			availabilityResponses: []int{http.StatusNotFound, http.StatusNotFound, http.StatusNotFound},
			attempts:              3,
			expectError:           true,
			expectedCallCount:     3,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			fake := newFakeGitHubServer(subtestInstance)
			fake.availabilityResponses = testCase.availabilityResponses

			client := newClientForServer(subtestInstance, fake)
			require.NoError(subtestInstance, client.Connect(context.Background()))

			waitError := client.WaitRepositoryAvailable(context.Background(), "fresh-repo", testCase.attempts)
			if testCase.expectError {
				require.Error(subtestInstance, waitError)
			} else {
				require.NoError(subtestInstance, waitError)
			}
			require.Equal(subtestInstance, testCase.expectedCallCount, fake.availabilityCallCount)
		})
	}
}

func TestGitPushURLDerivation(testInstance *testing.T) {
	testCases := []struct {
		name        string
		apiBaseURL  string
		protocol    github.PushProtocol
		expectedURL string
	}{
		{
			name:        "public api over https",
			apiBaseURL:  "https://api.github.com",
			protocol:    github.PushProtocolHTTPS,
			expectedURL: "https://github.com/acme/mirror.git",
		},
		{
			name:        "public api over ssh",
			apiBaseURL:  "https://api.github.com",
			protocol:    github.PushProtocolSSH,
			expectedURL: "git@github.com:acme/mirror.git",
		},
		{
			name:        "enterprise api drops version suffix",
			apiBaseURL:  "https://github.acme.com/api/v3",
			protocol:    github.PushProtocolHTTPS,
			expectedURL: "https://github.acme.com/acme/mirror.git",
		},
		{
			name:        "enterprise api over ssh",
			apiBaseURL:  "https://github.acme.com/api/v3",
			protocol:    github.PushProtocolSSH,
			expectedURL: "git@github.acme.com:acme/mirror.git",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			client, creationError := github.NewClient(github.ClientOptions{
				APIBaseURL:   testCase.apiBaseURL,
				Token:        testTokenValueConstant,
				Organization: testOrganizationConstant,
				Logger:       zap.NewNop(),
				RateLimiter:  ratelimit.NewLimiter(testRateLimitConstant, zap.NewNop()),
			})
			require.NoError(subtestInstance, creationError)
			require.Equal(subtestInstance, testCase.expectedURL, client.GitPushURL("mirror", testCase.protocol))
		})
	}
}

package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/meeghele/au-revoir-gitlab/internal/ratelimit"
	"github.com/meeghele/au-revoir-gitlab/internal/security"
)

const (
	apiBasePathConstant            = "/api/v4"
	currentUserEndpointConstant    = "/user"
	groupEndpointTemplateConstant  = "/groups/%s"
	groupProjectsEndpointTemplate  = "/groups/%d/projects"
	descendantGroupsEndpointTempl  = "/groups/%d/descendant_groups"
	privateTokenHeaderNameConstant = "PRIVATE-TOKEN"

	pageQueryParameterNameConstant    = "page"
	perPageQueryParameterNameConstant = "per_page"
	resultsPerPageConstant            = 100

	rateLimiterOperationLabelConstant = "GitLab API"

	clientLoggerMissingMessageConstant      = "gitlab client logger not configured"
	clientRateLimiterMissingMessageConstant = "gitlab client rate limiter not configured"
	clientNotConnectedMessageConstant       = "gitlab client not connected"
	authenticationFailedMessageConstant     = "authentication failed (gitlab): invalid token"
	requestErrorTemplateConstant            = "gitlab request to %s failed: %w"
	unexpectedStatusTemplateConstant        = "gitlab request to %s returned status %d"
	apiErrorTemplateConstant                = "gitlab API error: %s"

	connectingMessageConstant        = "Initializing GitLab API client"
	discoveringMessageConstant       = "Discovering projects under namespace"
	rootProjectsMessageConstant      = "Collecting root group projects"
	descendantGroupsMessageConstant  = "Collecting descendant subgroups"
	excludingProjectMessageConstant  = "Excluding project"
	excludingSubgroupMessageConstant = "Excluding subgroup"
	projectDiscoveredMessageConstant = "Discovered project"
	discoveryCompleteMessageConstant = "Project discovery completed"

	logFieldBaseURLConstant      = "base_url"
	logFieldNamespaceConstant    = "namespace"
	logFieldProjectPathConstant  = "project_path"
	logFieldSubgroupPathConstant = "subgroup_path"
	logFieldProjectCountConstant = "project_count"
	logFieldGroupCountConstant   = "subgroup_count"
)

// Project is the immutable source identity of one repository discovered
// beneath the namespace tree.
type Project struct {
	Identifier        int64  `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
	Description       string `json:"description"`
	Visibility        string `json:"visibility"`
	Archived          bool   `json:"archived"`
	HTTPURLToRepo     string `json:"http_url_to_repo"`
	SSHURLToRepo      string `json:"ssh_url_to_repo"`
}

type groupSummary struct {
	Identifier int64  `json:"id"`
	FullPath   string `json:"full_path"`
}

// AuthenticationError reports rejected GitLab credentials.
type AuthenticationError struct {
	Message string
}

// Error describes the authentication failure.
func (authenticationError AuthenticationError) Error() string {
	return authenticationError.Message
}

// APIError reports a failed GitLab API interaction.
type APIError struct {
	Cause error
}

// Error describes the API failure with redacted detail.
func (apiError APIError) Error() string {
	return fmt.Sprintf(apiErrorTemplateConstant, security.RedactCredentials(apiError.Cause.Error()))
}

// Unwrap exposes the underlying cause.
func (apiError APIError) Unwrap() error {
	return apiError.Cause
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL     string
	Token       string
	Logger      *zap.Logger
	RateLimiter *ratelimit.Limiter
}

// Client wraps the GitLab REST API for project discovery. Every outbound
// call passes through the shared rate limiter before it is issued.
type Client struct {
	restClient  *resty.Client
	rateLimiter *ratelimit.Limiter
	logger      *zap.Logger
	baseURL     string
	connected   bool
}

// NewClient constructs a GitLab client for the supplied instance URL and token.
func NewClient(options ClientOptions) (*Client, error) {
	if options.Logger == nil {
		return nil, errors.New(clientLoggerMissingMessageConstant)
	}
	if options.RateLimiter == nil {
		return nil, errors.New(clientRateLimiterMissingMessageConstant)
	}

	trimmedBaseURL := strings.TrimRight(options.BaseURL, "/")
	restClient := resty.New().
		SetBaseURL(trimmedBaseURL + apiBasePathConstant).
		SetHeader(privateTokenHeaderNameConstant, options.Token)

	return &Client{
		restClient:  restClient,
		rateLimiter: options.RateLimiter,
		logger:      options.Logger,
		baseURL:     trimmedBaseURL,
	}, nil
}

// Connect verifies the configured token against the current-user endpoint.
func (client *Client) Connect(executionContext context.Context) error {
	client.logger.Info(connectingMessageConstant, zap.String(logFieldBaseURLConstant, client.baseURL))

	client.rateLimiter.Admit(rateLimiterOperationLabelConstant)
	response, requestError := client.restClient.R().
		SetContext(executionContext).
		Get(currentUserEndpointConstant)
	if requestError != nil {
		return APIError{Cause: fmt.Errorf(requestErrorTemplateConstant, currentUserEndpointConstant, requestError)}
	}

	switch response.StatusCode() {
	case http.StatusOK:
		client.connected = true
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return AuthenticationError{Message: authenticationFailedMessageConstant}
	default:
		return APIError{Cause: fmt.Errorf(unexpectedStatusTemplateConstant, currentUserEndpointConstant, response.StatusCode())}
	}
}

// ListProjects enumerates every project beneath the namespace: the root
// group's direct projects first, then the projects of each descendant
// subgroup, visiting each subgroup exactly once. Archived projects are
// skipped unless requested and any path containing excludePattern is
// dropped at every level.
func (client *Client) ListProjects(executionContext context.Context, namespace string, excludePattern string, includeArchived bool) ([]Project, error) {
	if !client.connected {
		return nil, APIError{Cause: errors.New(clientNotConnectedMessageConstant)}
	}

	client.logger.Info(discoveringMessageConstant, zap.String(logFieldNamespaceConstant, namespace))

	rootGroup, rootGroupError := client.fetchGroup(executionContext, namespace)
	if rootGroupError != nil {
		return nil, rootGroupError
	}

	discoveredProjects := make([]Project, 0)

	client.logger.Info(rootProjectsMessageConstant)
	rootProjects, rootProjectsError := client.fetchGroupProjects(executionContext, rootGroup.Identifier)
	if rootProjectsError != nil {
		return nil, rootProjectsError
	}
	discoveredProjects = client.appendFilteredProjects(discoveredProjects, rootProjects, excludePattern, includeArchived)

	client.logger.Info(descendantGroupsMessageConstant)
	descendantGroups, descendantGroupsError := client.fetchDescendantGroups(executionContext, rootGroup.Identifier)
	if descendantGroupsError != nil {
		return nil, descendantGroupsError
	}
	client.logger.Debug(descendantGroupsMessageConstant, zap.Int(logFieldGroupCountConstant, len(descendantGroups)))

	visitedGroupIdentifiers := make(map[int64]struct{})
	for _, descendantGroup := range descendantGroups {
		if _, alreadyVisited := visitedGroupIdentifiers[descendantGroup.Identifier]; alreadyVisited {
			continue
		}
		visitedGroupIdentifiers[descendantGroup.Identifier] = struct{}{}

		if len(excludePattern) > 0 && strings.Contains(descendantGroup.FullPath, excludePattern) {
			client.logger.Warn(excludingSubgroupMessageConstant, zap.String(logFieldSubgroupPathConstant, descendantGroup.FullPath))
			continue
		}

		subgroupProjects, subgroupProjectsError := client.fetchGroupProjects(executionContext, descendantGroup.Identifier)
		if subgroupProjectsError != nil {
			return nil, subgroupProjectsError
		}
		discoveredProjects = client.appendFilteredProjects(discoveredProjects, subgroupProjects, excludePattern, includeArchived)
	}

	client.logger.Info(discoveryCompleteMessageConstant, zap.Int(logFieldProjectCountConstant, len(discoveredProjects)))
	return discoveredProjects, nil
}

func (client *Client) appendFilteredProjects(accumulated []Project, candidates []Project, excludePattern string, includeArchived bool) []Project {
	for _, candidateProject := range candidates {
		if !includeArchived && candidateProject.Archived {
			continue
		}
		if len(excludePattern) > 0 && strings.Contains(candidateProject.PathWithNamespace, excludePattern) {
			client.logger.Warn(excludingProjectMessageConstant, zap.String(logFieldProjectPathConstant, candidateProject.PathWithNamespace))
			continue
		}
		accumulated = append(accumulated, candidateProject)
		client.logger.Debug(projectDiscoveredMessageConstant, zap.String(logFieldProjectPathConstant, candidateProject.PathWithNamespace))
	}
	return accumulated
}

func (client *Client) fetchGroup(executionContext context.Context, namespace string) (groupSummary, error) {
	endpoint := fmt.Sprintf(groupEndpointTemplateConstant, url.PathEscape(namespace))

	var fetchedGroup groupSummary
	client.rateLimiter.Admit(rateLimiterOperationLabelConstant)
	response, requestError := client.restClient.R().
		SetContext(executionContext).
		SetResult(&fetchedGroup).
		Get(endpoint)
	if requestError != nil {
		return groupSummary{}, APIError{Cause: fmt.Errorf(requestErrorTemplateConstant, endpoint, requestError)}
	}
	if response.StatusCode() != http.StatusOK {
		return groupSummary{}, APIError{Cause: fmt.Errorf(unexpectedStatusTemplateConstant, endpoint, response.StatusCode())}
	}

	return fetchedGroup, nil
}

func (client *Client) fetchGroupProjects(executionContext context.Context, groupIdentifier int64) ([]Project, error) {
	endpoint := fmt.Sprintf(groupProjectsEndpointTemplate, groupIdentifier)

	collectedProjects := make([]Project, 0)
	for pageNumber := 1; ; pageNumber++ {
		var pageProjects []Project
		client.rateLimiter.Admit(rateLimiterOperationLabelConstant)
		response, requestError := client.restClient.R().
			SetContext(executionContext).
			SetQueryParam(pageQueryParameterNameConstant, fmt.Sprintf("%d", pageNumber)).
			SetQueryParam(perPageQueryParameterNameConstant, fmt.Sprintf("%d", resultsPerPageConstant)).
			SetResult(&pageProjects).
			Get(endpoint)
		if requestError != nil {
			return nil, APIError{Cause: fmt.Errorf(requestErrorTemplateConstant, endpoint, requestError)}
		}
		if response.StatusCode() != http.StatusOK {
			return nil, APIError{Cause: fmt.Errorf(unexpectedStatusTemplateConstant, endpoint, response.StatusCode())}
		}

		collectedProjects = append(collectedProjects, pageProjects...)
		if len(pageProjects) < resultsPerPageConstant {
			return collectedProjects, nil
		}
	}
}

func (client *Client) fetchDescendantGroups(executionContext context.Context, groupIdentifier int64) ([]groupSummary, error) {
	endpoint := fmt.Sprintf(descendantGroupsEndpointTempl, groupIdentifier)

	collectedGroups := make([]groupSummary, 0)
	for pageNumber := 1; ; pageNumber++ {
		var pageGroups []groupSummary
		client.rateLimiter.Admit(rateLimiterOperationLabelConstant)
		response, requestError := client.restClient.R().
			SetContext(executionContext).
			SetQueryParam(pageQueryParameterNameConstant, fmt.Sprintf("%d", pageNumber)).
			SetQueryParam(perPageQueryParameterNameConstant, fmt.Sprintf("%d", resultsPerPageConstant)).
			SetResult(&pageGroups).
			Get(endpoint)
		if requestError != nil {
			return nil, APIError{Cause: fmt.Errorf(requestErrorTemplateConstant, endpoint, requestError)}
		}
		if response.StatusCode() != http.StatusOK {
			return nil, APIError{Cause: fmt.Errorf(unexpectedStatusTemplateConstant, endpoint, response.StatusCode())}
		}

		collectedGroups = append(collectedGroups, pageGroups...)
		if len(pageGroups) < resultsPerPageConstant {
			return collectedGroups, nil
		}
	}
}

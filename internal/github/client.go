package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/meeghele/au-revoir-gitlab/internal/ratelimit"
	"github.com/meeghele/au-revoir-gitlab/internal/security"
)

const (
	publicAPIHostConstant            = "api.github.com"
	publicGitBaseURLConstant         = "https://github.com"
	publicGitHostnameConstant        = "github.com"
	enterpriseAPIPathSuffixConstant  = "/api/v3"
	organizationEndpointTemplate     = "/orgs/%s"
	membershipEndpointTemplate       = "/user/memberships/orgs/%s"
	organizationRepositoriesTemplate = "/orgs/%s/repos"
	repositoryEndpointTemplate       = "/repos/%s/%s"

	acceptHeaderNameConstant        = "Accept"
	acceptHeaderValueConstant       = "application/vnd.github+json"
	authorizationHeaderNameConstant = "Authorization"
	bearerTokenTemplateConstant     = "Bearer %s"
	apiVersionHeaderNameConstant    = "X-GitHub-Api-Version"
	apiVersionHeaderValueConstant   = "2022-11-28"

	activeMembershipStateConstant = "active"
	adminMembershipRoleConstant   = "admin"

	rateLimiterOperationLabelConstant = "GitHub API"

	clientLoggerMissingMessageConstant      = "github client logger not configured"
	clientRateLimiterMissingMessageConstant = "github client rate limiter not configured"
	clientNotConnectedMessageConstant       = "github client not connected"
	authenticationFailedMessageConstant     = "authentication failed (github): token invalid or not authorized"
	organizationForbiddenTemplateConstant   = "forbidden (403): token lacks permission to access organization %q"
	organizationNotFoundTemplateConstant    = "not found (404): organization %q does not exist or is not visible to this token"
	membershipInactiveMessageConstant       = "membership not active for target organization; access will fail"
	requestErrorTemplateConstant            = "github request to %s failed: %w"
	unexpectedStatusTemplateConstant        = "github request to %s returned status %d"
	apiErrorTemplateConstant                = "github API error: %s"
	repositoryUnavailableTemplate           = "repository %q not accessible after %d attempts"

	connectingMessageConstant             = "Initializing GitHub API client"
	membershipReportMessageConstant       = "Organization membership verified"
	membershipUnverifiedMessageConstant   = "Could not verify organization membership"
	membershipRoleWarningMessageConstant  = "Membership role is not admin; repository creation may be restricted"
	organizationStatusWarnMessageConstant = "Unexpected response checking organization visibility"
	repositoryCreatedMessageConstant      = "Created repository"
	repositoryDeletedMessageConstant      = "Deleted existing repository"
	repositoryVerifiedMessageConstant     = "Repository verified as accessible"
	repositoryPendingMessageConstant      = "Repository not yet visible"
	availabilityStatusWarnMessageConstant = "Unexpected status while checking repository availability"

	logFieldAPIURLConstant       = "api_url"
	logFieldOrganizationConstant = "organization"
	logFieldRepositoryConstant   = "repository"
	logFieldStateConstant        = "state"
	logFieldRoleConstant         = "role"
	logFieldStatusConstant       = "status"
	logFieldAttemptConstant      = "attempt"
	logFieldAttemptsConstant     = "attempts"
)

// PushProtocol selects the transport used for the mirror push remote.
type PushProtocol string

// Supported push protocols.
const (
	PushProtocolHTTPS PushProtocol = "https"
	PushProtocolSSH   PushProtocol = "ssh"
)

type organizationMembership struct {
	State string `json:"state"`
	Role  string `json:"role"`
}

// AuthenticationError reports rejected GitHub credentials.
type AuthenticationError struct {
	Message string
}

// Error describes the authentication failure.
func (authenticationError AuthenticationError) Error() string {
	return authenticationError.Message
}

// APIError reports a failed GitHub API interaction.
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
	APIBaseURL   string
	Token        string
	Organization string
	RetryDelay   time.Duration
	Logger       *zap.Logger
	RateLimiter  *ratelimit.Limiter
}

// Client wraps the GitHub REST API for the destination organization. Every
// outbound call passes through the shared rate limiter before it is issued.
type Client struct {
	restClient   *resty.Client
	rateLimiter  *ratelimit.Limiter
	logger       *zap.Logger
	apiBaseURL   string
	organization string
	token        string
	retryDelay   time.Duration
	connected    bool
	sleep        func(time.Duration)
}

// NewClient constructs a GitHub client for the supplied API endpoint,
// token, and destination organization.
func NewClient(options ClientOptions) (*Client, error) {
	if options.Logger == nil {
		return nil, errors.New(clientLoggerMissingMessageConstant)
	}
	if options.RateLimiter == nil {
		return nil, errors.New(clientRateLimiterMissingMessageConstant)
	}

	trimmedAPIBaseURL := strings.TrimRight(options.APIBaseURL, "/")
	restClient := resty.New().
		SetBaseURL(trimmedAPIBaseURL).
		SetHeader(acceptHeaderNameConstant, acceptHeaderValueConstant).
		SetHeader(authorizationHeaderNameConstant, fmt.Sprintf(bearerTokenTemplateConstant, options.Token)).
		SetHeader(apiVersionHeaderNameConstant, apiVersionHeaderValueConstant)

	return &Client{
		restClient:   restClient,
		rateLimiter:  options.RateLimiter,
		logger:       options.Logger,
		apiBaseURL:   trimmedAPIBaseURL,
		organization: options.Organization,
		token:        options.Token,
		retryDelay:   options.RetryDelay,
		sleep:        time.Sleep,
	}, nil
}

// Token returns the configured API token for credential helper setup.
func (client *Client) Token() string {
	return client.token
}

// Connect performs the organization preflight: the organization must be
// visible to the token, and when a membership record is readable its state
// must be active. Membership read failures only warn.
func (client *Client) Connect(executionContext context.Context) error {
	client.logger.Info(connectingMessageConstant,
		zap.String(logFieldAPIURLConstant, client.apiBaseURL),
		zap.String(logFieldOrganizationConstant, client.organization),
	)

	if visibilityError := client.checkOrganizationVisibility(executionContext); visibilityError != nil {
		return visibilityError
	}
	if membershipError := client.checkOrganizationMembership(executionContext); membershipError != nil {
		return membershipError
	}

	client.connected = true
	return nil
}

func (client *Client) checkOrganizationVisibility(executionContext context.Context) error {
	endpoint := fmt.Sprintf(organizationEndpointTemplate, url.PathEscape(client.organization))

	client.rateLimiter.Admit(rateLimiterOperationLabelConstant)
	response, requestError := client.restClient.R().
		SetContext(executionContext).
		Get(endpoint)
	if requestError != nil {
		return APIError{Cause: fmt.Errorf(requestErrorTemplateConstant, endpoint, requestError)}
	}

	switch response.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return AuthenticationError{Message: authenticationFailedMessageConstant}
	case http.StatusForbidden:
		return APIError{Cause: fmt.Errorf(organizationForbiddenTemplateConstant, client.organization)}
	case http.StatusNotFound:
		return APIError{Cause: fmt.Errorf(organizationNotFoundTemplateConstant, client.organization)}
	default:
		client.logger.Warn(organizationStatusWarnMessageConstant, zap.Int(logFieldStatusConstant, response.StatusCode()))
		return nil
	}
}

func (client *Client) checkOrganizationMembership(executionContext context.Context) error {
	endpoint := fmt.Sprintf(membershipEndpointTemplate, url.PathEscape(client.organization))

	var membership organizationMembership
	client.rateLimiter.Admit(rateLimiterOperationLabelConstant)
	response, requestError := client.restClient.R().
		SetContext(executionContext).
		SetResult(&membership).
		Get(endpoint)
	if requestError != nil {
		client.logger.Warn(membershipUnverifiedMessageConstant, zap.Error(requestError))
		return nil
	}

	if response.StatusCode() != http.StatusOK {
		client.logger.Warn(membershipUnverifiedMessageConstant, zap.Int(logFieldStatusConstant, response.StatusCode()))
		return nil
	}

	client.logger.Info(membershipReportMessageConstant,
		zap.String(logFieldStateConstant, membership.State),
		zap.String(logFieldRoleConstant, membership.Role),
	)
	if membership.State != activeMembershipStateConstant {
		return APIError{Cause: errors.New(membershipInactiveMessageConstant)}
	}
	if membership.Role != adminMembershipRoleConstant {
		client.logger.Warn(membershipRoleWarningMessageConstant, zap.String(logFieldRoleConstant, membership.Role))
	}
	return nil
}

// RepositoryExists reports whether the named repository is present in the
// destination organization.
func (client *Client) RepositoryExists(executionContext context.Context, repositoryName string) (bool, error) {
	if !client.connected {
		return false, APIError{Cause: errors.New(clientNotConnectedMessageConstant)}
	}

	endpoint := fmt.Sprintf(repositoryEndpointTemplate, url.PathEscape(client.organization), url.PathEscape(repositoryName))

	client.rateLimiter.Admit(rateLimiterOperationLabelConstant)
	response, requestError := client.restClient.R().
		SetContext(executionContext).
		Get(endpoint)
	if requestError != nil {
		return false, APIError{Cause: fmt.Errorf(requestErrorTemplateConstant, endpoint, requestError)}
	}

	switch response.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, APIError{Cause: fmt.Errorf(unexpectedStatusTemplateConstant, endpoint, response.StatusCode())}
	}
}

type createRepositoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
	HasIssues   bool   `json:"has_issues"`
	HasProjects bool   `json:"has_projects"`
	HasWiki     bool   `json:"has_wiki"`
	AutoInit    bool   `json:"auto_init"`
}

// CreateRepository creates an empty repository in the destination
// organization. Issues stay enabled; projects, wiki, and the initial commit
// are disabled so the mirror push lands on a bare repository.
func (client *Client) CreateRepository(executionContext context.Context, repositoryName string, private bool, description string) error {
	if !client.connected {
		return APIError{Cause: errors.New(clientNotConnectedMessageConstant)}
	}

	endpoint := fmt.Sprintf(organizationRepositoriesTemplate, url.PathEscape(client.organization))
	requestBody := createRepositoryRequest{
		Name:        repositoryName,
		Description: description,
		Private:     private,
		HasIssues:   true,
		HasProjects: false,
		HasWiki:     false,
		AutoInit:    false,
	}

	client.rateLimiter.Admit(rateLimiterOperationLabelConstant)
	response, requestError := client.restClient.R().
		SetContext(executionContext).
		SetBody(requestBody).
		Post(endpoint)
	if requestError != nil {
		return APIError{Cause: fmt.Errorf(requestErrorTemplateConstant, endpoint, requestError)}
	}
	if response.StatusCode() != http.StatusCreated {
		return APIError{Cause: fmt.Errorf(unexpectedStatusTemplateConstant, endpoint, response.StatusCode())}
	}

	client.logger.Info(repositoryCreatedMessageConstant, zap.String(logFieldRepositoryConstant, repositoryName))
	return nil
}

// DeleteRepository removes the named repository from the destination
// organization.
func (client *Client) DeleteRepository(executionContext context.Context, repositoryName string) error {
	if !client.connected {
		return APIError{Cause: errors.New(clientNotConnectedMessageConstant)}
	}

	endpoint := fmt.Sprintf(repositoryEndpointTemplate, url.PathEscape(client.organization), url.PathEscape(repositoryName))

	client.rateLimiter.Admit(rateLimiterOperationLabelConstant)
	response, requestError := client.restClient.R().
		SetContext(executionContext).
		Delete(endpoint)
	if requestError != nil {
		return APIError{Cause: fmt.Errorf(requestErrorTemplateConstant, endpoint, requestError)}
	}
	if response.StatusCode() != http.StatusNoContent {
		return APIError{Cause: fmt.Errorf(unexpectedStatusTemplateConstant, endpoint, response.StatusCode())}
	}

	client.logger.Warn(repositoryDeletedMessageConstant, zap.String(logFieldRepositoryConstant, repositoryName))
	return nil
}

// WaitRepositoryAvailable polls the repository endpoint until it answers
// 200, retrying up to the supplied attempt count with the configured delay
// between attempts. Newly created repositories can lag behind the REST API.
func (client *Client) WaitRepositoryAvailable(executionContext context.Context, repositoryName string, attempts int) error {
	if !client.connected {
		return APIError{Cause: errors.New(clientNotConnectedMessageConstant)}
	}

	endpoint := fmt.Sprintf(repositoryEndpointTemplate, url.PathEscape(client.organization), url.PathEscape(repositoryName))
	for attemptNumber := 1; attemptNumber <= attempts; attemptNumber++ {
		client.rateLimiter.Admit(rateLimiterOperationLabelConstant)
		response, requestError := client.restClient.R().
			SetContext(executionContext).
			Get(endpoint)
		switch {
		case requestError != nil:
			client.logger.Debug(repositoryPendingMessageConstant, zap.String(logFieldRepositoryConstant, repositoryName), zap.Error(requestError))
		case response.StatusCode() == http.StatusOK:
			client.logger.Info(repositoryVerifiedMessageConstant, zap.String(logFieldRepositoryConstant, repositoryName))
			return nil
		case response.StatusCode() == http.StatusNotFound:
			client.logger.Debug(repositoryPendingMessageConstant,
				zap.String(logFieldRepositoryConstant, repositoryName),
				zap.Int(logFieldAttemptConstant, attemptNumber),
				zap.Int(logFieldAttemptsConstant, attempts),
			)
		default:
			client.logger.Warn(availabilityStatusWarnMessageConstant,
				zap.String(logFieldRepositoryConstant, repositoryName),
				zap.Int(logFieldStatusConstant, response.StatusCode()),
			)
		}
		client.sleep(client.retryDelay)
	}

	return APIError{Cause: fmt.Errorf(repositoryUnavailableTemplate, repositoryName, attempts)}
}

// GitPushURL derives the mirror push remote for a repository from the API
// endpoint: the public API host maps to github.com, and a GitHub Enterprise
// endpoint drops its /api/v3 suffix.
func (client *Client) GitPushURL(repositoryName string, protocol PushProtocol) string {
	parsedAPIURL, parseError := url.Parse(client.apiBaseURL)
	if parseError != nil {
		parsedAPIURL = &url.URL{Scheme: "https", Host: publicAPIHostConstant}
	}

	if protocol == PushProtocolSSH {
		hostname := parsedAPIURL.Host
		if hostname == publicAPIHostConstant {
			hostname = publicGitHostnameConstant
		}
		return fmt.Sprintf("git@%s:%s/%s.git", hostname, client.organization, repositoryName)
	}

	gitBaseURL := publicGitBaseURLConstant
	if parsedAPIURL.Host != publicAPIHostConstant {
		basePath := strings.TrimSuffix(strings.TrimRight(parsedAPIURL.Path, "/"), enterpriseAPIPathSuffixConstant)
		gitBaseURL = fmt.Sprintf("%s://%s%s", parsedAPIURL.Scheme, parsedAPIURL.Host, basePath)
	}
	return fmt.Sprintf("%s/%s/%s.git", strings.TrimRight(gitBaseURL, "/"), client.organization, repositoryName)
}

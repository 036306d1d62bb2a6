package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meeghele/au-revoir-gitlab/internal/execshell"
	"github.com/meeghele/au-revoir-gitlab/internal/security"
)

const (
	defaultCloneTimeoutConstant = 5 * time.Minute
	defaultPushTimeoutConstant  = 10 * time.Minute

	httpsURLPrefixConstant          = "https://"
	fallbackSourceUsernameConstant  = "oauth2"
	destinationUsernameConstant     = "x-access-token"
	defaultAvailabilityAttemptsHint = 10

	cloneSubcommandConstant = "clone"
	pushSubcommandConstant  = "push"
	mirrorFlagConstant      = "--mirror"

	stageVerifyConstant  = "verify"
	stageStagingConstant = "staging"
	stageCloneConstant   = "clone"
	stagePushConstant    = "push"

	workerLoggerMissingMessageConstant   = "transfer worker logger not configured"
	workerExecutorMissingMessageConstant = "transfer worker git executor not configured"
	availabilitySkippedMessageConstant   = "Skipping destination repository availability wait"
	cloningMessageConstant               = "Mirror cloning from source"
	pushingMessageConstant               = "Mirror pushing to destination"
	transferCompletedMessageConstant     = "Transfer completed"
	suspiciousSourceURLMessageConstant   = "Potentially suspicious URL pattern detected"
	transferErrorTemplateConstant        = "transfer of %q failed during %s: %s"

	logFieldRepositoryConstant = "repository"
	logFieldPatternConstant    = "pattern"
)

var allowedSourceURLSchemes = []string{"https", "ssh"}

// AvailabilityChecker confirms the destination repository answers the REST
// API before a push is attempted.
type AvailabilityChecker interface {
	WaitRepositoryAvailable(executionContext context.Context, repositoryName string, attempts int) error
}

// GitExecutor runs git invocations.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// TransferError reports a failed repository transfer and the stage that
// failed.
type TransferError struct {
	RepositoryName string
	Stage          string
	Cause          error
}

// Error describes the failure with redacted cause text.
func (transferError TransferError) Error() string {
	return fmt.Sprintf(
		transferErrorTemplateConstant,
		transferError.RepositoryName,
		transferError.Stage,
		security.RedactCredentials(transferError.Cause.Error()),
	)
}

// Unwrap exposes the underlying cause.
func (transferError TransferError) Unwrap() error {
	return transferError.Cause
}

// Options configures a Worker.
type Options struct {
	StagingBasePath     string
	CloneTimeout        time.Duration
	PushTimeout         time.Duration
	Logger              *zap.Logger
	GitExecutor         GitExecutor
	AvailabilityChecker AvailabilityChecker
}

// Request describes one repository transfer.
type Request struct {
	RepositoryName       string
	SourceURL            string
	SourceUsername       string
	SourceToken          string
	DestinationURL       string
	DestinationToken     string
	PushOverHTTPS        bool
	SkipAvailabilityWait bool
	AvailabilityAttempts int
}

// Worker executes the transfer state machine for one repository at a time:
// availability wait, staging, mirror clone, mirror push, cleanup.
type Worker struct {
	stagingBasePath     string
	cloneTimeout        time.Duration
	pushTimeout         time.Duration
	logger              *zap.Logger
	gitExecutor         GitExecutor
	availabilityChecker AvailabilityChecker
	validator           security.Validator
	removeTree          func(string) error
}

// NewWorker constructs a Worker with the provided options, applying the
// default clone and push timeouts when unset.
func NewWorker(options Options) (*Worker, error) {
	if options.Logger == nil {
		return nil, errors.New(workerLoggerMissingMessageConstant)
	}
	if options.GitExecutor == nil {
		return nil, errors.New(workerExecutorMissingMessageConstant)
	}

	validator := security.NewValidator()
	validatedStagingPath, stagingPathError := validator.ValidateFilePath(options.StagingBasePath)
	if stagingPathError != nil {
		return nil, stagingPathError
	}

	cloneTimeout := options.CloneTimeout
	if cloneTimeout <= 0 {
		cloneTimeout = defaultCloneTimeoutConstant
	}
	pushTimeout := options.PushTimeout
	if pushTimeout <= 0 {
		pushTimeout = defaultPushTimeoutConstant
	}

	return &Worker{
		stagingBasePath:     validatedStagingPath,
		cloneTimeout:        cloneTimeout,
		pushTimeout:         pushTimeout,
		logger:              options.Logger,
		gitExecutor:         options.GitExecutor,
		availabilityChecker: options.AvailabilityChecker,
		validator:           validator,
		removeTree:          removeTreeDefault,
	}, nil
}

// Transfer runs the full state machine for one repository. The staging
// directory is cleaned up on every exit path.
func (worker *Worker) Transfer(executionContext context.Context, request Request) error {
	validatedRequest, validationError := worker.validateRequest(request)
	if validationError != nil {
		return validationError
	}

	if waitError := worker.awaitDestination(executionContext, validatedRequest); waitError != nil {
		return TransferError{RepositoryName: validatedRequest.RepositoryName, Stage: stageVerifyConstant, Cause: waitError}
	}

	stagingDirectory, stagingError := worker.prepareStagingDirectory(validatedRequest.RepositoryName)
	if stagingError != nil {
		return TransferError{RepositoryName: validatedRequest.RepositoryName, Stage: stageStagingConstant, Cause: stagingError}
	}
	defer worker.cleanupStagingDirectory(stagingDirectory)

	if cloneError := worker.mirrorClone(executionContext, validatedRequest, stagingDirectory); cloneError != nil {
		return TransferError{RepositoryName: validatedRequest.RepositoryName, Stage: stageCloneConstant, Cause: cloneError}
	}

	if pushError := worker.mirrorPush(executionContext, validatedRequest, stagingDirectory); pushError != nil {
		return TransferError{RepositoryName: validatedRequest.RepositoryName, Stage: stagePushConstant, Cause: pushError}
	}

	worker.logger.Info(transferCompletedMessageConstant, zap.String(logFieldRepositoryConstant, validatedRequest.RepositoryName))
	return nil
}

func (worker *Worker) validateRequest(request Request) (Request, error) {
	validatedName, nameError := worker.validator.ValidateRepositoryName(request.RepositoryName)
	if nameError != nil {
		return Request{}, nameError
	}
	request.RepositoryName = validatedName

	validatedSourceURL, sourceURLError := worker.validator.ValidateURL(request.SourceURL, allowedSourceURLSchemes)
	if sourceURLError != nil {
		return Request{}, sourceURLError
	}
	request.SourceURL = validatedSourceURL

	for _, suspiciousPattern := range worker.validator.SuspiciousURLPatterns(validatedSourceURL) {
		worker.logger.Warn(suspiciousSourceURLMessageConstant,
			zap.String(logFieldRepositoryConstant, request.RepositoryName),
			zap.String(logFieldPatternConstant, suspiciousPattern),
		)
	}

	if len(request.SourceUsername) > 0 {
		validatedUsername, usernameError := worker.validator.ValidateUsername(request.SourceUsername)
		if usernameError != nil {
			return Request{}, usernameError
		}
		request.SourceUsername = validatedUsername
	}

	return request, nil
}

func (worker *Worker) awaitDestination(executionContext context.Context, request Request) error {
	if request.SkipAvailabilityWait || worker.availabilityChecker == nil {
		worker.logger.Warn(availabilitySkippedMessageConstant, zap.String(logFieldRepositoryConstant, request.RepositoryName))
		return nil
	}

	attempts := request.AvailabilityAttempts
	if attempts <= 0 {
		attempts = defaultAvailabilityAttemptsHint
	}
	return worker.availabilityChecker.WaitRepositoryAvailable(executionContext, request.RepositoryName, attempts)
}

func (worker *Worker) mirrorClone(executionContext context.Context, request Request, stagingDirectory string) error {
	worker.logger.Info(cloningMessageConstant, zap.String(logFieldRepositoryConstant, request.RepositoryName))

	var environment map[string]string
	if strings.HasPrefix(request.SourceURL, httpsURLPrefixConstant) && len(request.SourceToken) > 0 {
		askpassUsername := request.SourceUsername
		if len(askpassUsername) == 0 {
			askpassUsername = fallbackSourceUsernameConstant
		}

		helper, helperError := writeCredentialHelper(askpassUsername, request.SourceToken)
		if helperError != nil {
			return helperError
		}
		defer helper.remove(worker.logger)
		environment = helper.environment()
	}

	_, executionError := worker.gitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{cloneSubcommandConstant, mirrorFlagConstant, request.SourceURL, stagingDirectory},
		EnvironmentVariables: environment,
		Timeout:              worker.cloneTimeout,
	})
	return executionError
}

func (worker *Worker) mirrorPush(executionContext context.Context, request Request, stagingDirectory string) error {
	worker.logger.Info(pushingMessageConstant, zap.String(logFieldRepositoryConstant, request.RepositoryName))

	var environment map[string]string
	if request.PushOverHTTPS {
		helper, helperError := writeCredentialHelper(destinationUsernameConstant, request.DestinationToken)
		if helperError != nil {
			return helperError
		}
		defer helper.remove(worker.logger)
		environment = helper.environment()
	}

	_, executionError := worker.gitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{pushSubcommandConstant, mirrorFlagConstant, request.DestinationURL},
		WorkingDirectory:     stagingDirectory,
		EnvironmentVariables: environment,
		Timeout:              worker.pushTimeout,
	})
	return executionError
}

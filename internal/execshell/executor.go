package execshell

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/meeghele/au-revoir-gitlab/internal/security"
)

const (
	loggerNotConfiguredMessageConstant        = "logger not configured"
	commandRunnerNotConfiguredMessageConstant = "command runner not configured"
	commandFailedErrorTemplateConstant        = "%s command failed with exit code %d: %s"
	commandTimedOutErrorTemplateConstant      = "%s command timed out after %s"
	commandExecutionErrorTemplateConstant     = "%s command could not be executed: %s"
)

// Sentinel construction errors.
var (
	ErrLoggerNotConfigured        = errors.New(loggerNotConfiguredMessageConstant)
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
)

// CommandFailedError reports a command that completed with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failure with redacted standard error output.
func (failedError CommandFailedError) Error() string {
	return fmt.Sprintf(
		commandFailedErrorTemplateConstant,
		failedError.Command.Name,
		failedError.Result.ExitCode,
		security.RedactCredentials(failedError.Result.StandardError),
	)
}

// CommandTimedOutError reports a command killed by its bounded timeout.
type CommandTimedOutError struct {
	Command ShellCommand
}

// Error describes the timeout.
func (timedOutError CommandTimedOutError) Error() string {
	return fmt.Sprintf(commandTimedOutErrorTemplateConstant, timedOutError.Command.Name, timedOutError.Command.Details.Timeout)
}

// CommandExecutionError reports a command that could not be started or run.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure with redacted cause text.
func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(
		commandExecutionErrorTemplateConstant,
		executionError.Command.Name,
		security.RedactCredentials(executionError.Cause.Error()),
	)
}

// Unwrap exposes the underlying cause.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// ShellExecutor runs external commands through a CommandRunner, logging
// lifecycle events with credentials redacted.
type ShellExecutor struct {
	logger           *zap.Logger
	commandRunner    CommandRunner
	messageFormatter CommandMessageFormatter
}

// NewShellExecutor constructs a ShellExecutor with the provided logger and runner.
func NewShellExecutor(logger *zap.Logger, commandRunner CommandRunner) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if commandRunner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}

	return &ShellExecutor{
		logger:           logger,
		commandRunner:    commandRunner,
		messageFormatter: CommandMessageFormatter{},
	}, nil
}

// ExecuteGit runs the git binary with the supplied details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

func (executor *ShellExecutor) execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executor.logger.Info(security.RedactCredentials(executor.messageFormatter.BuildStartedMessage(command)))

	executionResult, runError := executor.commandRunner.Run(executionContext, command)
	if runError != nil {
		if errors.Is(runError, context.DeadlineExceeded) {
			timedOutError := CommandTimedOutError{Command: command}
			executor.logger.Error(security.RedactCredentials(executor.messageFormatter.BuildTimeoutMessage(command)))
			return ExecutionResult{}, timedOutError
		}

		executionError := CommandExecutionError{Command: command, Cause: runError}
		executor.logger.Error(security.RedactCredentials(executor.messageFormatter.BuildExecutionFailureMessage(command, runError)))
		return ExecutionResult{}, executionError
	}

	if executionResult.ExitCode != 0 {
		failedError := CommandFailedError{Command: command, Result: executionResult}
		executor.logger.Error(security.RedactCredentials(executor.messageFormatter.BuildFailureMessage(command, executionResult)))
		return ExecutionResult{}, failedError
	}

	executor.logger.Info(security.RedactCredentials(executor.messageFormatter.BuildSuccessMessage(command)))
	return executionResult, nil
}

package execshell

import (
	"context"
	"time"
)

const (
	gitExecutableNameConstant = "git"
)

// CommandName identifies a supported external executable.
type CommandName string

// Supported executables.
const (
	CommandGit CommandName = CommandName(gitExecutableNameConstant)
)

// CommandDetails describes one invocation of an external executable.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	Timeout              time.Duration
}

// ShellCommand pairs an executable name with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable outputs of a completed process.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner executes shell commands and reports their results.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/meeghele/au-revoir-gitlab/cmd/cli"
	"github.com/meeghele/au-revoir-gitlab/internal/github"
	"github.com/meeghele/au-revoir-gitlab/internal/gitlab"
	"github.com/meeghele/au-revoir-gitlab/internal/migration"
	"github.com/meeghele/au-revoir-gitlab/internal/security"
	"github.com/meeghele/au-revoir-gitlab/internal/transfer"
)

const (
	exitErrorTemplateConstant = "%v\n"

	exitCodeGeneralFailureConstant     = 1
	exitCodeUsageFailureConstant       = 2
	exitCodeSourceFailureConstant      = 30
	exitCodeDestinationFailureConstant = 31
	exitCodeAuthenticationFailure      = 40
)

// main executes the au-revoir-gitlab command-line application.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
		os.Exit(exitCodeForError(executionError))
	}
}

// exitCodeForError maps failure categories to distinct process exit codes so
// callers can tell authentication, configuration, source, and destination
// failures apart.
func exitCodeForError(executionError error) int {
	var sourceAuthenticationError gitlab.AuthenticationError
	var destinationAuthenticationError github.AuthenticationError
	var migrationAuthenticationError migration.AuthenticationError
	if errors.As(executionError, &sourceAuthenticationError) ||
		errors.As(executionError, &destinationAuthenticationError) ||
		errors.As(executionError, &migrationAuthenticationError) {
		return exitCodeAuthenticationFailure
	}

	var configurationError migration.ConfigurationError
	var validationError security.ValidationError
	if errors.As(executionError, &configurationError) || errors.As(executionError, &validationError) {
		return exitCodeUsageFailureConstant
	}

	var sourceAPIError gitlab.APIError
	if errors.As(executionError, &sourceAPIError) {
		return exitCodeSourceFailureConstant
	}

	var destinationAPIError github.APIError
	var transferError transfer.TransferError
	if errors.As(executionError, &destinationAPIError) || errors.As(executionError, &transferError) {
		return exitCodeDestinationFailureConstant
	}

	return exitCodeGeneralFailureConstant
}

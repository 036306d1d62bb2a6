package execshell

import (
	"fmt"
	"strings"
)

const (
	gitCloneSubcommandNameConstant = "clone"
	gitPushSubcommandNameConstant  = "push"
	gitMirrorFlagConstant          = "--mirror"

	mirrorCloneStartTemplateConstant   = "Mirror cloning %s into %s"
	mirrorCloneSuccessTemplateConstant = "Mirror clone of %s completed"
	mirrorCloneFailureTemplateConstant = "Mirror clone of %s failed with exit code %d%s"
	mirrorPushStartTemplateConstant    = "Mirror pushing %s to %s"
	mirrorPushSuccessTemplateConstant  = "Mirror push from %s completed"
	mirrorPushFailureTemplateConstant  = "Mirror push from %s failed with exit code %d%s"

	genericStartTemplateConstant          = "Running %s"
	genericSuccessTemplateConstant        = "Completed %s"
	genericFailureTemplateConstant        = "%s failed with exit code %d%s"
	genericTimeoutTemplateConstant        = "%s timed out after %s"
	genericExecutionFailureTemplate       = "%s failed: %s"
	commandLabelTemplateConstant          = "%s %s"
	standardErrorSuffixTemplateConstant   = ": %s"
	commandArgumentsJoinSeparatorConstant = " "
	defaultWorkingDirectoryLabelConstant  = "current directory"
	unknownValueLabelConstant             = "unknown"
)

// CommandMessageFormatter builds human-readable messages for command
// lifecycle events. Mirror clone and push invocations receive dedicated
// phrasing; everything else falls back to a generic description.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	if formatter.isMirrorClone(command) {
		return fmt.Sprintf(mirrorCloneStartTemplateConstant, formatter.cloneSourceLabel(command), formatter.cloneDestinationLabel(command))
	}
	if formatter.isMirrorPush(command) {
		return fmt.Sprintf(mirrorPushStartTemplateConstant, formatter.workingDirectoryLabel(command), formatter.pushDestinationLabel(command))
	}
	return fmt.Sprintf(genericStartTemplateConstant, formatter.commandLabel(command))
}

// BuildSuccessMessage formats the message describing a command that exited cleanly.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	if formatter.isMirrorClone(command) {
		return fmt.Sprintf(mirrorCloneSuccessTemplateConstant, formatter.cloneSourceLabel(command))
	}
	if formatter.isMirrorPush(command) {
		return fmt.Sprintf(mirrorPushSuccessTemplateConstant, formatter.workingDirectoryLabel(command))
	}
	return fmt.Sprintf(genericSuccessTemplateConstant, formatter.commandLabel(command))
}

// BuildFailureMessage formats the message describing a non-zero exit.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	standardErrorSuffix := formatter.standardErrorSuffix(result.StandardError)
	if formatter.isMirrorClone(command) {
		return fmt.Sprintf(mirrorCloneFailureTemplateConstant, formatter.cloneSourceLabel(command), result.ExitCode, standardErrorSuffix)
	}
	if formatter.isMirrorPush(command) {
		return fmt.Sprintf(mirrorPushFailureTemplateConstant, formatter.workingDirectoryLabel(command), result.ExitCode, standardErrorSuffix)
	}
	return fmt.Sprintf(genericFailureTemplateConstant, formatter.commandLabel(command), result.ExitCode, standardErrorSuffix)
}

// BuildTimeoutMessage formats the message describing a command killed by its timeout.
func (formatter CommandMessageFormatter) BuildTimeoutMessage(command ShellCommand) string {
	return fmt.Sprintf(genericTimeoutTemplateConstant, formatter.commandLabel(command), command.Details.Timeout)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	failureDescription := unknownValueLabelConstant
	if failure != nil {
		failureDescription = failure.Error()
	}
	return fmt.Sprintf(genericExecutionFailureTemplate, formatter.commandLabel(command), failureDescription)
}

func (formatter CommandMessageFormatter) isMirrorClone(command ShellCommand) bool {
	return formatter.isMirrorSubcommand(command, gitCloneSubcommandNameConstant)
}

func (formatter CommandMessageFormatter) isMirrorPush(command ShellCommand) bool {
	return formatter.isMirrorSubcommand(command, gitPushSubcommandNameConstant)
}

func (formatter CommandMessageFormatter) isMirrorSubcommand(command ShellCommand, subcommand string) bool {
	arguments := command.Details.Arguments
	if command.Name != CommandGit || len(arguments) < 2 {
		return false
	}
	return strings.TrimSpace(arguments[0]) == subcommand && containsArgument(arguments, gitMirrorFlagConstant)
}

func (formatter CommandMessageFormatter) cloneSourceLabel(command ShellCommand) string {
	return formatter.positionalArgument(command, 0)
}

func (formatter CommandMessageFormatter) cloneDestinationLabel(command ShellCommand) string {
	return formatter.positionalArgument(command, 1)
}

func (formatter CommandMessageFormatter) pushDestinationLabel(command ShellCommand) string {
	return formatter.positionalArgument(command, 0)
}

// positionalArgument returns the nth argument after the subcommand, skipping flags.
func (formatter CommandMessageFormatter) positionalArgument(command ShellCommand, index int) string {
	positionalSeen := 0
	for _, argument := range command.Details.Arguments[1:] {
		if strings.HasPrefix(argument, "-") {
			continue
		}
		if positionalSeen == index {
			return argument
		}
		positionalSeen++
	}
	return unknownValueLabelConstant
}

func (formatter CommandMessageFormatter) workingDirectoryLabel(command ShellCommand) string {
	workingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(workingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return workingDirectory
}

func (formatter CommandMessageFormatter) commandLabel(command ShellCommand) string {
	if len(command.Details.Arguments) == 0 {
		return string(command.Name)
	}
	return fmt.Sprintf(commandLabelTemplateConstant, command.Name, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
}

func (formatter CommandMessageFormatter) standardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return ""
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if argument == value {
			return true
		}
	}
	return false
}

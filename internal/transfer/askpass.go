package transfer

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

const (
	askpassScriptNamePatternConstant = "arg_askpass_*"
	askpassScriptBodyTemplate        = "#!/bin/sh\ncase \"$1\" in\n  *Username*) echo '%s' ;;\n  *Password*) echo '%s' ;;\n  *) exit 1 ;;\nesac\n"
	askpassScriptFileModeConstant    = 0o700

	askpassEnvironmentVariableName        = "GIT_ASKPASS"
	terminalPromptEnvironmentVariableName = "GIT_TERMINAL_PROMPT"
	terminalPromptDisabledValueConstant   = "0"

	askpassCleanupFailedMessageConstant = "Failed to remove temporary credential helper"
)

// credentialHelper is an ephemeral askpass script answering git's username
// and password prompts without exposing credentials on the command line.
type credentialHelper struct {
	scriptPath string
}

func writeCredentialHelper(username string, password string) (*credentialHelper, error) {
	scriptFile, createError := os.CreateTemp("", askpassScriptNamePatternConstant)
	if createError != nil {
		return nil, createError
	}

	scriptBody := fmt.Sprintf(askpassScriptBodyTemplate, username, password)
	if _, writeError := scriptFile.WriteString(scriptBody); writeError != nil {
		_ = scriptFile.Close()
		_ = os.Remove(scriptFile.Name())
		return nil, writeError
	}
	if closeError := scriptFile.Close(); closeError != nil {
		_ = os.Remove(scriptFile.Name())
		return nil, closeError
	}
	if chmodError := os.Chmod(scriptFile.Name(), askpassScriptFileModeConstant); chmodError != nil {
		_ = os.Remove(scriptFile.Name())
		return nil, chmodError
	}

	return &credentialHelper{scriptPath: scriptFile.Name()}, nil
}

func (helper *credentialHelper) environment() map[string]string {
	return map[string]string{
		askpassEnvironmentVariableName:        helper.scriptPath,
		terminalPromptEnvironmentVariableName: terminalPromptDisabledValueConstant,
	}
}

func (helper *credentialHelper) remove(logger *zap.Logger) {
	if helper == nil {
		return
	}
	if removeError := os.Remove(helper.scriptPath); removeError != nil && !os.IsNotExist(removeError) {
		logger.Warn(askpassCleanupFailedMessageConstant, zap.Error(removeError))
	}
}

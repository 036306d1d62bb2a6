package utils

import "context"

type commandContextKey string

const configurationFilePathContextKey = commandContextKey("configuration_file_path")

// CommandContextAccessor reads and writes values carried on command execution
// contexts, currently the resolved configuration file path.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFilePath attaches the configuration file path to the provided context.
func (accessor CommandContextAccessor) WithConfigurationFilePath(parentContext context.Context, configurationFilePath string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, configurationFilePathContextKey, configurationFilePath)
}

// ConfigurationFilePath extracts the configuration file path from the provided
// context, reporting whether a value was present.
func (accessor CommandContextAccessor) ConfigurationFilePath(executionContext context.Context) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	configurationFilePath, pathAvailable := executionContext.Value(configurationFilePathContextKey).(string)
	return configurationFilePath, pathAvailable
}

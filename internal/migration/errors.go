package migration

// ConfigurationError reports invalid or incomplete run configuration.
type ConfigurationError struct {
	Message string
}

// Error describes the configuration problem.
func (configurationError ConfigurationError) Error() string {
	return configurationError.Message
}

// AuthenticationError reports a credential requirement the configuration
// cannot satisfy.
type AuthenticationError struct {
	Message string
}

// Error describes the authentication problem.
func (authenticationError AuthenticationError) Error() string {
	return authenticationError.Message
}

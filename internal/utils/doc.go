// Package utils houses the ambient plumbing shared by the CLI entrypoint and
// the sync command: the Viper-backed ConfigurationLoader with embedded
// defaults and environment aliases, the zap LoggerFactory, context accessors,
// and output writers.
package utils

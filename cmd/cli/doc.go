// Package cli constructs the au-revoir-gitlab command-line interface, wiring
// the Cobra command hierarchy, configuration loader, and structured logging
// primitives around the namespace migration command.
package cli

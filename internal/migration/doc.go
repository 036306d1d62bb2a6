// Package migration orchestrates a namespace migration end to end: it
// connects the source and destination clients, discovers projects, plans
// collision-free destination names, and drives the per-repository transfer
// pipeline. It also assembles the sync command for the CLI.
package migration

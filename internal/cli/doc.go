// Package cli implements the trainwatch command-line interface.
//
// Each subcommand is built by a newXCmd constructor that receives the
// shared globals, so tests can build a fresh command tree per run. The
// root command's PersistentPreRunE loads and validates the config before
// any subcommand runs, except those annotated as not needing one.
//
// # Command Structure
//
//	trainwatch watch     - Start training and open the live dashboard
//	trainwatch start     - Ask the service to start training
//	trainwatch status    - Show the service's training status
//	trainwatch serve     - Run a local training service that streams metrics
//	trainwatch init      - Create .trainwatch.yaml
//	trainwatch version   - Show version information
//
// # Flag Handling
//
// Global flags (--config, --debug, --no-color) live on the root command.
// Command flags such as --epochs override the matching config value only
// when set on the command line.
//
// # Output Modes
//
// start and status accept --json and write a JSONEnvelope to stdout, with
// errors mapped to stable codes. watch falls back to one line per event
// when stdout isn't a terminal.
package cli

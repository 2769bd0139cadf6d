// Package cli implements the flotilla command-line interface.
//
// The package is organized around Cobra commands, with each command
// delegating to a workflow function for the actual work:
//
//	flotilla exec [command]  - Run an ad-hoc command on target hosts
//	flotilla run [task]      - Run a named task from .flotilla.yaml
//	flotilla hosts           - List configured hosts
//	flotilla init            - Create a starter .flotilla.yaml
//	flotilla version         - Print version information
//
// RunWorkflow is the shared engine behind exec and run: it loads the
// config, builds a fleet.Group for the target hosts, executes the task,
// and renders a per-host summary. Host failures map to a non-zero exit
// code; configuration problems surface as errors before any connection
// is opened.
//
// Global flags (--config, --verbose) are defined on the root command.
// Host selection and per-call override flags (--hosts, --pool, --user,
// --identity, ...) are shared between exec and run via CommonFlags.
package cli

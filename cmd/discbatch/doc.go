// Package main hosts the discbatch CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration and flag overrides, sets up
// structured logging, and hands batches to the job controller. Subcommands
// cover conversion, catalog inspection, probing, history, dependency checks,
// scratch cleanup, and watch mode.
package main

// Package main hosts the avpackaging CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the packaging pipeline for one reference
// id, reports local readiness and run history, sweeps stale working files and
// scaffolds configuration. It centralizes configuration resolution and
// structured logging setup so subcommands can focus on output.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main

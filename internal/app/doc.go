// Package app wires configuration, logging, the reminder store and the
// runtime components behind the CLI commands.
package app

// Package testutil provides in-memory fakes for PTY processes and UI
// channels shared by the terminal package tests.
package testutil

// Package shell resolves which program a terminal session runs and how it
// is spawned.
//
// Resolution is pure: the resolver only reads environment variables and the
// home directory, never fails, and falls back to the most specific default it
// can find.
//
// Example Usage:
//
//	r := shell.NewResolver(shell.WithProgram("kit", "1.0.0"))
//	path, args := r.ShellConfig(&cfg, r.DefaultShell())
//	opts := r.PtyOptions(cfg)
package shell

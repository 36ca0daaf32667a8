// Package transcript derives the result text of a terminal session from its
// output stream.
//
// A Builder runs under one capture mode for its whole life:
//   - full: every chunk, verbatim
//   - selection: same as full; narrowing to a selection happens downstream
//   - tail: the last N chunks, joined with newlines
//   - sentinel: non-blank lines between a start and an end marker
//   - none: nothing
//
// ANSI escape sequences are optionally stripped per chunk. A sequence split
// across two chunks is not recognized; callers needing exact stripping should
// push whole lines. Stripping also discards bytes that are not valid UTF-8.
//
// Example Usage:
//
//	b := transcript.New(transcript.Options{Mode: transcript.ModeSentinel, StripANSI: true})
//	b.Push("noise\n<<START>>\nanswer\n<<END>>\n")
//	b.Result() // "answer\n"
package transcript

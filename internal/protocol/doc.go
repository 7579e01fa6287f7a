// Package protocol implements the hlpipe line protocol.
//
// A session is a sequence of lines on stdin:
//
//	go              declare a language (resets the buffer)
//	\tfunc main() {}  append one line of source (leading tab stripped)
//	                blank line: highlight the buffer
//	                second blank line: end of session
//
// Each highlighted block is written to stdout as the HTML followed by a line
// holding the single byte 0x04. The server writes "ready" before reading any
// input.
//
// Failures are returned as errors; deciding the process exit status is left
// to the caller.
package protocol

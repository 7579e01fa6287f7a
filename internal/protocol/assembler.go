package protocol

import "strings"

// StepKind classifies an input line.
type StepKind int

const (
	// StepDeclare starts a new request for the language on the line.
	StepDeclare StepKind = iota
	// StepAppend adds one source line to the buffer.
	StepAppend
	// StepFlush completes the pending request.
	StepFlush
	// StepEnd ends the session.
	StepEnd
)

func (k StepKind) String() string {
	switch k {
	case StepDeclare:
		return "declare"
	case StepAppend:
		return "append"
	case StepFlush:
		return "flush"
	case StepEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Request is one completed highlight request.
type Request struct {
	Language string
	Source   string
}

// Step is the outcome of feeding one line.
type Step struct {
	Kind StepKind
	// Discarded is set on StepDeclare when unflushed source was dropped.
	Discarded bool
	// Request is set on StepFlush.
	Request Request
}

// Assembler is the request state machine. The zero value is an idle session.
// It is not safe for concurrent use.
type Assembler struct {
	language string
	buffer   strings.Builder
}

// Feed classifies line and updates the session.
func (a *Assembler) Feed(line string) Step {
	switch {
	case line != "" && line[0] != '\t':
		discarded := a.language != "" || a.buffer.Len() > 0
		a.language = line
		a.buffer.Reset()
		return Step{Kind: StepDeclare, Discarded: discarded}

	case line != "":
		// Tab lines are buffered even with no language declared. Such a
		// buffer is dropped by the next declaration.
		a.buffer.WriteString(line[1:])
		a.buffer.WriteByte('\n')
		return Step{Kind: StepAppend}

	case a.language != "":
		req := Request{Language: a.language, Source: a.buffer.String()}
		a.language = ""
		a.buffer.Reset()
		return Step{Kind: StepFlush, Request: req}

	default:
		return Step{Kind: StepEnd}
	}
}

// Pending reports the declared language and buffered byte count.
func (a *Assembler) Pending() (string, int) {
	return a.language, a.buffer.Len()
}

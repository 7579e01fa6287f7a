package tracing

// Span attribute keys.
const (
	AttrSessionID = "session.id"

	AttrRequestLanguage    = "request.language"
	AttrRequestScope       = "request.scope"
	AttrRequestSourceBytes = "request.source_bytes"
	AttrResponseHTMLBytes  = "response.html_bytes"

	AttrErrorType = "error.type"
)

// Span names.
const (
	SpanSession  = "protocol.session"
	SpanDispatch = "protocol.dispatch"
)

// Event names for span events.
const (
	EventResolved        = "grammar.resolved"
	EventRendered        = "render.completed"
	EventBufferDiscarded = "buffer.discarded"
)

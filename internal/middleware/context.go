package middleware

// Context keys used to store request metadata.
const (
	ContextKeyRequestID = "request_id"
	ContextKeyCaller    = "caller"
)

// HeaderRequestID carries the request identifier between the API and the worker.
const HeaderRequestID = "X-Request-ID"

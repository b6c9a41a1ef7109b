package constants

// FailureCode is the structured reason stored with a failed generation.
// Clients branch on the code, never on the message text.
type FailureCode string

const (
	FailureMissingCredential   FailureCode = "MISSING_CREDENTIAL"
	FailureUpstreamError       FailureCode = "UPSTREAM_ERROR"       // non-2xx from the provider
	FailureUpstreamUnavailable FailureCode = "UPSTREAM_UNAVAILABLE" // transport error, no status
	FailureEmptyResponse       FailureCode = "EMPTY_UPSTREAM_RESPONSE"
	FailureMalformedResponse   FailureCode = "MALFORMED_RESPONSE"
	FailureSchemaViolation     FailureCode = "SCHEMA_VIOLATION"
	FailureTimeout             FailureCode = "TIMEOUT"
	FailureQueueFull           FailureCode = "QUEUE_FULL"
	FailureInterrupted         FailureCode = "INTERRUPTED"
	FailureInternal            FailureCode = "INTERNAL"
)

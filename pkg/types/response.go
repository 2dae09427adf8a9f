package types

// SuccessEnvelope wraps every 2xx JSON body. Handlers place their DTO
// in Data so clients always unwrap the same top-level shape.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error contract: a stable machine-readable
// code, a display-safe message, and optional structured details
// (validation field errors, mostly).
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every non-2xx JSON body.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewErrorEnvelope builds the error body for a code and message pair.
func NewErrorEnvelope(code, message string) ErrorEnvelope {
	return ErrorEnvelope{Error: APIError{Code: code, Message: message}}
}

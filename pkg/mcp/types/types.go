// Package types holds the value types shared between the server-side
// operation registry and the client-side bridge.
package types

// Result is the outcome of a dispatched operation: either a success payload
// or a failure with a human-readable message. Transport faults are not
// Results; they travel as typed errors so the bridge can react to them.
type Result struct {
	// OK reports whether the operation succeeded.
	OK bool `json:"ok"`
	// Value is the success payload, already JSON-serializable.
	Value any `json:"value,omitempty"`
	// Error is the failure message when OK is false.
	Error string `json:"error,omitempty"`
}

// Success wraps a payload in a success Result.
func Success(value any) Result {
	return Result{OK: true, Value: value}
}

// Failure wraps a message in a failure Result.
func Failure(message string) Result {
	return Result{OK: false, Error: message}
}

// OperationDescriptor describes one registered operation: its name, its
// description and its input schema, verbatim as advertised by the host.
type OperationDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

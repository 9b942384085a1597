package provisioning

import (
	"encoding/json"
	"fmt"
)

// FailureKind distinguishes a bot server that could not be reached from one
// that answered with a non-success status.
type FailureKind string

const (
	// FailureUnreachable covers transport errors and responses that could
	// not be read or decoded.
	FailureUnreachable FailureKind = "unreachable"

	// FailureRejected is a response with a non-200 status.
	FailureRejected FailureKind = "rejected"
)

// Failure is the normalized error returned by every Client call.
type Failure struct {
	Kind       FailureKind
	Op         string // create, start, status
	StatusCode int
	Detail     string // server supplied detail, if any
	Err        error
}

func (f *Failure) Error() string {
	switch {
	case f.Detail != "":
		return f.Detail
	case f.Kind == FailureRejected:
		return fmt.Sprintf("%s: bot server returned status %d", f.Op, f.StatusCode)
	case f.Err != nil:
		return fmt.Sprintf("%s: %v", f.Op, f.Err)
	default:
		return fmt.Sprintf("%s: bot server unreachable", f.Op)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// HasDetail reports whether the server explained the failure itself.
func (f *Failure) HasDetail() bool {
	return f.Kind == FailureRejected && f.Detail != ""
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// parseDetail extracts the "detail" member from an error body. Validation
// errors carry a list instead of a string; it is passed through as JSON.
func parseDetail(body []byte) (string, bool) {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Detail) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(resp.Detail, &s); err == nil {
		return s, true
	}
	if string(resp.Detail) == "null" {
		return "", false
	}
	return string(resp.Detail), true
}

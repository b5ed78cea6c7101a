// Package api defines the JSON wire contract of spec §6: Infer, Fork,
// and Drop requests and their responses — "shown for completeness", the
// same status the spec gives this surface, since request framing itself
// is explicitly out of scope (spec §1).
//
// Grounded on the teacher's api/types_generate.go field-doc style (one
// doc comment per exported field, describing what the field controls
// rather than restating its name) and the JSON tag conventions used
// throughout api/types*.go.
package api

// Message is one dialog turn in an Infer request (spec §6
// Infer.inputs: {role, content}).
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// InferRequest is the body of POST /infer (spec §6).
type InferRequest struct {
	Inputs []Message `json:"inputs"`

	// SessionID names a persistent session; omitted for an anonymous,
	// single-turn session that is never registered.
	SessionID *string `json:"session_id,omitempty"`

	// DialogPos reverts the named session to this turn count before
	// running (spec §4.3's infer decision table). Omitted or zero with
	// no SessionID means the session must end on a fresh user turn.
	DialogPos *int `json:"dialog_pos,omitempty"`

	// Temperature, TopK and TopP override the session's sampling
	// configuration; the session keeps the new values for later calls.
	// Omitted fields leave the session's existing values untouched.
	Temperature *float32 `json:"temperature,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
}

// ForkRequest is the body of POST /fork (spec §6).
type ForkRequest struct {
	SessionID    string `json:"session_id"`
	NewSessionID string `json:"new_session_id"`
}

// DropRequest is the body of POST /drop (spec §6).
type DropRequest struct {
	SessionID string `json:"session_id"`
}

// ErrorResponse is returned for any failed request, its Kind mirroring
// spec §7's error taxonomy by name.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Current *int   `json:"current,omitempty"`
}

// Fragment is one chunk of a streamed Infer response body (spec §6:
// "Responses: ... Infer returns a streamed sequence of UTF-8 string
// fragments").
type Fragment struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`

	// Skipped reports spec §9's second open question: the dialog ended
	// on an even position after appending the request's inputs, so
	// generation did not run. Only ever set alongside Done.
	Skipped bool `json:"skipped,omitempty"`
}

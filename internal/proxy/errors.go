package proxy

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Kind classifies a request failure.
type Kind string

const (
	KindMethodNotAllowed Kind = "method_not_allowed"
	KindConfiguration    Kind = "configuration"
	KindValidation       Kind = "validation"
	KindUpstream         Kind = "upstream"
)

// Error is a failure that terminates a request with a JSON body.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// Optional diagnostic fields.
	Detail  string
	Hint    string
	Details map[string]any
	// Cause is logged, never sent to the caller.
	Cause error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) body() gin.H {
	h := gin.H{"error": e.Message}
	if e.Detail != "" {
		h["message"] = e.Detail
	}
	if e.Hint != "" {
		h["hint"] = e.Hint
	}
	if len(e.Details) > 0 {
		h["details"] = e.Details
	}
	return h
}

func errMethodNotAllowed() *Error {
	return &Error{Kind: KindMethodNotAllowed, Status: http.StatusMethodNotAllowed, Message: "Method Not Allowed"}
}

func errMissingCredential() *Error {
	return &Error{
		Kind:    KindConfiguration,
		Status:  http.StatusInternalServerError,
		Message: "Server configuration error: GEMINI_API_KEY is missing.",
		Hint:    "set GEMINI_API_KEY in the server environment and restart",
	}
}

func errInvalidBody(cause error) *Error {
	e := &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: "Invalid request body.", Cause: cause}
	if cause != nil {
		e.Detail = cause.Error()
	}
	return e
}

func errMissingParams(names []string) *Error {
	return &Error{
		Kind:    KindValidation,
		Status:  http.StatusBadRequest,
		Message: "Missing required parameters: " + strings.Join(names, ", ") + ".",
	}
}

func errUpstream(msg string, details map[string]any, cause error) *Error {
	if msg == "" {
		msg = "Internal Server Error"
	}
	return &Error{
		Kind:    KindUpstream,
		Status:  http.StatusInternalServerError,
		Message: msg,
		Details: details,
		Cause:   cause,
	}
}

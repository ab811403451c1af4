package upstream

import (
	"errors"
	"strings"

	"google.golang.org/genai"
)

// Describe returns a human-readable message for err and, when the upstream
// answered with a structured API error, its code and status.
func Describe(err error) (string, map[string]any) {
	if err == nil {
		return "", nil
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch t := any(e).(type) {
		case genai.APIError:
			return describeAPIError(t, err)
		case *genai.APIError:
			if t != nil {
				return describeAPIError(*t, err)
			}
		}
	}
	return strings.TrimSpace(err.Error()), nil
}

func describeAPIError(apiErr genai.APIError, orig error) (string, map[string]any) {
	msg := strings.TrimSpace(apiErr.Message)
	if msg == "" {
		msg = strings.TrimSpace(orig.Error())
	}
	details := map[string]any{}
	if apiErr.Code != 0 {
		details["code"] = apiErr.Code
	}
	if s := strings.TrimSpace(apiErr.Status); s != "" {
		details["status"] = s
	}
	if len(details) == 0 {
		details = nil
	}
	return msg, details
}

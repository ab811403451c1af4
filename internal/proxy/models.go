package proxy

import (
	"encoding/json"
	"strings"
)

// ModeDraft selects the fast model; every other mode selects the final one.
const ModeDraft = "draft"

// GenerationRequest is the inbound body.
type GenerationRequest struct {
	Prompt string            `json:"prompt"`
	Mode   string            `json:"mode"`
	Config *GenerationConfig `json:"config,omitempty"`
}

// GenerationConfig carries upstream-owned payloads through untouched.
type GenerationConfig struct {
	SystemInstruction json.RawMessage `json:"systemInstruction,omitempty"`
	GenerationConfig  json.RawMessage `json:"generationConfig,omitempty"`
}

// GenerationResponse is the success body.
type GenerationResponse struct {
	Text string `json:"text"`
	Mode string `json:"mode,omitempty"`
}

// ModelSelector maps a mode to one of two upstream model ids.
type ModelSelector struct {
	Draft string
	Final string
}

func (s ModelSelector) Select(mode string) string {
	if mode == ModeDraft {
		return s.Draft
	}
	return s.Final
}

// missingParams lists required fields absent from req, in a stable order.
func missingParams(req *GenerationRequest, requireConfig bool) []string {
	var out []string
	if req.Prompt == "" {
		out = append(out, "prompt")
	}
	if strings.TrimSpace(req.Mode) == "" {
		out = append(out, "mode")
	}
	if requireConfig && req.Config == nil {
		out = append(out, "config")
	}
	return out
}

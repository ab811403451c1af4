package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ErrMissingAPIKey is returned by New when no credential is configured.
var ErrMissingAPIKey = errors.New("upstream: gemini api key is empty")

// ErrInvalidConfig wraps failures to decode the caller's systemInstruction or
// generationConfig. No network call is made when it is returned.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	APIKey string
	// BaseURL and APIVersion override the SDK defaults (gateways, tests).
	BaseURL    string
	APIVersion string
	// Timeout bounds a single Generate call. Zero means the caller's context decides.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Request is one generation call. SystemInstruction and GenerationConfig are
// caller-owned JSON and are only decoded, never inspected.
type Request struct {
	Model             string
	Prompt            string
	SystemInstruction json.RawMessage
	GenerationConfig  json.RawMessage
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client calls the Gemini API with the server-held key.
type Client struct {
	models  contentGenerator
	timeout time.Duration
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    strings.TrimSpace(cfg.BaseURL),
			APIVersion: strings.TrimSpace(cfg.APIVersion),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upstream: create genai client: %w", err)
	}
	return &Client{models: gc.Models, timeout: cfg.Timeout}, nil
}

// Generate submits the prompt and returns the generated text.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	cfg, err := buildConfig(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.Prompt}},
	}}
	resp, err := c.models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

func buildConfig(req Request) (*genai.GenerateContentConfig, error) {
	cfg := &genai.GenerateContentConfig{}
	if !absent(req.GenerationConfig) {
		clean, err := sanitizeGenerationConfig(req.GenerationConfig)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(clean, cfg); err != nil {
			return nil, fmt.Errorf("decode generationConfig: %w", err)
		}
		cfg.HTTPOptions = nil
	}
	si, err := systemInstruction(req.SystemInstruction)
	if err != nil {
		return nil, err
	}
	if si != nil {
		cfg.SystemInstruction = si
	}
	return cfg, nil
}

// sanitizeGenerationConfig drops keys that would let a caller steer the SDK
// transport (base URL, headers) instead of the generation itself. Key matching
// is case-insensitive, like encoding/json field matching.
func sanitizeGenerationConfig(raw json.RawMessage) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode generationConfig: %w", err)
	}
	for k := range obj {
		if strings.EqualFold(k, "httpOptions") {
			delete(obj, k)
		}
	}
	return json.Marshal(obj)
}

// systemInstruction accepts the shapes the JS SDK accepts: a string, a part,
// a list of strings/parts, or a full Content object.
func systemInstruction(raw json.RawMessage) (*genai.Content, error) {
	if absent(raw) {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(raw)
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("decode systemInstruction: %w", err)
		}
		if s == "" {
			return nil, nil
		}
		return &genai.Content{Parts: []*genai.Part{{Text: s}}}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode systemInstruction: %w", err)
		}
		out := &genai.Content{}
		for _, it := range items {
			p, err := partFromJSON(it)
			if err != nil {
				return nil, err
			}
			out.Parts = append(out.Parts, p)
		}
		if len(out.Parts) == 0 {
			return nil, nil
		}
		return out, nil
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, fmt.Errorf("decode systemInstruction: %w", err)
		}
		if _, ok := fields["parts"]; !ok {
			p, err := partFromJSON(trimmed)
			if err != nil {
				return nil, err
			}
			return &genai.Content{Parts: []*genai.Part{p}}, nil
		}
		var c genai.Content
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return nil, fmt.Errorf("decode systemInstruction: %w", err)
		}
		return &c, nil
	default:
		return nil, fmt.Errorf("decode systemInstruction: unsupported JSON value %s", truncate(string(trimmed), 32))
	}
}

func partFromJSON(raw json.RawMessage) (*genai.Part, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &genai.Part{Text: s}, nil
	}
	var p genai.Part
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode systemInstruction part: %w", err)
	}
	return &p, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %v", resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("upstream returned no candidates")
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return "", nil
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func absent(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGemini struct {
	srv   *httptest.Server
	hits  atomic.Int32
	path  atomic.Value
	body  atomic.Value
	reply func(w http.ResponseWriter)
}

func newFakeGemini(t *testing.T, reply func(w http.ResponseWriter)) *fakeGemini {
	t.Helper()
	f := &fakeGemini{reply: reply}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		f.path.Store(r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		f.body.Store(string(b))
		w.Header().Set("Content-Type", "application/json")
		f.reply(w)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func replyText(text string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		_, _ = fmt.Fprintf(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":%q}]},"finishReason":"STOP"}]}`, text)
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(context.Background(), Config{APIKey: "test-key", BaseURL: baseURL})
	require.NoError(t, err)
	return c
}

func TestNew_MissingAPIKey(t *testing.T) {
	c, err := New(context.Background(), Config{APIKey: "  "})
	require.Nil(t, c)
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestGenerate_Success(t *testing.T) {
	f := newFakeGemini(t, replyText("X"))
	c := newTestClient(t, f.srv.URL)

	text, err := c.Generate(context.Background(), Request{
		Model:             "gemini-2.5-flash",
		Prompt:            "Write a haiku",
		SystemInstruction: json.RawMessage(`"You are a poet."`),
		GenerationConfig:  json.RawMessage(`{"temperature":0.5,"maxOutputTokens":64}`),
	})
	require.NoError(t, err)
	require.Equal(t, "X", text)
	require.Equal(t, int32(1), f.hits.Load())

	path, _ := f.path.Load().(string)
	require.True(t, strings.HasSuffix(path, "/models/gemini-2.5-flash:generateContent"), "path=%s", path)

	body, _ := f.body.Load().(string)
	require.Contains(t, body, "Write a haiku")
	require.Contains(t, body, "You are a poet.")
	require.Contains(t, body, "temperature")
	require.Contains(t, body, "maxOutputTokens")
}

func TestGenerate_APIError(t *testing.T) {
	f := newFakeGemini(t, func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
	})
	c := newTestClient(t, f.srv.URL)

	_, err := c.Generate(context.Background(), Request{Model: "gemini-2.5-pro", Prompt: "hi"})
	require.Error(t, err)

	msg, details := Describe(err)
	require.Equal(t, "API key not valid", msg)
	require.Equal(t, 400, details["code"])
	require.Equal(t, "INVALID_ARGUMENT", details["status"])
}

func TestGenerate_BadGenerationConfigSkipsNetwork(t *testing.T) {
	f := newFakeGemini(t, replyText("unused"))
	c := newTestClient(t, f.srv.URL)

	_, err := c.Generate(context.Background(), Request{
		Model:            "gemini-2.5-pro",
		Prompt:           "hi",
		GenerationConfig: json.RawMessage(`[1,2,3]`),
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.Equal(t, int32(0), f.hits.Load())

	_, err = c.Generate(context.Background(), Request{
		Model:             "gemini-2.5-pro",
		Prompt:            "hi",
		SystemInstruction: json.RawMessage(`42`),
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.Equal(t, int32(0), f.hits.Load())
}

func TestGenerate_NoCandidates(t *testing.T) {
	f := newFakeGemini(t, func(w http.ResponseWriter) {
		_, _ = io.WriteString(w, `{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`)
	})
	c := newTestClient(t, f.srv.URL)

	_, err := c.Generate(context.Background(), Request{Model: "gemini-2.5-pro", Prompt: "hi"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "SAFETY")
}

func TestSystemInstruction_Shapes(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		texts []string
		role  string
	}{
		{name: "absent", raw: ``},
		{name: "null", raw: `null`},
		{name: "empty string", raw: `""`},
		{name: "string", raw: `"be brief"`, texts: []string{"be brief"}},
		{name: "part", raw: `{"text":"be brief"}`, texts: []string{"be brief"}},
		{name: "list", raw: `["a", {"text":"b"}]`, texts: []string{"a", "b"}},
		{name: "content", raw: `{"role":"system","parts":[{"text":"x"},{"text":"y"}]}`, texts: []string{"x", "y"}, role: "system"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := systemInstruction(json.RawMessage(tc.raw))
			require.NoError(t, err)
			if tc.texts == nil {
				require.Nil(t, c)
				return
			}
			require.NotNil(t, c)
			require.Equal(t, tc.role, c.Role)
			got := make([]string, 0, len(c.Parts))
			for _, p := range c.Parts {
				got = append(got, p.Text)
			}
			require.Equal(t, tc.texts, got)
		})
	}

	_, err := systemInstruction(json.RawMessage(`42`))
	require.Error(t, err)
}

func TestSanitizeGenerationConfig_DropsHTTPOptions(t *testing.T) {
	out, err := sanitizeGenerationConfig(json.RawMessage(`{"temperature":1,"httpOptions":{"baseUrl":"http://evil.example"}}`))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	require.NotContains(t, m, "httpOptions")
	require.Contains(t, m, "temperature")

	for _, key := range []string{"HttpOptions", "HTTPOPTIONS", "httpoptions"} {
		out, err := sanitizeGenerationConfig(json.RawMessage(`{"` + key + `":{"baseUrl":"http://evil.example"}}`))
		require.NoError(t, err)
		require.NotContains(t, string(out), "evil.example", "key=%s", key)
	}
}

func TestGenerate_GenerationConfigCannotRedirect(t *testing.T) {
	legit := newFakeGemini(t, replyText("ok"))
	var otherHits atomic.Int32
	var leakedKey atomic.Value
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		otherHits.Add(1)
		leakedKey.Store(r.Header.Get("x-goog-api-key"))
		w.Header().Set("Content-Type", "application/json")
		replyText("redirected")(w)
	}))
	t.Cleanup(other.Close)
	c := newTestClient(t, legit.srv.URL)

	for _, key := range []string{"httpOptions", "HttpOptions", "HTTPOPTIONS"} {
		text, err := c.Generate(context.Background(), Request{
			Model:            "gemini-2.5-flash",
			Prompt:           "hi",
			GenerationConfig: json.RawMessage(`{"temperature":0.2,"` + key + `":{"baseUrl":"` + other.URL + `"}}`),
		})
		require.NoError(t, err, "key=%s", key)
		require.Equal(t, "ok", text, "key=%s", key)
	}
	require.Equal(t, int32(3), legit.hits.Load())
	require.Equal(t, int32(0), otherHits.Load())
	require.Nil(t, leakedKey.Load())
}

func TestBuildConfig_ClearsHTTPOptions(t *testing.T) {
	cfg, err := buildConfig(Request{GenerationConfig: json.RawMessage(`{"HttpOptions":{"baseUrl":"http://evil.example"}}`)})
	require.NoError(t, err)
	require.Nil(t, cfg.HTTPOptions)
}

func TestBuildConfig_Defaults(t *testing.T) {
	cfg, err := buildConfig(Request{})
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Nil(t, cfg.SystemInstruction)
	require.Nil(t, cfg.Temperature)
}

func TestDescribe(t *testing.T) {
	msg, details := Describe(errors.New(" quota exceeded "))
	require.Equal(t, "quota exceeded", msg)
	require.Nil(t, details)

	wrapped := fmt.Errorf("call: %w", &genai.APIError{Code: 429, Message: "slow down", Status: "RESOURCE_EXHAUSTED"})
	msg, details = Describe(wrapped)
	require.Equal(t, "slow down", msg)
	require.Equal(t, map[string]any{"code": 429, "status": "RESOURCE_EXHAUSTED"}, details)

	msg, details = Describe(nil)
	require.Empty(t, msg)
	require.Nil(t, details)
}

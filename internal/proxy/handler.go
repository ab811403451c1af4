package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/r9s-ai/gemini-proxy/internal/requestid"
	"github.com/r9s-ai/gemini-proxy/internal/upstream"
)

// Keys set on the gin context for the access log.
const (
	CtxMode  = "gp.mode"
	CtxModel = "gp.model"
	CtxError = "gp.error"
)

const defaultMaxBodyBytes = 16 << 20 // 16MB

// Generator runs one upstream generation.
type Generator interface {
	Generate(ctx context.Context, req upstream.Request) (string, error)
}

// Options enumerates the behavioural switches of the handler.
type Options struct {
	// EchoMode adds the request mode to the success body.
	EchoMode bool
	// RequireConfig rejects bodies without a config object.
	RequireConfig bool
	Models        ModelSelector
	MaxBodyBytes  int64
}

// Handler validates a generation request and forwards it upstream.
type Handler struct {
	gen  Generator
	opts Options
	log  logrus.FieldLogger
}

// NewHandler returns a handler. A nil gen means no upstream credential is
// configured; every POST then fails with a configuration error.
func NewHandler(gen Generator, opts Options, log logrus.FieldLogger) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Handler{gen: gen, opts: opts, log: log}
}

func (h *Handler) Serve(c *gin.Context) {
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusOK)
		return
	}
	resp, perr := h.handle(c)
	if perr != nil {
		h.fail(c, perr)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) handle(c *gin.Context) (*GenerationResponse, *Error) {
	if c.Request.Method != http.MethodPost {
		c.Header("Allow", "POST, OPTIONS")
		return nil, errMethodNotAllowed()
	}
	if h.gen == nil {
		return nil, errMissingCredential()
	}

	req, err := decodeRequest(c.Request.Body, h.opts.MaxBodyBytes)
	if err != nil {
		return nil, errInvalidBody(err)
	}
	if missing := missingParams(req, h.opts.RequireConfig); len(missing) > 0 {
		return nil, errMissingParams(missing)
	}

	model := h.opts.Models.Select(req.Mode)
	c.Set(CtxMode, req.Mode)
	c.Set(CtxModel, model)

	ureq := upstream.Request{Model: model, Prompt: req.Prompt}
	if req.Config != nil {
		ureq.SystemInstruction = req.Config.SystemInstruction
		ureq.GenerationConfig = req.Config.GenerationConfig
	}
	text, err := h.gen.Generate(c.Request.Context(), ureq)
	if errors.Is(err, upstream.ErrInvalidConfig) {
		return nil, errInvalidBody(err)
	}
	if err != nil {
		msg, details := upstream.Describe(err)
		return nil, errUpstream(msg, details, err)
	}

	out := &GenerationResponse{Text: text}
	if h.opts.EchoMode {
		out.Mode = req.Mode
	}
	return out, nil
}

func (h *Handler) fail(c *gin.Context, e *Error) {
	c.Set(CtxError, e.Message)
	switch e.Kind {
	case KindConfiguration:
		h.log.WithField("request_id", requestid.Get(c)).Error(e.Message)
	case KindUpstream:
		entry := h.log.WithFields(logrus.Fields{
			"request_id": requestid.Get(c),
			"mode":       c.GetString(CtxMode),
			"model":      c.GetString(CtxModel),
		})
		if e.Cause != nil {
			entry = entry.WithError(e.Cause)
		}
		entry.Error("Proxy Error")
	}
	c.AbortWithStatusJSON(e.Status, e.body())
}

func decodeRequest(body io.ReadCloser, limit int64) (*GenerationRequest, error) {
	var req GenerationRequest
	if body == nil {
		return &req, nil
	}
	b, err := readAllLimit(body, limit)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return &req, nil
	}
	if err := json.Unmarshal(b, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func readAllLimit(rc io.ReadCloser, limit int64) ([]byte, error) {
	defer func() { _ = rc.Close() }()
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, rc, limit+1); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if int64(buf.Len()) > limit {
		return nil, errors.New("request body too large")
	}
	return buf.Bytes(), nil
}

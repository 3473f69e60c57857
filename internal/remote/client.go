// Package remote is the HTTP client for the draft and finalize endpoints.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alkime/followup/internal/input"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DraftPath is the endpoint producing a draft from raw input.
	DraftPath = "/api/draft"
	// FinalizePath is the endpoint polishing and delivering an edited draft.
	FinalizePath = "/api/finalize"

	// RequestIDHeader carries a per-request id for log correlation.
	RequestIDHeader = "X-Request-ID"

	// DefaultTimeout bounds one round trip; drafting from audio can be slow.
	DefaultTimeout = 3 * time.Minute
)

// Op names a remote operation.
type Op string

const (
	OpDraft    Op = "draft"
	OpFinalize Op = "finalize"
)

// fallbackMessage is shown when the service gives no error text.
func (o Op) fallbackMessage() string {
	if o == OpFinalize {
		return "Failed to finalize."
	}

	return "Something went wrong."
}

// Error is a failed remote operation. Message is user-facing.
type Error struct {
	Op      Op
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client talks to one draft/finalize service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tracer:     otel.Tracer("github.com/alkime/followup/internal/remote"),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Draft submits raw input and returns the draft text verbatim.
func (c *Client) Draft(ctx context.Context, p input.Payload) (string, error) {
	body, contentType, err := p.Encode()
	if err != nil {
		return "", &Error{Op: OpDraft, Message: OpDraft.fallbackMessage(), Err: err}
	}

	resp, err := c.do(ctx, OpDraft, DraftPath, contentType, body)
	if err != nil {
		return "", err
	}

	return resp.Get("draft_text").String(), nil
}

type finalizeRequest struct {
	Email     string `json:"email"`
	FinalText string `json:"final_text"`
}

// Finalize submits the edited draft. The returned polished text is empty when
// the service omitted it.
func (c *Client) Finalize(ctx context.Context, email, finalText string) (string, error) {
	body, err := json.Marshal(finalizeRequest{Email: email, FinalText: finalText})
	if err != nil {
		return "", &Error{Op: OpFinalize, Message: OpFinalize.fallbackMessage(), Err: err}
	}

	resp, err := c.do(ctx, OpFinalize, FinalizePath, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	return resp.Get("polished_text").String(), nil
}

func (c *Client) do(
	ctx context.Context,
	op Op,
	path string,
	contentType string,
	body io.Reader,
) (gjson.Result, error) {
	requestID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, "remote."+string(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodPost),
			attribute.String("url.path", path),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	fail := func(status int, msg string, cause error) (gjson.Result, error) {
		if msg == "" {
			msg = op.fallbackMessage()
		}

		span.SetStatus(codes.Error, msg)
		if cause != nil {
			span.RecordError(cause)
		}

		c.logger.Error("remote request failed",
			"op", op,
			"request_id", requestID,
			"status", status,
			"message", msg,
			"error", cause,
		)

		return gjson.Result{}, &Error{Op: op, Status: status, Message: msg, Err: cause}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fail(0, "", fmt.Errorf("failed to build %s request: %w", op, err))
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(0, "", fmt.Errorf("%s request failed: %w", op, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, "", fmt.Errorf("failed to read %s response: %w", op, err))
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	parsed := gjson.ParseBytes(raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, parsed.Get("error").String(),
			fmt.Errorf("%s returned status %d", op, resp.StatusCode))
	}

	c.logger.Info("remote request complete",
		"op", op,
		"request_id", requestID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	return parsed, nil
}

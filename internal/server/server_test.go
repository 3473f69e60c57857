package server_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alkime/followup/internal/capture"
	"github.com/alkime/followup/internal/config"
	"github.com/alkime/followup/internal/input"
	"github.com/alkime/followup/internal/remote"
	"github.com/alkime/followup/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTranscriber struct {
	mu       sync.Mutex
	text     string
	err      error
	calls    int
	filename string
	audio    []byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio io.Reader, filename string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.filename = filename
	f.audio, _ = io.ReadAll(audio)

	return f.text, f.err
}

type fakePlanner struct {
	mu        sync.Mutex
	draftErr  error
	polishErr error
	notes     string
	plan      string
}

func (f *fakePlanner) DraftActionPlan(_ context.Context, notes string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.notes = notes
	if f.draftErr != nil {
		return "", f.draftErr
	}

	return "Draft for: " + notes, nil
}

func (f *fakePlanner) Polish(_ context.Context, plan string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.plan = plan
	if f.polishErr != nil {
		return "", f.polishErr
	}

	return "Final plan...", nil
}

type fakeMailer struct {
	mu      sync.Mutex
	err     error
	to      []string
	subject string
	body    string
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.to = append(m.to, to)
	m.subject = subject
	m.body = body

	return m.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Env:            "test",
		Port:           "8000",
		PublicDir:      t.TempDir(),
		AppName:        "FollowUp",
		MaxUploadBytes: 1 << 20,
		HSTSMaxAge:     31536000,
		CSPMode:        "relaxed",
		LogLevel:       "error",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

type fixture struct {
	srv         *server.Server
	transcriber *fakeTranscriber
	planner     *fakePlanner
	cfg         *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		transcriber: &fakeTranscriber{text: "Transcribed notes"},
		planner:     &fakePlanner{},
		cfg:         testConfig(t),
	}
	f.srv = server.New(f.cfg, testLogger(), f.transcriber, f.planner)

	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(w, req)

	return w
}

func draftRequest(t *testing.T, p input.Payload) *http.Request {
	t.Helper()

	body, contentType, err := p.Encode()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, remote.DraftPath, body)
	req.Header.Set("Content-Type", contentType)

	return req
}

func finalizeRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, remote.FinalizePath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	return req
}

func recording() *capture.Artifact {
	return &capture.Artifact{Data: []byte("mp3 bytes"), MIMEType: "audio/mpeg", Filename: "recording.mp3"}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", gjson.Get(w.Body.String(), "status").String())
	assert.Equal(t, "FollowUp", gjson.Get(w.Body.String(), "service").String())
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestDraft_Notes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(draftRequest(t, input.Payload{Email: "a@b.co", Notes: "Buy milk"}))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, "Draft for: Buy milk", gjson.Get(body, "draft_text").String())
	assert.Equal(t, "Buy milk", gjson.Get(body, "source_text").String())
	assert.Equal(t, "a@b.co", gjson.Get(body, "email").String())
	assert.Zero(t, f.transcriber.calls)
}

func TestDraft_AudioOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(draftRequest(t, input.Payload{Audio: recording()}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.transcriber.calls)
	assert.Equal(t, "recording.mp3", f.transcriber.filename)
	assert.Equal(t, []byte("mp3 bytes"), f.transcriber.audio)
	assert.Equal(t, "Transcribed notes", gjson.Get(w.Body.String(), "source_text").String())
	assert.Equal(t, "Transcribed notes", f.planner.notes)
}

func TestDraft_NotesWinOverAudio(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(draftRequest(t, input.Payload{Notes: "typed", Audio: recording()}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, f.transcriber.calls)
	assert.Equal(t, "typed", f.planner.notes)
}

func TestDraft_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		setup      func(f *fixture)
		payload    input.Payload
		wantStatus int
		wantError  string
	}{
		{
			name:       "nothing provided",
			payload:    input.Payload{Notes: "   "},
			wantStatus: http.StatusBadRequest,
			wantError:  "No notes or audio provided.",
		},
		{
			name:       "empty transcript",
			setup:      func(f *fixture) { f.transcriber.text = "" },
			payload:    input.Payload{Audio: recording()},
			wantStatus: http.StatusBadRequest,
			wantError:  "No notes or audio provided.",
		},
		{
			name:       "transcription fails",
			setup:      func(f *fixture) { f.transcriber.err = errors.New("boom") },
			payload:    input.Payload{Audio: recording()},
			wantStatus: http.StatusBadGateway,
			wantError:  "Transcription failed.",
		},
		{
			name:       "planner fails",
			setup:      func(f *fixture) { f.planner.draftErr = errors.New("rate limited") },
			payload:    input.Payload{Notes: "Buy milk"},
			wantStatus: http.StatusBadGateway,
			wantError:  "Draft generation failed.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			w := f.do(draftRequest(t, tt.payload))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, gjson.Get(w.Body.String(), "error").String())
		})
	}
}

func TestDraft_UploadTooLarge(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.MaxUploadBytes = 64

	big := &capture.Artifact{Data: bytes.Repeat([]byte("x"), 4096), MIMEType: "audio/mpeg", Filename: "recording.mp3"}
	w := f.do(draftRequest(t, input.Payload{Audio: big}))

	assert.GreaterOrEqual(t, w.Code, http.StatusBadRequest)
	assert.Zero(t, f.transcriber.calls)
}

func TestFinalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		polishErr  error
		wantStatus int
		wantField  string
		wantValue  string
	}{
		{"polished", `{"email":"a@b.co","final_text":"  edited  "}`, nil, http.StatusOK, "polished_text", "Final plan..."},
		{"blank text", `{"email":"a@b.co","final_text":"   "}`, nil, http.StatusBadRequest, "error", "final_text missing"},
		{"invalid json", `{`, nil, http.StatusBadRequest, "error", "Request body must be JSON."},
		{"polish fails", `{"final_text":"edited"}`, errors.New("down"), http.StatusBadGateway, "error", "Failed to finalize."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.planner.polishErr = tt.polishErr

			w := f.do(finalizeRequest(tt.body))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantValue, gjson.Get(w.Body.String(), tt.wantField).String())
		})
	}
}

func TestFinalize_TrimsText(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.do(finalizeRequest(`{"final_text":"  edited  "}`))

	assert.Equal(t, "edited", f.planner.plan)
}

func TestFinalize_EmailsPlan(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	mailer := &fakeMailer{}
	f.srv = server.New(f.cfg, testLogger(), f.transcriber, f.planner, server.WithMailer(mailer))

	w := f.do(finalizeRequest(`{"email":" a@b.co ","final_text":"edited"}`))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"a@b.co"}, mailer.to)
	assert.Equal(t, "Action Items & Schedule from Your Meeting", mailer.subject)
	assert.Equal(t, "Final plan...\n\n--\nGenerated by FollowUp", mailer.body)

	// no address, nothing sent
	w = f.do(finalizeRequest(`{"final_text":"edited"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, mailer.to, 1)
}

func TestFinalize_EmailFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	mailer := &fakeMailer{err: errors.New("smtp down")}
	f.srv = server.New(f.cfg, testLogger(), f.transcriber, f.planner, server.WithMailer(mailer))

	w := f.do(finalizeRequest(`{"email":"a@b.co","final_text":"edited"}`))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Failed to send email.", gjson.Get(w.Body.String(), "error").String())
}

func TestRequestIDEchoed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(remote.RequestIDHeader, "req-123")

	w := f.do(req)
	assert.Equal(t, "req-123", w.Header().Get(remote.RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.planner.draftErr = errors.New("down")
	f.do(draftRequest(t, input.Payload{Notes: "Buy milk"}))

	w := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `followup_http_requests_total{method="POST",route="/api/draft",status="502"} 1`)
	assert.Contains(t, body, `followup_upstream_errors_total{stage="draft"} 1`)
}

func TestStaticFiles(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.PublicDir, "index.html"), []byte("<h1>FollowUp</h1>"), 0o644))

	w := f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "FollowUp")

	w = f.do(httptest.NewRequest(http.MethodGet, "/missing.js", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemoteClientRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ts := httptest.NewServer(f.srv.Router())
	t.Cleanup(ts.Close)

	client := remote.NewClient(ts.URL)

	draft, err := client.Draft(context.Background(), input.Payload{Notes: "Buy milk"})
	require.NoError(t, err)
	assert.Equal(t, "Draft for: Buy milk", draft)

	polished, err := client.Finalize(context.Background(), "", draft)
	require.NoError(t, err)
	assert.Equal(t, "Final plan...", polished)

	_, err = client.Draft(context.Background(), input.Payload{})
	var remoteErr *remote.Error
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusBadRequest, remoteErr.Status)
	assert.Equal(t, "No notes or audio provided.", remoteErr.Message)
}

// Package capture owns the microphone recording lifecycle. A Controller opens
// a Microphone, accumulates the fragments it emits in order, and on Stop turns
// them into exactly one Artifact.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrPermissionDenied is returned by Start when the microphone was refused
	// or is unavailable.
	ErrPermissionDenied = errors.New("microphone permission denied or unavailable")
	// ErrAlreadyRecording is returned by Start while a recording is active.
	ErrAlreadyRecording = errors.New("a recording is already in progress")
)

// Format labels the artifacts a Controller produces.
type Format struct {
	MIMEType string
	Filename string
}

// DefaultFormat matches what browsers' MediaRecorder hands the draft endpoint.
var DefaultFormat = Format{MIMEType: "audio/webm", Filename: "recording.webm"}

// MP3Format is used when fragments come from the mp3-framing microphone.
var MP3Format = Format{MIMEType: "audio/mpeg", Filename: "recording.mp3"}

// Artifact is one complete recording.
type Artifact struct {
	Data     []byte
	MIMEType string
	Filename string
	// Preview is a locally playable reference to Data. Empty when no preview
	// could be published.
	Preview string
}

// Stream is an open, recording microphone.
type Stream interface {
	// Fragments delivers encoded audio in capture order. It is closed once the
	// stream has stopped and every fragment was delivered.
	Fragments() <-chan []byte
	// Stop stops all underlying tracks and releases the hardware.
	Stop() error
}

// Microphone opens audio-only input streams.
type Microphone interface {
	// Open may block while the user grants access.
	Open(ctx context.Context) (Stream, error)
}

// Previewer publishes playable previews of artifacts.
type Previewer interface {
	Publish(a Artifact) (string, error)
	Revoke(ref string) error
}

// Config configures a Controller.
type Config struct {
	Format Format
	// MaxBytes is reported by Cap. 0 means unlimited.
	MaxBytes int64
}

// handle is the in-progress recording.
type handle struct {
	stream Stream
	done   chan struct{}

	mu     sync.Mutex
	chunks [][]byte
	size   int64
}

func (h *handle) append(chunk []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.chunks = append(h.chunks, chunk)
	h.size += int64(len(chunk))
}

func (h *handle) bytes() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.size
}

// Controller records at most one stream at a time.
type Controller struct {
	mic      Microphone
	previews Previewer
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	active  *handle
	opening bool
}

// NewController creates a controller. previews may be nil, in which case
// artifacts carry no preview reference.
func NewController(mic Microphone, previews Previewer, cfg Config, logger *slog.Logger) *Controller {
	if cfg.Format.MIMEType == "" {
		cfg.Format = DefaultFormat
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		mic:      mic,
		previews: previews,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start opens the microphone and begins accumulating fragments.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.active != nil || c.opening {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}

	// the device may block on a permission prompt; don't hold the lock
	c.opening = true
	c.mu.Unlock()

	stream, err := c.mic.Open(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.opening = false
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}

	h := &handle{
		stream: stream,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)

		for chunk := range stream.Fragments() {
			h.append(chunk)
		}
	}()

	c.active = h
	c.logger.Debug("recording started")

	return nil
}

// Stop ends the active recording and returns its artifact. Calling Stop
// without an active recording is a programming error and panics.
func (c *Controller) Stop() Artifact {
	c.mu.Lock()
	h := c.active
	c.active = nil
	c.mu.Unlock()

	if h == nil {
		panic("capture: Stop called without an active recording")
	}

	if err := h.stream.Stop(); err != nil {
		c.logger.Error("failed to stop microphone stream", "error", err)
	}

	<-h.done

	artifact := Artifact{
		Data:     bytes.Join(h.chunks, nil),
		MIMEType: c.cfg.Format.MIMEType,
		Filename: c.cfg.Format.Filename,
	}

	if c.previews != nil {
		ref, err := c.previews.Publish(artifact)
		if err != nil {
			c.logger.Warn("failed to publish recording preview", "error", err)
		} else {
			artifact.Preview = ref
		}
	}

	c.logger.Info("recording stopped",
		"bytes", len(artifact.Data),
		"fragments", len(h.chunks),
		"preview", artifact.Preview,
	)

	return artifact
}

// Release revokes the artifact's preview. Safe to call more than once.
func (c *Controller) Release(a Artifact) {
	if c.previews == nil || a.Preview == "" {
		return
	}

	if err := c.previews.Revoke(a.Preview); err != nil {
		c.logger.Warn("failed to revoke recording preview", "preview", a.Preview, "error", err)
	}
}

// Close releases an in-progress stream without producing an artifact.
func (c *Controller) Close() {
	c.mu.Lock()
	h := c.active
	c.active = nil
	c.mu.Unlock()

	if h == nil {
		return
	}

	if err := h.stream.Stop(); err != nil {
		c.logger.Error("failed to stop microphone stream on close", "error", err)
	}

	<-h.done
	c.logger.Debug("recording abandoned on close")
}

// Recording reports whether a recording is active.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active != nil
}

// Read returns the bytes captured so far by the active recording.
func (c *Controller) Read() int64 {
	c.mu.Lock()
	h := c.active
	c.mu.Unlock()

	if h == nil {
		return 0
	}

	return h.bytes()
}

// Cap returns the bytes captured so far and the configured maximum.
func (c *Controller) Cap() (int64, int64) {
	return c.Read(), c.cfg.MaxBytes
}

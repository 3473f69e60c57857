package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alkime/followup/internal/capture"
	"github.com/gen2brain/malgo"
)

// Microphone opens the default capture device. Its fragments are MP3, so
// pair it with capture.MP3Format.
type Microphone struct {
	config FramerConfig
	logger *slog.Logger
}

// NewMicrophone creates a microphone; zero config fields take defaults.
func NewMicrophone(config FramerConfig, logger *slog.Logger) *Microphone {
	if logger == nil {
		logger = slog.Default()
	}

	return &Microphone{config: config.WithDefaults(), logger: logger}
}

// Open allocates and starts the device. Any failure means the microphone is
// unavailable; nothing stays allocated.
func (m *Microphone) Open(ctx context.Context) (capture.Stream, error) {
	pcm := make(chan []byte, 64)

	dev := NewDevice(&DeviceConfig{
		Format:          malgo.FormatS16,
		SampleRate:      m.config.SampleRate,
		CaptureChannels: m.config.Channels,
	})

	if err := dev.CaptureInto(ctx, pcm); err != nil {
		return nil, fmt.Errorf("failed to open capture device: %w", err)
	}

	framer, err := NewFramer(m.config, pcm)
	if err != nil {
		dev.Dealloc(ctx)
		close(pcm)

		return nil, err
	}

	if err := dev.Start(ctx); err != nil {
		dev.Dealloc(ctx)
		close(pcm)
		_ = framer.Wait()

		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}

	m.logger.Debug("microphone open", "sampleRate", m.config.SampleRate)

	return &micStream{dev: dev, pcm: pcm, framer: framer, logger: m.logger}, nil
}

type micStream struct {
	dev    *Device
	pcm    chan []byte
	framer *Framer
	logger *slog.Logger

	once sync.Once
	err  error
}

func (s *micStream) Fragments() <-chan []byte {
	return s.framer.Fragments()
}

// Stop releases the device, then lets the framer flush and close Fragments.
func (s *micStream) Stop() error {
	s.once.Do(func() {
		ctx := context.Background()

		if err := s.dev.Stop(ctx); err != nil {
			s.err = err
		}

		s.dev.Dealloc(ctx)
		close(s.pcm)

		if dropped := s.dev.Dropped(); dropped > 0 {
			s.logger.Warn("microphone packets dropped", "count", dropped)
		}
	})

	return s.err
}

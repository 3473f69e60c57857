package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	mp3encoder "github.com/braheezy/shine-mp3/pkg/mp3"
)

const (
	// DefaultBufferThreshold is 4KB = 2048 mono samples = 128ms @ 16kHz.
	DefaultBufferThreshold = 4096
	// DefaultSampleRate is 16kHz, enough for speech transcription.
	DefaultSampleRate = 16000
	// DefaultChannels is mono.
	DefaultChannels = 1
)

// FramerConfig configures PCM to MP3 framing.
type FramerConfig struct {
	SampleRate int
	// Channels must be 1; mono input is duplicated to stereo for shine-mp3.
	Channels int
	// BufferThreshold is the number of PCM bytes accumulated per fragment.
	BufferThreshold int
}

// Validate returns an error if the config is invalid.
func (c FramerConfig) Validate() error {
	if c.SampleRate <= 0 {
		return errors.New("sample rate must be positive")
	}

	if c.Channels != 1 {
		return errors.New("only mono (1 channel) is supported")
	}

	if c.BufferThreshold <= 0 {
		return errors.New("buffer threshold must be positive")
	}

	return nil
}

// WithDefaults returns a config with default values applied to zero fields.
func (c FramerConfig) WithDefaults() FramerConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}

	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}

	if c.BufferThreshold == 0 {
		c.BufferThreshold = DefaultBufferThreshold
	}

	return c
}

// Framer reads raw S16LE PCM packets and emits one MP3 fragment per
// BufferThreshold bytes. Fragments is closed after the input channel closes
// and the remainder was flushed.
type Framer struct {
	config  FramerConfig
	input   <-chan []byte
	output  chan []byte
	encoder *mp3encoder.Encoder
	buffer  []byte

	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
}

// NewFramer starts framing packets from input.
func NewFramer(config FramerConfig, input <-chan []byte) (*Framer, error) {
	if input == nil {
		return nil, errors.New("input channel cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid framer config: %w", err)
	}

	f := &Framer{
		config: config,
		input:  input,
		output: make(chan []byte, 16),
		// stereo: shine-mp3 mis-advances its buffer for mono input
		encoder: mp3encoder.NewEncoder(config.SampleRate, 2),
		buffer:  make([]byte, 0, config.BufferThreshold),
	}

	f.wg.Go(f.run)

	return f, nil
}

// Fragments returns the MP3 fragment stream.
func (f *Framer) Fragments() <-chan []byte {
	return f.output
}

// Wait blocks until the input was drained and returns the first error.
func (f *Framer) Wait() error {
	f.wg.Wait()

	return f.err
}

func (f *Framer) run() {
	defer close(f.output)

	for data := range f.input {
		f.buffer = append(f.buffer, data...)

		if len(f.buffer) < f.config.BufferThreshold {
			continue
		}

		if err := f.emit(); err != nil {
			f.setError(err)
			// keep draining so the producer never blocks on a dead consumer
			for range f.input {
			}

			return
		}
	}

	if err := f.emit(); err != nil {
		f.setError(fmt.Errorf("failed to flush framer: %w", err))
	}
}

// emit encodes the buffered whole samples into one fragment.
func (f *Framer) emit() error {
	usable := len(f.buffer) &^ 1
	if usable == 0 {
		return nil
	}

	monoSamples := make([]int16, usable/2)
	if err := binary.Read(bytes.NewReader(f.buffer[:usable]), binary.LittleEndian, monoSamples); err != nil {
		return fmt.Errorf("failed to read PCM samples: %w", err)
	}

	stereoSamples := make([]int16, len(monoSamples)*2)
	for i, sample := range monoSamples {
		stereoSamples[i*2] = sample
		stereoSamples[i*2+1] = sample
	}

	var frame bytes.Buffer
	if err := f.encoder.Write(&frame, stereoSamples); err != nil {
		return fmt.Errorf("failed to encode audio to MP3: %w", err)
	}

	remainder := copy(f.buffer, f.buffer[usable:])
	f.buffer = f.buffer[:remainder]

	if frame.Len() > 0 {
		f.output <- frame.Bytes()
	}

	return nil
}

func (f *Framer) setError(err error) {
	f.errOnce.Do(func() {
		f.err = err
		slog.Error("mp3 framer error", "error", err)
	})
}

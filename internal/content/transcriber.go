package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Transcriber handles OpenAI transcription requests for recorded meetings.
type Transcriber struct {
	apiKey string
	client openai.Client
	model  openai.AudioModel
}

// NewTranscriber creates a new transcription client. An empty model selects
// whisper-1.
func NewTranscriber(apiKey string, model string, opts ...option.RequestOption) *Transcriber {
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &Transcriber{
		apiKey: apiKey,
		client: openai.NewClient(opts...),
		model:  openai.AudioModel(model),
	}
}

// Transcribe converts an uploaded recording to text. filename carries the
// extension the API uses to detect the container format.
func (t *Transcriber) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if t.apiKey == "" {
		return "", errors.New("API key required: set OPENAI_API_KEY or use config set-key")
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  namedReader{Reader: audio, name: filename},
		Model: t.model,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create transcription: %w", err)
	}

	return strings.TrimSpace(resp.Text), nil
}

// namedReader gives the multipart encoder a filename for a plain reader.
type namedReader struct {
	io.Reader
	name string
}

func (n namedReader) Filename() string {
	return n.name
}

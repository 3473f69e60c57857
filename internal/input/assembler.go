// Package input turns whatever the user supplied (notes, an uploaded text
// file, a recording, a contact address) into the payload of a draft request.
package input

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/alkime/followup/internal/capture"
)

var (
	// ErrUnsupportedFileType is returned for uploads that are not plain text.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrNoInputProvided is returned when there is nothing to send.
	ErrNoInputProvided = errors.New("no notes, text file or recording provided")
)

// Multipart field names understood by the draft endpoint.
const (
	FieldEmail = "email"
	FieldNotes = "notes"
	FieldAudio = "audio"
)

// File is a user-selected upload.
type File interface {
	// MIMEType is the type label of the file, e.g. "text/plain; charset=utf-8".
	MIMEType() string
	// Text reads the whole file as text.
	Text(ctx context.Context) (string, error)
}

// Inputs is the part of a session the assembler reads.
type Inputs struct {
	ContactAddress string
	Notes          string
	Audio          *capture.Artifact
}

// Payload is the body of one draft request.
type Payload struct {
	Email string
	Notes string
	Audio *capture.Artifact
}

// Assemble builds the draft payload. An uploaded file takes precedence over
// typed notes; a recording, when present, is always attached.
func Assemble(ctx context.Context, in Inputs, file File) (Payload, error) {
	var p Payload

	switch {
	case file != nil:
		if !IsText(file.MIMEType()) {
			return Payload{}, fmt.Errorf("%w: %q", ErrUnsupportedFileType, file.MIMEType())
		}

		text, err := file.Text(ctx)
		if err != nil {
			return Payload{}, fmt.Errorf("failed to read uploaded file: %w", err)
		}

		p.Notes = text

	case strings.TrimSpace(in.Notes) != "":
		p.Notes = strings.TrimSpace(in.Notes)

	case in.Audio == nil:
		return Payload{}, ErrNoInputProvided
	}

	p.Audio = in.Audio
	p.Email = strings.TrimSpace(in.ContactAddress)

	return p, nil
}

// IsText reports whether a MIME label names a text type.
func IsText(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}

	return strings.HasPrefix(mediaType, "text/")
}

// Encode renders the payload as a multipart form body. Empty fields are
// omitted.
func (p Payload) Encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if p.Email != "" {
		if err := w.WriteField(FieldEmail, p.Email); err != nil {
			return nil, "", fmt.Errorf("failed to write email field: %w", err)
		}
	}

	if p.Notes != "" {
		if err := w.WriteField(FieldNotes, p.Notes); err != nil {
			return nil, "", fmt.Errorf("failed to write notes field: %w", err)
		}
	}

	if p.Audio != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
			"name":     FieldAudio,
			"filename": p.Audio.Filename,
		}))
		header.Set("Content-Type", p.Audio.MIMEType)

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create audio part: %w", err)
		}

		if _, err := part.Write(p.Audio.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write audio part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

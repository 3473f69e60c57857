package server

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Error messages returned in the "error" field; the client shows them as-is.
const (
	msgNoInput          = "No notes or audio provided."
	msgFinalTextMissing = "final_text missing"
	msgInvalidJSON      = "Request body must be JSON."
	msgUploadTooLarge   = "Upload is too large."
	msgTranscribeFailed = "Transcription failed."
	msgDraftFailed      = "Draft generation failed."
	msgPolishFailed     = "Failed to finalize."
	msgSendFailed       = "Failed to send email."
)

const planSubject = "Action Items & Schedule from Your Meeting"

const defaultAudioFilename = "recording.webm"

type finalizeRequest struct {
	Email     string `json:"email"`
	FinalText string `json:"final_text"`
}

// handleDraft accepts multipart notes and/or audio. Typed notes win; the
// recording is only transcribed when no notes were sent.
func (s *Server) handleDraft(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadBytes)

	if err := c.Request.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgUploadTooLarge})
			return
		}
		// urlencoded bodies are fine too
		if !errors.Is(err, http.ErrNotMultipart) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgNoInput})
			return
		}
	}

	notes := strings.TrimSpace(c.PostForm("notes"))
	email := strings.TrimSpace(c.PostForm("email"))

	if notes == "" {
		if header, err := c.FormFile("audio"); err == nil {
			transcript, ok := s.transcribe(c, header.Filename, header.Open)
			if !ok {
				return
			}
			notes = transcript
		}
	}

	if notes == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoInput})
		return
	}

	draft, err := s.planner.DraftActionPlan(c.Request.Context(), notes)
	if err != nil {
		s.metrics.upstreamErrors.WithLabelValues("draft").Inc()
		s.logger.Error("failed to draft action plan", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": msgDraftFailed})

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"draft_text":  draft,
		"source_text": notes,
		"email":       email,
	})
}

func (s *Server) transcribe(c *gin.Context, filename string, open func() (multipart.File, error)) (string, bool) {
	if filename == "" {
		filename = defaultAudioFilename
	}

	f, err := open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoInput})
		return "", false
	}
	defer f.Close()

	s.metrics.transcriptions.Inc()

	transcript, err := s.transcriber.Transcribe(c.Request.Context(), f, filename)
	if err != nil {
		s.metrics.upstreamErrors.WithLabelValues("transcribe").Inc()
		s.logger.Error("failed to transcribe recording", "error", err, "filename", filename)
		c.JSON(http.StatusBadGateway, gin.H{"error": msgTranscribeFailed})

		return "", false
	}

	return transcript, true
}

// handleFinalize polishes a reviewed plan and, when a mailer is configured
// and an address was given, emails it.
func (s *Server) handleFinalize(c *gin.Context) {
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidJSON})
		return
	}

	finalText := strings.TrimSpace(req.FinalText)
	if finalText == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgFinalTextMissing})
		return
	}

	polished, err := s.planner.Polish(c.Request.Context(), finalText)
	if err != nil {
		s.metrics.upstreamErrors.WithLabelValues("polish").Inc()
		s.logger.Error("failed to polish action plan", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": msgPolishFailed})

		return
	}

	email := strings.TrimSpace(req.Email)
	if email != "" && s.mailer != nil {
		body := polished + "\n\n--\nGenerated by " + s.config.AppName
		if err := s.mailer.Send(c.Request.Context(), email, planSubject, body); err != nil {
			s.metrics.upstreamErrors.WithLabelValues("email").Inc()
			s.logger.Error("failed to email action plan", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": msgSendFailed})

			return
		}
	}

	s.logger.Info("action plan finalized", "has_email", email != "", "emailed", email != "" && s.mailer != nil)

	c.JSON(http.StatusOK, gin.H{"polished_text": polished})
}

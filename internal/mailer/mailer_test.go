package mailer_test

import (
	"bytes"
	"testing"

	"github.com/alkime/followup/internal/mailer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	t.Parallel()

	msg, err := mailer.Compose("FollowUp", "bot@example.com", "a@b.co",
		"Action Items", "# Plan\n• **Buy milk** <today>")
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "Subject: Action Items")
	assert.Contains(t, raw, `"FollowUp" <bot@example.com>`)
	assert.Contains(t, raw, "<a@b.co>")
	assert.Contains(t, raw, "- Buy milk <today>")
	assert.NotContains(t, raw, "**")
	assert.Contains(t, raw, "&lt;today&gt;")
}

func TestCompose_InvalidRecipient(t *testing.T) {
	t.Parallel()

	_, err := mailer.Compose("FollowUp", "bot@example.com", "not an address", "s", "b")
	assert.Error(t, err)
}

func TestNew_RequiresHost(t *testing.T) {
	t.Parallel()

	_, err := mailer.New(mailer.Config{From: "bot@example.com"})
	assert.Error(t, err)

	m, err := mailer.New(mailer.Config{Host: "smtp.example.com", Port: 587, From: "bot@example.com"})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

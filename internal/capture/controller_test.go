package capture_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alkime/followup/internal/capture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream emits a fixed set of fragments and closes on Stop.
type fakeStream struct {
	fragments chan []byte

	mu      sync.Mutex
	stopped int
}

func newFakeStream(chunks ...string) *fakeStream {
	s := &fakeStream{fragments: make(chan []byte, len(chunks))}
	for _, c := range chunks {
		s.fragments <- []byte(c)
	}

	return s
}

func (s *fakeStream) Fragments() <-chan []byte { return s.fragments }

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped == 0 {
		close(s.fragments)
	}
	s.stopped++

	return nil
}

func (s *fakeStream) stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopped
}

type fakeMic struct {
	streams []*fakeStream
	err     error
	opened  int
}

func (m *fakeMic) Open(_ context.Context) (capture.Stream, error) {
	if m.err != nil {
		return nil, m.err
	}

	s := m.streams[m.opened]
	m.opened++

	return s, nil
}

func TestController_StartStop(t *testing.T) {
	t.Parallel()

	stream := newFakeStream("ab", "cd", "ef")
	ctrl := capture.NewController(&fakeMic{streams: []*fakeStream{stream}}, nil, capture.Config{}, nil)

	require.NoError(t, ctrl.Start(context.Background()))
	assert.True(t, ctrl.Recording())

	artifact := ctrl.Stop()

	assert.Equal(t, []byte("abcdef"), artifact.Data)
	assert.Equal(t, "audio/webm", artifact.MIMEType)
	assert.Equal(t, "recording.webm", artifact.Filename)
	assert.Empty(t, artifact.Preview)
	assert.Equal(t, 1, stream.stops(), "stream must be released exactly once")
	assert.False(t, ctrl.Recording())
}

func TestController_RepeatedSessionsProduceOneArtifactEach(t *testing.T) {
	t.Parallel()

	streams := []*fakeStream{newFakeStream("one"), newFakeStream("two"), newFakeStream()}
	ctrl := capture.NewController(&fakeMic{streams: streams}, nil, capture.Config{Format: capture.MP3Format}, nil)

	var got []string
	for range streams {
		require.NoError(t, ctrl.Start(context.Background()))
		a := ctrl.Stop()
		assert.Equal(t, "audio/mpeg", a.MIMEType)
		got = append(got, string(a.Data))
	}

	assert.Equal(t, []string{"one", "two", ""}, got)
	for _, s := range streams {
		assert.Equal(t, 1, s.stops())
	}
}

func TestController_PermissionDenied(t *testing.T) {
	t.Parallel()

	ctrl := capture.NewController(&fakeMic{err: errors.New("NotAllowedError")}, nil, capture.Config{}, nil)

	err := ctrl.Start(context.Background())
	require.ErrorIs(t, err, capture.ErrPermissionDenied)
	assert.Contains(t, err.Error(), "NotAllowedError")
	assert.False(t, ctrl.Recording())
}

func TestController_AtMostOneRecording(t *testing.T) {
	t.Parallel()

	mic := &fakeMic{streams: []*fakeStream{newFakeStream("x"), newFakeStream("y")}}
	ctrl := capture.NewController(mic, nil, capture.Config{}, nil)

	require.NoError(t, ctrl.Start(context.Background()))
	require.ErrorIs(t, ctrl.Start(context.Background()), capture.ErrAlreadyRecording)
	assert.Equal(t, 1, mic.opened)

	assert.Equal(t, []byte("x"), ctrl.Stop().Data)
}

func TestController_StopWithoutRecordingPanics(t *testing.T) {
	t.Parallel()

	ctrl := capture.NewController(&fakeMic{}, nil, capture.Config{}, nil)

	assert.Panics(t, func() { ctrl.Stop() })
}

func TestController_CloseReleasesStream(t *testing.T) {
	t.Parallel()

	stream := newFakeStream("abandoned")
	ctrl := capture.NewController(&fakeMic{streams: []*fakeStream{stream}}, nil, capture.Config{}, nil)

	require.NoError(t, ctrl.Start(context.Background()))
	ctrl.Close()
	ctrl.Close()

	assert.Equal(t, 1, stream.stops())
	assert.False(t, ctrl.Recording())
	assert.Panics(t, func() { ctrl.Stop() }, "close must not leave a handle behind")
}

func TestController_Cap(t *testing.T) {
	t.Parallel()

	stream := newFakeStream("1234")
	ctrl := capture.NewController(&fakeMic{streams: []*fakeStream{stream}}, nil, capture.Config{MaxBytes: 100}, nil)

	current, maxBytes := ctrl.Cap()
	assert.Equal(t, int64(0), current)
	assert.Equal(t, int64(100), maxBytes)

	require.NoError(t, ctrl.Start(context.Background()))
	assert.Eventually(t, func() bool { return ctrl.Read() == 4 }, time.Second, 10*time.Millisecond)

	ctrl.Stop()
	assert.Equal(t, int64(0), ctrl.Read())
}

func TestController_PreviewLifecycle(t *testing.T) {
	t.Parallel()

	previews, err := capture.NewFilePreviews(t.TempDir())
	require.NoError(t, err)

	stream := newFakeStream("sound")
	ctrl := capture.NewController(&fakeMic{streams: []*fakeStream{stream}}, previews, capture.Config{}, nil)

	require.NoError(t, ctrl.Start(context.Background()))
	artifact := ctrl.Stop()

	require.NotEmpty(t, artifact.Preview)
	assert.Equal(t, 1, previews.Outstanding())

	data, err := os.ReadFile(artifact.Preview)
	require.NoError(t, err)
	assert.Equal(t, []byte("sound"), data)

	ctrl.Release(artifact)
	ctrl.Release(artifact)

	assert.Equal(t, 0, previews.Outstanding())
	_, err = os.Stat(artifact.Preview)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

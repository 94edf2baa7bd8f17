package voice

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverterPassthrough(t *testing.T) {
	c := NewFFmpegConverter("does-not-exist", t.TempDir())
	dst, cleanup, err := c.Convert(context.Background(), "/tmp/memo.m4a")
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, "/tmp/memo.m4a", dst)
}

func TestConverterFailure(t *testing.T) {
	c := NewFFmpegConverter(filepath.Join(t.TempDir(), "no-ffmpeg"), t.TempDir())
	_, _, err := c.Convert(context.Background(), "/tmp/Audio Message.caf")
	assert.Error(t, err)
}

func TestIsAvailable(t *testing.T) {
	assert.False(t, NewOpenAITranscriber("", "").IsAvailable())
	assert.True(t, NewGroqTranscriber("gsk").IsAvailable())
	var nilT *WhisperTranscriber
	assert.False(t, nilT.IsAvailable())
}

func TestTranscribe(t *testing.T) {
	var model string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/transcriptions"))
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			if part.FormName() == "model" {
				b, _ := io.ReadAll(part)
				model = string(b)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"  running late, see you at 8  "}`)
	}))
	defer srv.Close()

	audio := filepath.Join(t.TempDir(), "memo.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("ID3"), 0o600))

	tr := NewOpenAITranscriber("k", srv.URL)
	resp, err := tr.Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "running late, see you at 8", resp.Text)
	assert.Equal(t, openAIWhisperModel, model)
}

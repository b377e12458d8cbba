// cmd/capture_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/measurediff/internal/config"
)

func TestRunCapture(t *testing.T) {
	html := readFixture(t, "clean.html")

	t.Run("stdout", func(t *testing.T) {
		withCapturer(t, &fakeCapturer{html: html})
		var out bytes.Buffer
		require.NoError(t, runCapture(context.Background(), zap.NewNop(), newTestConfig(), "http://localhost/kobold", "", &out))
		assert.Equal(t, html, out.String())
	})

	t.Run("file", func(t *testing.T) {
		fake := &fakeCapturer{html: html}
		withCapturer(t, fake)
		path := filepath.Join(t.TempDir(), "snap.html")

		var out bytes.Buffer
		require.NoError(t, runCapture(context.Background(), zap.NewNop(), newTestConfig(), "http://localhost/kobold", path, &out))
		assert.Zero(t, out.Len())
		assert.Equal(t, []string{"http://localhost/kobold"}, fake.urls)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, html, string(data))
	})

	t.Run("capture error", func(t *testing.T) {
		withCapturer(t, &fakeCapturer{err: errors.New("timed out")})
		err := runCapture(context.Background(), zap.NewNop(), newTestConfig(), "http://localhost/kobold", "", &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to capture page: timed out")
	})

	t.Run("unwritable path", func(t *testing.T) {
		withCapturer(t, &fakeCapturer{html: html})
		path := filepath.Join(t.TempDir(), "missing-dir", "snap.html")
		err := runCapture(context.Background(), zap.NewNop(), newTestConfig(), "http://localhost/kobold", path, &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to write snapshot")
	})
}

func TestCaptureCmd_RequiresURL(t *testing.T) {
	_, err := executeCommand(t, &MockStoreProvider{}, "capture")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "url" not set`)
}

func TestCaptureCmd_Headful(t *testing.T) {
	var seenHeadless *bool
	orig := newCapturer
	newCapturer = func(b config.BrowserConfig, s config.SnapshotConfig, l *zap.Logger) pageCapturer {
		h := b.Headless
		seenHeadless = &h
		return &fakeCapturer{html: "<html></html>"}
	}
	t.Cleanup(func() { newCapturer = orig })

	_, err := executeCommand(t, &MockStoreProvider{}, "capture", "--url", "http://localhost/x", "--headful")
	require.NoError(t, err)
	require.NotNil(t, seenHeadless)
	assert.False(t, *seenHeadless)
}

// internal/browser/capture/capture_test.go
package capture

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/measurediff/internal/config"
	"github.com/xkilldash9x/measurediff/internal/diagnostic"
	"github.com/xkilldash9x/measurediff/internal/snapshot"
)

func TestAllocatorOptions(t *testing.T) {
	base := config.BrowserConfig{Headless: true, Viewport: config.ViewportConfig{Width: 1280, Height: 900, DeviceScaleFactor: 1}}

	t.Run("defaults", func(t *testing.T) {
		opts := AllocatorOptions(base)
		// NoSandbox, DisableGPU, automation, first run, browser check, scrollbars,
		// extensions, headless and window size.
		assert.Len(t, opts, 9)
	})

	t.Run("headed has one fewer option", func(t *testing.T) {
		headed := base
		headed.Headless = false
		assert.Len(t, AllocatorOptions(headed), len(AllocatorOptions(base))-1)
	})

	t.Run("no viewport means no window size", func(t *testing.T) {
		cfg := base
		cfg.Viewport = config.ViewportConfig{}
		assert.Len(t, AllocatorOptions(cfg), len(AllocatorOptions(base))-1)
	})

	t.Run("extra args", func(t *testing.T) {
		cfg := base
		cfg.Args = []string{"--font-render-hinting=none", "force-color-profile=srgb", "  ", "--disable-lcd-text"}
		opts := AllocatorOptions(cfg)
		assert.Len(t, opts, len(AllocatorOptions(base))+3, "blank args are skipped")
		assert.NotEmpty(t, opts)
	})

	t.Run("exec path", func(t *testing.T) {
		cfg := base
		cfg.ExecPath = "/opt/chrome/chrome"
		assert.Len(t, AllocatorOptions(cfg), len(AllocatorOptions(base))+1)
	})
}

func TestNew_Defaults(t *testing.T) {
	c := New(config.BrowserConfig{}, config.SnapshotConfig{}, nil)
	d := snapshot.DefaultOptions()
	assert.Equal(t, d.MeasurementLayerXPath, c.snapshot.MeasurementLayerXPath)
	assert.Equal(t, d.VisibleLayerXPath, c.snapshot.VisibleLayerXPath)
	assert.Equal(t, d.RectAttribute, c.snapshot.RectAttribute)
	assert.NotNil(t, c.logger)
}

func TestStampExpression(t *testing.T) {
	c := New(
		config.BrowserConfig{Viewport: config.ViewportConfig{Width: 1280, Height: 900, DeviceScaleFactor: 1.5}},
		config.SnapshotConfig{RectAttribute: "data-box"},
		zaptest.NewLogger(t),
	)
	at := time.Date(2026, 10, 18, 9, 30, 0, 0, time.FixedZone("PDT", -7*3600))

	expr, err := c.stampExpression("http://localhost:5173/projects/42", at)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(expr, "(function (opts) {"), "the script is invoked as an expression")
	assert.Contains(t, expr, `"rectAttribute":"data-box"`)
	assert.Contains(t, expr, `"measurediff:source-url":"http://localhost:5173/projects/42"`)
	assert.Contains(t, expr, `"measurediff:captured-at":"2026-10-18T16:30:00Z"`)
	assert.Contains(t, expr, `"measurediff:viewport":"1280x900@1.5"`)
	assert.True(t, strings.HasSuffix(expr, "})"))
}

func TestStampScriptDoesNotTouchLiveDocument(t *testing.T) {
	// Everything is written to the clone.
	assert.NotContains(t, stampScript, "el.setAttribute")
	assert.NotContains(t, stampScript, "source.setAttribute")
	assert.Contains(t, stampScript, "cloneNode(true)")
}

func TestCapture_RequiresURL(t *testing.T) {
	c := New(config.BrowserConfig{}, config.SnapshotConfig{}, zaptest.NewLogger(t))
	_, err := c.Capture(context.Background(), "")
	assert.EqualError(t, err, "capture requires a URL")
}

const twoLayerPage = `<!DOCTYPE html>
<html><head><title>fixture</title>
<style>
  body { margin: 0; font-size: 16px; }
  .measurement { position: absolute; left: -5000px; top: 0; width: 400px; }
  .visible { transform: scale(0.5); transform-origin: 0 0; }
  .page-column { width: 400px; height: 600px; }
  .column-entry { padding: 10px 0; }
  li { height: 40px; }
  .section-header { height: 20px; margin: 0; }
</style></head>
<body>
  <div class="measurement" data-layer="measurement">
    <div data-measurement-key="c1:items:0:2:2" style="padding: 10px 0">
      <h3 class="section-header">Items</h3>
      <ul data-list-kind="items" style="margin: 0"><li>one</li><li>two</li></ul>
    </div>
  </div>
  <div class="visible" data-layer="visible">
    <div class="page-column">
      <div class="column-entry">
        <h3 class="section-header">Items</h3>
        <ul data-list-kind="items" style="margin: 0"><li>one</li><li>two</li></ul>
      </div>
    </div>
  </div>
  <script>window.__untouched = true;</script>
</body></html>`

func browserAvailable() bool {
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// TestCapture_EndToEnd captures a real page and feeds it through the snapshot
// reader and the diagnostic run.
func TestCapture_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if !browserAvailable() {
		t.Skip("no Chrome or Chromium binary on PATH")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, twoLayerPage)
	}))
	t.Cleanup(server.Close)

	cfg := config.BrowserConfig{
		Headless:          true,
		Viewport:          config.ViewportConfig{Width: 1024, Height: 768, DeviceScaleFactor: 1},
		NavigationTimeout: 45 * time.Second,
		SettleDelay:       100 * time.Millisecond,
	}
	c := New(cfg, config.SnapshotConfig{}, zaptest.NewLogger(t))

	res, err := c.Capture(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, server.URL, res.URL)
	assert.False(t, res.CapturedAt.IsZero())
	assert.NotContains(t, res.HTML, "__untouched", "scripts are stripped from the snapshot")

	doc, err := snapshot.Load(strings.NewReader(res.HTML), snapshot.DefaultOptions())
	require.NoError(t, err)
	src, ok := doc.Meta(snapshot.MetaSourceURL)
	require.True(t, ok)
	assert.Equal(t, server.URL, src)
	vp, _ := doc.Meta(snapshot.MetaViewport)
	assert.Equal(t, "1024x768@1", vp)

	measurement, visible, err := doc.Layers()
	require.NoError(t, err)
	report, err := diagnostic.Run(measurement, visible, diagnostic.DefaultOptions())
	require.NoError(t, err)

	assert.InDelta(t, 0.5, report.Scale.Factor, 1e-9)
	require.Len(t, report.Components, 1)
	require.NotNil(t, report.Components[0].Discrepancy)
	// Same content in both layers, so the only delta is sub-pixel rounding.
	assert.InDelta(t, 0, report.Components[0].Discrepancy.Delta, 1.0)
}

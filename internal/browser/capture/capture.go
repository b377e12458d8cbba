// internal/browser/capture/capture.go
package capture

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/measurediff/internal/config"
	"github.com/xkilldash9x/measurediff/internal/snapshot"
)

// stampScript clones the live document and writes geometry and computed box
// styles onto the clone. The page itself is never modified.
//
//go:embed stamp.js
var stampScript string

// Result is a captured snapshot ready for snapshot.Load.
type Result struct {
	URL        string
	HTML       string
	CapturedAt time.Time
	Viewport   config.ViewportConfig
}

// Capturer renders pages in a headless Chrome and snapshots both layers.
type Capturer struct {
	browser  config.BrowserConfig
	snapshot config.SnapshotConfig
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Capturer. Empty snapshot fields fall back to the snapshot
// package defaults.
func New(browser config.BrowserConfig, snap config.SnapshotConfig, logger *zap.Logger) *Capturer {
	d := snapshot.DefaultOptions()
	if snap.MeasurementLayerXPath == "" {
		snap.MeasurementLayerXPath = d.MeasurementLayerXPath
	}
	if snap.VisibleLayerXPath == "" {
		snap.VisibleLayerXPath = d.VisibleLayerXPath
	}
	if snap.RectAttribute == "" {
		snap.RectAttribute = d.RectAttribute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capturer{
		browser:  browser,
		snapshot: snap,
		logger:   logger.Named("capture"),
		now:      time.Now,
	}
}

// AllocatorOptions builds the exec allocator options for cfg.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("enable-automation", true),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-extensions", true),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.Viewport.Width, cfg.Viewport.Height))
	}

	for _, arg := range cfg.Args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		if key, value, found := strings.Cut(arg, "="); found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(arg, true))
		}
	}
	return opts
}

// stampExpression returns the JavaScript expression that produces the snapshot HTML.
func (c *Capturer) stampExpression(url string, capturedAt time.Time) (string, error) {
	opts := map[string]interface{}{
		"rectAttribute": c.snapshot.RectAttribute,
		"meta": map[string]string{
			snapshot.MetaSourceURL:  url,
			snapshot.MetaCapturedAt: capturedAt.UTC().Format(time.RFC3339),
			snapshot.MetaViewport:   viewportMeta(c.browser.Viewport),
		},
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("failed to encode stamp options: %w", err)
	}
	return "(" + strings.TrimSpace(stampScript) + ")(" + string(raw) + ")", nil
}

// viewportMeta formats the viewport as WIDTHxHEIGHT@SCALE.
func viewportMeta(v config.ViewportConfig) string {
	return strconv.Itoa(v.Width) + "x" + strconv.Itoa(v.Height) + "@" + strconv.FormatFloat(v.DeviceScaleFactor, 'g', -1, 64)
}

// Capture loads url, waits for both layers and the settle delay, and returns the
// stamped document.
func (c *Capturer) Capture(ctx context.Context, url string) (*Result, error) {
	if url == "" {
		return nil, errors.New("capture requires a URL")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(c.browser)...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(c.logger.Sugar().Debugf),
		chromedp.WithErrorf(c.logger.Sugar().Errorf),
	)
	defer browserCancel()

	runCtx := browserCtx
	if c.browser.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(browserCtx, c.browser.NavigationTimeout)
		defer cancel()
	}

	scale := c.browser.Viewport.DeviceScaleFactor
	if scale <= 0 {
		scale = 1
	}

	c.logger.Info("Capturing page.", zap.String("url", url),
		zap.Int("width", c.browser.Viewport.Width),
		zap.Int("height", c.browser.Viewport.Height))

	var html string
	capturedAt := c.now()
	err := chromedp.Run(runCtx,
		emulation.SetDeviceMetricsOverride(int64(c.browser.Viewport.Width), int64(c.browser.Viewport.Height), scale, false),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.WaitReady(c.snapshot.MeasurementLayerXPath, chromedp.BySearch),
		chromedp.WaitReady(c.snapshot.VisibleLayerXPath, chromedp.BySearch),
		chromedp.Sleep(c.browser.SettleDelay),
		chromedp.ActionFunc(func(ctx context.Context) error {
			capturedAt = c.now()
			expr, err := c.stampExpression(url, capturedAt)
			if err != nil {
				return err
			}
			return chromedp.Evaluate(expr, &html).Do(ctx)
		}),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("capture of %s timed out after %s waiting for both layers: %w", url, c.browser.NavigationTimeout, err)
		}
		return nil, fmt.Errorf("failed to capture %s: %w", url, err)
	}

	c.logger.Info("Capture complete.", zap.String("url", url), zap.Int("bytes", len(html)))
	return &Result{
		URL:        url,
		HTML:       html,
		CapturedAt: capturedAt,
		Viewport:   c.browser.Viewport,
	}, nil
}

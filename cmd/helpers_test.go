// cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/measurediff/internal/browser/capture"
	"github.com/xkilldash9x/measurediff/internal/config"
	"github.com/xkilldash9x/measurediff/internal/diagnostic"
	"github.com/xkilldash9x/measurediff/internal/store"
)

// newTestConfig returns the default configuration with JSON reports on stdout.
func newTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.SetReportFormat("json")
	cfg.SetReportOutput("")
	return cfg
}

// MockStore mocks runStore.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) EnsureSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStore) PersistReport(ctx context.Context, report *diagnostic.Report) error {
	return m.Called(ctx, report).Error(0)
}

func (m *MockStore) RecentRuns(ctx context.Context, source string, limit int) ([]store.RunSummary, error) {
	args := m.Called(ctx, source, limit)
	runs, _ := args.Get(0).([]store.RunSummary)
	return runs, args.Error(1)
}

// MockStoreProvider mocks storeProvider and counts cleanup calls.
type MockStoreProvider struct {
	mock.Mock
	Cleaned int
}

func (m *MockStoreProvider) Create(ctx context.Context, cfg config.Interface) (runStore, func(), error) {
	args := m.Called(ctx, cfg)
	if err := args.Error(1); err != nil {
		return nil, nil, err
	}
	return args.Get(0).(runStore), func() { m.Cleaned++ }, nil
}

// fakeCapturer serves a fixture instead of driving a browser.
type fakeCapturer struct {
	html string
	err  error
	urls []string
}

func (f *fakeCapturer) Capture(ctx context.Context, url string) (*capture.Result, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	return &capture.Result{URL: url, HTML: f.html}, nil
}

// withCapturer installs f as the capturer for the duration of the test.
func withCapturer(t *testing.T, f *fakeCapturer) {
	t.Helper()
	orig := newCapturer
	newCapturer = func(config.BrowserConfig, config.SnapshotConfig, *zap.Logger) pageCapturer { return f }
	t.Cleanup(func() { newCapturer = orig })
}

func readFixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(b)
}

// executeCommand runs a fresh command tree with args and returns its stdout.
func executeCommand(t *testing.T, provider storeProvider, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(provider)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "measurediff.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

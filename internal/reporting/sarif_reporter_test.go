// internal/reporting/sarif_reporter_test.go
package reporting_test

import (
	"sync"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xkilldash9x/measurediff/internal/diagnostic"
	"github.com/xkilldash9x/measurediff/internal/reporting"
	"github.com/xkilldash9x/measurediff/internal/reporting/sarif"
)

func setupSARIFTest(_ *testing.T) (*reporting.SARIFReporter, *MockWriteCloser) {
	mockWriter := newMockWriter()
	reporter := reporting.NewSARIFReporter(mockWriter, "v1.2.3-test")
	return reporter, mockWriter
}

func decodeSARIF(t *testing.T, w *MockWriteCloser) *sarif.Log {
	t.Helper()
	var log sarif.Log
	require.NoError(t, json.Unmarshal(w.Buffer.Bytes(), &log), "Output should be valid SARIF JSON")
	require.Len(t, log.Runs, 1)
	return &log
}

func resultsByRule(run *sarif.Run) map[string][]*sarif.Result {
	out := make(map[string][]*sarif.Result)
	for _, r := range run.Results {
		out[r.RuleID] = append(out[r.RuleID], r)
	}
	return out
}

func TestSARIFReporter_Initialization(t *testing.T) {
	reporter, writer := setupSARIFTest(t)
	require.NoError(t, reporter.Close())
	assert.True(t, writer.Closed)

	log := decodeSARIF(t, writer)
	assert.Equal(t, reporting.SARIFVersion, log.Version)
	assert.Equal(t, reporting.SARIFSchema, log.Schema)

	run := log.Runs[0]
	require.NotNil(t, run.Tool)
	require.NotNil(t, run.Tool.Driver)
	assert.Equal(t, reporting.ToolName, run.Tool.Driver.Name)
	assert.Equal(t, "v1.2.3-test", *run.Tool.Driver.Version)

	// Results encode as [] rather than null.
	require.NotNil(t, run.Results)
	assert.Empty(t, run.Results)
	assert.Contains(t, writer.Buffer.String(), `"results": []`)

	levels := make(map[string]sarif.Level)
	for _, rule := range run.Tool.Driver.Rules {
		require.NotNil(t, rule.DefaultConfiguration)
		levels[rule.ID] = rule.DefaultConfiguration.Level
	}
	assert.Equal(t, map[string]sarif.Level{
		reporting.RuleColumnOverrun:       sarif.LevelError,
		reporting.RuleHeightUnderEstimate: sarif.LevelWarning,
		reporting.RuleHeightOverEstimate:  sarif.LevelWarning,
		reporting.RuleEntryNotFound:       sarif.LevelNote,
		reporting.RuleAmbiguousMatch:      sarif.LevelNote,
	}, levels)
}

func TestSARIFReporter_Results(t *testing.T) {
	reporter, writer := setupSARIFTest(t)
	require.NoError(t, reporter.Write(sampleReport()))
	require.NoError(t, reporter.Close())

	run := decodeSARIF(t, writer).Runs[0]
	byRule := resultsByRule(run)

	// Accurate components and clean columns produce nothing.
	assert.Len(t, run.Results, 4)
	assert.Empty(t, byRule[reporting.RuleHeightOverEstimate])

	t.Run("under-estimate", func(t *testing.T) {
		require.Len(t, byRule[reporting.RuleHeightUnderEstimate], 1)
		res := byRule[reporting.RuleHeightUnderEstimate][0]
		assert.Equal(t, sarif.LevelWarning, res.Level)
		require.NotNil(t, res.RuleIndex)
		assert.Equal(t, reporting.RuleHeightUnderEstimate, run.Tool.Driver.Rules[*res.RuleIndex].ID)
		assert.Contains(t, *res.Message.Text, "spells:ul:4:4:8")
		assert.Contains(t, *res.Message.Text, "dominant contributor header (+25.00)")

		require.Len(t, res.Locations, 1)
		loc := res.Locations[0]
		assert.Equal(t, "file:///tmp/page.html", *loc.PhysicalLocation.ArtifactLocation.URI)
		require.Len(t, loc.LogicalLocations, 1)
		assert.Equal(t, "spells:ul:4:4:8", *loc.LogicalLocations[0].Name)
		assert.Equal(t, "component", *loc.LogicalLocations[0].Kind)

		props := *res.Properties
		assert.Equal(t, "run-123", props["run_id"])
		assert.Equal(t, "header", props["dominant_contributor"])
		assert.InDelta(t, 25.0, props["delta"], 1e-9)
	})

	t.Run("column overrun", func(t *testing.T) {
		require.Len(t, byRule[reporting.RuleColumnOverrun], 1)
		res := byRule[reporting.RuleColumnOverrun][0]
		assert.Equal(t, sarif.LevelError, res.Level)
		assert.Contains(t, *res.Message.Text, "Column 1 overruns by 27.00")
		assert.Contains(t, *res.Message.Text, "entry 1 is the first")
		assert.Equal(t, "column[1]", *res.Locations[0].LogicalLocations[0].Name)
	})

	t.Run("lookup failures", func(t *testing.T) {
		require.Len(t, byRule[reporting.RuleEntryNotFound], 1)
		assert.Equal(t, sarif.LevelNote, byRule[reporting.RuleEntryNotFound][0].Level)
		require.Len(t, byRule[reporting.RuleAmbiguousMatch], 1)
		amb := byRule[reporting.RuleAmbiguousMatch][0]
		assert.Equal(t, sarif.LevelNote, amb.Level)
		assert.Len(t, (*amb.Properties)["candidates"], 2)
	})

	t.Run("run metadata", func(t *testing.T) {
		require.NotNil(t, run.AutomationDetails)
		assert.Equal(t, "run-123", *run.AutomationDetails.GUID)
		require.Len(t, run.Invocations, 1)
		inv := run.Invocations[0]
		assert.True(t, inv.ExecutionSuccessful)
		assert.Equal(t, "2026-03-01T12:00:00Z", *inv.StartTimeUTC)
		require.Len(t, inv.ToolExecutionNotifications, 1)
		assert.Equal(t, diagnostic.WarnEntryNotFound, inv.ToolExecutionNotifications[0].Descriptor.ID)
	})
}

func TestSARIFReporter_NoSourceOmitsPhysicalLocation(t *testing.T) {
	reporter, writer := setupSARIFTest(t)
	report := sampleReport()
	report.Source = ""
	require.NoError(t, reporter.Write(report))
	require.NoError(t, reporter.Close())

	for _, res := range decodeSARIF(t, writer).Runs[0].Results {
		assert.Nil(t, res.Locations[0].PhysicalLocation)
		assert.NotEmpty(t, res.Locations[0].LogicalLocations)
	}
}

func TestSARIFReporter_ConcurrentWrites(t *testing.T) {
	defer goleak.VerifyNone(t)
	reporter, writer := setupSARIFTest(t)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, reporter.Write(sampleReport()))
		}()
	}
	wg.Wait()
	require.NoError(t, reporter.Close())

	run := decodeSARIF(t, writer).Runs[0]
	assert.Len(t, run.Results, writers*4)
	assert.Len(t, run.Invocations, writers)
}

func TestSARIFReporter_Errors(t *testing.T) {
	t.Run("encode failure still closes", func(t *testing.T) {
		reporter, writer := setupSARIFTest(t)
		writer.FailWrite = true
		err := reporter.Close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to encode SARIF output")
		assert.True(t, writer.Closed)
	})

	t.Run("close failure", func(t *testing.T) {
		reporter, writer := setupSARIFTest(t)
		writer.FailClose = true
		err := reporter.Close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to close output writer")
	})
}

package demo_test

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/alumet-dev/alumet/agent"
	"github.com/alumet-dev/alumet/output"
	csvoutput "github.com/alumet-dev/alumet/output/csv"
	"github.com/alumet-dev/alumet/pipeline"
	"github.com/alumet-dev/alumet/plugin/demo"
)

// TestSingleManualSourceWritesCSV builds an agent with only the demo
// plugin and a csv output, triggers the source manually once, and asserts
// the csv file ends up with exactly one record matching the demo source's
// fixed value.
func TestSingleManualSourceWritesCSV(t *testing.T) {
	logger, _ := test.NewNullLogger()
	fs := afero.NewMemMapFs()
	const outPath = "/out/measurements.csv"

	plugins := agent.NewPluginSet()
	plugins.Add(demo.Metadata(), true, nil)

	b := agent.NewBuilder(plugins, logger).AfterPluginsStart(func(pb *agent.PipelineBuilder) {
		pb.Constraints.AllowManualTrigger = true
		cfg := csvoutput.NewConfig()
		cfg.OutputPath = null.StringFrom(outPath)
		pb.AddOutput("test", "csv", func(ctx *agent.ElementBuildContext) (output.Blocking, error) {
			return csvoutput.New(fs, cfg, logger), nil
		})
	})

	running, err := b.BuildAndStart()
	require.NoError(t, err)

	require.NoError(t, running.Pipeline.Control().TriggerManually(pipeline.SelectSourcePlugin(demo.PluginName)))

	content := waitForContent(t, fs, outPath, time.Second)

	running.Pipeline.Control().Shutdown()
	require.NoError(t, running.WaitForShutdown(time.Second))

	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 2, "expected a header row and exactly one record")

	fields := strings.Split(lines[1], ";")
	require.Len(t, fields, 8)
	assert.Equal(t, "test_metric", fields[0])
	assert.Equal(t, "42", fields[2])
	assert.Equal(t, "local_machine", fields[3])
	assert.Equal(t, "", fields[4])
	assert.Equal(t, "local_machine", fields[5])
	assert.Equal(t, "", fields[6])
	assert.Equal(t, "", fields[7])
}

// waitForContent polls fs for path to contain at least one full record
// (header plus one line) within timeout, since the write happens
// asynchronously on the output task's own goroutine.
func waitForContent(t *testing.T, fs afero.Fs, path string, timeout time.Duration) string {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		data, err := afero.ReadFile(fs, path)
		if err == nil && strings.Count(string(data), "\n") >= 2 {
			return string(data)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("csv output never received the triggered measurement")
	return ""
}

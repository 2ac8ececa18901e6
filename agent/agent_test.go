package agent_test

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumet-dev/alumet/agent"
	"github.com/alumet-dev/alumet/config"
)

// TestEmptyPipelineShutdownLogsNoPlugin builds and starts an agent with
// zero registered plugins, shuts it down immediately, and asserts the
// startup log contains the exact required phrase and the shutdown
// succeeds within the timeout.
func TestEmptyPipelineShutdownLogsNoPlugin(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	b := agent.NewBuilder(agent.NewPluginSet(), logger)
	running, err := b.BuildAndStart()
	require.NoError(t, err)

	var sawMessage bool
	for _, entry := range hook.AllEntries() {
		if strings.Contains(entry.Message, "No plugin has been initialized") {
			sawMessage = true
		}
	}
	assert.True(t, sawMessage, "expected the startup log to mention that no plugin was initialized")

	running.Pipeline.Control().Shutdown()

	err = running.WaitForShutdown(time.Second)
	assert.NoError(t, err)
}

// fakePlugin is a minimal agent.Plugin test double whose Stop call is
// driven by a closure so tests can make one plugin misbehave.
type fakePlugin struct {
	name, version string
	stop          func() error
}

func (p *fakePlugin) Name() string    { return p.name }
func (p *fakePlugin) Version() string { return p.version }
func (p *fakePlugin) DefaultConfig() (*config.Table, error) {
	return config.EmptyTable(), nil
}
func (p *fakePlugin) Init(cfg *config.Table) error                       { return nil }
func (p *fakePlugin) Start(ctx *agent.AlumetStart) error                 { return nil }
func (p *fakePlugin) PrePipelineStart(ctx *agent.AlumetPreStart) error   { return nil }
func (p *fakePlugin) PostPipelineStart(ctx *agent.AlumetPostStart) error { return nil }
func (p *fakePlugin) Stop() error {
	if p.stop != nil {
		return p.stop()
	}
	return nil
}

func metadataFor(name string, stop func() error) agent.PluginMetadata {
	return agent.PluginMetadata{
		Name:    name,
		Version: "1.0.0",
		New:     func() agent.Plugin { return &fakePlugin{name: name, version: "1.0.0", stop: stop} },
	}
}

// TestPluginStopPanicIsolation registers three plugins where the middle
// one panics on Stop, and asserts the other two still stop and the
// aggregate error count reflects the panic.
func TestPluginStopPanicIsolation(t *testing.T) {
	logger, _ := test.NewNullLogger()

	var p1Stopped, p3Stopped bool
	plugins := agent.NewPluginSet()
	plugins.Add(metadataFor("p1", func() error { p1Stopped = true; return nil }), true, nil)
	plugins.Add(metadataFor("p2", func() error { panic("boom") }), true, nil)
	plugins.Add(metadataFor("p3", func() error { p3Stopped = true; return nil }), true, nil)

	b := agent.NewBuilder(plugins, logger)
	running, err := b.BuildAndStart()
	require.NoError(t, err)

	running.Pipeline.Control().Shutdown()

	err = running.WaitForShutdown(time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 error")
	assert.True(t, p1Stopped)
	assert.True(t, p3Stopped)
}

// TestAfterPluginsInitCallbackRuns verifies the single-shot callback hooks
// fire in the expected phase with the expected arguments.
func TestAfterPluginsInitCallbackRuns(t *testing.T) {
	logger, _ := test.NewNullLogger()

	plugins := agent.NewPluginSet()
	plugins.Add(metadataFor("only", nil), true, nil)

	var sawPlugins []agent.Plugin
	var sawBuilder *agent.PipelineBuilder
	var sawPipeline *agent.Pipeline

	b := agent.NewBuilder(plugins, logger).
		AfterPluginsInit(func(p []agent.Plugin) { sawPlugins = p }).
		AfterPluginsStart(func(pb *agent.PipelineBuilder) { sawBuilder = pb }).
		AfterOperationBegin(func(pl *agent.Pipeline) { sawPipeline = pl })

	running, err := b.BuildAndStart()
	require.NoError(t, err)
	defer func() {
		running.Pipeline.Control().Shutdown()
		_ = running.WaitForShutdown(time.Second)
	}()

	require.Len(t, sawPlugins, 1)
	assert.Equal(t, "only", sawPlugins[0].Name())
	assert.NotNil(t, sawBuilder)
	assert.Same(t, running.Pipeline, sawPipeline)
}

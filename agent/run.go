package agent

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// RunningAgent is the result of a successful Builder.BuildAndStart: a live
// pipeline plus the plugins that built it, kept around so they can be
// stopped in reverse order at shutdown.
type RunningAgent struct {
	Pipeline           *Pipeline
	InitializedPlugins []Plugin
	logger             logrus.FieldLogger
}

// WaitForShutdown waits for the pipeline to stop (see Pipeline.WaitForShutdown),
// then stops every plugin in reverse registration order. A panicking Stop is
// recovered so the remaining plugins still get a chance to release their
// resources; every error or panic is logged and counted, and the final
// error (if any) reports how many occurred.
func (a *RunningAgent) WaitForShutdown(timeout time.Duration) error {
	nErrors := 0

	if err := a.Pipeline.WaitForShutdown(timeout); err != nil {
		a.logger.WithError(err).Error("Error in the measurement pipeline")
		nErrors++
	}

	a.logger.Info("Stopping the plugins...")
	for i := len(a.InitializedPlugins) - 1; i >= 0; i-- {
		p := a.InitializedPlugins[i]
		name, version := p.Name(), p.Version()
		a.logger.Infof("Stopping plugin %s v%s", name, version)

		panicked, err := stopPluginRecovered(p)
		switch {
		case panicked != nil:
			a.logger.Errorf(
				"PANIC while stopping plugin %s v%s: %v. There is probably a bug in the plugin.",
				name, version, panicked,
			)
			nErrors++
		case err != nil:
			a.logger.WithError(err).Errorf("Error while stopping plugin %s v%s", name, version)
			nErrors++
		}
	}
	a.logger.Info("All plugins have stopped.")

	if nErrors == 0 {
		return nil
	}
	word := "error"
	if nErrors > 1 {
		word = "errors"
	}
	return fmt.Errorf("%d %s occurred during the shutdown phase", nErrors, word)
}

// stopPluginRecovered calls p.Stop() inside a recover() boundary so a
// panicking plugin cannot prevent the rest of the shutdown loop from
// running.
func stopPluginRecovered(p Plugin) (panicked interface{}, err error) {
	defer func() {
		panicked = recover()
	}()
	err = p.Stop()
	return
}

// printStats logs a summary of the plugins and pipeline elements right
// after the start phase, before any element has produced data.
func printStats(logger logrus.FieldLogger, pb *PipelineBuilder, enabled []Plugin, disabled []PluginInfo) {
	logger.Infof("%s initialized, %s disabled in config", pluralize(len(enabled), "plugin"), pluralize(len(disabled), "plugin"))
	for _, p := range enabled {
		logger.Infof("    - %s v%s", p.Name(), p.Version())
	}
	for _, d := range disabled {
		logger.Infof("    - %s v%s (disabled)", d.Metadata.Name, d.Metadata.Version)
	}

	metricList := pb.Registry.All()
	if len(metricList) == 0 {
		logger.Info("registered metrics: none")
	} else {
		logger.Infof("%s registered:", pluralize(len(metricList), "metric"))
		for _, m := range metricList {
			logger.Infof("    - %s: %s (%s)", m.Name, m.ValueType, m.Unit)
		}
	}

	stats := pb.Stats()
	logger.Infof(
		"pipeline elements: %s, %s, %s, %s",
		pluralize(stats.Sources, "source"),
		pluralize(stats.Transforms, "transform"),
		pluralize(stats.Outputs, "output"),
		pluralize(stats.MetricListeners, "metric listener"),
	)
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

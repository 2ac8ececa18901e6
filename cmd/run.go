package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/cobra"

	"github.com/alumet-dev/alumet/agent"
	"github.com/alumet-dev/alumet/config"
	"github.com/alumet-dev/alumet/errext"
	"github.com/alumet-dev/alumet/errext/exitcodes"
	"github.com/alumet-dev/alumet/output"
	csvoutput "github.com/alumet-dev/alumet/output/csv"
	"github.com/alumet-dev/alumet/output/influxdb"
	"github.com/alumet-dev/alumet/output/mongo"
	"github.com/alumet-dev/alumet/output/relay"
	"github.com/alumet-dev/alumet/pipeline"
	"github.com/alumet-dev/alumet/pipeline/trigger"
)

// pipelineFlags is the set of CLI flags shared by every command that builds
// and runs a measurement pipeline (run, exec).
type pipelineFlags struct {
	configPath      string
	noDefaultConfig bool
	plugins         []string
	configOverrides []string

	maxUpdateInterval     time.Duration
	sourceChannelSize     int
	normalWorkerThreads   int
	priorityWorkerThreads int

	outputFile string
	relayOut   string
	relayIn    string
}

func addPipelineFlagSet(cmd *cobra.Command, pf *pipelineFlags) {
	flags := cmd.Flags()
	flags.StringVar(&pf.configPath, "config", envOr("ALUMET_CONFIG", defaultConfigPath), "path to the agent's configuration file")
	flags.BoolVar(&pf.noDefaultConfig, "no-default-config", false, "fail instead of writing a default config if --config does not exist")
	flags.StringSliceVar(&pf.plugins, "plugins", nil, "comma-separated list of plugin names to enable; if set, every other plugin is disabled regardless of its config")
	flags.StringArrayVar(&pf.configOverrides, "config-override", nil, "a dotted-key TOML fragment overriding the loaded config, e.g. plugins.rapl.poll_interval='1s' (repeatable)")
	flags.DurationVar(&pf.maxUpdateInterval, "max-update-interval", 0, "clamp every source's periodic trigger interval to at most this duration (0 disables the clamp)")
	flags.IntVar(&pf.sourceChannelSize, "source-channel-size", 0, "override the pipeline-wide source channel size (0 keeps the config/default value)")
	flags.IntVar(&pf.normalWorkerThreads, "normal-worker-threads", 0, "informational: number of normal-priority worker threads, kept in the general config; no thread pool is sized from it (env ALUMET_NORMAL_THREADS)")
	flags.IntVar(&pf.priorityWorkerThreads, "priority-worker-threads", 0, "informational: number of priority worker threads, kept in the general config; no thread pool is sized from it (env ALUMET_PRIORITY_THREADS)")
	flags.StringVar(&pf.outputFile, "output-file", "", "shorthand for --config-override outputs.csv.output_path=<value>")
	flags.StringVar(&pf.relayOut, "relay-out", "", "shorthand for --config-override outputs.relay.address=<value>")
	flags.StringVar(&pf.relayIn, "relay-in", "", "shorthand for --config-override inputs.relay.address=<value>")
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// loadConfigDocument loads the config file at path, substituting env
// variables and deep-merging extra (when non-nil) over the parsed document.
// It takes no pipelineFlags, so --config-override and the convenience flags
// play no part unless the caller folds them into extra.
func loadConfigDocument(gs *globalState, path string, extra map[string]interface{}) (map[string]interface{}, error) {
	loader := config.NewLoader(gs.fs, path).SubstituteEnvVariables(true)
	if extra != nil {
		loader = loader.WithOverride(extra)
	}
	doc, err := loader.Load()
	if err != nil {
		return nil, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	return doc, nil
}

// resolveOverrides merges pf's --config-override lines with its
// convenience flags (--output-file/--relay-out/--relay-in), in that order,
// into one override table ready to hand to a config.Loader.
func resolveOverrides(pf *pipelineFlags) (map[string]interface{}, error) {
	override, err := parseConfigOverrides(pf.configOverrides)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	if pf.outputFile != "" {
		config.MergeOverride(override, outputConfigOverride("csv", "output_path", pf.outputFile))
	}
	if pf.relayOut != "" {
		config.MergeOverride(override, outputConfigOverride("relay", "address", pf.relayOut))
	}
	if pf.relayIn != "" {
		config.MergeOverride(override, inputConfigOverride("relay", "address", pf.relayIn))
	}
	return override, nil
}

// loadPipelineConfig loads pf.configPath, falling back to a generated
// default (written back to disk unless --no-default-config was given),
// and splits the result into the agent's own GeneralConfig and the
// per-plugin config sections.
func loadPipelineConfig(gs *globalState, pf *pipelineFlags) (GeneralConfig, map[string]config.PluginConfig, error) {
	override, err := resolveOverrides(pf)
	if err != nil {
		return GeneralConfig{}, nil, err
	}

	loader := config.NewLoader(gs.fs, pf.configPath).SubstituteEnvVariables(true).WithOverride(override)
	if !pf.noDefaultConfig {
		loader = loader.OrDefault(func() (string, error) {
			return defaultConfigText(availablePlugins())
		}, true)
	}

	doc, err := loader.Load()
	if err != nil {
		return GeneralConfig{}, nil, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	pluginConfigs, err := config.ExtractPluginsConfig(doc)
	if err != nil {
		return GeneralConfig{}, nil, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	general := defaultGeneralConfig()
	generalTable := config.Table(doc)
	if err := (&generalTable).Decode(&general); err != nil {
		return GeneralConfig{}, nil, errext.WithExitCodeIfNone(
			fmt.Errorf("decoding general configuration: %w", err), exitcodes.InvalidConfig)
	}

	// Environment variables overlay the file's settings; CLI flags below
	// take precedence over both.
	if err := envconfig.Process("", &general, func(key string) (string, bool) {
		v, ok := gs.envVars[key]
		return v, ok
	}); err != nil {
		return GeneralConfig{}, nil, errext.WithExitCodeIfNone(
			fmt.Errorf("applying environment overlay: %w", err), exitcodes.InvalidConfig)
	}

	if pf.maxUpdateInterval > 0 {
		general.MaxUpdateIntervalText = pf.maxUpdateInterval.String()
	}
	if pf.sourceChannelSize > 0 {
		general.SourceChannelSize = pf.sourceChannelSize
	}
	if pf.normalWorkerThreads > 0 {
		general.NormalWorkerThreads = pf.normalWorkerThreads
	}
	if pf.priorityWorkerThreads > 0 {
		general.PriorityWorkerThreads = pf.priorityWorkerThreads
	}

	return general, pluginConfigs, nil
}

// buildPluginSet resolves which of the binary's availablePlugins are
// enabled: a plugin is enabled if --plugins was not given and its config
// section (or absence of one) says so, or, if --plugins was given, only if
// it is named there.
func buildPluginSet(pf *pipelineFlags, pluginConfigs map[string]config.PluginConfig) *agent.PluginSet {
	var only map[string]bool
	if len(pf.plugins) > 0 {
		only = make(map[string]bool, len(pf.plugins))
		for _, name := range pf.plugins {
			only[name] = true
		}
	}

	set := agent.NewPluginSet()
	for _, md := range availablePlugins() {
		pc, hasConfig := pluginConfigs[md.Name]
		enabled := !hasConfig || pc.Enabled
		if only != nil {
			enabled = only[md.Name]
		}

		var tbl *config.Table
		if hasConfig {
			t := config.Table(pc.Table)
			tbl = &t
		}
		set.Add(md, enabled, tbl)
	}
	return set
}

// attachOutputsAndInputs wires the standalone output.Blocking sinks and
// relay.Input named in cfg.Outputs/cfg.Inputs directly into pb, bypassing
// the plugin lifecycle entirely: these sinks have no init/start/stop phases
// of their own to drive.
func attachOutputsAndInputs(gs *globalState, pb *agent.PipelineBuilder, cfg GeneralConfig) error {
	if cfg.Outputs.CSV != nil {
		c := csvoutput.NewConfig().Apply(*cfg.Outputs.CSV)
		pb.AddOutput("builtin", "csv", func(ctx *agent.ElementBuildContext) (output.Blocking, error) {
			return csvoutput.New(gs.fs, c, gs.logger), nil
		})
	}
	if cfg.Outputs.InfluxDB != nil {
		c := influxdb.NewConfig().Apply(*cfg.Outputs.InfluxDB)
		out, err := influxdb.New(c, gs.logger)
		if err != nil {
			return fmt.Errorf("building influxdb output: %w", err)
		}
		pb.AddOutput("builtin", "influxdb", func(ctx *agent.ElementBuildContext) (output.Blocking, error) {
			return out, nil
		})
	}
	if cfg.Outputs.Mongo != nil {
		c := mongo.NewConfig().Apply(*cfg.Outputs.Mongo)
		out, err := mongo.New(gs.ctx, c, gs.logger)
		if err != nil {
			return fmt.Errorf("building mongo output: %w", err)
		}
		pb.AddOutput("builtin", "mongo", func(ctx *agent.ElementBuildContext) (output.Blocking, error) {
			return out, nil
		})
	}
	if cfg.Outputs.Relay != nil {
		c := relay.NewConfig().Apply(*cfg.Outputs.Relay)
		out, err := relay.NewOutput(c, gs.logger)
		if err != nil {
			return fmt.Errorf("building relay output: %w", err)
		}
		pb.AddOutput("builtin", "relay", func(ctx *agent.ElementBuildContext) (output.Blocking, error) {
			return out, nil
		})
	}

	if cfg.Inputs.Relay != nil {
		c := relay.NewConfig().Apply(*cfg.Inputs.Relay)
		in, err := relay.NewInput(c, pb.Registry, gs.logger)
		if err != nil {
			return fmt.Errorf("building relay input: %w", err)
		}
		pb.AddSource("builtin", "relay", func(ctx *agent.ElementBuildContext) (pipeline.Source, trigger.Spec, error) {
			spec := trigger.Spec{
				Kind:         trigger.Manual,
				FlushRounds:  1,
				UpdateRounds: 1,
			}
			return in, spec, nil
		})
	}

	return nil
}

func getRunCmd(gs *globalState) *cobra.Command {
	pf := &pipelineFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the measurement pipeline until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(gs, pf)
		},
	}
	addPipelineFlagSet(cmd, pf)
	return cmd
}

func runRun(gs *globalState, pf *pipelineFlags) error {
	general, pluginConfigs, err := loadPipelineConfig(gs, pf)
	if err != nil {
		return err
	}

	maxUpdateInterval, err := general.MaxUpdateInterval()
	if err != nil {
		return errext.WithExitCodeIfNone(fmt.Errorf("max_update_interval: %w", err), exitcodes.InvalidConfig)
	}

	plugins := buildPluginSet(pf, pluginConfigs)

	b := agent.NewBuilder(plugins, gs.logger).AfterPluginsStart(func(pb *agent.PipelineBuilder) {
		pb.SourceChannelSize = general.SourceChannelSize
		pb.Constraints = trigger.Constraints{MaxUpdateInterval: maxUpdateInterval, AllowManualTrigger: false}
		if err := attachOutputsAndInputs(gs, pb, general); err != nil {
			gs.logger.WithError(err).Error("failed to attach a configured output or input")
		}
	})

	running, err := b.BuildAndStart()
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.PipelineBuildError)
	}

	stop := make(chan os.Signal, 1)
	gs.signalNotify(stop, os.Interrupt)
	defer gs.signalStop(stop)
	go func() {
		<-stop
		gs.logger.Info("received interrupt, shutting down")
		running.Pipeline.Control().Shutdown()
	}()

	if err := running.WaitForShutdown(0); err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.ExternalAbort)
	}
	return nil
}

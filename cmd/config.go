package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alumet-dev/alumet/agent"
	"github.com/alumet-dev/alumet/config"
	"github.com/alumet-dev/alumet/errext"
	"github.com/alumet-dev/alumet/errext/exitcodes"
	csvoutput "github.com/alumet-dev/alumet/output/csv"
	"github.com/alumet-dev/alumet/output/influxdb"
	"github.com/alumet-dev/alumet/output/mongo"
	"github.com/alumet-dev/alumet/output/relay"
	"github.com/alumet-dev/alumet/plugin/demo"
)

const defaultConfigPath = "alumet-config.toml"

// GeneralConfig is the agent's own top-level settings, everything in the
// loaded document outside of `[plugins.*]`. It is decoded from whatever
// remains of the parsed document after config.ExtractPluginsConfig has
// pulled the plugins table out.
type GeneralConfig struct {
	// MaxUpdateIntervalText is the TOML-facing form (a Go duration string
	// like "500ms"), kept as text because BurntSushi/toml decodes
	// time.Duration fields as bare nanosecond integers, which would make a
	// hand-edited config file (e.g. "max_update_interval = \"1s\"") fail to
	// parse. Call MaxUpdateInterval to get the parsed value.
	// envconfig tags let loadPipelineConfig overlay process environment
	// variables onto these fields after the TOML document is decoded,
	// mirroring the teacher's own cloudapi.Config/envconfig.Process layering.
	MaxUpdateIntervalText string `toml:"max_update_interval" envconfig:"ALUMET_MAX_UPDATE_INTERVAL"`
	SourceChannelSize     int    `toml:"source_channel_size" envconfig:"ALUMET_SOURCE_CHANNEL_SIZE"`
	NormalWorkerThreads   int    `toml:"normal_worker_threads" envconfig:"ALUMET_NORMAL_THREADS"`
	PriorityWorkerThreads int    `toml:"priority_worker_threads" envconfig:"ALUMET_PRIORITY_THREADS"`

	Outputs OutputsConfig `toml:"outputs"`
	Inputs  InputsConfig  `toml:"inputs"`
}

// MaxUpdateInterval parses MaxUpdateIntervalText, treating an empty string
// as "unconstrained" (zero duration).
func (g GeneralConfig) MaxUpdateInterval() (time.Duration, error) {
	if g.MaxUpdateIntervalText == "" {
		return 0, nil
	}
	return time.ParseDuration(g.MaxUpdateIntervalText)
}

// OutputsConfig lists the standalone output.Blocking sinks the CLI can
// attach directly, one optional sub-table per sink kind. Unlike a plugin's
// `[plugins.<name>]` section, these sinks have no lifecycle of their own
// to drive (init/start/stop): they are plain constructors, so they get a
// plain config section instead of a Plugin wrapper.
type OutputsConfig struct {
	CSV      *csvoutput.Config `toml:"csv"`
	InfluxDB *influxdb.Config  `toml:"influxdb"`
	Mongo    *mongo.Config     `toml:"mongo"`
	Relay    *relay.Config     `toml:"relay"`
}

// InputsConfig mirrors OutputsConfig for standalone pipeline.Source inputs;
// currently only the relay transport's receiving side.
type InputsConfig struct {
	Relay *relay.Config `toml:"relay"`
}

func defaultGeneralConfig() GeneralConfig {
	return GeneralConfig{
		SourceChannelSize:     256,
		NormalWorkerThreads:   0,
		PriorityWorkerThreads: 0,
	}
}

// availablePlugins lists every plugin this build of alumet-agent can load.
// Adding a new plugin package to the binary means adding its Metadata here.
func availablePlugins() []agent.PluginMetadata {
	return []agent.PluginMetadata{
		demo.Metadata(),
	}
}

// defaultConfigText renders a full `alumet-config.toml`: the agent's own
// GeneralConfig defaults, plus one `[plugins.<name>]` sub-table per
// available plugin, taken from that plugin's own DefaultConfig.
func defaultConfigText(available []agent.PluginMetadata) (string, error) {
	generalText, err := config.MarshalDefault(defaultGeneralConfig())
	if err != nil {
		return "", fmt.Errorf("marshaling general config defaults: %w", err)
	}
	generalTable, err := config.ParseTable(generalText)
	if err != nil {
		return "", fmt.Errorf("re-parsing general config defaults: %w", err)
	}
	doc := map[string]interface{}(*generalTable)

	plugins := make(map[string]interface{}, len(available))
	for _, md := range available {
		p := md.New()
		tbl, err := p.DefaultConfig()
		if err != nil {
			return "", fmt.Errorf("default config for plugin %s: %w", md.Name, err)
		}
		section := map[string]interface{}(*tbl)
		section["enabled"] = true
		plugins[md.Name] = section
	}
	doc["plugins"] = plugins

	return marshalTable(doc)
}

func getConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "inspect or generate the agent configuration",
	}
}

func getConfigRegenCmd(gs *globalState) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "regen",
		Short: "write a configuration file populated with every available plugin's defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigRegen(gs, outPath)
		},
	}
	cmd.Flags().StringVar(&outPath, "config", defaultConfigPath, "path to write the generated configuration to")
	return cmd
}

func runConfigRegen(gs *globalState, outPath string) error {
	text, err := defaultConfigText(availablePlugins())
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	if err := writeFile(gs, outPath, text); err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	gs.logger.Infof("wrote default configuration to %s", outPath)
	return nil
}

func writeFile(gs *globalState, path, content string) error {
	f, err := gs.fs.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %q: %w", path, err)
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}

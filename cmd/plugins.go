package cmd

import (
	"github.com/spf13/cobra"

	"github.com/alumet-dev/alumet/config"
)

func getPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "inspect the plugins compiled into this binary",
	}
}

func getPluginsListCmd(gs *globalState) *cobra.Command {
	var withStatus bool
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "list available plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginsList(gs, withStatus, configPath)
		},
	}
	cmd.Flags().BoolVar(&withStatus, "status", false, "also resolve and print each plugin's enabled/disabled status from the config file")
	cmd.Flags().StringVar(&configPath, "config", envOr("ALUMET_CONFIG", defaultConfigPath), "path to the agent's configuration file")
	return cmd
}

func runPluginsList(gs *globalState, withStatus bool, configPath string) error {
	available := availablePlugins()

	if !withStatus {
		for _, md := range available {
			fprintf(gs.stdOut, "%s v%s\n", md.Name, md.Version)
		}
		return nil
	}

	enabledByName, err := loadEnabledPlugins(gs, configPath)
	if err != nil {
		return err
	}
	for _, md := range available {
		status := "disabled"
		if enabled, known := enabledByName[md.Name]; known && enabled {
			status = "enabled"
		} else if !known {
			status = "enabled (not present in config)"
		}
		fprintf(gs.stdOut, "%s v%s: %s\n", md.Name, md.Version, status)
	}
	return nil
}

// loadEnabledPlugins loads the configured file (if any) and resolves which
// of its `[plugins.*]` sections are enabled, without building a pipeline.
func loadEnabledPlugins(gs *globalState, configPath string) (map[string]bool, error) {
	doc, err := loadConfigDocument(gs, configPath, nil)
	if err != nil {
		return nil, err
	}
	plugins, err := config.ExtractPluginsConfig(doc)
	if err != nil {
		return nil, err
	}
	result := make(map[string]bool, len(plugins))
	for name, pc := range plugins {
		result[name] = pc.Enabled
	}
	return result, nil
}

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/alumet-dev/alumet/agent"
	"github.com/alumet-dev/alumet/errext"
	"github.com/alumet-dev/alumet/errext/exitcodes"
	"github.com/alumet-dev/alumet/pipeline"
	"github.com/alumet-dev/alumet/pipeline/trigger"
)

// execGraceTimeout bounds how long exec waits for the pipeline to flush and
// shut down after the child process exits, before reporting a timeout.
const execGraceTimeout = 10 * time.Second

func getExecCmd(gs *globalState) *cobra.Command {
	pf := &pipelineFlags{}
	cmd := &cobra.Command{
		Use:   "exec -- <program> [args...]",
		Short: "run the pipeline, spawn a child process, and trigger every source once when it exits",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(gs, pf, args)
		},
	}
	addPipelineFlagSet(cmd, pf)
	return cmd
}

func runExec(gs *globalState, pf *pipelineFlags, args []string) error {
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
		// exec always allows manual triggering: it is the only way the
		// child-process-exit signal below can reach every source.
		pb.Constraints = trigger.Constraints{MaxUpdateInterval: maxUpdateInterval, AllowManualTrigger: true}
		if err := attachOutputsAndInputs(gs, pb, general); err != nil {
			gs.logger.WithError(err).Error("failed to attach a configured output or input")
		}
	})

	running, err := b.BuildAndStart()
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.PipelineBuildError)
	}

	child := exec.Command(args[0], args[1:]...)
	child.Stdin = gs.stdIn
	child.Stdout = gs.stdOut
	child.Stderr = gs.stdErr

	gs.logger.Infof("running %s", child.String())
	childErr := child.Run()
	if childErr != nil {
		gs.logger.WithError(childErr).Warn("child process exited with an error")
	} else {
		gs.logger.Info("child process exited")
	}

	if err := running.Pipeline.Control().TriggerManually(pipeline.SelectAllSources()); err != nil {
		gs.logger.WithError(err).Warn("could not trigger sources after child process exit")
	}
	running.Pipeline.Control().Shutdown()

	if err := running.WaitForShutdown(execGraceTimeout); err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.GoalShutdownTimeout)
	}

	if childErr != nil {
		var exitErr *exec.ExitError
		if errors.As(childErr, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		return errext.WithExitCodeIfNone(childErr, exitcodes.Unknown)
	}
	return nil
}

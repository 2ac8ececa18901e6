/*
 *
 * k6 - a next-generation load testing tool
 * Copyright (C) 2016 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package cmd implements the alumet-agent command-line interface: global
// process state, logging setup and the run/exec/config/plugins subcommands.
package cmd

import (
	"context"
	"errors"
	"io"
	"io/ioutil"
	stdlog "log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/alumet-dev/alumet/errext"
	"github.com/alumet-dev/alumet/log"
)

const waitDeferredLoggerTimeout = time.Second * 5

// globalFlags contains global config values that apply to every alumet-agent subcommand.
type globalFlags struct {
	quiet     bool
	noColor   bool
	logOutput string
	logFormat string
	verbose   bool
}

// globalState contains globalFlags and accessors for process-external state
// (CLI arguments, env vars, standard input/output/error), grouped here so
// the rest of the codebase never touches the os package directly and so
// tests can build a fully simulated globalState instead.
type globalState struct {
	ctx context.Context

	fs      afero.Fs
	args    []string
	envVars map[string]string

	defaultFlags, flags globalFlags

	outMutex       *sync.Mutex
	stdOut, stdErr *consoleWriter
	stdIn          io.Reader

	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)

	logger         *logrus.Logger
	fallbackLogger logrus.FieldLogger
}

func newGlobalState(ctx context.Context) *globalState {
	isDumbTerm := os.Getenv("TERM") == "dumb"
	stdoutTTY := !isDumbTerm && (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
	stderrTTY := !isDumbTerm && (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))
	outMutex := &sync.Mutex{}
	stdOut := &consoleWriter{colorable.NewColorable(os.Stdout), stdoutTTY, outMutex, nil}
	stdErr := &consoleWriter{colorable.NewColorable(os.Stderr), stderrTTY, outMutex, nil}

	envVars := buildEnvMap(os.Environ())
	_, noColorsSet := envVars["NO_COLOR"]

	defaultFlags := getDefaultFlags()
	flags := getFlags(defaultFlags, envVars)

	logger := &logrus.Logger{
		Out: stdErr,
		Formatter: &logrus.TextFormatter{
			ForceColors:   stderrTTY && !flags.noColor,
			DisableColors: !stderrTTY || noColorsSet || flags.noColor,
		},
		Hooks: make(logrus.LevelHooks),
		Level: logrus.InfoLevel,
	}

	return &globalState{
		ctx:          ctx,
		fs:           afero.NewOsFs(),
		args:         append(make([]string, 0, len(os.Args)), os.Args...),
		envVars:      envVars,
		defaultFlags: defaultFlags,
		flags:        flags,
		outMutex:     outMutex,
		stdOut:       stdOut,
		stdErr:       stdErr,
		stdIn:        os.Stdin,
		signalNotify: signal.Notify,
		signalStop:   signal.Stop,
		logger:       logger,
		fallbackLogger: &logrus.Logger{
			Out:       stdErr,
			Formatter: new(logrus.TextFormatter),
			Hooks:     make(logrus.LevelHooks),
			Level:     logrus.InfoLevel,
		},
	}
}

func getDefaultFlags() globalFlags {
	return globalFlags{logOutput: "stderr"}
}

func getFlags(defaultFlags globalFlags, env map[string]string) globalFlags {
	result := defaultFlags
	if val, ok := env["ALUMET_LOG_OUTPUT"]; ok {
		result.logOutput = val
	}
	if val, ok := env["ALUMET_LOG_FORMAT"]; ok {
		result.logFormat = val
	}
	if _, ok := env["NO_COLOR"]; ok {
		result.noColor = true
	}
	return result
}

func parseEnvKeyValue(kv string) (string, string) {
	if idx := strings.IndexRune(kv, '='); idx != -1 {
		return kv[:idx], kv[idx+1:]
	}
	return kv, ""
}

func buildEnvMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v := parseEnvKeyValue(kv)
		env[k] = v
	}
	return env
}

// rootCommand keeps everything needed for the main/root alumet-agent command.
type rootCommand struct {
	globalState *globalState

	cmd              *cobra.Command
	loggerStopped    <-chan struct{}
	loggerIsDeferred bool
}

func newRootCommand(gs *globalState) *rootCommand {
	c := &rootCommand{globalState: gs}

	rootCmd := &cobra.Command{
		Use:               "alumet-agent",
		Short:             "a modular measurement agent",
		Long:              "alumet-agent samples energy and performance counters and emits them to configurable sinks.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
	}

	rootCmd.PersistentFlags().AddFlagSet(rootCmdPersistentFlagSet(gs))
	rootCmd.SetArgs(gs.args[1:])
	rootCmd.SetOut(gs.stdOut)
	rootCmd.SetErr(gs.stdErr)
	rootCmd.SetIn(gs.stdIn)

	configCmd := getConfigCmd()
	configCmd.AddCommand(getConfigRegenCmd(gs))

	pluginsCmd := getPluginsCmd()
	pluginsCmd.AddCommand(getPluginsListCmd(gs))

	rootCmd.AddCommand(getRunCmd(gs), getExecCmd(gs), configCmd, pluginsCmd)

	c.cmd = rootCmd
	return c
}

func (c *rootCommand) persistentPreRunE(cmd *cobra.Command, args []string) error {
	var err error
	c.loggerStopped, err = c.setupLoggers()
	if err != nil {
		return err
	}
	select {
	case <-c.loggerStopped:
	default:
		c.loggerIsDeferred = true
	}

	stdlog.SetOutput(c.globalState.logger.Writer())
	c.globalState.logger.Debug("alumet-agent starting up")
	return nil
}

// Execute adds all child commands to the root command and runs it. It is
// called once by main.main().
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gs := newGlobalState(ctx)
	root := newRootCommand(gs)

	if err := root.cmd.Execute(); err != nil {
		exitCode := -1
		var ecerr errext.HasExitCode
		if errors.As(err, &ecerr) {
			exitCode = int(ecerr.ExitCode())
		}

		errorText, fields := errext.Format(err)
		gs.logger.WithFields(fields).Error(errorText)
		if root.loggerIsDeferred {
			gs.fallbackLogger.WithFields(fields).Error(errorText)
			cancel()
			root.waitDeferredLogger()
		}

		os.Exit(exitCode) //nolint:gocritic
	}

	cancel()
	root.waitDeferredLogger()
}

func (c *rootCommand) waitDeferredLogger() {
	if c.loggerIsDeferred {
		select {
		case <-c.loggerStopped:
		case <-time.After(waitDeferredLoggerTimeout):
			c.globalState.fallbackLogger.Errorf("deferred logger didn't stop in %s", waitDeferredLoggerTimeout)
		}
	}
}

func rootCmdPersistentFlagSet(gs *globalState) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)

	flags.StringVar(&gs.flags.logOutput, "log-output", gs.flags.logOutput,
		"change the output for alumet-agent logs, possible values are stderr,stdout,none,file=./path.log")
	flags.Lookup("log-output").DefValue = gs.defaultFlags.logOutput

	flags.StringVar(&gs.flags.logFormat, "log-format", gs.flags.logFormat, "log output format: text,json,raw")
	flags.Lookup("log-format").DefValue = gs.defaultFlags.logFormat

	flags.BoolVar(&gs.flags.noColor, "no-color", gs.flags.noColor, "disable colored output")
	flags.BoolVarP(&gs.flags.verbose, "verbose", "v", gs.defaultFlags.verbose, "enable debug logging")
	flags.BoolVarP(&gs.flags.quiet, "quiet", "q", gs.defaultFlags.quiet, "only log warnings and errors, which hides the startup/shutdown summaries (ignored with --verbose)")

	return flags
}

// RawFormatter prints only the log message, with no level/timestamp prefix.
type RawFormatter struct{}

func (f RawFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}

// setupLoggers configures c.globalState.logger's output and format from
// c.globalState.flags. The returned channel is closed once the logger has
// finished flushing after gs.ctx is cancelled; for every log-output value
// except "file", it is already closed (nothing to flush asynchronously).
func (c *rootCommand) setupLoggers() (<-chan struct{}, error) {
	ch := make(chan struct{})
	close(ch)

	if c.globalState.flags.verbose {
		c.globalState.logger.SetLevel(logrus.DebugLevel)
	} else if c.globalState.flags.quiet {
		c.globalState.logger.SetLevel(logrus.WarnLevel)
	}

	loggerForceColors := false
	switch line := c.globalState.flags.logOutput; {
	case line == "stderr":
		loggerForceColors = !c.globalState.flags.noColor && c.globalState.stdErr.IsTTY
		c.globalState.logger.SetOutput(c.globalState.stdErr)
	case line == "stdout":
		loggerForceColors = !c.globalState.flags.noColor && c.globalState.stdOut.IsTTY
		c.globalState.logger.SetOutput(c.globalState.stdOut)
	case line == "none":
		c.globalState.logger.SetOutput(ioutil.Discard)
	case strings.HasPrefix(line, "file"):
		ch = make(chan struct{})
		hook, err := log.FileHookFromConfigLine(c.globalState.ctx, c.globalState.fs, c.globalState.fallbackLogger, line, ch)
		if err != nil {
			return nil, err
		}
		c.globalState.logger.AddHook(hook)
		c.globalState.logger.SetOutput(ioutil.Discard)
	default:
		return nil, errors.New("unsupported log output '" + line + "'")
	}

	switch c.globalState.flags.logFormat {
	case "raw":
		c.globalState.logger.SetFormatter(&RawFormatter{})
	case "json":
		c.globalState.logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		c.globalState.logger.SetFormatter(&logrus.TextFormatter{
			ForceColors: loggerForceColors, DisableColors: c.globalState.flags.noColor,
		})
	}
	return ch, nil
}

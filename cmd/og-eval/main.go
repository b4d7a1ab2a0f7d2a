// Package main is the og-eval command. It asks a planning model for plans of a household activity,
// executes them in simulation and prints a JSON summary of how many goals were reached.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"google.golang.org/grpc"

	"github.com/makolon/og-vlm/config"
	"github.com/makolon/og-vlm/eval"
	_ "github.com/makolon/og-vlm/executor/register"
	"github.com/makolon/og-vlm/logging"
	_ "github.com/makolon/og-vlm/planner/register"
	"github.com/makolon/og-vlm/sim/bridge"
	"github.com/makolon/og-vlm/sim/fake"
)

const (
	// Flags.
	flagConfig      = "config"
	flagEnvFile     = "env-file"
	flagDebug       = "debug"
	flagLogFile     = "log-file"
	flagActivity    = "activity"
	flagProvider    = "provider"
	flagModel       = "model"
	flagEpisodes    = "episodes"
	flagRobot       = "robot"
	flagExec        = "exec"
	flagTemperature = "temperature"
	flagSim         = "sim"
	flagSimAddress  = "sim-address"
	flagSeed        = "seed"
	flagNotes       = "notes"
	flagMaxCatalog  = "max-catalog"
	flagThreshold   = "threshold"
	flagPlanFailure = "plan-failure"
	flagPlanRetries = "plan-retries"
	flagTimeout     = "planner-timeout"
	flagPlannerRPM  = "planner-rpm"
	flagMetricsAddr = "metrics-addr"
	flagAddress     = "address"
	flagBackend     = "backend"
)

func main() {
	logger := logging.NewLogger("og-eval")
	if err := newApp(logger).Run(os.Args); err != nil {
		logger.Error(err)
		goutils.UncheckedError(logger.Sync())
		os.Exit(1)
	}
}

func newApp(logger logging.Logger) *cli.App {
	var logFile *logging.FileAppender
	return &cli.App{
		Name:  "og-eval",
		Usage: "evaluate LLM-generated household plans in simulation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load run configuration from JSON `FILE`; flags override it",
			},
			&cli.StringSliceFlag{
				Name:  flagEnvFile,
				Usage: "load API keys from dotenv `FILE`s (default .env)",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to the rotated `FILE`",
			},
			&cli.StringFlag{Name: flagActivity, Usage: "activity to evaluate (required)"},
			&cli.StringFlag{Name: flagProvider, Usage: "planning provider, openai or gemini (required)"},
			&cli.StringFlag{Name: flagModel, Usage: "planning model (required)"},
			&cli.IntFlag{Name: flagEpisodes, Value: config.DefaultEpisodes, Usage: "number of episodes"},
			&cli.StringFlag{Name: flagRobot, Value: config.DefaultRobot, Usage: "robot type"},
			&cli.StringFlag{Name: flagExec, Value: "primitives", Usage: "executor, primitives or teleport"},
			&cli.Float64Flag{Name: flagTemperature, Value: config.DefaultTemperature, Usage: "sampling temperature"},
			&cli.StringFlag{Name: flagSim, Value: config.DefaultSimBackend, Usage: "simulation backend, bridge or fake"},
			&cli.StringFlag{Name: flagSimAddress, Value: config.DefaultSimAddress, Usage: "simulation bridge address"},
			&cli.Int64Flag{Name: flagSeed, Usage: "simulation seed"},
			&cli.StringFlag{Name: flagNotes, Usage: "notes passed to the planner"},
			&cli.IntFlag{Name: flagMaxCatalog, Usage: "maximum number of object names shown to the planner"},
			&cli.Float64Flag{Name: flagThreshold, Value: config.DefaultSuccessThreshold, Usage: "goal fraction counted as success"},
			&cli.StringFlag{Name: flagPlanFailure, Value: config.PlanFailureSkip, Usage: "on planning failure, skip or abort"},
			&cli.IntFlag{Name: flagPlanRetries, Value: config.DefaultPlanRetries, Usage: "planning retries per episode"},
			&cli.DurationFlag{Name: flagTimeout, Usage: "timeout of one planning request"},
			&cli.Float64Flag{Name: flagPlannerRPM, Usage: "at most this many planning requests per minute"},
			&cli.StringFlag{Name: flagMetricsAddr, Usage: "serve Prometheus metrics on `ADDRESS` during the run"},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger.SetLevel(logging.DEBUG)
			}
			if path := c.String(flagLogFile); path != "" {
				logFile = logging.NewFileAppender(path)
				logger.AddAppender(logFile)
			}
			return config.LoadDotEnv(c.StringSlice(flagEnvFile)...)
		},
		After: func(c *cli.Context) error {
			goutils.UncheckedError(logger.Sync())
			if logFile != nil {
				return logFile.Close()
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			return runEval(c, logger)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve-sim",
				Usage: "serve a local simulation backend over the bridge protocol",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagAddress, Value: config.DefaultSimAddress, Usage: "listen `ADDRESS`"},
					&cli.StringFlag{Name: flagBackend, Value: fake.BackendName, Usage: "backend serving the environments"},
				},
				Action: func(c *cli.Context) error {
					return serveSim(c, logger)
				},
			},
			{
				Name:  "activities",
				Usage: "list the activities of the fake simulation",
				Action: func(c *cli.Context) error {
					for _, name := range fake.Activities() {
						fmt.Fprintln(c.App.Writer, name)
					}
					return nil
				},
			},
		},
	}
}

// loadConfig layers the flags the user set over the configuration file over the defaults.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
	}

	setString := func(flag string, dst *string) {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}
	setInt := func(flag string, dst *int) {
		if c.IsSet(flag) {
			*dst = c.Int(flag)
		}
	}
	setFloat := func(flag string, dst *float64) {
		if c.IsSet(flag) {
			*dst = c.Float64(flag)
		}
	}
	setString(flagActivity, &cfg.Activity)
	setString(flagProvider, &cfg.Provider)
	setString(flagModel, &cfg.Model)
	setInt(flagEpisodes, &cfg.Episodes)
	setString(flagRobot, &cfg.Robot)
	setString(flagExec, &cfg.Executor)
	setFloat(flagTemperature, &cfg.Temperature)
	setString(flagSim, &cfg.Sim.Backend)
	setString(flagSimAddress, &cfg.Sim.Address)
	setString(flagNotes, &cfg.Notes)
	setInt(flagMaxCatalog, &cfg.MaxCatalog)
	setFloat(flagThreshold, &cfg.SuccessThreshold)
	setFloat(flagPlannerRPM, &cfg.PlannerRPM)
	setString(flagPlanFailure, &cfg.PlanFailure)
	setInt(flagPlanRetries, &cfg.PlanRetries)
	setString(flagMetricsAddr, &cfg.MetricsAddr)
	if c.IsSet(flagSeed) {
		cfg.Sim.Seed = c.Int64(flagSeed)
	}
	if c.IsSet(flagTimeout) {
		cfg.PlannerTimeout = config.Duration(c.Duration(flagTimeout))
	}
	return cfg, cfg.Validate()
}

func runEval(c *cli.Context, logger logging.Logger) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := eval.NewMetrics()
	if cfg.MetricsAddr != "" {
		_, shutdown, err := metrics.Serve(cfg.MetricsAddr, logger.Sublogger("metrics"))
		if err != nil {
			return err
		}
		defer goutils.UncheckedErrorFunc(func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return shutdown(shutdownCtx)
		})
	}

	opts := []eval.Option{eval.WithMetrics(metrics)}
	if bar := startProgress(c, cfg.Episodes); bar != nil {
		defer func() {
			_, err := bar.Stop()
			goutils.UncheckedError(err)
		}()
		opts = append(opts, eval.WithProgress(func(done, total int) {
			bar.Increment()
		}))
	}

	summary, err := eval.Evaluate(ctx, cfg, logger, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.ErrWriter, summary.Table())
	verdict := fmt.Sprintf("%d/%d episodes reached the goal with the %s executor",
		summary.Successes, summary.Episodes, summary.Executor)
	if summary.Successes == summary.Episodes {
		fmt.Fprintln(c.App.ErrWriter, pterm.Success.Sprint(verdict))
	} else {
		fmt.Fprintln(c.App.ErrWriter, pterm.Warning.Sprint(verdict))
	}
	return summary.WriteJSON(c.App.Writer)
}

// startProgress shows an episode progress bar when stderr is a terminal.
func startProgress(c *cli.Context, episodes int) *pterm.ProgressbarPrinter {
	f, ok := c.App.ErrWriter.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	bar, err := pterm.DefaultProgressbar.
		WithTotal(episodes).
		WithTitle("episodes").
		WithWriter(f).
		Start()
	if err != nil {
		return nil
	}
	return bar
}

func serveSim(c *cli.Context, logger logging.Logger) error {
	listener, err := net.Listen("tcp", c.String(flagAddress))
	if err != nil {
		return errors.Wrapf(err, "listening on %s", c.String(flagAddress))
	}
	gServer := grpc.NewServer()
	bridge.NewServer(c.String(flagBackend), logger.Sublogger("bridge")).Register(gServer)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("serving simulation", "address", listener.Addr().String(), "backend", c.String(flagBackend))
		return gServer.Serve(listener)
	})
	g.Go(func() error {
		<-ctx.Done()
		gServer.GracefulStop()
		return nil
	})
	return g.Wait()
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Ayoub-k/DS-RedditEndToEnd/internal/pipeline"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/logger"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/trigger"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(pipeline.ExitCode(err))
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("REDDITETL")
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "redditetl",
		Short:         "Weekly Reddit extract, transform and load pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `redditetl pulls the top posts of a subreddit and their comments, stores
the raw and cleaned artifacts in an object store and appends posts, comments
and a joined fact table to a warehouse.

Each step can run on its own; "run" executes all three in order and
"schedule" does so on the configured cron schedule.`,
	}
	root.PersistentFlags().String("config", "config/config.yaml", "Path to the YAML configuration file")
	root.PersistentFlags().String("log-level", "", "Override logging.level (debug, info, warn, error)")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("redditetl v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	for _, step := range pipeline.AllSteps {
		root.AddCommand(newStepCmd(v, step))
	}
	root.AddCommand(newRunCmd(v), newScheduleCmd(v), newTriggerCmd(v))
	return root
}

func newStepCmd(v *viper.Viper, step string) *cobra.Command {
	short := map[string]string{
		pipeline.StepExtract:   "Fetch this week's top posts and comments into the raw zone",
		pipeline.StepTransform: "Clean this week's raw artifacts into the transformed zone",
		pipeline.StepLoad:      "Append this week's transformed artifacts and the fact table to the warehouse",
	}[step]

	return &cobra.Command{
		Use:   step,
		Short: short,
		Long: short + `.

Exits 3 when the input artifacts of the current week never showed up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if runID := os.Getenv(pipeline.EnvRunID); runID != "" {
				ctx = logger.WithRunID(ctx, runID)
			}
			steps, err := a.steps(ctx, step == pipeline.StepExtract)
			if err != nil {
				return err
			}
			err = a.metrics.TrackStep(ctx, a.tracer, step, a.logger, func(ctx context.Context) error {
				return steps.Run(ctx, step)
			})
			a.pushMetrics(ctx)
			return err
		},
	}
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	var inProcess bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run extract, transform and load once",
		Long: `Run the three steps in order with the configured retry budget.

By default every step runs as a child process of this binary so its memory
and connections are released before the next step starts. --in-process runs
them inside this process instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			orch, err := a.orchestrator(cmd.Context(), inProcess)
			if err != nil {
				return err
			}
			runID, err := orch.RunOnce(cmd.Context())
			a.pushMetrics(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info("run complete", zap.String("run_id", runID))
			return nil
		},
	}
	cmd.Flags().BoolVar(&inProcess, "in-process", false, "Run the steps inside this process")
	return cmd
}

func newScheduleCmd(v *viper.Viper) *cobra.Command {
	var inProcess bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on orchestrator.schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			orch, err := a.orchestrator(cmd.Context(), inProcess)
			if err != nil {
				return err
			}
			return orch.Schedule(cmd.Context(), a.cfg.Orchestrator.Schedule)
		},
	}
	cmd.Flags().BoolVar(&inProcess, "in-process", false, "Run the steps inside this process")
	return cmd
}

func newTriggerCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Request runs over Kafka or serve such requests",
	}

	var step string
	publish := &cobra.Command{
		Use:   "publish",
		Short: "Publish a run request to trigger.topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			publisher, err := trigger.NewPublisher(a.cfg.Trigger, a.logger)
			if err != nil {
				return err
			}
			defer publisher.Close()

			source, _ := os.Hostname()
			req := trigger.Request{
				RunID:       uuid.NewString(),
				Step:        step,
				Source:      source,
				RequestedAt: time.Now().UTC(),
			}
			if err := publisher.Publish(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Println(req.RunID)
			return nil
		},
	}
	publish.Flags().StringVar(&step, "step", "", "Run only this step (default: the whole pipeline)")

	var inProcess bool
	listen := &cobra.Command{
		Use:   "listen",
		Short: "Consume run requests from trigger.topic and execute them",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			orch, err := a.orchestrator(cmd.Context(), inProcess)
			if err != nil {
				return err
			}
			listener, err := trigger.NewListener(a.cfg.Trigger, func(ctx context.Context, req trigger.Request) error {
				steps := pipeline.AllSteps
				if req.Step != "" {
					steps = []string{req.Step}
				}
				err := orch.Run(ctx, req.RunID, steps...)
				a.pushMetrics(ctx)
				return err
			}, a.logger)
			if err != nil {
				return err
			}
			defer listener.Close()
			return listener.Run(cmd.Context())
		},
	}
	listen.Flags().BoolVar(&inProcess, "in-process", false, "Run the steps inside this process")

	cmd.AddCommand(publish, listen)
	return cmd
}

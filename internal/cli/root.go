package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/cache"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/config"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/telemetry"
	"github.com/shadowscope/shadow-ai-assessor/internal/service"
)

// Env is what every command operates on.
type Env struct {
	Services *service.Services
	Close    func() error
}

// EnvFactory builds the command environment from the loaded config.
type EnvFactory func(ctx context.Context, configPath string) (*Env, error)

type app struct {
	newEnv     EnvFactory
	configPath string
	jsonOutput bool
	out        io.Writer
}

// NewRootCmd builds the assess command tree.
func NewRootCmd(newEnv EnvFactory, out io.Writer) *cobra.Command {
	a := &app{newEnv: newEnv, out: out}

	root := &cobra.Command{
		Use:   "assess",
		Short: "Shadow AI assessment tool",
		Long: `assess pulls gateway telemetry from the identity platform, scores
shadow AI exposure for an account and keeps a history of reports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "path to the YAML config file")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "output in JSON format")

	root.AddCommand(
		a.runCmd(),
		a.reportsCmd(),
		a.settingsCmd(),
		a.logsCmd(),
	)
	return root
}

// Execute runs the CLI against the real environment.
func Execute() {
	if err := NewRootCmd(DefaultEnv, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// DefaultEnv connects to Redis and wires the services. Telemetry export is
// left to the long-running service.
func DefaultEnv(ctx context.Context, configPath string) (*Env, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := telemetry.NewZapLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := cache.NewRedisCache(&cfg.Redis, logger.Named("cache"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Env{
		Services: service.NewServices(cfg, store, logger, nil),
		Close: func() error {
			_ = logger.Sync()
			return store.Close()
		},
	}, nil
}

func (a *app) withEnv(cmd *cobra.Command, fn func(ctx context.Context, env *Env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := a.newEnv(ctx, a.configPath)
	if err != nil {
		return err
	}
	defer func() {
		if env.Close != nil {
			if cerr := env.Close(); cerr != nil {
				zap.L().Warn("failed to close environment", zap.Error(cerr))
			}
		}
	}()

	return fn(ctx, env)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

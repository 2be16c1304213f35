// Package cli implements the neurodoc command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"neurodoc/internal/bootstrap"
	"neurodoc/internal/config"
	"neurodoc/internal/logger"
	"neurodoc/internal/service"
)

// errReported marks failures already printed for the user.
var errReported = errors.New("operation failed")

// Runtime is what every command needs to run.
type Runtime struct {
	Ops    service.Operations
	Config *config.AppConfig
	Log    *zap.Logger
	Close  func() error
}

// BuildOptions carries the persistent flags into the runtime builder.
type BuildOptions struct {
	ConfigPath string
	Verbose    bool
	// Interactive silences stderr logging so it does not draw over the terminal UI.
	Interactive bool
}

// Builder creates a Runtime for a command invocation.
type Builder func(ctx context.Context, opts BuildOptions) (*Runtime, error)

type rootFlags struct {
	configPath string
	verbose    bool
}

// NewRootCmd creates the command tree. build assembles the runtime lazily, per command.
func NewRootCmd(build Builder) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "neurodoc",
		Short: "Store documents and ask questions about them",
		Long: `NeuroDoc stores free text in per-user vector namespaces and answers
questions, summarizes topics and suggests titles using a generation model.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to YAML config file (default ./config.yaml or ~/.config/neurodoc/config.yaml)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	env := &env{flags: flags, build: build}
	root.AddCommand(
		newServeCmd(env),
		newTUICmd(env),
		newStoreCmd(env),
		newSearchCmd(env),
		newSummarizeCmd(env),
		newTitleCmd(env),
	)
	return root
}

// Execute runs the CLI with the default runtime builder and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd(DefaultBuilder)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		}
		return 1
	}
	return 0
}

// DefaultBuilder loads configuration, builds the logger and assembles the components.
func DefaultBuilder(ctx context.Context, opts BuildOptions) (*Runtime, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if opts.ConfigPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(opts.ConfigPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := zap.NewNop()
	if !opts.Interactive || cfg.Log.File != "" {
		log, err = logger.New(cfg.Log, opts.Verbose)
		if err != nil {
			return nil, err
		}
	}

	rt, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return &Runtime{
		Ops:    rt.Ops,
		Config: cfg,
		Log:    log,
		Close: func() error {
			err := rt.Close()
			_ = log.Sync()
			return err
		},
	}, nil
}

type env struct {
	flags *rootFlags
	build Builder
}

func (e *env) runtime(cmd *cobra.Command, interactive bool) (*Runtime, error) {
	rt, err := e.build(cmd.Context(), BuildOptions{
		ConfigPath:  e.flags.configPath,
		Verbose:     e.flags.verbose,
		Interactive: interactive,
	})
	if err != nil {
		return nil, err
	}
	if rt.Log == nil {
		rt.Log = zap.NewNop()
	}
	if rt.Config == nil {
		rt.Config = config.Default()
	}
	if rt.Close == nil {
		rt.Close = func() error { return nil }
	}
	return rt, nil
}

// readInput returns the first argument, or the contents of stdin when it is "-" or absent.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/drujensen/aibrowser/internal/domain/errs"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
	provider   string
}

// Execute runs the aibrowser command line and returns the process exit code.
func Execute(version string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(version)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		return exitCode(err)
	}
	return 0
}

func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "aibrowser",
		Short: "Answer questions by driving a web browser with a language model",
		Long: `aibrowser runs a tool-calling agent loop: the model plans browser actions,
the actions run against the configured tool servers, and every screenshot
they return is saved to disk.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default mcp_config.json)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.provider, "provider", "", "override modelConfig.provider (google, openai)")

	root.AddCommand(
		newRunCommand(opts, version),
		newChatCommand(opts, version),
		newServeCommand(opts, version),
		newScreenshotsCommand(opts),
		newThreadsCommand(opts),
	)
	return root
}

func exitCode(err error) int {
	var config *errs.ConfigError
	var validation *errs.ValidationError
	switch {
	case errors.As(err, &config), errors.As(err, &validation):
		return 2
	case errors.Is(err, context.Canceled):
		return 130
	}
	return 1
}

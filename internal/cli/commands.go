package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/drujensen/aibrowser/internal/api"
	"github.com/drujensen/aibrowser/internal/domain/services"
	"github.com/drujensen/aibrowser/internal/impl/repositories"
	"github.com/drujensen/aibrowser/internal/impl/screenshots"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCommand(opts *rootOptions, version string) *cobra.Command {
	var threadID string

	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Answer a single query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, version)
			if err != nil {
				return err
			}
			defer a.Close()

			return runQuery(cmd.Context(), a.sessions, cmd.OutOrStdout(), threadID, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVarP(&threadID, "thread", "t", "", "resume an existing thread")
	return cmd
}

// queryRunner answers one query on a thread.
type queryRunner interface {
	Run(ctx context.Context, threadID, query string) (*services.SessionResult, error)
}

func runQuery(ctx context.Context, sessions queryRunner, out io.Writer, threadID, query string) error {
	p := watchProgress(out)
	defer p.Stop()

	result, err := sessions.Run(ctx, threadID, query)
	if err != nil {
		return err
	}
	printResult(out, result)
	return nil
}

func newChatCommand(opts *rootOptions, version string) *cobra.Command {
	var threadID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Read queries from the terminal until exit or quit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, version)
			if err != nil {
				return err
			}
			defer a.Close()

			return chatLoop(cmd.Context(), a.sessions, a.logger, cmd.InOrStdin(), cmd.OutOrStdout(), threadID)
		},
	}
	cmd.Flags().StringVarP(&threadID, "thread", "t", "", "resume an existing thread")
	return cmd
}

// chatLoop answers each line as a query. The first answer fixes the thread so
// later questions see the earlier conversation. Query errors are printed and
// the loop continues.
func chatLoop(ctx context.Context, sessions queryRunner, logger *zap.Logger, in io.Reader, out io.Writer, threadID string) error {
	fmt.Fprintln(out, titleStyle.Render("aibrowser")+mutedStyle.Render("  type exit or quit to leave"))
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		query := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(query) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		p := watchProgress(out)
		result, err := sessions.Run(ctx, threadID, query)
		p.Stop()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("Query failed", zap.Error(err))
			fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
			continue
		}
		threadID = result.ThreadID
		printResult(out, result)
	}
}

func newServeCommand(opts *rootOptions, version string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the event websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, version)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("Listening on "+addr))
			return api.NewServer(a.sessions, a.logger).Start(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

func newScreenshotsCommand(opts *rootOptions) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "screenshots",
		Short: "List saved screenshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			var cutoff time.Time
			if since > 0 {
				cutoff = time.Now().Add(-since)
			}
			records, err := screenshots.List(cfg.Screenshots.Dir, cutoff)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No screenshots in "+cfg.Screenshots.Dir))
				return nil
			}
			printScreenshots(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", 0, "only list screenshots newer than this (e.g. 1h)")
	return cmd
}

func newThreadsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "List checkpointed threads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			checkpoint, err := repositories.OpenCheckpoint(cmd.Context(), cfg.Checkpoint, logger)
			if err != nil {
				return err
			}
			defer checkpoint.Close(context.Background())

			threads, err := checkpoint.Repository.ListThreads(cmd.Context())
			if err != nil {
				return err
			}
			printThreads(cmd.OutOrStdout(), threads)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a checkpointed thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			checkpoint, err := repositories.OpenCheckpoint(cmd.Context(), cfg.Checkpoint, logger)
			if err != nil {
				return err
			}
			defer checkpoint.Close(context.Background())

			if err := checkpoint.Repository.DeleteThread(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted thread "+args[0])
			return nil
		},
	})
	return cmd
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"preciobot/internal/app"
	"preciobot/internal/config"
	"preciobot/internal/listener"
	"preciobot/internal/logging"
	"preciobot/internal/pipeline"
	"preciobot/internal/server"
)

func main() {
	must(rootCmd().Execute())
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "preciobot",
		Short:         "Phone financing price bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		serveCmd(),
		telegramCmd(),
		lookupCmd(),
		syncCmd(),
		runCmd(),
		exportLookupsCmd(),
	)
	return root
}

// withApp loads configuration, builds the app and runs fn with a context
// that ends on SIGINT or SIGTERM.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func serveCmd() *cobra.Command {
	var addr string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the messaging webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if addr == "" {
					addr = a.Config.HTTPAddr
				}
				return server.Run(ctx, addr, server.NewRouter(a.Bot, a.Log, timeout), a.Log)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default HTTP_ADDR)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "per-request timeout")
	return cmd
}

func telegramCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "telegram",
		Short: "Answer Telegram chats over long polling",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				bot, err := listener.NewBot(a.Config)
				if err != nil {
					return err
				}
				return listener.NewService(bot, a.Bot, a.Log).Run(ctx)
			})
		},
	}
}

func lookupCmd() *cobra.Command {
	var identity string
	cmd := &cobra.Command{
		Use:   "lookup [message]",
		Short: "Answer one message, or each stdin line when no message is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				if len(args) > 0 {
					fmt.Fprintln(out, a.Bot.Handle(ctx, identity, strings.Join(args, " ")).Text)
					return nil
				}
				// Reading stdin keeps one session so numbered replies work.
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					fmt.Fprintln(out, a.Bot.Handle(ctx, identity, scanner.Text()).Text)
					fmt.Fprintln(out)
				}
				return scanner.Err()
			})
		},
	}
	cmd.Flags().StringVar(&identity, "identity", "cli", "conversation identity")
	return cmd
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog:sync",
		Short: "Fetch every catalog sheet and store the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				counts, err := a.Catalog.Sync(ctx)
				if err != nil {
					return err
				}
				sheets := make([]string, 0, len(counts))
				for sheet := range counts {
					sheets = append(sheets, sheet)
				}
				sort.Strings(sheets)
				for _, sheet := range sheets {
					fmt.Fprintf(cmd.OutOrStdout(), "catalog sync complete sheet=%s records=%d\n", sheet, counts[sheet])
				}
				return nil
			})
		},
	}
}

func runCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Resolve a file of queries and write the results to xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := pipeline.ReadQueries(input)
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				if output == "" {
					output = filepath.Join(a.Config.OutputDir, "batch-"+time.Now().Format("20060102-150405")+".xlsx")
				}
				results, err := a.Bot.RunBatch(ctx, rows)
				if err != nil {
					return err
				}
				if err := pipeline.ExportBatchToXLSX(results, output); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "run done rows=%d output=%s\n", len(results), output)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "queries file (.txt or .xlsx)")
	cmd.Flags().StringVar(&output, "output", "", "output xlsx path (default OUTPUT_DIR)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func exportLookupsCmd() *cobra.Command {
	var out, since string
	var limit int
	cmd := &cobra.Command{
		Use:   "export:lookups",
		Short: "Export the lookup log to xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				rows, err := a.DB.ListLookups(since, limit)
				if err != nil {
					return err
				}
				if len(rows) == 0 {
					return fmt.Errorf("no lookups since %q", since)
				}
				if err := pipeline.ExportLookupsToXLSX(rows, out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d lookups to %s\n", len(rows), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output xlsx path")
	cmd.Flags().StringVar(&since, "since", "", "only lookups at or after this time (YYYY-MM-DD HH:MM:SS)")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows (0 for all)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

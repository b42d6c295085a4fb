package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"NewsDesk/internal/di"
	"NewsDesk/internal/domain/models"
	dservice "NewsDesk/internal/domain/service"
	"NewsDesk/internal/service/symbols"
	"NewsDesk/internal/usecase"
	"NewsDesk/pkg/config"
	"NewsDesk/pkg/logger"
	"NewsDesk/pkg/util"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "newsdesk",
		Short:         "NewsDesk - two-stage LLM analysis of market news",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path (defaults only when empty)")

	load := func(llmKey, fmpKey bool) (*config.Config, error) {
		cfg, err := config.LoadWithEnv(configPath)
		if err != nil {
			return nil, fmt.Errorf("config load failed: %w", err)
		}
		if err := cfg.RequireKeys(llmKey, fmpKey); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	root.AddCommand(newServeCmd(load))
	root.AddCommand(newBatchCmd(load))
	root.AddCommand(newFetchCmd(load))
	root.AddCommand(newContextCmd(load))
	root.AddCommand(newNormalizeCmd())
	return root
}

type loadFunc func(llmKey, fmpKey bool) (*config.Config, error)

func newServeCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when enabled, the news consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(true, true)
			if err != nil {
				return err
			}
			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization failed: %w", err)
			}
			return app.Run()
		},
	}
}

func newBatchCmd(load loadFunc) *cobra.Command {
	var (
		input       string
		tier        string
		concurrency int
		noContext   bool
		noData      bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Analyze a file of news items and print the batch result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(true, true)
			if err != nil {
				return err
			}
			raw, err := readInput(input)
			if err != nil {
				return err
			}
			items, err := decodeItems(raw)
			if err != nil {
				return err
			}

			r, err := di.InitializeRunner(cfg)
			if err != nil {
				return fmt.Errorf("runner initialization failed: %w", err)
			}
			defer r.Close()

			ctx, stop := signalContext()
			defer stop()

			opts := usecase.BatchOptions{Options: r.Options, Concurrency: cfg.Pipeline.Concurrency}
			if tier != "" {
				opts.ModelTier = tier
			}
			if concurrency > 0 {
				opts.Concurrency = concurrency
			}
			opts.IncludeMarketContext = opts.IncludeMarketContext && !noContext
			opts.UseDispatcher = opts.UseDispatcher && !noData
			if _, err := r.Pipeline.ResolveTier(opts.ModelTier); err != nil {
				return err
			}

			res := r.Pipeline.RunBatch(ctx, items, opts)
			if err := r.Sink.ProcessBatch(ctx, res.Results); err != nil {
				r.Logger.Error("result sink error", logger.String("backend", r.Sink.Backend()), logger.Error(err))
			}
			r.Logger.Info("batch finished",
				logger.Int("items", res.Stats.Total),
				logger.Int("failed", res.Stats.Failed),
				logger.Int64("duration_ms", res.Meta.DurationMs),
			)
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON file with news items, '-' for stdin")
	cmd.Flags().StringVar(&tier, "tier", "", "model tier (premium, standard, economy)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "items analyzed in parallel")
	cmd.Flags().BoolVar(&noContext, "no-market-context", false, "skip the market snapshot")
	cmd.Flags().BoolVar(&noData, "no-data", false, "skip the data dispatcher")
	return cmd
}

func newFetchCmd(load loadFunc) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run a file of typed data requests through the dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(false, true)
			if err != nil {
				return err
			}
			raw, err := readInput(input)
			if err != nil {
				return err
			}
			var req models.DataRequestsRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return fmt.Errorf("decode requests: %w", err)
			}

			r, err := di.InitializeRunner(cfg)
			if err != nil {
				return fmt.Errorf("runner initialization failed: %w", err)
			}
			defer r.Close()

			ctx, stop := signalContext()
			defer stop()

			opts := dservice.DispatchOptions{ReferenceDate: util.ParseTimeDefault(req.ReferenceDate, time.Now())}
			if len(req.AllowedSymbols) > 0 {
				opts.AllowedSymbols = symbols.AllowSet(req.AllowedSymbols)
			}
			return writeJSON(cmd.OutOrStdout(), r.Dispatcher.Execute(ctx, req.Requests, opts))
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON file with {\"requests\": [...]}, '-' for stdin")
	return cmd
}

func newContextCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "context",
		Short: "Print the current market context snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(false, false)
			if err != nil {
				return err
			}
			r, err := di.InitializeRunner(cfg)
			if err != nil {
				return fmt.Errorf("runner initialization failed: %w", err)
			}
			defer r.Close()

			ctx, stop := signalContext()
			defer stop()
			return writeJSON(cmd.OutOrStdout(), r.MarketContext.Fetch(ctx))
		},
	}
}

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize ASSET...",
		Short: "Show the provider symbol for charting tickers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := make(map[string]string, len(args))
			for _, a := range args {
				out[a] = symbols.Normalize(a)
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

// decodeItems accepts a bare array of items or an object with an items field.
func decodeItems(raw []byte) ([]models.NewsInput, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var req models.BatchRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
		return req.Items, nil
	}
	var items []models.NewsInput
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return b, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

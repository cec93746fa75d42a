package cli

import (
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/insightlab/stockinsight/config"
	"github.com/insightlab/stockinsight/internal/api"
	"github.com/insightlab/stockinsight/internal/checkout"
	"github.com/insightlab/stockinsight/internal/models"
)

// Version is stamped by the build.
var Version = "1.0.0"

// NewRootCmd creates the root command and all subcommands.
func NewRootCmd() *cobra.Command {
	var app *App

	rootCmd := &cobra.Command{
		Use:   "insight",
		Short: "insight - AI deep-research stock analysis",
		Long: `insight is a terminal client for a paid AI stock-analysis service.
It runs deep-research analyses, walks you through payment, and keeps a local
record of every report you bought.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager(cmd)
			if err != nil {
				return err
			}
			app, err = newApp(manager)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			cmd.SetContext(ctx)
			cobra.OnFinalize(stop, app.Close)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), app)
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Configuration file path")

	rootCmd.AddCommand(newAnalyzeCmd(&app))
	rootCmd.AddCommand(newSearchCmd(&app))
	rootCmd.AddCommand(newHistoryCmd(&app))
	rootCmd.AddCommand(newLatestCmd(&app))
	rootCmd.AddCommand(newShowCmd(&app))
	rootCmd.AddCommand(newResumeCmd(&app))
	rootCmd.AddCommand(newConfigCmd(&app))
	rootCmd.AddCommand(newIdentityCmd(&app))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// newManager loads the managed configuration, honoring the --config and
// --debug flags.
func newManager(cmd *cobra.Command) (*config.Manager, error) {
	cfg := config.DefaultConfig()
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
	}

	opts := []config.ManagerOption{config.WithInitialConfig(cfg)}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		opts = append(opts, config.WithConfigPath(path))
	} else {
		opts = append(opts, config.WithConfigDir(cfg.StateDir))
	}
	return config.NewManager(opts...)
}

func parseTimeframe(raw string) (models.Timeframe, error) {
	tf := models.Timeframe(strings.ToLower(strings.TrimSpace(raw)))
	if !tf.Valid() {
		return "", fmt.Errorf("invalid timeframe %q (use short, mid or long)", raw)
	}
	return tf, nil
}

func newAnalyzeCmd(app **App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Buy and run a deep-research analysis for a stock",
		Long: `Run a paid deep-research analysis for a stock symbol.
Example: insight analyze AAPL --timeframe short`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("timeframe")
			tf, err := parseTimeframe(raw)
			if err != nil {
				return err
			}
			return (*app).Analyze(cmd.Context(), args[0], tf)
		},
	}
	cmd.Flags().StringP("timeframe", "t", string(models.TimeframeMid), "Investment horizon: short, mid or long")
	return cmd
}

func newSearchCmd(app **App) *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY",
		Short: "Search stock symbols by name or code",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app
			matches, err := a.analysis.SearchStock(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			a.renderer.Matches(matches)
			return nil
		},
	}
}

func newHistoryCmd(app **App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past analyses",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app
			limit, _ := cmd.Flags().GetInt("limit")
			if limit <= 0 {
				limit = a.cfg().HistoryLimit
			}

			if local, _ := cmd.Flags().GetBool("local"); local {
				if a.history == nil {
					return fmt.Errorf("local insight cache is unavailable")
				}
				items, err := a.history.ListRecent(limit)
				if err != nil {
					return err
				}
				a.renderer.Summaries(items)
				return nil
			}

			stock, _ := cmd.Flags().GetString("stock")
			skip, _ := cmd.Flags().GetInt("skip")
			list, err := a.analysis.GetAnalysisHistory(cmd.Context(), api.HistoryQuery{
				StockCode: stock,
				Limit:     limit,
				Skip:      skip,
			})
			if err != nil {
				return err
			}
			a.session.SetHistory(list.Items, list.Total)
			a.renderer.History(list)
			return nil
		},
	}
	cmd.Flags().String("stock", "", "Filter by stock code")
	cmd.Flags().Int("limit", 0, "Page size (defaults to the configured history limit)")
	cmd.Flags().Int("skip", 0, "Number of entries to skip")
	cmd.Flags().Bool("local", false, "List the locally cached reports instead of asking the server")
	return cmd
}

func newLatestCmd(app **App) *cobra.Command {
	return &cobra.Command{
		Use:   "latest SYMBOL",
		Short: "Show the most recent analysis for a stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app
			insight, err := a.analysis.GetLatestAnalysis(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.renderer.Insight(insight)
			return nil
		},
	}
}

func newShowCmd(app **App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a past analysis by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid analysis id %q", args[0])
			}

			if local, _ := cmd.Flags().GetBool("local"); local {
				if a.history == nil {
					return fmt.Errorf("local insight cache is unavailable")
				}
				insight, err := a.history.GetByID(id)
				if err != nil {
					return err
				}
				a.renderer.Insight(insight)
				return nil
			}

			insight, err := a.analysis.GetAnalysisByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			a.renderer.Insight(insight)
			return nil
		},
	}
	cmd.Flags().Bool("local", false, "Read from the local cache instead of the server")
	return cmd
}

// newResumeCmd re-enters a hosted checkout manually, for returns that never
// reached the local listener (closed terminal, copied URL).
func newResumeCmd(app **App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a hosted checkout after the payment redirect",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app
			checkoutID, _ := cmd.Flags().GetString("checkout-id")
			stock, _ := cmd.Flags().GetString("stock")
			raw, _ := cmd.Flags().GetString("timeframe")
			tf, err := parseTimeframe(raw)
			if err != nil {
				return err
			}

			orch := checkout.New(checkout.Options{
				Variant:  checkout.VariantHosted,
				Store:    a.session,
				Analysis: a.analysis,
				Payment:  a.payment,
				Recorder: a.recorder(),
				Logger:   a.logger,
			})
			outcome, err := orch.Resume(cmd.Context(), checkout.ResumeParams{
				CheckoutID: checkoutID,
				StockQuery: stock,
				Timeframe:  tf,
			})
			if err != nil {
				return err
			}
			return a.renderOutcome(outcome)
		},
	}
	cmd.Flags().String("checkout-id", "", "Checkout id from the payment return URL")
	cmd.Flags().String("stock", "", "Stock code the checkout was opened for")
	cmd.Flags().StringP("timeframe", "t", string(models.TimeframeMid), "Investment horizon: short, mid or long")
	_ = cmd.MarkFlagRequired("checkout-id")
	_ = cmd.MarkFlagRequired("stock")
	return cmd
}

func newConfigCmd(app **App) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app
			cfg := a.cfg()
			fmt.Printf("Config file:        %s\n", a.manager.Path())
			fmt.Printf("State directory:    %s\n", cfg.StateDir)
			fmt.Printf("API base URL:       %s\n", cfg.APIBaseURL)
			fmt.Printf("HTTP timeout:       %ds\n", cfg.HTTPTimeoutSec)
			fmt.Printf("Payment variant:    %s\n", cfg.PaymentVariant)
			fmt.Printf("Callback address:   %s\n", cfg.CallbackAddr)
			fmt.Printf("Search debounce:    %dms\n", cfg.SearchDebounceMs)
			fmt.Printf("History page size:  %d\n", cfg.HistoryLimit)
			fmt.Printf("Debug logging:      %t\n", cfg.Debug)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Update one configuration value",
		Long: `Update one configuration value and persist it.
Keys: api_base_url, payment_variant, callback_addr, http_timeout_sec,
search_debounce_ms, history_limit, debug`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app
			cfg := a.cfg()
			if err := applyConfigKey(&cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := a.manager.Update(cfg); err != nil {
				return err
			}
			a.renderer.Success(fmt.Sprintf("%s updated", args[0]))
			return nil
		},
	})

	return configCmd
}

func applyConfigKey(cfg *config.Config, key, value string) error {
	switch key {
	case "api_base_url":
		cfg.APIBaseURL = value
	case "payment_variant":
		cfg.PaymentVariant = value
	case "callback_addr":
		cfg.CallbackAddr = value
	case "http_timeout_sec":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("http_timeout_sec must be an integer")
		}
		cfg.HTTPTimeoutSec = n
	case "search_debounce_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("search_debounce_ms must be an integer")
		}
		cfg.SearchDebounceMs = n
	case "history_limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("history_limit must be an integer")
		}
		cfg.HistoryLimit = n
	case "debug":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("debug must be true or false")
		}
		cfg.Debug = b
	default:
		return fmt.Errorf("unknown configuration key %q", key)
	}
	return cfg.Validate()
}

func newIdentityCmd(app **App) *cobra.Command {
	identityCmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage the anonymous user identity",
	}

	identityCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the persisted user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app
			id := a.identity.UserID()
			if id == "" {
				return fmt.Errorf("no user identity available")
			}
			fmt.Println(id)
			return nil
		},
	})

	identityCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Discard the user id; a fresh one is issued on next use",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app
			if err := a.identity.Reset(); err != nil {
				return err
			}
			a.renderer.Success("identity reset")
			return nil
		},
	})

	return identityCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("insight v%s\n", Version)
			fmt.Println("AI deep-research stock analysis client")
		},
	}
}

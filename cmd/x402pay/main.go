package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	x402pay "github.com/vitwit/x402pay"
	"github.com/vitwit/x402pay/config"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/metrics"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils"
	"github.com/vitwit/x402pay/webapi"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	configPath string
	config     config.Config
	logger     logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "x402pay",
		Short:         "x402 USDC checkout on Base",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if z, ok := a.logger.(interface{ Sync() error }); ok {
				_ = z.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (yaml, json or toml)")

	rootCmd.AddCommand(
		a.balanceCmd(),
		a.statusCmd(),
		a.payCmd(),
		a.serveCmd(),
		a.showconfCmd(),
	)
	return rootCmd
}

func (a *app) load() error {
	var files []string
	if a.configPath != "" {
		files = append(files, a.configPath)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}
	a.config = cfg
	a.logger = logger.NewZapFileLogger(cfg.Log.Level, logger.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	return nil
}

func (a *app) checkout(opts ...x402pay.Option) (*x402pay.Checkout, error) {
	w, err := x402pay.WalletFromConfig(a.config, a.logger)
	if err != nil {
		return nil, err
	}
	return x402pay.New(a.config, w, append([]x402pay.Option{x402pay.WithLogger(a.logger)}, opts...)...)
}

func printJSON(v any) error {
	out, err := utils.NormalizeJSON(v)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func (a *app) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Print the token balance of an address (default: the configured wallet)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.checkout()
			if err != nil {
				return err
			}
			defer c.Close()

			address := c.Wallet().Address()
			if len(args) == 1 {
				address = args[0]
			}
			if address == "" {
				return types.NewPaymentError(types.ErrInvalidRequest, "no address given and no wallet configured")
			}

			bal, err := c.Lookup(cmd.Context(), address)
			if err != nil {
				a.logger.Warn("balance unavailable", map[string]any{"address": address, "error": err})
			}
			return printJSON(bal)
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <txid>",
		Short: "Check the confirmation status of a transaction once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.checkout()
			if err != nil {
				return err
			}
			defer c.Close()

			return printJSON(c.Status(cmd.Context(), args[0]))
		},
	}
}

func (a *app) payCmd() *cobra.Command {
	var amount, recipient, description string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Pay the configured plan (or the given amount) and wait for confirmation",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.checkout()
			if err != nil {
				return err
			}
			defer c.Close()

			req := types.NewPaymentRequest(amount, recipient, description)
			plan := c.Plan()
			if req.Amount == "" {
				req.Amount = plan.Amount
			}
			if req.Recipient == "" {
				req.Recipient = plan.Recipient
			}
			if req.Description == "" {
				req.Description = plan.Description
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			snap, err := c.PayAndWait(ctx, req)
			if perr := printJSON(snap); perr != nil {
				return perr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "amount in USDC, e.g. 19.00")
	cmd.Flags().StringVar(&recipient, "recipient", "", "recipient address")
	cmd.Flags().StringVar(&description, "description", "", "payment description")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up waiting after this long (0: use confirmation limits)")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the checkout web API",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []x402pay.Option
			var apiOpts []webapi.Option
			if a.config.WebAPI.Metrics {
				rec := metrics.NewPrometheusRecorder()
				opts = append(opts, x402pay.WithMetrics(rec))
				apiOpts = append(apiOpts, webapi.WithMetricsHandler(rec.Handler()))
			}

			c, err := a.checkout(opts...)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			api := webapi.NewWebAPI(c, a.config.ListenAddr(), append(apiOpts, webapi.WithLogger(a.logger))...)
			return api.Run(ctx)
		},
	}
}

func (a *app) showconfCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "showconf",
		Short: "Print the config state and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(a.config)
		},
	}
}

// Package main implements cartctl, a command line client for the cart.
// It works on the same storage as the service and resolves products from the
// configured catalog.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/abgdnv/gocart/internal/catalog"
	"github.com/abgdnv/gocart/internal/config"
	"github.com/abgdnv/gocart/internal/platform/configloader"
	"github.com/abgdnv/gocart/internal/platform/logger"
	"github.com/abgdnv/gocart/internal/service"
	"github.com/abgdnv/gocart/internal/store"
	"github.com/spf13/cobra"
)

const serviceName = "cart"

var defaults = map[string]any{
	"log.level":           "warn",
	"catalog.baseurl":     "https://fakestoreapi.com",
	"storage.driver":      config.DriverSQLite,
	"storage.key":         "cart-products",
	"storage.sqlite.path": "cart.db",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCLI(os.Stdout, os.Stderr).execute(ctx, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// cli carries what the subcommands share. The cart is opened in the
// persistent pre-run, before any subcommand runs.
type cli struct {
	root       *cobra.Command
	configFile string
	envFile    string
	logOut     io.Writer

	kv   store.KV
	cart service.CartService
}

func newCLI(out, logOut io.Writer) *cli {
	c := &cli{logOut: logOut}

	rootCmd := &cobra.Command{
		Use:   "cartctl",
		Short: "Manage the shopping cart from the command line",
		Long: `cartctl adds products to the cart, changes quantities, removes lines and
prints the cart and its total.

Products are resolved by id from the catalog configured under catalog.baseurl.
The cart is persisted to the storage configured under storage.*, the same
settings the cart service reads, so both can work on one cart.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.open,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(logOut)
	rootCmd.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "Config file (default: config.yaml)")
	rootCmd.PersistentFlags().StringVar(&c.envFile, "env-file", "", "Env file (default: .env)")

	rootCmd.AddCommand(
		c.addCmd(),
		c.updateCmd(),
		c.deleteCmd(),
		c.clearCmd(),
		c.listCmd(),
		c.totalCmd(),
	)
	c.root = rootCmd
	return c
}

// execute runs the command line and closes the storage whatever the outcome.
func (c *cli) execute(ctx context.Context, args []string) error {
	c.root.SetArgs(args)
	err := c.root.ExecuteContext(ctx)
	if c.kv != nil {
		if closeErr := c.kv.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close storage: %w", closeErr)
		}
	}
	return err
}

// open loads the configuration, opens the storage and restores the cart.
func (c *cli) open(cmd *cobra.Command, _ []string) error {
	cfg, err := configloader.Load[config.CLIConfig](serviceName,
		configloader.WithFile(c.configFile),
		configloader.WithEnvFile(c.envFile),
		configloader.WithDefaults(defaults),
	)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(c.logOut, cfg.Log.Level)
	slog.SetDefault(log)

	c.kv, err = store.Open(cmd.Context(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Driver, err)
	}
	resolver := catalog.NewClient(cfg.Catalog, nil, log)
	cartService := service.NewService(resolver, c.kv, cfg.Storage.Key, log)
	cartService.Initialize(cmd.Context())
	c.cart = cartService
	return nil
}

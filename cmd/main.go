package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xplorawatch/internal/api"
	"xplorawatch/internal/bridge"
	"xplorawatch/internal/config"
	"xplorawatch/internal/geocode"
	"xplorawatch/internal/ha"
	"xplorawatch/internal/observability"
	"xplorawatch/internal/watch"
)

var (
	configDir string
	useMock   bool
)

var rootCmd = &cobra.Command{
	Use:   "xplorawatch",
	Short: "Bridge Xplora watch state into Home Assistant",
	Long: `Polls the Xplora watch cloud and publishes charging, safe-zone and
connectivity sensors plus a reverse-geocoded address into Home Assistant.`,
	RunE: runBridge,
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode <query>",
	Short: "Run a one-off forward geocode lookup",
	Args:  cobra.ExactArgs(1),
	RunE:  runGeocode,
}

var reverseCmd = &cobra.Command{
	Use:   "reverse <lat> <lng>",
	Short: "Run a one-off reverse geocode lookup",
	Args:  cobra.ExactArgs(2),
	RunE:  runReverse,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", ".", "Directory containing watch_config.yaml")
	rootCmd.Flags().BoolVar(&useMock, "mock", false, "Run against an in-memory watch controller")

	rootCmd.AddCommand(geocodeCmd)
	rootCmd.AddCommand(reverseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func runBridge(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	haURL := os.Getenv("HA_URL")
	haToken := os.Getenv("HA_TOKEN")
	geocodeKey := os.Getenv("OPENCAGE_KEY")

	if haURL == "" || haToken == "" {
		return fmt.Errorf("HA_URL and HA_TOKEN environment variables must be set")
	}

	cfg, err := config.NewLoader(configDir, logger).Load()
	if err != nil {
		return err
	}

	logger.Info("Starting Xplora watch bridge",
		zap.String("url", haURL),
		zap.Bool("mock", useMock))

	metrics := observability.NewMetrics()

	apiServer := api.NewServer(cfg.MetricsAddr, logger)
	apiServer.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		apiServer.Stop(shutdownCtx)
	}()

	haClient := ha.NewClient(haURL, haToken, logger)
	if err := haClient.Connect(); err != nil {
		return fmt.Errorf("failed to connect to Home Assistant: %w", err)
	}
	defer haClient.Disconnect()

	controller, err := buildController(cfg, logger)
	if err != nil {
		return err
	}

	var geocoder bridge.Geocoder
	if geocodeKey != "" {
		geocoder = geocode.NewClient(geocodeKey, logger)
	} else if cfg.Geocoding {
		logger.Warn("Geocoding enabled in config but OPENCAGE_KEY is not set, addresses disabled")
	}

	b := bridge.New(haClient, controller, geocoder, cfg, metrics, logger, clockwork.NewRealClock())
	b.Start()
	defer b.Stop()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Bridge running. Press Ctrl+C to exit.")
	<-sigChan

	logger.Info("Shutting down gracefully...")
	return nil
}

// buildController returns the watch controller for this run. Without
// --mock a vendor SDK implementation of watch.Controller has to be
// wired in; the bridge itself never reimplements the vendor API.
func buildController(cfg *config.Config, logger *zap.Logger) (watch.Controller, error) {
	if !useMock {
		return nil, fmt.Errorf("no vendor watch controller configured, run with --mock or wire a vendor SDK")
	}

	logger.Info("Using in-memory mock watch controller")
	mock := watch.NewMockController()
	for i, id := range cfg.Watches {
		mock.SetWatch(id, watch.MockState{
			TrackInterval: watch.NoTracking,
			Online:        watch.StatusOnline,
			InSafeZone:    true,
			Charging:      i%2 == 0,
			Battery:       80,
			UserName:      fmt.Sprintf("watch %d", i+1),
			Location:      watch.Location{Lat: 51.5104, Lng: -0.1021},
		})
	}
	return mock, nil
}

func runGeocode(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return lookupAndPrint(func(ctx context.Context, client *geocode.Client) ([]any, error) {
		return client.Geocode(ctx, args[0], nil)
	})
}

func runReverse(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid latitude %q: %w", args[0], err)
	}
	lng, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid longitude %q: %w", args[1], err)
	}

	return lookupAndPrint(func(ctx context.Context, client *geocode.Client) ([]any, error) {
		return client.ReverseGeocode(ctx, lat, lng, url.Values{"limit": {"1"}})
	})
}

// lookupAndPrint runs a single geocode call in its own session scope
// and prints the results as JSON.
func lookupAndPrint(lookup func(context.Context, *geocode.Client) ([]any, error)) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	key := os.Getenv("OPENCAGE_KEY")
	if key == "" {
		return fmt.Errorf("OPENCAGE_KEY environment variable must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := geocode.NewClient(key, logger)
	return client.WithSession(ctx, func(ctx context.Context) error {
		results, err := lookup(ctx, client)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render results: %w", err)
		}
		fmt.Println(string(out))
		return nil
	})
}

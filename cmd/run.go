package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mselser95/marketview/internal/app"
	"github.com/mselser95/marketview/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the client daemon",
	Long: `Starts the marketview daemon, which will:
1. Restore the persisted session, if any
2. Serve the local HTTP API (quotes, session, trades, markets)
3. Stream live prices for watched markets over WebSocket
4. Journal every trade submission

Use --watch to subscribe to specific markets at startup and --trending to
also subscribe to the trending list.`,
	RunE: runDaemon,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringSliceP("watch", "w", nil, "Market IDs to subscribe to at startup")
	runCmd.Flags().Bool("trending", false, "Subscribe to trending markets at startup")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	watch, _ := cmd.Flags().GetStringSlice("watch")
	trending, _ := cmd.Flags().GetBool("trending")

	opts := &app.Options{
		WatchMarkets:  watch,
		WatchTrending: trending,
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mselser95/marketview/internal/session"
)

//nolint:gochecknoglobals // Cobra boilerplate
var devLoginCmd = &cobra.Command{
	Use:   "dev-login",
	Short: "Log in as a freshly provisioned demo user",
	Long: `Asks the backend to create a demo user, fetches its token and stores the
resulting session, so later commands (trade, positions, orders) run as that
user. Requires DEV_LOGIN_ENABLED=true.`,
	RunE: runDevLogin,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(devLoginCmd)
}

func runDevLogin(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env, err := newCLIEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	err = env.sessions.DevLogin(ctx)
	if errors.Is(err, session.ErrDevLoginDisabled) {
		return errors.New("dev login is disabled, set DEV_LOGIN_ENABLED=true")
	}
	if err != nil {
		return fmt.Errorf("dev login: %w", err)
	}

	renderSession(os.Stdout, env.sessions.Snapshot())

	return nil
}

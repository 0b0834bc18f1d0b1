package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mselser95/marketview/internal/session"
	"github.com/mselser95/marketview/internal/wallet"
)

//nolint:gochecknoglobals // Cobra boilerplate
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show or clear the persisted session",
	Long: `Prints the session stored in the configured session store.

Use --me to also fetch the backend's view of the current user, and --logout
to clear the stored session.`,
	RunE: runSession,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.Flags().Bool("me", false, "Fetch the current user from the backend")
	sessionCmd.Flags().Bool("logout", false, "Clear the stored session")
}

func runSession(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env, err := newCLIEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	logout, _ := cmd.Flags().GetBool("logout")
	if logout {
		env.sessions.Disconnect(ctx)
		fmt.Println("Session cleared.")
		return nil
	}

	renderSession(os.Stdout, env.sessions.Snapshot())

	me, _ := cmd.Flags().GetBool("me")
	if !me {
		return nil
	}

	err = env.requireSession()
	if err != nil {
		return err
	}

	user, err := env.client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("fetch current user: %w", err)
	}

	fmt.Printf("\nBackend user %s (%s), wallet %s\n", user.ID, user.Email, wallet.Shorten(user.WalletAddress))

	return nil
}

func renderSession(w io.Writer, s session.Session) {
	if !s.Connected() {
		fmt.Fprintln(w, "Not connected.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")
	table.Append("State", string(s.State))
	table.Append("User", s.BackendUserID)
	table.Append("Email", s.Email)
	table.Append("Name", s.DisplayName)
	table.Append("Wallet", wallet.Shorten(s.WalletAddress))
	table.Append("Wallet Type", string(s.WalletType))
	table.Append("Dev User", fmt.Sprintf("%t", s.IsDevUser))
	table.Append("Token", fmt.Sprintf("%t", s.HasToken()))
	if s.LastError != "" {
		table.Append("Last Error", s.LastError)
	}
	table.Render()
}

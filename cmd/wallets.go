package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mselser95/marketview/internal/wallet"
	"github.com/mselser95/marketview/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var walletsCmd = &cobra.Command{
	Use:   "wallets [client-type:address ...]",
	Short: "Rank wallets under the configured preference policy",
	Long: `Classifies the given wallets and shows which one a session would trade
from under the configured wallet policy (WALLET_PREFERENCE_POLICY,
WALLET_PREFERENCE_ORDER or WALLET_POLICY_FILE).

Wallets are given as client-type:address pairs, or with --file as a JSON
array of provider wallet objects.

Examples:
  marketview wallets privy:0xaaa... phantom:7xKX... metamask:0xbbb...
  marketview wallets --file wallets.json --policy metamask-first`,
	RunE: runWallets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(walletsCmd)
	walletsCmd.Flags().String("file", "", "JSON file with an array of wallet descriptors")
	walletsCmd.Flags().String("policy", "", "Override the configured policy name")
}

func runWallets(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	name := cfg.WalletPolicy
	order := cfg.WalletPreferenceOrder
	if override, _ := cmd.Flags().GetString("policy"); override != "" {
		name = override
		order = ""
	}

	policy, err := wallet.ResolvePolicy(name, order, cfg.WalletPolicyFile)
	if err != nil {
		return fmt.Errorf("resolve wallet policy: %w", err)
	}

	descs := make([]wallet.Descriptor, 0, len(args))
	for _, arg := range args {
		d, err := parseWalletArg(arg)
		if err != nil {
			return err
		}
		descs = append(descs, d)
	}

	if path, _ := cmd.Flags().GetString("file"); path != "" {
		fromFile, err := loadWalletFile(path)
		if err != nil {
			return err
		}
		descs = append(descs, fromFile...)
	}

	if len(descs) == 0 {
		return errors.New("no wallets given")
	}

	renderWallets(os.Stdout, descs, policy)

	return nil
}

func parseWalletArg(arg string) (wallet.Descriptor, error) {
	clientType, address, ok := strings.Cut(arg, ":")
	if !ok || clientType == "" || address == "" {
		return wallet.Descriptor{}, fmt.Errorf("invalid wallet %q: expected client-type:address", arg)
	}

	return wallet.Descriptor{
		Address:    wallet.ChecksumAddress(address),
		ClientType: clientType,
	}, nil
}

func loadWalletFile(path string) ([]wallet.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wallet file: %w", err)
	}

	var descs []wallet.Descriptor
	err = json.Unmarshal(data, &descs)
	if err != nil {
		return nil, fmt.Errorf("parse wallet file: %w", err)
	}

	return descs, nil
}

func renderWallets(w io.Writer, descs []wallet.Descriptor, policy wallet.Policy) {
	preferred, _ := wallet.SelectPreferred(descs, policy)

	table := tablewriter.NewWriter(w)
	table.Header("", "Address", "Client Type", "Type", "Rank")
	for _, d := range descs {
		mark := ""
		if d == preferred {
			mark = "*"
		}

		t := wallet.Classify(d)
		rank := "-"
		if r := policy.Rank(t); r < len(policy.Order) {
			rank = fmt.Sprintf("%d", r+1)
		}

		table.Append(mark, wallet.Shorten(d.Address), wallet.NormalizeClientType(d), string(t), rank)
	}
	table.Render()

	fmt.Fprintf(w, "\nPolicy %s prefers %s (%s)\n", policy.Name, wallet.Shorten(preferred.Address), wallet.Classify(preferred))
}

// Package wallet classifies the wallets reported by the auth provider and
// picks the one a session should trade from.
package wallet

import (
	"strings"
)

// Type is the closed set of wallet kinds the client distinguishes.
type Type string

const (
	TypePhantom       Type = "phantom"
	TypeMetaMask      Type = "metamask"
	TypeCoinbase      Type = "coinbase"
	TypeRabby         Type = "rabby"
	TypeWalletConnect Type = "wallet_connect"
	TypePrivyEmbedded Type = "privy_embedded"
	TypeNone          Type = "none"
)

// AllTypes lists every wallet type except TypeNone.
var AllTypes = []Type{ //nolint:gochecknoglobals // Read-only lookup table
	TypePhantom,
	TypeMetaMask,
	TypeCoinbase,
	TypeRabby,
	TypeWalletConnect,
	TypePrivyEmbedded,
}

// ParseType returns the Type named by s, or false if s is not a known type.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllTypes {
		if t == known {
			return t, true
		}
	}
	if t == TypeNone {
		return TypeNone, true
	}
	return TypeNone, false
}

// Descriptor is a wallet as reported by the auth provider.
type Descriptor struct {
	Address       string `json:"address"`
	ClientType    string `json:"walletClientType,omitempty"`
	ChainType     string `json:"chainType,omitempty"`
	ConnectorType string `json:"connectorType,omitempty"`
	WalletName    string `json:"walletName,omitempty"`
}

// NormalizeClientType returns the trimmed, lower-cased client type.
func NormalizeClientType(d Descriptor) string {
	return strings.ToLower(strings.TrimSpace(d.ClientType))
}

// Classify maps a descriptor to its wallet type.
func Classify(d Descriptor) Type {
	switch NormalizeClientType(d) {
	case "privy":
		return TypePrivyEmbedded
	case "phantom":
		return TypePhantom
	case "coinbase_wallet", "coinbase_smart_wallet":
		return TypeCoinbase
	case "metamask":
		return TypeMetaMask
	case "rabby_wallet", "rabby":
		return TypeRabby
	case "wallet_connect", "detected_ethereum_wallets":
		// Rabby often connects through a generic injected or WalletConnect connector.
		if mentionsRabby(d) {
			return TypeRabby
		}
		return TypeWalletConnect
	default:
		return TypeNone
	}
}

func mentionsRabby(d Descriptor) bool {
	for _, hint := range []string{d.ClientType, d.ConnectorType, d.WalletName} {
		if strings.Contains(strings.ToLower(hint), "rabby") {
			return true
		}
	}
	return false
}

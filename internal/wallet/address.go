package wallet

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ChecksumAddress returns the EIP-55 form of an EVM address. Non-EVM
// addresses (for example Solana) are returned trimmed but otherwise unchanged.
func ChecksumAddress(address string) string {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return address
	}
	return common.HexToAddress(address).Hex()
}

// DemoAddress derives a deterministic synthetic address for a demo user.
// It takes the last 20 bytes of keccak256(userID), like an EVM address
// derived from a public key.
func DemoAddress(userID string) string {
	hash := crypto.Keccak256([]byte("marketview-demo:" + userID))
	return common.BytesToAddress(hash[12:]).Hex()
}

// Shorten formats an address as 0x1234...abcd for display.
func Shorten(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

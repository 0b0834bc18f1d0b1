// Package gate decides whether a trade may be sent to the backend and, if
// so, sends it.
package gate

import (
	"regexp"
)

// Outcome is the result of evaluating trade eligibility.
type Outcome string

const (
	OutcomeEligible     Outcome = "eligible"
	OutcomeSyncRequired Outcome = "sync_required"
	OutcomeDisplayOnly  Outcome = "display_only"
	OutcomeNotTradable  Outcome = "not_tradable"
)

// User-facing rejection messages.
const (
	MsgBackendUnavailable = "Trading backend unavailable. Please refresh the page and try again, or check that the API is running."
	MsgConnectToSync      = "Connect your wallet so we can sync with the trading backend."
	MsgDisplayOnly        = "This market is for display only. To trade, open a market from the homepage (markets that load from the API)."
	MsgNotTradable        = "This market is not available for trading. Open a tradable market from the homepage."
	MsgConnectToTrade     = "Connect your wallet or use Dev Login, then open a tradable market from the homepage to trade."
)

var marketIDPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsValidMarketID reports whether id is a backend market ID (8-4-4-4-12 hex).
// Markets from static or demo data use other IDs and are display-only.
func IsValidMarketID(id string) bool {
	return marketIDPattern.MatchString(id)
}

// IsBinary reports whether a market with outcomeCount outcomes trades as
// yes/no. Multi-outcome markets are not tradable through the backend, and a
// count of 0 means the market could not be looked up.
func IsBinary(outcomeCount int) bool {
	return outcomeCount >= 1 && outcomeCount <= 2
}

// Eligibility holds the facts the gate decides on.
type Eligibility struct {
	ValidMarketID bool `json:"validMarketId"`
	BinaryOutcome bool `json:"binaryOutcome"`
	HasToken      bool `json:"hasToken"`
	Connected     bool `json:"connected"`
}

// Decision is the gate's verdict. Message is empty when eligible.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message,omitempty"`
}

// Eligible reports whether the trade may be sent.
func (d Decision) Eligible() bool {
	return d.Outcome == OutcomeEligible
}

// Evaluate applies the eligibility rules in order; the first match wins.
func Evaluate(e Eligibility) Decision {
	switch {
	case e.ValidMarketID && e.BinaryOutcome && e.HasToken:
		return Decision{Outcome: OutcomeEligible}

	case e.ValidMarketID && e.BinaryOutcome:
		if e.Connected {
			return Decision{Outcome: OutcomeSyncRequired, Message: MsgBackendUnavailable}
		}
		return Decision{Outcome: OutcomeSyncRequired, Message: MsgConnectToSync}

	case !e.ValidMarketID && e.HasToken:
		return Decision{Outcome: OutcomeDisplayOnly, Message: MsgDisplayOnly}

	default:
		if e.Connected {
			return Decision{Outcome: OutcomeNotTradable, Message: MsgNotTradable}
		}
		return Decision{Outcome: OutcomeNotTradable, Message: MsgConnectToTrade}
	}
}

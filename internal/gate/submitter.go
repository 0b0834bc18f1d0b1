package gate

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mselser95/marketview/internal/api"
	"github.com/mselser95/marketview/internal/quote"
	"github.com/mselser95/marketview/internal/session"
	"github.com/mselser95/marketview/pkg/types"
)

// Input validation messages.
const (
	MsgConnectWallet      = "Please connect your wallet first"
	MsgInvalidLimit       = "Please enter valid price and shares"
	MsgInvalidAmount      = "Please enter a valid amount"
	MsgPriceUnavailable   = "Market price is unavailable"
	MsgInvalidRequest     = "Invalid trade request"
	MsgLimitOrderPlaced   = "Limit order placed successfully!"
	MsgTradeExecuted      = "Trade executed successfully!"
	MsgDefaultSubmitError = "Failed to place order"
)

// Action is buy or sell.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// TradeRequest is a trade as entered in a trading widget.
type TradeRequest struct {
	MarketID     string          `json:"marketId" validate:"required"`
	OutcomeCount int             `json:"outcomeCount" validate:"gte=0"`
	Action       Action          `json:"action" validate:"omitempty,oneof=buy sell"`
	Side         quote.Side      `json:"side" validate:"required,oneof=yes no"`
	OrderType    quote.OrderType `json:"orderType" validate:"required,oneof=market limit"`
	Amount       float64         `json:"amount"`      // Market orders, in dollars
	MarketPrice  float64         `json:"marketPrice"` // Market orders, price of the chosen side
	Shares       float64         `json:"shares"`      // Limit orders
	LimitCents   float64         `json:"limitCents"`  // Limit orders
	Expiration   bool            `json:"expiration"`  // Limit orders expire at the end of the local day
}

// Status is the terminal state of a submission.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Result is what a submission produced. It is also the journal record.
type Result struct {
	Status      Status          `json:"status"`
	Decision    Outcome         `json:"decision,omitempty"`
	Message     string          `json:"message"`
	MarketID    string          `json:"marketId"`
	Action      Action          `json:"action"`
	Side        quote.Side      `json:"side"`
	OrderType   quote.OrderType `json:"orderType"`
	Quote       quote.Quote     `json:"quote"`
	UserID      string          `json:"userId,omitempty"`
	DevUser     bool            `json:"devUser"`
	Order       *types.Order    `json:"order,omitempty"`
	Trade       *types.Trade    `json:"trade,omitempty"`
	SubmittedAt time.Time       `json:"submittedAt"`
}

// Reference returns the backend identifier of the order or trade, if any.
func (r *Result) Reference() string {
	switch {
	case r.Trade != nil:
		return r.Trade.Reference()
	case r.Order != nil:
		return r.Order.ID
	default:
		return ""
	}
}

// SessionView is the part of the session manager the gate needs.
type SessionView interface {
	Snapshot() session.Session
	RetrySync(ctx context.Context) bool
}

// Trader sends orders and trades to the backend.
type Trader interface {
	PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.Order, error)
	ExecuteTrade(ctx context.Context, req types.ExecuteRequest) (*types.Trade, error)
}

// Journal records every submission result.
type Journal interface {
	Record(ctx context.Context, result *Result) error
}

// Config holds the submitter configuration.
type Config struct {
	Session SessionView
	Trader  Trader
	Journal Journal // Optional
	Now     func() time.Time
	Logger  *zap.Logger
}

// Submitter runs the submit flow: check the session, validate, retry sync
// once if needed, evaluate the gate, send, journal.
type Submitter struct {
	session  SessionView
	trader   Trader
	journal  Journal
	now      func() time.Time
	validate *validator.Validate
	logger   *zap.Logger
}

// New creates a new submitter.
func New(cfg *Config) (*Submitter, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Session == nil {
		return nil, errors.New("session cannot be nil")
	}

	if cfg.Trader == nil {
		return nil, errors.New("trader cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Submitter{
		session:  cfg.Session,
		trader:   cfg.Trader,
		journal:  cfg.Journal,
		now:      now,
		validate: validator.New(),
		logger:   cfg.Logger,
	}, nil
}

// Submit runs one trade submission. It never returns an error: every
// outcome, including backend failures, is described by the Result.
func (s *Submitter) Submit(ctx context.Context, req TradeRequest) *Result {
	if req.Action == "" {
		req.Action = ActionBuy
	}

	result := &Result{
		MarketID:    req.MarketID,
		Action:      req.Action,
		Side:        req.Side,
		OrderType:   req.OrderType,
		SubmittedAt: s.now(),
	}

	s.run(ctx, req, result)

	SubmissionsTotal.WithLabelValues(string(result.Status), string(result.Decision)).Inc()
	s.record(ctx, result)

	return result
}

func (s *Submitter) run(ctx context.Context, req TradeRequest, result *Result) {
	snap := s.session.Snapshot()
	result.UserID = snap.BackendUserID
	result.DevUser = snap.IsDevUser

	if !snap.Connected() {
		reject(result, "", MsgConnectWallet)
		return
	}

	q, msg := s.validateRequest(req)
	result.Quote = q
	if msg != "" {
		reject(result, "", msg)
		return
	}

	elig := Eligibility{
		ValidMarketID: IsValidMarketID(req.MarketID),
		BinaryOutcome: IsBinary(req.OutcomeCount),
		HasToken:      snap.HasToken(),
		Connected:     true,
	}

	if elig.ValidMarketID && elig.BinaryOutcome && !elig.HasToken && !snap.IsDevUser {
		RetrySyncsTotal.Inc()
		elig.HasToken = s.session.RetrySync(ctx)
		result.UserID = s.session.Snapshot().BackendUserID
	}

	decision := Evaluate(elig)
	result.Decision = decision.Outcome

	if !decision.Eligible() {
		reject(result, decision.Outcome, decision.Message)
		s.logger.Info("trade-rejected",
			zap.String("market-id", req.MarketID),
			zap.String("decision", string(decision.Outcome)))
		return
	}

	s.send(ctx, req, result)
}

// validateRequest checks the raw input and computes the quote. It returns a
// user-facing message when the request cannot be submitted.
func (s *Submitter) validateRequest(req TradeRequest) (quote.Quote, string) {
	err := s.validate.Struct(req)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			s.logger.Debug("trade-request-invalid", zap.String("field", verrs[0].Field()))
		}
		return quote.Quote{}, MsgInvalidRequest
	}

	switch req.OrderType {
	case quote.OrderTypeLimit:
		if req.LimitCents <= 0 || req.Shares <= 0 {
			return quote.Quote{}, MsgInvalidLimit
		}
		q := quote.LimitFromCents(req.Shares, req.LimitCents)
		if !q.CanSubmit {
			return q, MsgInvalidLimit
		}
		return q, ""

	default:
		if req.Amount <= 0 {
			return quote.Quote{}, MsgInvalidAmount
		}
		q := quote.Market(req.Amount, req.MarketPrice)
		if !q.CanSubmit {
			return q, MsgPriceUnavailable
		}
		return q, ""
	}
}

func (s *Submitter) send(ctx context.Context, req TradeRequest, result *Result) {
	side := types.SideBuy
	if req.Action == ActionSell {
		side = types.SideSell
	}

	outcome := types.OutcomeYes
	if req.Side == quote.SideNo {
		outcome = types.OutcomeNo
	}

	start := time.Now()
	defer func() {
		SubmitDurationSeconds.WithLabelValues(string(req.OrderType)).Observe(time.Since(start).Seconds())
	}()

	if req.OrderType == quote.OrderTypeLimit {
		orderReq := types.OrderRequest{
			MarketID: req.MarketID,
			Side:     side,
			Outcome:  outcome,
			Shares:   result.Quote.Shares,
			Price:    result.Quote.UnitPrice,
		}
		if req.Expiration {
			orderReq.ExpiresAt = EndOfDay(s.now())
		}

		order, err := s.trader.PlaceOrder(ctx, orderReq)
		if err != nil {
			s.fail(result, err)
			return
		}

		result.Status = StatusAccepted
		result.Order = order
		result.Message = MsgLimitOrderPlaced
		s.logger.Info("limit-order-placed",
			zap.String("market-id", req.MarketID),
			zap.String("order-id", order.ID),
			zap.Float64("price", orderReq.Price),
			zap.Float64("shares", orderReq.Shares))
		return
	}

	trade, err := s.trader.ExecuteTrade(ctx, types.ExecuteRequest{
		MarketID: req.MarketID,
		Side:     side,
		Outcome:  outcome,
		Shares:   result.Quote.Shares,
	})
	if err != nil {
		s.fail(result, err)
		return
	}

	result.Status = StatusAccepted
	result.Trade = trade
	result.Message = MsgTradeExecuted
	s.logger.Info("trade-executed",
		zap.String("market-id", req.MarketID),
		zap.String("reference", trade.Reference()),
		zap.Float64("shares", result.Quote.Shares))
}

func (s *Submitter) fail(result *Result, err error) {
	result.Status = StatusFailed
	result.Message = api.Message(err)
	if result.Message == "" {
		result.Message = MsgDefaultSubmitError
	}

	s.logger.Warn("trade-submit-failed",
		zap.String("market-id", result.MarketID),
		zap.Error(err))
}

func (s *Submitter) record(ctx context.Context, result *Result) {
	if s.journal == nil {
		return
	}

	err := s.journal.Record(context.WithoutCancel(ctx), result)
	if err != nil {
		JournalErrorsTotal.Inc()
		s.logger.Warn("journal-record-failed", zap.Error(err))
	}
}

func reject(result *Result, outcome Outcome, message string) {
	result.Status = StatusRejected
	result.Decision = outcome
	result.Message = message
}

// EndOfDay returns 23:59:59.999 of now's local day as an ISO-8601 UTC string.
func EndOfDay(now time.Time) string {
	y, m, d := now.Date()
	end := time.Date(y, m, d, 23, 59, 59, 999_000_000, now.Location())
	return end.UTC().Format("2006-01-02T15:04:05.000Z")
}

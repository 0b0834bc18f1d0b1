package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/marketview/internal/api"
	"github.com/mselser95/marketview/internal/gate"
	"github.com/mselser95/marketview/internal/quote"
	"github.com/mselser95/marketview/internal/session"
	"github.com/mselser95/marketview/pkg/types"
)

// SessionService is the session manager as seen by the API.
type SessionService interface {
	Snapshot() session.Session
	Observe(ctx context.Context, ps session.ProviderState)
	RetrySync(ctx context.Context) bool
	DevLogin(ctx context.Context) error
	Disconnect(ctx context.Context)
}

// ProviderRelay receives the provider's access token and reports logouts.
type ProviderRelay interface {
	SetAccessToken(token string)
	LogoutEpoch() uint64
	WaitLogout(ctx context.Context, since uint64) uint64
}

// TradeSubmitter runs the trade submission flow.
type TradeSubmitter interface {
	Submit(ctx context.Context, req gate.TradeRequest) *gate.Result
}

// MarketReader reads markets, their history and orderbooks.
type MarketReader interface {
	Market(ctx context.Context, id string) (*types.Market, error)
	Chart(ctx context.Context, marketID, rng string) ([]types.PricePoint, error)
	Trades(ctx context.Context, marketID, cursor string, limit int) (*types.TradesPage, error)
	Categories(ctx context.Context) ([]types.CategoryCount, error)
	Orderbook(ctx context.Context, marketID string) (*types.Orderbook, error)
}

// PriceReader returns live side prices.
type PriceReader interface {
	SidePrice(marketID string, side quote.Side, fallback float64) float64
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

type handler struct {
	session   SessionService
	provider  ProviderRelay
	submitter TradeSubmitter
	markets   MarketReader
	prices    PriceReader
	validate  *validator.Validate
	logger    *zap.Logger
}

// decode reads a JSON body into v and validates it. On failure the error
// response has already been written.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		h.writeError(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}

	err = h.validate.Struct(v)
	if err != nil {
		resp := ErrorResponse{Error: "validation failed"}

		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				resp.Fields = append(resp.Fields, fe.Field())
			}
		}

		h.writeJSON(w, http.StatusBadRequest, resp)
		return false
	}

	return true
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (h *handler) writeError(w http.ResponseWriter, message string, statusCode int) {
	h.writeJSON(w, statusCode, ErrorResponse{Error: message})
}

// writeBackendError maps a backend error onto a response status.
func (h *handler) writeBackendError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway

	var apiErr *types.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		status = http.StatusNotFound
	}

	h.writeError(w, api.Message(err), status)
}

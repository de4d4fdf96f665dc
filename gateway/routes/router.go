package routes

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tokensale/gateway/middleware"
	"tokensale/native/sale"
	"tokensale/observability/metrics"
)

// SaleAPI exposes the sale engine over HTTP.
type SaleAPI struct {
	engine   *sale.Engine
	receipts *sale.ReceiptLedger
	foreign  map[string]sale.TokenLedger
	logger   *slog.Logger
}

// NewSaleAPI assembles the handler set. The foreign map registers the token
// ledgers reachable through the recovery endpoint, keyed by symbol.
func NewSaleAPI(engine *sale.Engine, receipts *sale.ReceiptLedger, foreign map[string]sale.TokenLedger, logger *slog.Logger) *SaleAPI {
	if logger == nil {
		logger = slog.Default()
	}
	return &SaleAPI{engine: engine, receipts: receipts, foreign: foreign, logger: logger}
}

// Router builds the chi mux: public quote/status routes, authenticated buy
// and admin routes, receipts, metrics and health.
func (api *SaleAPI) Router(auth *middleware.Authenticator, limiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(instrument)
	if limiter != nil {
		r.Use(limiter.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/sale", func(r chi.Router) {
		r.Get("/status", api.handleStatus)
		r.Get("/quote", api.handleQuote)

		r.Group(func(r chi.Router) {
			if auth != nil {
				r.Use(auth.Middleware)
			}
			r.Post("/buy", api.handleBuy)
			r.Get("/receipts", api.handleReceipts)
			r.Get("/receipts/export", api.handleReceiptsExport)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/price", api.handleSetPrice)
				r.Post("/treasury", api.handleSetTreasury)
				r.Post("/pause", api.handleSetPaused)
				r.Post("/withdraw", api.handleWithdraw)
				r.Post("/recover", api.handleRecover)
				r.Post("/sweep", api.handleSweep)
				r.Post("/ownership/initiate", api.handleOwnershipInitiate)
				r.Post("/ownership/accept", api.handleOwnershipAccept)
			})
		})
	})
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		metrics.Sale().ObserveRequest(r.URL.Path, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Error string `json:"error"`
}

func (api *SaleAPI) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
}

// statusFor maps engine errors onto HTTP status codes: caller mistakes are
// 400, authorization 403, state conflicts 409, collaborator failures 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sale.ErrNotAdministrator),
		errors.Is(err, sale.ErrNotPendingAdministrator):
		return http.StatusForbidden
	case errors.Is(err, sale.ErrZeroPayment),
		errors.Is(err, sale.ErrZeroAddress),
		errors.Is(err, sale.ErrZeroQuote),
		errors.Is(err, sale.ErrInvalidPrice),
		errors.Is(err, sale.ErrMulDivOverflow),
		errors.Is(err, sale.ErrDivisionByZero):
		return http.StatusBadRequest
	case errors.Is(err, sale.ErrPaused),
		errors.Is(err, sale.ErrNotPaused),
		errors.Is(err, sale.ErrReentrancy),
		errors.Is(err, sale.ErrSlippageExceeded),
		errors.Is(err, sale.ErrInsufficientInventory),
		errors.Is(err, sale.ErrCannotRecoverSaleAsset):
		return http.StatusConflict
	case errors.Is(err, sale.ErrTransferCallFailed),
		errors.Is(err, sale.ErrTransferDeclined),
		errors.Is(err, sale.ErrForwardFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// failureReason labels rejected buys for metrics.
func failureReason(err error) string {
	switch {
	case errors.Is(err, sale.ErrPaused):
		return "paused"
	case errors.Is(err, sale.ErrZeroPayment):
		return "zero_payment"
	case errors.Is(err, sale.ErrZeroAddress):
		return "zero_address"
	case errors.Is(err, sale.ErrZeroQuote):
		return "zero_quote"
	case errors.Is(err, sale.ErrSlippageExceeded):
		return "slippage"
	case errors.Is(err, sale.ErrInsufficientInventory):
		return "inventory"
	case errors.Is(err, sale.ErrReentrancy):
		return "reentrancy"
	case errors.Is(err, sale.ErrMulDivOverflow):
		return "overflow"
	case errors.Is(err, sale.ErrForwardFailed):
		return "forward_failed"
	case errors.Is(err, sale.ErrTransferCallFailed), errors.Is(err, sale.ErrTransferDeclined):
		return "transfer_failed"
	default:
		return "other"
	}
}

func parseAmount(raw string) (uint64, error) {
	return strconv.ParseUint(raw, 10, 64)
}

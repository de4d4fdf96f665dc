package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tokensale/core/types"
	"tokensale/gateway/middleware"
	"tokensale/native/sale"
	"tokensale/observability/metrics"
)

type statusResponse struct {
	Administrator        string `json:"administrator"`
	PendingAdministrator string `json:"pendingAdministrator,omitempty"`
	Treasury             string `json:"treasury"`
	Paused               bool   `json:"paused"`
	UnitSize             string `json:"unitSize"`
	PricePerUnit         string `json:"pricePerUnit"`
	TotalInRaised        string `json:"totalInRaised"`
	TotalOutSold         string `json:"totalOutSold"`
}

func (api *SaleAPI) handleStatus(w http.ResponseWriter, _ *http.Request) {
	state := api.engine.Snapshot()
	resp := statusResponse{
		Administrator: state.Administrator.Hex(),
		Treasury:      state.Treasury.Hex(),
		Paused:        state.Paused,
		UnitSize:      strconv.FormatUint(state.UnitSize, 10),
		PricePerUnit:  strconv.FormatUint(state.PricePerUnit, 10),
		TotalInRaised: strconv.FormatUint(state.TotalInRaised, 10),
		TotalOutSold:  strconv.FormatUint(state.TotalOutSold, 10),
	}
	if !state.PendingAdministrator.IsZero() {
		resp.PendingAdministrator = state.PendingAdministrator.Hex()
	}
	writeJSON(w, http.StatusOK, resp)
}

type quoteResponse struct {
	PaymentAmount string `json:"paymentAmount"`
	AssetAmount   string `json:"assetAmount"`
}

func (api *SaleAPI) handleQuote(w http.ResponseWriter, r *http.Request) {
	payment, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		api.writeError(w, fmt.Errorf("%w: amount query parameter", sale.ErrZeroPayment))
		return
	}
	assetAmount, err := api.engine.Quote(payment)
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		PaymentAmount: strconv.FormatUint(payment, 10),
		AssetAmount:   strconv.FormatUint(assetAmount, 10),
	})
}

type buyRequest struct {
	Recipient     string `json:"recipient"`
	PaymentAmount string `json:"paymentAmount"`
	MinAssetOut   string `json:"minAssetOut"`
}

type buyResponse struct {
	AssetAmount string `json:"assetAmount"`
}

func (api *SaleAPI) handleBuy(w http.ResponseWriter, r *http.Request) {
	payer, ok := middleware.Caller(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	recipient := payer
	if strings.TrimSpace(req.Recipient) != "" {
		parsed, err := types.ParseAddress(req.Recipient)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		recipient = parsed
	}
	payment, err := parseAmount(req.PaymentAmount)
	if err != nil {
		http.Error(w, "malformed paymentAmount", http.StatusBadRequest)
		return
	}
	var minOut uint64
	if strings.TrimSpace(req.MinAssetOut) != "" {
		minOut, err = parseAmount(req.MinAssetOut)
		if err != nil {
			http.Error(w, "malformed minAssetOut", http.StatusBadRequest)
			return
		}
	}
	assetAmount, err := api.engine.Buy(payer, recipient, payment, minOut)
	if err != nil {
		metrics.Sale().RecordPurchaseFailure(failureReason(err))
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buyResponse{AssetAmount: strconv.FormatUint(assetAmount, 10)})
}

type receiptItem struct {
	ID           string `json:"id"`
	Payer        string `json:"payer"`
	Recipient    string `json:"recipient"`
	PaymentIn    string `json:"paymentIn"`
	AssetOut     string `json:"assetOut"`
	PricePerUnit string `json:"pricePerUnit"`
	UnitSize     string `json:"unitSize"`
	CreatedAt    int64  `json:"createdAt"`
}

type receiptsResponse struct {
	Receipts   []receiptItem `json:"receipts"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

func (api *SaleAPI) handleReceipts(w http.ResponseWriter, r *http.Request) {
	if api.receipts == nil {
		http.Error(w, "receipts disabled", http.StatusNotFound)
		return
	}
	query := r.URL.Query()
	startTs := parseTimestamp(query.Get("start"))
	endTs := parseTimestamp(query.Get("end"))
	limit := 100
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	receipts, cursor, err := api.receipts.List(startTs, endTs, query.Get("cursor"), limit)
	if err != nil {
		api.writeError(w, err)
		return
	}
	resp := receiptsResponse{Receipts: make([]receiptItem, 0, len(receipts)), NextCursor: cursor}
	for _, receipt := range receipts {
		resp.Receipts = append(resp.Receipts, receiptItem{
			ID:           receipt.ID,
			Payer:        receipt.Payer.Hex(),
			Recipient:    receipt.Recipient.Hex(),
			PaymentIn:    strconv.FormatUint(receipt.PaymentIn, 10),
			AssetOut:     strconv.FormatUint(receipt.AssetOut, 10),
			PricePerUnit: strconv.FormatUint(receipt.PricePerUnit, 10),
			UnitSize:     strconv.FormatUint(receipt.UnitSize, 10),
			CreatedAt:    receipt.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type exportResponse struct {
	CSVBase64 string `json:"csvBase64"`
	Count     int    `json:"count"`
	TotalIn   string `json:"totalIn"`
	TotalOut  string `json:"totalOut"`
}

func (api *SaleAPI) handleReceiptsExport(w http.ResponseWriter, r *http.Request) {
	if api.receipts == nil {
		http.Error(w, "receipts disabled", http.StatusNotFound)
		return
	}
	query := r.URL.Query()
	encoded, count, totalIn, totalOut, err := api.receipts.ExportCSV(parseTimestamp(query.Get("start")), parseTimestamp(query.Get("end")))
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{
		CSVBase64: encoded,
		Count:     count,
		TotalIn:   strconv.FormatUint(totalIn, 10),
		TotalOut:  strconv.FormatUint(totalOut, 10),
	})
}

func parseTimestamp(raw string) int64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

package routes

import (
	"encoding/json"
	"net/http"
	"strings"

	"tokensale/core/types"
	"tokensale/gateway/middleware"
)

type okBody struct {
	OK bool `json:"ok"`
}

func (api *SaleAPI) adminCaller(w http.ResponseWriter, r *http.Request) (types.Address, bool) {
	caller, ok := middleware.Caller(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return types.Address{}, false
	}
	return caller, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return false
	}
	return true
}

func parseBodyAddress(w http.ResponseWriter, raw, field string) (types.Address, bool) {
	addr, err := types.ParseAddress(raw)
	if err != nil {
		http.Error(w, "malformed "+field, http.StatusBadRequest)
		return types.Address{}, false
	}
	return addr, true
}

func parseBodyAmount(w http.ResponseWriter, raw, field string) (uint64, bool) {
	amount, err := parseAmount(raw)
	if err != nil {
		http.Error(w, "malformed "+field, http.StatusBadRequest)
		return 0, false
	}
	return amount, true
}

func (api *SaleAPI) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.adminCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		Price string `json:"price"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	price, ok := parseBodyAmount(w, req.Price, "price")
	if !ok {
		return
	}
	if err := api.engine.SetPrice(caller, price); err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody{OK: true})
}

func (api *SaleAPI) handleSetTreasury(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.adminCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		Treasury string `json:"treasury"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	treasury, ok := parseBodyAddress(w, req.Treasury, "treasury")
	if !ok {
		return
	}
	if err := api.engine.SetTreasury(caller, treasury); err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody{OK: true})
}

func (api *SaleAPI) handleSetPaused(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.adminCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		Paused bool `json:"paused"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := api.engine.SetPaused(caller, req.Paused); err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody{OK: true})
}

func (api *SaleAPI) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.adminCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	to, ok := parseBodyAddress(w, req.To, "to")
	if !ok {
		return
	}
	amount, ok := parseBodyAmount(w, req.Amount, "amount")
	if !ok {
		return
	}
	if err := api.engine.WithdrawUnsoldInventory(caller, to, amount); err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody{OK: true})
}

func (api *SaleAPI) handleRecover(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.adminCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		Asset  string `json:"asset"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	asset, found := api.foreign[strings.ToUpper(strings.TrimSpace(req.Asset))]
	if !found {
		http.Error(w, "unknown asset", http.StatusNotFound)
		return
	}
	to, ok := parseBodyAddress(w, req.To, "to")
	if !ok {
		return
	}
	amount, ok := parseBodyAmount(w, req.Amount, "amount")
	if !ok {
		return
	}
	if err := api.engine.RecoverForeignAsset(caller, asset, to, amount); err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody{OK: true})
}

func (api *SaleAPI) handleSweep(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.adminCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	to, ok := parseBodyAddress(w, req.To, "to")
	if !ok {
		return
	}
	amount, ok := parseBodyAmount(w, req.Amount, "amount")
	if !ok {
		return
	}
	if err := api.engine.SweepBaseCurrency(caller, to, amount); err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody{OK: true})
}

func (api *SaleAPI) handleOwnershipInitiate(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.adminCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		NewAdmin string `json:"newAdmin"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	newAdmin, ok := parseBodyAddress(w, req.NewAdmin, "newAdmin")
	if !ok {
		return
	}
	if err := api.engine.InitiateOwnershipTransfer(caller, newAdmin); err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody{OK: true})
}

func (api *SaleAPI) handleOwnershipAccept(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.adminCaller(w, r)
	if !ok {
		return
	}
	if err := api.engine.AcceptOwnershipTransfer(caller); err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody{OK: true})
}

package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"driverpay.service/internal/ports/repository"
)

// DriverHandler serves read-only views over the entry store for operators.
type DriverHandler struct {
	Store repository.Store
}

type TotalsResponse struct {
	DriverID int64  `json:"driverId"`
	Income   string `json:"income"`
	Cash     string `json:"cash"`
	Balance  string `json:"balance"`
}

func (h *DriverHandler) GetTotals(w http.ResponseWriter, r *http.Request) {
	driverID, err := strconv.ParseInt(mux.Vars(r)["driverId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid driver id", http.StatusBadRequest)
		return
	}

	income, cash, err := h.Store.DriverTotals(r.Context(), driverID)
	if err != nil {
		http.Error(w, "Service error computing totals", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TotalsResponse{
		DriverID: driverID,
		Income:   income.StringFixed(2),
		Cash:     cash.StringFixed(2),
		Balance:  cash.Sub(income).Round(2).StringFixed(2),
	})
}

func (h *DriverHandler) GetEntries(w http.ResponseWriter, r *http.Request) {
	driverID, err := strconv.ParseInt(mux.Vars(r)["driverId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid driver id", http.StatusBadRequest)
		return
	}

	entries, err := h.Store.ListDriverEntries(r.Context(), driverID)
	if err != nil {
		http.Error(w, "Service error loading entries", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

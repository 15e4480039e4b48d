package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"driverpay.service/internal/api/handler"
	"driverpay.service/internal/ports/repository"
)

// NewRouter sets up the gorilla/mux router and defines all admin API routes.
func NewRouter(store repository.Store) *mux.Router {

	driverHandler := handler.DriverHandler{
		Store: store,
	}

	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/drivers/{driverId}/totals", driverHandler.GetTotals).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{driverId}/entries", driverHandler.GetEntries).Methods(http.MethodGet)
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Service is operational."))
	}).Methods(http.MethodGet)

	return r
}

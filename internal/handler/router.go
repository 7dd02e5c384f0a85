package handler

import (
	"net/http"

	"github.com/Dan9191/lending-service/internal/config"
	"github.com/Dan9191/lending-service/internal/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// NewRouter mounts every route. Admin routes exist only in development.
func NewRouter(h *Handler, auth middleware.Authenticator, cfg *config.Config, log *logrus.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(log))

	// Public routes
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/market/reference-rate", h.ReferenceRate).Methods(http.MethodGet)

	// Protected routes
	api := r.PathPrefix("/").Subrouter()
	api.Use(middleware.AuthMiddleware(auth, log))
	api.HandleFunc("/user/profile", h.Profile).Methods(http.MethodGet)
	api.HandleFunc("/user/kyc/start", h.StartKYC).Methods(http.MethodPost)
	api.HandleFunc("/wallet/balance", h.Balance).Methods(http.MethodGet)
	api.HandleFunc("/wallet/transactions", h.Transactions).Methods(http.MethodGet)
	api.HandleFunc("/wallet/transfer", h.Transfer).Methods(http.MethodPost)
	api.HandleFunc("/marketplace/offers", h.CreateOffer).Methods(http.MethodPost)
	api.HandleFunc("/marketplace/offers", h.ListOffers).Methods(http.MethodGet)
	api.HandleFunc("/marketplace/searches", h.CreateSearch).Methods(http.MethodPost)
	api.HandleFunc("/marketplace/matches/{searchID}", h.Matches).Methods(http.MethodGet)
	api.HandleFunc("/offers/{offerID}/accept", h.AcceptOffer).Methods(http.MethodPost)
	api.HandleFunc("/loans", h.ListLoans).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanID}", h.GetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanID}/pay", h.PayInstallment).Methods(http.MethodPost)

	if cfg.IsDevelopment() {
		api.HandleFunc("/admin/users/{userID}/kyc", h.SetKYC).Methods(http.MethodPost)
		api.HandleFunc("/admin/deposit", h.Deposit).Methods(http.MethodPost)
		api.HandleFunc("/admin/withdraw", h.Withdraw).Methods(http.MethodPost)
	}
	return r
}

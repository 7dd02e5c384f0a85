package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Dan9191/lending-service/internal/middleware"
	"github.com/Dan9191/lending-service/internal/models"
	"github.com/Dan9191/lending-service/internal/service"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// actor is set by the auth middleware on every protected route
func actor(r *http.Request) models.Actor {
	a, _ := middleware.ActorFrom(r.Context())
	return a
}

type registerRequest struct {
	Email       string            `json:"email"`
	Password    string            `json:"password"`
	EntityType  models.EntityType `json:"entity_type"`
	FullName    string            `json:"full_name"`
	TradeName   string            `json:"trade_name"`
	Document    string            `json:"document"`
	BirthDate   string            `json:"birth_or_foundation_date"`
	CreditScore int               `json:"credit_score"`
	Sector      string            `json:"sector"`
	Region      string            `json:"region"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var birthDate *time.Time
	if req.BirthDate != "" {
		d, err := time.Parse(time.DateOnly, req.BirthDate)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: birth_or_foundation_date must be YYYY-MM-DD", service.ErrInvalidArgument))
			return
		}
		birthDate = &d
	}

	user, err := h.svc.Register(r.Context(), service.RegisterRequest{
		Email:       req.Email,
		Password:    req.Password,
		EntityType:  req.EntityType,
		FullName:    req.FullName,
		TradeName:   req.TradeName,
		Document:    req.Document,
		BirthDate:   birthDate,
		CreditScore: req.CreditScore,
		Sector:      req.Sector,
		Region:      req.Region,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Profile(r.Context(), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) StartKYC(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.StartKYC(r.Context(), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": user.ID, "kyc_status": user.KYCStatus})
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.Balance(r.Context(), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.History(r.Context(), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if history == nil {
		history = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, history)
}

// Transfer moves money to another user
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DestinationUserID int64           `json:"destination_user_id"`
		Amount            decimal.Decimal `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	entry, err := h.svc.Transfer(r.Context(), actor(r), service.TransferRequest{
		DestinationUserID: req.DestinationUserID,
		Amount:            req.Amount,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type offerRequest struct {
	MaxAmount      decimal.Decimal `json:"max_amount"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	TermMonths     int             `json:"term_months"`
	MinCreditScore int             `json:"min_credit_score"`
	EligibleSector string          `json:"eligible_sector"`
	ExpiresAt      *time.Time      `json:"expires_at"`
}

func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	offer, err := h.svc.CreateOffer(r.Context(), actor(r), service.OfferRequest(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}

func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.svc.ListOffers(r.Context(), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if offers == nil {
		offers = []models.CreditOffer{}
	}
	writeJSON(w, http.StatusOK, offers)
}

type searchRequest struct {
	DesiredAmount     decimal.Decimal `json:"desired_amount"`
	MaxInterestRate   decimal.Decimal `json:"max_interest_rate"`
	DesiredTermMonths int             `json:"desired_term_months"`
	ExpiresAt         *time.Time      `json:"expires_at"`
}

func (h *Handler) CreateSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	search, err := h.svc.CreateSearch(r.Context(), actor(r), service.SearchRequest(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, search)
}

func (h *Handler) Matches(w http.ResponseWriter, r *http.Request) {
	searchID, err := pathID(r, "searchID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	offers, err := h.svc.MatchingOffers(r.Context(), actor(r), searchID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if offers == nil {
		offers = []models.CreditOffer{}
	}
	writeJSON(w, http.StatusOK, offers)
}

// AcceptOffer turns an offer into a loan for the caller
func (h *Handler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	offerID, err := pathID(r, "offerID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		Amount   decimal.Decimal `json:"amount"`
		SearchID *int64          `json:"search_id"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	loan, err := h.svc.AcceptOffer(r.Context(), actor(r), service.AcceptOfferRequest{
		OfferID:  offerID,
		Amount:   req.Amount,
		SearchID: req.SearchID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.svc.ListLoans(r.Context(), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if loans == nil {
		loans = []models.Loan{}
	}
	writeJSON(w, http.StatusOK, loans)
}

func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "loanID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	loan, err := h.svc.GetLoan(r.Context(), actor(r), loanID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// PayInstallment settles the next pending installment of a loan
func (h *Handler) PayInstallment(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "loanID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	installment, err := h.svc.PayNextInstallment(r.Context(), actor(r), loanID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, installment)
}

func (h *Handler) ReferenceRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.svc.ReferenceRate(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reference_rate": rate.StringFixed(2)})
}

func (h *Handler) SetKYC(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		Status models.KYCStatus `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.svc.SetKYCStatus(r.Context(), actor(r), userID, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type adjustRequest struct {
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	account, err := h.svc.Deposit(r.Context(), actor(r), req.UserID, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	account, err := h.svc.Withdraw(r.Context(), actor(r), req.UserID, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

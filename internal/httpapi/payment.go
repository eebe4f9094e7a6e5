package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopflow/internal/payment"
	"shopflow/internal/trace"
)

type PaymentServer struct {
	accounts *payment.AccountService
	trace    *trace.Store
	logger   *slog.Logger
	mux      *http.ServeMux
}

func NewPaymentServer(accounts *payment.AccountService, traceStore *trace.Store, logger *slog.Logger) *PaymentServer {
	s := &PaymentServer{
		accounts: accounts,
		trace:    traceStore,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *PaymentServer) routes() {
	s.mux.HandleFunc("POST /accounts", s.createAccount)
	s.mux.HandleFunc("POST /accounts/deposit", s.deposit)
	s.mux.HandleFunc("GET /accounts/balance", s.balance)
	mountTrace(s.mux, s.trace)
}

func (s *PaymentServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *PaymentServer) createAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID string `json:"customerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	if err := s.accounts.Create(r.Context(), customerID); err != nil {
		if errors.Is(err, payment.ErrAccountExists) {
			writeError(w, http.StatusConflict, "account already exists")
			return
		}
		s.logger.Error("create account", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (s *PaymentServer) deposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID string          `json:"customerId"`
		Amount     decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	balance, err := s.accounts.Deposit(r.Context(), customerID, req.Amount)
	if err != nil {
		if errors.Is(err, payment.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

func (s *PaymentServer) balance(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(r.URL.Query().Get("customerId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	balance, err := s.accounts.GetBalance(r.Context(), customerID)
	if err != nil {
		if errors.Is(err, payment.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		s.logger.Error("get balance", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

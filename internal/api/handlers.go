/**
 * @description
 * This file contains the HTTP handlers for the ledger-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http, strconv: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, and custom errors.
 * - pkg/partnerclient: Remote error taxonomy for status mapping.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/app"
	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/domain"
	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/store"
	"github.com/unk029-openconsultinguk/unk029-bank-app/pkg/partnerclient"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service *app.Service
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service) *LedgerHandlers {
	return &LedgerHandlers{service: service}
}

// CreateAccountHandler opens a new account.
func (h *LedgerHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	acct, err := h.service.CreateAccount(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, acct)
}

// GetAccountHandler returns the caller's account.
func (h *LedgerHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountNo, ok := h.accountNoParam(w, r)
	if !ok {
		return
	}
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	acct, err := h.service.GetAccount(r.Context(), caller, accountNo)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, acct.Summary())
}

// UpdateAccountHandler applies a partial update to the caller's account.
func (h *LedgerHandlers) UpdateAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountNo, ok := h.accountNoParam(w, r)
	if !ok {
		return
	}
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	var upd domain.AccountUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	acct, err := h.service.UpdateAccount(r.Context(), caller, accountNo, upd)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, acct)
}

// LoginHandler verifies credentials and returns the account summary.
func (h *LedgerHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	acct, err := h.service.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, app.ErrInvalidPassword) {
			h.writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, acct.Summary())
}

// ValidateSortCodeHandler checks a sort code against the account's own.
func (h *LedgerHandlers) ValidateSortCodeHandler(w http.ResponseWriter, r *http.Request) {
	accountNo, ok := h.accountNoParam(w, r)
	if !ok {
		return
	}

	var req struct {
		SortCode string `json:"sort_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.ValidateSortCode(r.Context(), accountNo, req.SortCode); err != nil {
		if errors.Is(err, app.ErrSortCodeMismatch) {
			h.writeJSON(w, http.StatusOK, map[string]bool{"valid": false})
			return
		}
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// DepositHandler credits the caller's account.
func (h *LedgerHandlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	accountNo, ok := h.accountNoParam(w, r)
	if !ok {
		return
	}
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	var req domain.AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	change, err := h.service.Deposit(r.Context(), caller, accountNo, req.Amount)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, change)
}

// WithdrawHandler debits the caller's account.
func (h *LedgerHandlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	accountNo, ok := h.accountNoParam(w, r)
	if !ok {
		return
	}
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	var req domain.AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	change, err := h.service.Withdraw(r.Context(), caller, accountNo, req.Amount)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, change)
}

// TransferHandler moves funds between two accounts at this bank.
func (h *LedgerHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.InternalTransfer(r.Context(), caller, req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// CrossBankTransferHandler routes a transfer by destination sort code.
func (h *LedgerHandlers) CrossBankTransferHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	var req domain.CrossBankTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.CrossBankTransfer(r.Context(), caller, req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ListTransactionsHandler returns the caller's transaction history.
func (h *LedgerHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	accountNo, ok := h.accountNoParam(w, r)
	if !ok {
		return
	}
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	records, err := h.service.GetTransactions(r.Context(), caller, accountNo)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if records == nil {
		records = []domain.TransactionRecord{}
	}
	h.writeJSON(w, http.StatusOK, records)
}

// ListBanksHandler returns the partner bank directory.
func (h *LedgerHandlers) ListBanksHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.ListBanks(r.Context()))
}

// AddPayeeHandler saves a payee to the caller's address book.
func (h *LedgerHandlers) AddPayeeHandler(w http.ResponseWriter, r *http.Request) {
	accountNo, ok := h.accountNoParam(w, r)
	if !ok {
		return
	}
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	var payee domain.Payee
	if err := json.NewDecoder(r.Body).Decode(&payee); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	payee.UserAccountNo = accountNo

	saved, err := h.service.AddPayee(r.Context(), caller, payee)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, saved)
}

// ListPayeesHandler returns the caller's saved payees.
func (h *LedgerHandlers) ListPayeesHandler(w http.ResponseWriter, r *http.Request) {
	accountNo, ok := h.accountNoParam(w, r)
	if !ok {
		return
	}
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	payees, err := h.service.ListPayees(r.Context(), caller, accountNo)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if payees == nil {
		payees = []domain.Payee{}
	}
	h.writeJSON(w, http.StatusOK, payees)
}

// accountNoParam parses the {accountNo} URL parameter.
func (h *LedgerHandlers) accountNoParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "accountNo")
	accountNo, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account number")
		return 0, false
	}
	return accountNo, true
}

// requireCaller retrieves the caller identity placed in the context by the
// CallerIdentity middleware and rejects the request when it is absent.
func (h *LedgerHandlers) requireCaller(w http.ResponseWriter, r *http.Request) (int64, bool) {
	caller, ok := CallerAccountNo(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "X-Account-No header is required")
		return 0, false
	}
	return caller, true
}

// respondServiceError maps service and store errors onto HTTP status codes.
func (h *LedgerHandlers) respondServiceError(w http.ResponseWriter, err error) {
	var remoteErr *partnerclient.RemoteError
	switch {
	case errors.Is(err, app.ErrUnauthorized):
		h.writeError(w, http.StatusForbidden, "You do not own this account")
	case errors.Is(err, app.ErrInvalidPassword):
		h.writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidAmount), errors.Is(err, app.ErrSameAccount),
		errors.Is(err, app.ErrUnknownSortCode), errors.Is(err, app.ErrUnknownBankCode),
		errors.Is(err, app.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &remoteErr), errors.Is(err, partnerclient.ErrRemoteUnreachable),
		errors.Is(err, partnerclient.ErrUnsupportedTransferMethod):
		// The local debit has already been refunded; surface the remote reason.
		h.writeError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("level=error component=api msg=\"unhandled service error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dolaglobo/mmf-ledger/internal/models"
	"github.com/dolaglobo/mmf-ledger/internal/service"
	u "github.com/dolaglobo/mmf-ledger/internal/utils"
)

type AdminHandler struct {
	transactionService service.TransactionService
	interestService    service.InterestService
	adminService       service.AdminService
	logger             *slog.Logger
}

func NewAdminHandler(transactionService service.TransactionService, interestService service.InterestService, adminService service.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		transactionService: transactionService,
		interestService:    interestService,
		adminService:       adminService,
		logger:             logger,
	}
}

func (h *AdminHandler) RegisterRoutes(router *mux.Router, authMW *AuthMiddleware) {
	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(authMW.RequireAdmin)

	admin.HandleFunc("/transactions", h.ListTransactions).Methods(http.MethodGet)
	admin.HandleFunc("/transactions/{id}/verify", h.VerifyDeposit).Methods(http.MethodPost)
	admin.HandleFunc("/transactions/{id}/status", h.UpdateStatus).Methods(http.MethodPatch)
	admin.HandleFunc("/customers/{id}/balance", h.AdjustBalance).Methods(http.MethodPost)
	admin.HandleFunc("/customers/{id}", h.UpdateCustomer).Methods(http.MethodPatch)
	admin.HandleFunc("/interest/distribute", h.DistributeInterest).Methods(http.MethodPost)
	admin.HandleFunc("/audit-logs", h.ListAuditLogs).Methods(http.MethodGet)
	admin.HandleFunc("/statements", h.ListStatements).Methods(http.MethodGet)
	admin.HandleFunc("/statements/{id}", h.ProcessStatement).Methods(http.MethodPatch)
}

func (h *AdminHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	status := models.TransactionStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.StatusPendingVerification
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	transactions, err := h.transactionService.ListByStatus(r.Context(), actor, status, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "list transactions by status")
		return
	}
	if transactions == nil {
		transactions = []*models.Transaction{}
	}
	u.WriteJSON(w, http.StatusOK, transactions)
}

func (h *AdminHandler) VerifyDeposit(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	transactionID := mux.Vars(r)["id"]

	var req models.VerifyTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	transaction, err := h.transactionService.VerifyDeposit(r.Context(), actor, transactionID, req.Approve, req.Note)
	if err != nil {
		writeServiceError(w, h.logger, err, "verify deposit")
		return
	}
	u.WriteJSON(w, http.StatusOK, transaction)
}

func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	transactionID := mux.Vars(r)["id"]

	var req models.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	transaction, err := h.transactionService.UpdateStatus(r.Context(), actor, transactionID, req.Status, req.Note)
	if err != nil {
		writeServiceError(w, h.logger, err, "update transaction status")
		return
	}
	u.WriteJSON(w, http.StatusOK, transaction)
}

func (h *AdminHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	ownerID := mux.Vars(r)["id"]

	var req models.AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	transaction, account, err := h.transactionService.AdjustBalance(r.Context(), actor, ownerID,
		service.AdjustmentKind(req.Kind), req.Amount, req.Reason)
	if err != nil {
		writeServiceError(w, h.logger, err, "adjust balance")
		return
	}
	u.WriteJSON(w, http.StatusOK, map[string]any{
		"transaction": transaction,
		"account":     account,
	})
}

func (h *AdminHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	customerID := mux.Vars(r)["id"]

	var req models.UpdateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	user, err := h.adminService.UpdateCustomerContact(r.Context(), actor, customerID, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "update customer")
		return
	}
	u.WriteJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) DistributeInterest(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	var req models.DistributeInterestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	report, err := h.interestService.Distribute(r.Context(), actor, req.OwnerID, req.Rate)
	if err != nil {
		writeServiceError(w, h.logger, err, "distribute interest")
		return
	}
	u.WriteJSON(w, http.StatusOK, report)
}

func (h *AdminHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.adminService.ListAuditLog(r.Context(), actor, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "list audit logs")
		return
	}
	if entries == nil {
		entries = []*models.AuditLogEntry{}
	}
	u.WriteJSON(w, http.StatusOK, entries)
}

func (h *AdminHandler) ListStatements(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	status := models.StatementStatus(r.URL.Query().Get("status"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	requests, err := h.adminService.ListStatements(r.Context(), actor, status, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "list statement requests")
		return
	}
	if requests == nil {
		requests = []*models.StatementRequest{}
	}
	u.WriteJSON(w, http.StatusOK, requests)
}

func (h *AdminHandler) ProcessStatement(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	requestID := mux.Vars(r)["id"]

	var req models.ProcessStatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	request, err := h.adminService.ProcessStatement(r.Context(), actor, requestID, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "process statement")
		return
	}
	u.WriteJSON(w, http.StatusOK, request)
}

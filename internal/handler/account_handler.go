package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dolaglobo/mmf-ledger/internal/models"
	"github.com/dolaglobo/mmf-ledger/internal/service"
	u "github.com/dolaglobo/mmf-ledger/internal/utils"
)

type AccountHandler struct {
	accountService     service.AccountService
	transactionService service.TransactionService
	logger             *slog.Logger
}

func NewAccountHandler(accountService service.AccountService, transactionService service.TransactionService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accountService:     accountService,
		transactionService: transactionService,
		logger:             logger,
	}
}

func (h *AccountHandler) RegisterRoutes(router *mux.Router, authMW *AuthMiddleware) {
	router.Handle("/account", authMW.Require(http.HandlerFunc(h.GetAccount))).Methods(http.MethodGet)
	router.Handle("/transactions", authMW.Require(http.HandlerFunc(h.ListTransactions))).Methods(http.MethodGet)
	router.Handle("/statements", authMW.Require(http.HandlerFunc(h.RequestStatement))).Methods(http.MethodPost)
	router.Handle("/statements", authMW.Require(http.HandlerFunc(h.ListStatements))).Methods(http.MethodGet)
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	account, err := h.accountService.GetAccount(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "get account")
		return
	}
	u.WriteJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	transactions, err := h.transactionService.ListByOwner(r.Context(), actor.ID, 100)
	if err != nil {
		writeServiceError(w, h.logger, err, "list transactions")
		return
	}
	if transactions == nil {
		transactions = []*models.Transaction{}
	}
	u.WriteJSON(w, http.StatusOK, transactions)
}

func (h *AccountHandler) RequestStatement(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	var req models.CreateStatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	request, err := h.accountService.RequestStatement(r.Context(), actor.ID, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "request statement")
		return
	}
	u.WriteJSON(w, http.StatusCreated, request)
}

func (h *AccountHandler) ListStatements(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	requests, err := h.accountService.ListStatements(r.Context(), actor.ID, 100)
	if err != nil {
		writeServiceError(w, h.logger, err, "list statements")
		return
	}
	if requests == nil {
		requests = []*models.StatementRequest{}
	}
	u.WriteJSON(w, http.StatusOK, requests)
}

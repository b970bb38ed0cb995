package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dolaglobo/mmf-ledger/internal/models"
	"github.com/dolaglobo/mmf-ledger/internal/service"
	u "github.com/dolaglobo/mmf-ledger/internal/utils"
)

type TransactionHandler struct {
	transactionService service.TransactionService
	authService        service.AuthService
	paybill            string
	logger             *slog.Logger
}

func NewTransactionHandler(transactionService service.TransactionService, authService service.AuthService, paybill string, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		authService:        authService,
		paybill:            paybill,
		logger:             logger,
	}
}

func (h *TransactionHandler) RegisterRoutes(router *mux.Router, authMW *AuthMiddleware) {
	router.Handle("/deposit", authMW.Require(http.HandlerFunc(h.CreateDeposit))).Methods(http.MethodPost)
	router.Handle("/deposit/confirm/{id}", authMW.Require(http.HandlerFunc(h.ConfirmDeposit))).Methods(http.MethodPost)
	router.Handle("/withdraw", authMW.Require(http.HandlerFunc(h.CreateWithdrawal))).Methods(http.MethodPost)
}

func (h *TransactionHandler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	var req models.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	transaction, err := h.transactionService.CreateDeposit(r.Context(), actor.ID, req.Amount)
	if err != nil {
		writeServiceError(w, h.logger, err, "create deposit")
		return
	}

	phone := ""
	if user, err := h.authService.GetProfile(r.Context(), actor.ID); err == nil {
		phone = user.Phone
	}

	u.WriteJSON(w, http.StatusCreated, models.DepositInitiatedResponse{
		Message:       "Deposit initiated",
		TransactionID: transaction.ID,
		Paybill:       h.paybill,
		AccountNumber: phone,
		Amount:        transaction.Amount,
		Instructions: map[string]string{
			"step1": "Go to M-Pesa on your phone",
			"step2": "Select 'Lipa na M-Pesa'",
			"step3": "Select 'Pay Bill'",
			"step4": "Enter Business Number: " + h.paybill,
			"step5": "Enter Account Number: " + phone,
			"step6": "Enter Amount: KES " + transaction.Amount.StringFixed(0),
			"step7": "Enter your M-Pesa PIN and confirm",
		},
	})
}

func (h *TransactionHandler) ConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	transactionID := mux.Vars(r)["id"]

	transaction, err := h.transactionService.ConfirmDeposit(r.Context(), actor.ID, transactionID)
	if err != nil {
		writeServiceError(w, h.logger, err, "confirm deposit")
		return
	}
	u.WriteJSON(w, http.StatusOK, transaction)
}

func (h *TransactionHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	var req models.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	transaction, account, err := h.transactionService.CreateWithdrawal(r.Context(), actor.ID, req.Amount)
	if err != nil {
		writeServiceError(w, h.logger, err, "create withdrawal")
		return
	}

	destination := ""
	if user, err := h.authService.GetProfile(r.Context(), actor.ID); err == nil {
		destination = user.Phone
	}

	u.WriteJSON(w, http.StatusCreated, models.WithdrawalInitiatedResponse{
		Message:       fmt.Sprintf("KES %s withdrawal pending verification", transaction.Amount.StringFixed(0)),
		TransactionID: transaction.ID,
		Amount:        transaction.Amount,
		Destination:   destination,
		NewBalance:    account.Balance,
	})
}

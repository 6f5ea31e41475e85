package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Evgen-Mutagen/finledger/internal/core"
	"github.com/Evgen-Mutagen/finledger/internal/model"
	"github.com/Evgen-Mutagen/finledger/internal/service"
)

type StatementController struct {
	ledgerService core.LedgerService
	logger        *zap.Logger
}

func NewStatementController(ledgerService core.LedgerService, logger *zap.Logger) *StatementController {
	return &StatementController{ledgerService: ledgerService, logger: logger}
}

type movementRequest struct {
	Amount      json.RawMessage `json:"amount"`
	Description string          `json:"description"`
}

func (c *StatementController) Deposit(w http.ResponseWriter, r *http.Request) {
	c.record(w, r, model.KindDeposit)
}

func (c *StatementController) Withdraw(w http.ResponseWriter, r *http.Request) {
	c.record(w, r, model.KindWithdraw)
}

func (c *StatementController) record(w http.ResponseWriter, r *http.Request, kind model.Kind) {
	userID, ok := currentUser(w, r, c.logger)
	if !ok {
		return
	}

	amount, description, err := decodeMovement(r)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	recorded, err := c.ledgerService.RecordMovement(r.Context(), userID, kind, amount, description, nil)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, recorded.Movement)
}

// Transfer moves funds from the authenticated user to the user in the path.
func (c *StatementController) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, c.logger)
	if !ok {
		return
	}

	counterpartID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		writeError(w, r, c.logger, invalidInput("transfer", fmt.Errorf("bad recipient id: %w", err)))
		return
	}

	amount, description, err := decodeMovement(r)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	recorded, err := c.ledgerService.RecordMovement(r.Context(), userID, model.KindTransferOut, amount, description, &counterpartID)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, recorded)
}

func decodeMovement(r *http.Request) (decimal.Decimal, string, error) {
	var request movementRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil {
		return decimal.Zero, "", invalidInput("decode movement", err)
	}

	amount, err := parseAmount(request.Amount)
	if err != nil {
		return decimal.Zero, "", &service.Error{Kind: service.KindInvalidAmount, Op: "decode movement", Err: err}
	}
	return amount, request.Description, nil
}

// parseAmount accepts a JSON number or a numeric string. Numbers are parsed from
// their literal text so no precision is lost to float64.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, errors.New("amount is required")
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, fmt.Errorf("amount: %w", err)
		}
	}

	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q is not a number", text)
	}
	return amount, nil
}

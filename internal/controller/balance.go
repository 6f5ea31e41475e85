package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Evgen-Mutagen/finledger/internal/core"
)

type BalanceController struct {
	balanceService core.BalanceService
	logger         *zap.Logger
}

func NewBalanceController(balanceService core.BalanceService, logger *zap.Logger) *BalanceController {
	return &BalanceController{balanceService: balanceService, logger: logger}
}

func (c *BalanceController) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, c.logger)
	if !ok {
		return
	}

	statement, err := c.balanceService.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, statement)
}

func (c *BalanceController) GetMovement(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, c.logger)
	if !ok {
		return
	}

	movementID, err := uuid.Parse(chi.URLParam(r, "statement_id"))
	if err != nil {
		writeError(w, r, c.logger, invalidInput("get statement operation", err))
		return
	}

	movement, err := c.balanceService.GetMovement(r.Context(), userID, movementID)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, movement)
}

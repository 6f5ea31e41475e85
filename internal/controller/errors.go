package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/Evgen-Mutagen/finledger/internal/middlewareinternal"
	"github.com/Evgen-Mutagen/finledger/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

var errNoUser = errors.New("no authenticated user in request context")

func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindInvalidAmount, service.KindInvalidMovement, service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindInvalidCredentials:
		return http.StatusUnauthorized
	case service.KindUserNotFound, service.KindMovementNotFound:
		return http.StatusNotFound
	case service.KindUserAlreadyExists:
		return http.StatusConflict
	case service.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case service.KindConcurrentModification:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": ...}. Only the kind's message reaches the
// client; the full chain goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	kind := service.KindOf(err)
	status := statusFor(kind)

	if status == http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	} else {
		logger.Debug("Request rejected",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}

	if kind == service.KindConcurrentModification {
		w.Header().Set("Retry-After", "1")
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: kind.String()})
}

func invalidInput(op string, err error) error {
	return &service.Error{Kind: service.KindInvalidInput, Op: op, Err: err}
}

func currentUser(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	userID, ok := middlewareinternal.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, logger, errNoUser)
	}
	return userID, ok
}

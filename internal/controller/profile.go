package controller

import (
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/Evgen-Mutagen/finledger/internal/core"
)

type ProfileController struct {
	profileService core.ProfileService
	logger         *zap.Logger
}

func NewProfileController(profileService core.ProfileService, logger *zap.Logger) *ProfileController {
	return &ProfileController{profileService: profileService, logger: logger}
}

func (c *ProfileController) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, c.logger)
	if !ok {
		return
	}

	profile, err := c.profileService.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, profile)
}

package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/Evgen-Mutagen/finledger/internal/core"
	"github.com/Evgen-Mutagen/finledger/internal/middlewareinternal"
	"github.com/Evgen-Mutagen/finledger/internal/model"
)

type AuthController struct {
	authService core.AuthService
	tokenTTL    time.Duration
	logger      *zap.Logger
}

func NewAuthController(authService core.AuthService, tokenTTL time.Duration, logger *zap.Logger) *AuthController {
	return &AuthController{
		authService: authService,
		tokenTTL:    tokenTTL,
		logger:      logger,
	}
}

type sessionResponse struct {
	User  *model.Profile `json:"user"`
	Token string         `json:"token"`
}

func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := render.DecodeJSON(r.Body, &request); err != nil {
		writeError(w, r, c.logger, invalidInput("create user", err))
		return
	}

	user, token, err := c.authService.Register(r.Context(), request.Name, request.Email, request.Password)
	if err != nil {
		c.logger.Warn("Registration failed",
			zap.String("email", request.Email),
			zap.Error(err))
		writeError(w, r, c.logger, err)
		return
	}

	c.logger.Info("User registered successfully",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email))

	c.setTokenCookie(w, token)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, user.Profile())
}

func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := render.DecodeJSON(r.Body, &request); err != nil {
		writeError(w, r, c.logger, invalidInput("authenticate user", err))
		return
	}

	user, token, err := c.authService.Authenticate(r.Context(), request.Email, request.Password)
	if err != nil {
		c.logger.Warn("Login failed",
			zap.String("email", request.Email),
			zap.Error(err))
		writeError(w, r, c.logger, err)
		return
	}

	c.logger.Info("User logged in successfully",
		zap.Int64("user_id", user.ID))

	c.setTokenCookie(w, token)
	render.JSON(w, r, sessionResponse{User: user.Profile(), Token: token})
}

func (c *AuthController) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middlewareinternal.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(c.tokenTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Evgen-Mutagen/finledger/internal/core"
	"github.com/Evgen-Mutagen/finledger/internal/model"
	"github.com/Evgen-Mutagen/finledger/internal/repository"
)

const (
	tokenIssuer     = "finledger"
	DefaultTokenTTL = 24 * time.Hour

	// maxPasswordBytes is the longest input bcrypt hashes.
	maxPasswordBytes = 72

	opRegister     = "create user"
	opAuthenticate = "authenticate user"
)

var errInvalidToken = errors.New("invalid token")

// dummyHash is compared against when the email is unknown, so a failed login
// costs one bcrypt comparison either way.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("finledger-unknown-user"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("failed to build dummy password hash: %v", err))
	}
	return hash
})

type authService struct {
	userRepo     repository.UserRepository
	jwtSecretKey []byte
	tokenTTL     time.Duration
	logger       *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtSecretKey string, tokenTTL time.Duration, logger *zap.Logger) core.AuthService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &authService{
		userRepo:     userRepo,
		jwtSecretKey: []byte(jwtSecretKey),
		tokenTTL:     tokenTTL,
		logger:       logger,
	}
}

func (s *authService) Register(ctx context.Context, name, email, password string) (*model.User, string, error) {
	name = strings.TrimSpace(name)
	email = model.NormalizeEmail(email)
	switch {
	case name == "":
		return nil, "", newError(KindInvalidInput, opRegister, errors.New("name is required"))
	case !strings.Contains(email, "@"):
		return nil, "", newError(KindInvalidInput, opRegister, errors.New("a valid email is required"))
	case password == "":
		return nil, "", newError(KindInvalidInput, opRegister, errors.New("password is required"))
	case len(password) > maxPasswordBytes:
		return nil, "", newError(KindInvalidInput, opRegister,
			fmt.Errorf("password is longer than %d bytes", maxPasswordBytes))
	}

	existingUser, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check email: %w", err)
	}
	if existingUser != nil {
		return nil, "", newError(KindUserAlreadyExists, opRegister, nil)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, model.UserDraft{
		Email:        email,
		Name:         name,
		PasswordHash: string(hashedPassword),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", newError(KindUserAlreadyExists, opRegister, nil)
		}
		return nil, "", err
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// Authenticate never tells an unknown email apart from a wrong password.
func (s *authService) Authenticate(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := s.userRepo.GetByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return nil, "", newError(KindInvalidCredentials, opAuthenticate, nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", newError(KindInvalidCredentials, opAuthenticate, nil)
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

func (s *authService) ValidateToken(tokenString string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecretKey, nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid || claims.Issuer != tokenIssuer {
		return 0, errInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject %q", errInvalidToken, claims.Subject)
	}
	return userID, nil
}

func (s *authService) generateToken(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecretKey)
	if err != nil {
		s.logger.Error("Failed to sign token", zap.Int64("user_id", userID), zap.Error(err))
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

package service

import (
	"context"
	"fmt"

	"github.com/Evgen-Mutagen/finledger/internal/core"
	"github.com/Evgen-Mutagen/finledger/internal/model"
	"github.com/Evgen-Mutagen/finledger/internal/repository"
)

type profileService struct {
	userRepo repository.UserRepository
}

func NewProfileService(userRepo repository.UserRepository) core.ProfileService {
	return &profileService{userRepo: userRepo}
}

func (s *profileService) GetProfile(ctx context.Context, userID int64) (*model.Profile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, newError(KindUserNotFound, "show user profile", fmt.Errorf("user %d", userID))
	}
	return user.Profile(), nil
}

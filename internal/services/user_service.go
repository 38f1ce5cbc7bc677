package services

import (
	"context"
	"errors"
	"time"

	"github.com/chromatech/advisor/internal/models"
	pgrepo "github.com/chromatech/advisor/internal/repositories/postgres"
	"github.com/chromatech/advisor/internal/utils"
)

type UserService interface {
	ConsentMode(ctx context.Context, userID string) (models.ConsentMode, error)
	SetConsentMode(ctx context.Context, userID string, mode models.ConsentMode) error
}

type userService struct {
	users pgrepo.UserRepository
	now   func() time.Time
}

func NewUserService(users pgrepo.UserRepository) UserService {
	return &userService{users: users, now: time.Now}
}

// ConsentMode returns the stored preference, standard when none is stored.
func (s *userService) ConsentMode(ctx context.Context, userID string) (models.ConsentMode, error) {
	const op = "UserService.ConsentMode"

	if userID == "" {
		return "", utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}

	p, err := s.users.GetPreference(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return models.ConsentStandard, nil
		}
		return "", utils.E(utils.CodeUnavailable, op, "failed to get consent preference", err)
	}
	return p.ConsentMode, nil
}

func (s *userService) SetConsentMode(ctx context.Context, userID string, mode models.ConsentMode) error {
	const op = "UserService.SetConsentMode"

	if userID == "" {
		return utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}
	if !mode.Valid() {
		return utils.E(utils.CodeInvalidArgument, op, "consent_mode must be standard, privacy or anonymous", nil)
	}

	p := &models.UserPreference{UserID: userID, ConsentMode: mode, UpdatedAt: s.now().UTC()}
	if err := s.users.UpsertPreference(ctx, p); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to save consent preference", err)
	}
	return nil
}

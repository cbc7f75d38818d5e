package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"snapybara-server/auth"
	"snapybara-server/models"
	"snapybara-server/utils/errors"
)

// Identity provider event types.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// IdentityEvent is the payload posted by the identity provider webhook.
type IdentityEvent struct {
	Type string            `json:"type" validate:"required"`
	Data IdentityEventUser `json:"data"`
}

type IdentityEventUser struct {
	ID             string `json:"id" validate:"required"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ImageURL  string `json:"image_url"`
}

func (u IdentityEventUser) primaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.EmailAddress != "" {
			return e.EmailAddress
		}
	}
	return ""
}

type UserService struct {
	users  UserRepository
	logger *zap.Logger
}

func NewUserService(users UserRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, logger: logger.Named("users")}
}

// Me returns the caller's local record, creating it from the token claims
// when the identity webhook has not been received yet.
func (s *UserService) Me(ctx context.Context, id *auth.Identity) (*models.User, error) {
	if id == nil {
		return nil, errors.ErrUnauthorized
	}
	u, err := s.users.FindBySubject(ctx, id.UserID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	return s.upsert(ctx, &models.User{
		Subject:     id.UserID,
		Email:       id.Email,
		DisplayName: id.Name,
	})
}

func (s *UserService) upsert(ctx context.Context, u *models.User) (*models.User, error) {
	out, err := s.users.Upsert(ctx, u)
	if errors.Is(err, errors.ErrConflict) {
		// two upserts raced on the unique subject index
		return s.users.FindBySubject(ctx, u.Subject)
	}
	return out, err
}

// HandleEvent applies an identity provider event. Unknown event types are
// ignored and reported as not handled.
func (s *UserService) HandleEvent(ctx context.Context, ev IdentityEvent) (handled bool, err error) {
	if ev.Data.ID == "" {
		return false, errors.InvalidInput("event without user id")
	}
	log := s.logger.With(zap.String("event", ev.Type), zap.String("subject", ev.Data.ID))

	switch ev.Type {
	case EventUserCreated, EventUserUpdated:
		name := strings.TrimSpace(ev.Data.FirstName + " " + ev.Data.LastName)
		if _, err := s.upsert(ctx, &models.User{
			Subject:     ev.Data.ID,
			Email:       ev.Data.primaryEmail(),
			DisplayName: name,
			AvatarURL:   ev.Data.ImageURL,
		}); err != nil {
			return false, err
		}
		log.Info("user synced")
		return true, nil
	case EventUserDeleted:
		if err := s.users.Deactivate(ctx, ev.Data.ID); err != nil && !errors.Is(err, errors.ErrNotFound) {
			return false, err
		}
		log.Info("user deactivated")
		return true, nil
	default:
		log.Debug("identity event ignored")
		return false, nil
	}
}

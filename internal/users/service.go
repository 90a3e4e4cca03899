package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
)

// lastSeenRefreshInterval bounds how often a cached account writes its
// activity timestamp back to the database.
const lastSeenRefreshInterval = time.Minute

// ErrInvalidProfile indicates a profile without a usable identifier.
var ErrInvalidProfile = errors.New("users: invalid profile")

// ErrUnknownUser indicates a lookup for an account that does not exist.
var ErrUnknownUser = errors.New("users: unknown user")

// Profile carries the identity fields presented by an authenticated
// request.
type Profile struct {
	UserID      string
	Email       string
	DisplayName string
	AvatarURL   string
}

// ServiceConfig describes the dependencies required for account resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service manages account rows. Resolved accounts are cached in-process
// so the hot per-request path skips the database.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	cache sync.Map
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:  cfg.Database,
		now: clock,
	}, nil
}

// Resolve returns the account for the profile, creating it on first
// contact and refreshing any profile fields that changed since.
func (s *Service) Resolve(ctx context.Context, profile Profile) (Account, error) {
	userID := normalize(profile.UserID)
	if userID == "" {
		return Account{}, ErrInvalidProfile
	}

	if cached, ok := s.cache.Load(userID); ok {
		if account, ok := cached.(Account); ok {
			s.refreshLastSeen(ctx, &account)
			return account, nil
		}
	}

	var account Account
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		account = Account{
			UserID:      userID,
			Email:       normalize(profile.Email),
			DisplayName: normalize(profile.DisplayName),
			AvatarURL:   normalize(profile.AvatarURL),
			Role:        RoleUser,
			LastSeenAt:  s.now(),
		}
		if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
			return Account{}, err
		}
	} else if err != nil {
		return Account{}, err
	} else {
		updates := map[string]interface{}{}
		if email := normalize(profile.Email); email != "" && email != account.Email {
			updates["email"] = email
			account.Email = email
		}
		if display := normalize(profile.DisplayName); display != "" && display != account.DisplayName {
			updates["display_name"] = display
			account.DisplayName = display
		}
		if avatar := normalize(profile.AvatarURL); avatar != "" && avatar != account.AvatarURL {
			updates["avatar_url"] = avatar
			account.AvatarURL = avatar
		}
		updates["last_seen_at"] = s.now()
		account.LastSeenAt = s.now()
		if len(updates) > 0 {
			_ = s.db.WithContext(ctx).Model(&Account{}).
				Where("user_id = ?", userID).
				Updates(updates).
				Error
		}
	}

	s.cache.Store(userID, account)
	return account, nil
}

// refreshLastSeen writes the activity timestamp back for a cache hit so
// activity counts keep seeing returning users. Writes are skipped while the
// cached timestamp is still fresh.
func (s *Service) refreshLastSeen(ctx context.Context, account *Account) {
	now := s.now()
	if now.Sub(account.LastSeenAt) < lastSeenRefreshInterval {
		return
	}
	if err := s.db.WithContext(ctx).Model(&Account{}).
		Where("user_id = ?", account.UserID).
		Update("last_seen_at", now).Error; err != nil {
		return
	}
	account.LastSeenAt = now
	s.cache.Store(account.UserID, *account)
}

// Get returns an existing account without creating one.
func (s *Service) Get(ctx context.Context, userID string) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("user_id = ?", normalize(userID)).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrUnknownUser
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// SetRole grants or revokes the admin surface for an account.
func (s *Service) SetRole(ctx context.Context, userID string, role Role) (Account, error) {
	account, err := s.Get(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	account.Role = role
	if err := s.db.WithContext(ctx).Model(&Account{}).
		Where("user_id = ?", account.UserID).
		Update("role", role).Error; err != nil {
		return Account{}, err
	}
	s.cache.Store(account.UserID, account)
	return account, nil
}

// Count returns the total number of accounts.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Account{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ActiveSince counts accounts seen after the cutoff.
func (s *Service) ActiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Account{}).
		Where("last_seen_at >= ?", cutoff).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreatedSince counts accounts created after the cutoff.
func (s *Service) CreatedSince(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Account{}).
		Where("created_at >= ?", cutoff).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	iauth "github.com/hazardwatch/hazardwatch/internal/auth"
	"github.com/hazardwatch/hazardwatch/internal/models"
	apperrors "github.com/hazardwatch/hazardwatch/pkg/errors"
	"github.com/hazardwatch/hazardwatch/pkg/logger"
)

type AuthService struct {
	db  *gorm.DB
	jwt *iauth.JWTService
	log *zap.Logger
}

func NewAuthService(db *gorm.DB, jwt *iauth.JWTService) (*AuthService, error) {
	if db == nil {
		return nil, fmt.Errorf("auth service requires database handle")
	}
	if jwt == nil {
		return nil, fmt.Errorf("auth service requires JWT service")
	}
	return &AuthService{db: db, jwt: jwt, log: logger.WithModule("services.auth")}, nil
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Phone    string
	Address  string
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates a user account with default notification preferences and
// returns a signed access token.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to hash password")
	}

	user := models.User{
		Username: strings.TrimSpace(input.Username),
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		Password: string(hash),
		Phone:    input.Phone,
		Address:  input.Address,
		Role:     models.RoleUser,
	}
	if err := user.SetSettings(models.DefaultNotificationSettings()); err != nil {
		return nil, apperrors.Wrap(err, "Failed to encode notification settings")
	}
	if err := user.SetBadges([]string{}); err != nil {
		return nil, apperrors.Wrap(err, "Failed to encode badges")
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.New("CONFLICT", "Username or email already registered", 409)
		}
		return nil, apperrors.Wrap(err, "Failed to create user")
	}

	token, err := s.jwt.GenerateAccessToken(iauth.AccessTokenInput{UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to issue token")
	}

	s.log.Info("user registered", zap.String("user_id", user.ID))
	return &AuthResult{Token: token, User: &user}, nil
}

type LoginInput struct {
	Email    string
	Password string
}

// Login verifies credentials and issues an access token. Unknown emails and
// wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).
		First(&user, "email = ?", strings.ToLower(strings.TrimSpace(input.Email))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.Wrap(err, "Failed to load user")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)) != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateAccessToken(iauth.AccessTokenInput{UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to issue token")
	}
	return &AuthResult{Token: token, User: &user}, nil
}

// Profile loads the current user.
func (s *AuthService) Profile(ctx context.Context, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("User")
		}
		return nil, apperrors.Wrap(err, "Failed to load user")
	}
	return &user, nil
}

type UpdateProfileInput struct {
	Phone                *string
	Address              *string
	Latitude             *float64
	Longitude            *float64
	NotificationSettings *models.NotificationSettings
}

// UpdateProfile applies partial updates to contact details, home location,
// and notification preferences. Points, badges, and role are not reachable
// from here.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Phone != nil {
		updates["phone"] = *input.Phone
	}
	if input.Address != nil {
		updates["address"] = *input.Address
	}
	if input.Latitude != nil {
		updates["latitude"] = *input.Latitude
	}
	if input.Longitude != nil {
		updates["longitude"] = *input.Longitude
	}
	if input.NotificationSettings != nil {
		if err := user.SetSettings(*input.NotificationSettings); err != nil {
			return nil, apperrors.Wrap(err, "Failed to encode notification settings")
		}
		updates["notification_settings"] = user.NotificationSettings
	}
	if len(updates) == 0 {
		return user, nil
	}

	err = s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to update profile")
	}
	return s.Profile(ctx, userID)
}

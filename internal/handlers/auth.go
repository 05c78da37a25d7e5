package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/hazardwatch/hazardwatch/internal/auth"
	"github.com/hazardwatch/hazardwatch/internal/middleware"
	"github.com/hazardwatch/hazardwatch/internal/models"
	"github.com/hazardwatch/hazardwatch/internal/services"
	"github.com/hazardwatch/hazardwatch/pkg/errors"
	"github.com/hazardwatch/hazardwatch/pkg/response"
)

// AuthHandler exposes registration, login, and profile endpoints.
type AuthHandler struct {
	service *services.AuthService
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(db *gorm.DB, jwt *iauth.JWTService) (*AuthHandler, error) {
	service, err := services.NewAuthService(db, jwt)
	if err != nil {
		return nil, err
	}
	return &AuthHandler{service: service}, nil
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	Address  string `json:"address" validate:"omitempty,max=255"`
}

// Register creates a new account and returns its first access token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.service.Register(requestContext(c), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusCreated, "User registered successfully", result)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login exchanges credentials for an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.service.Login(requestContext(c), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	user, err := h.service.Profile(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}

type updateProfileRequest struct {
	Phone                *string                      `json:"phone" validate:"omitempty,max=20"`
	Address              *string                      `json:"address" validate:"omitempty,max=255"`
	Latitude             *float64                     `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude            *float64                     `json:"longitude" validate:"omitempty,min=-180,max=180"`
	NotificationSettings *models.NotificationSettings `json:"notificationSettings"`
}

// UpdateMe applies partial profile updates for the authenticated user.
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.service.UpdateProfile(requestContext(c), userID, services.UpdateProfileInput{
		Phone:                req.Phone,
		Address:              req.Address,
		Latitude:             req.Latitude,
		Longitude:            req.Longitude,
		NotificationSettings: req.NotificationSettings,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Profile updated", user)
}

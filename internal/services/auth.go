package services

import (
	"errors"
	"time"

	"github.com/codehive/backend/internal/config"
	"github.com/codehive/backend/internal/models"
	"github.com/codehive/backend/internal/utils"
	"github.com/codehive/backend/pkg/response"
	"gorm.io/gorm"
)

type AuthService struct {
	db        *gorm.DB
	jwtConfig *config.JWTConfig
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig) *AuthService {
	return &AuthService{db: db, jwtConfig: jwtCfg}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token    string            `json:"token"`
	User     models.PublicUser `json:"user"`
	ExpireAt time.Time         `json:"expire_at"`
}

// Register creates a new account and returns a signed token, so the
// client is logged in immediately.
func (s *AuthService) Register(req *RegisterRequest) (*LoginResponse, error) {
	var count int64
	s.db.Model(&models.User{}).
		Where("username = ? OR email = ?", req.Username, req.Email).
		Count(&count)
	if count > 0 {
		return nil, response.NewConflict("user already exists")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: hash,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}

	LogInfo("auth", "register", "user "+user.Username+" registered", &user.ID, nil, nil)
	return s.issueToken(&user)
}

// Login authenticates by email and password.
func (s *AuthService) Login(req *LoginRequest) (*LoginResponse, error) {
	var user models.User
	if err := s.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}

	if !utils.CheckPassword(req.Password, user.Password) {
		return nil, response.NewUnauthorized("invalid credentials")
	}

	now := time.Now()
	user.LastLogin = &now
	s.db.Save(&user)

	LogInfo("auth", "login", "user "+user.Username+" logged in", &user.ID, nil, nil)
	return s.issueToken(&user)
}

// GetUserByID loads a user record.
func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("user not found")
		}
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) issueToken(user *models.User) (*LoginResponse, error) {
	expireHours := s.jwtConfig.ExpireHour
	if expireHours <= 0 {
		expireHours = 168
	}

	token, err := utils.GenerateToken(user.ID, user.Username, "user", expireHours)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		Token:    token,
		User:     user.Public(),
		ExpireAt: time.Now().Add(time.Duration(expireHours) * time.Hour),
	}, nil
}

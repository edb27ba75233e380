package service

import (
	"context"
	"ctchen222/tictactoe-rooms/internal/api/models"
	"ctchen222/tictactoe-rooms/internal/api/repository"
	"ctchen222/tictactoe-rooms/internal/api/response"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is how long a login token stays valid.
const DefaultTokenTTL = 72 * time.Hour

var (
	ErrUsernameTaken      = response.NewError(http.StatusConflict, "username already taken")
	ErrInvalidCredentials = response.NewError(http.StatusUnauthorized, "invalid username or password")
	ErrInvalidToken       = response.NewError(http.StatusUnauthorized, "invalid token")
)

// UserService defines the interface for user-related business logic.
type UserService interface {
	Register(ctx context.Context, req *models.RegisterRequest) error
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	GuestLogin(ctx context.Context) (string, error)
	Authenticate(ctx context.Context, token string) (*models.Identity, error)
}

type userService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
}

// playerClaims is the JWT payload; the subject is the player id the
// WebSocket gateway registers the connection under.
type playerClaims struct {
	Username string `json:"un"`
	jwt.RegisteredClaims
}

// NewUserService creates a new UserService signing tokens with jwtSecret.
func NewUserService(userRepo repository.UserRepository, jwtSecret string, tokenTTL time.Duration) UserService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &userService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Register handles user registration.
func (s *userService) Register(ctx context.Context, req *models.RegisterRequest) error {
	// Check if user already exists
	existingUser, err := s.userRepo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return err
	}
	if existingUser != nil {
		return ErrUsernameTaken
	}

	user := &models.User{
		Username: req.Username,
	}

	return s.userRepo.CreateUser(ctx, user, req.Password)
}

// Login handles user login and returns a JWT on success.
func (s *userService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	playerID := userPlayerID(user.ID)
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, playerClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &models.LoginResponse{Token: tokenString, PlayerID: playerID}, nil
}

// GuestLogin generates a UUID for a guest player.
func (s *userService) GuestLogin(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

// Authenticate verifies a token issued by Login and returns its owner.
func (s *userService) Authenticate(ctx context.Context, token string) (*models.Identity, error) {
	claims := &playerClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &models.Identity{PlayerID: claims.Subject, Username: claims.Username}, nil
}

func userPlayerID(id int64) string {
	return fmt.Sprintf("user-%d", id)
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"realty-backend/internal/domain"
	"realty-backend/internal/pkg/constants"
	"realty-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	bcryptCost        = 10
	minPasswordLength = 8
)

// LoginInput for login request body.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionUserShape is the object stored in session and returned by /me.
type SessionUserShape struct {
	UserID   string `json:"user_id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// OwnerID is the user id as a listing owner reference.
func (s *SessionUserShape) OwnerID() (uuid.UUID, error) {
	id, err := uuid.Parse(s.UserID)
	if err != nil {
		return uuid.Nil, ErrNotAuthenticated
	}
	return id, nil
}

// UserFinder abstracts user lookup by email+password (for production GORM or test doubles).
type UserFinder interface {
	FindByEmailAndPassword(ctx context.Context, email, password string) (*domain.User, error)
}

// GormUserFinder implements UserFinder using GORM and bcrypt.
type GormUserFinder struct{ DB *gorm.DB }

func (g *GormUserFinder) FindByEmailAndPassword(ctx context.Context, email, password string) (*domain.User, error) {
	return LoginUser(g.DB.WithContext(ctx), LoginInput{Email: email, Password: password})
}

// LoginUser finds user by email and verifies password. Returns user for session or error.
func LoginUser(db *gorm.DB, input LoginInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, ErrEmailPasswordRequired
	}
	var u domain.User
	if err := db.Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidEmail
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidEmail
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrIncorrectPassword
	}
	return &u, nil
}

type CreateUserInput struct {
	Fullname string
	Email    string
	Password string
	Role     string
}

// CreateUser registers an agent account with a bcrypt password hash.
func CreateUser(ctx context.Context, db *gorm.DB, in CreateUserInput) (*domain.User, error) {
	in.Fullname = strings.TrimSpace(in.Fullname)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Fullname == "" {
		return nil, validation.Errorf("fullname", "is required")
	}
	if !validation.IsValidEmail(in.Email) {
		return nil, validation.Errorf("email", "must be a valid email address")
	}
	if len(in.Password) < minPasswordLength {
		return nil, validation.Errorf("password", "must be at least %d characters", minPasswordLength)
	}
	if in.Role == "" {
		in.Role = constants.RoleAgent
	}
	if !constants.IsValidRole(in.Role) {
		return nil, validation.Errorf("role", "unknown role %q", in.Role)
	}

	var count int64
	if err := db.WithContext(ctx).Model(&domain.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("Failed to hash password: %w", err)
	}
	u := &domain.User{Fullname: in.Fullname, Email: in.Email, PasswordHash: string(hash), Role: in.Role}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, fmt.Errorf("Failed to create user: %w", err)
	}
	return u, nil
}

// VerifyUser validates session user and returns the shape for /me.
func VerifyUser(sessionUser interface{}) (*SessionUserShape, error) {
	if sessionUser == nil {
		return nil, ErrNotAuthenticated
	}
	m, ok := sessionUser.(map[string]interface{})
	if !ok {
		return nil, ErrNotAuthenticated
	}
	userID, _ := m["user_id"].(string)
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	return &SessionUserShape{
		UserID:   userID,
		Fullname: str(m["fullname"]),
		Email:    str(m["email"]),
		Role:     str(m["role"]),
	}, nil
}

func str(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

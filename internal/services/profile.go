package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"couple-notes-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	codeLength      = 6
	codeChars       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeMaxAttempts = 10
	jwtExpDays      = 365
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// ProfileService handles profile-related business logic
type ProfileService struct {
	profiles  ProfileStore
	jwtSecret string
}

// NewProfileService creates a new profile service.
// Tokens are issued on creation only when jwtSecret is set.
func NewProfileService(profiles ProfileStore, jwtSecret string) *ProfileService {
	return &ProfileService{
		profiles:  profiles,
		jwtSecret: jwtSecret,
	}
}

// CreateProfileRequest represents a request to create a profile
type CreateProfileRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Anniversary *int64 `json:"anniversary,omitempty"`
}

// NormalizeCode uppercases and trims a partner code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode checks the partner code format
func ValidateCode(code string) error {
	if code == "" {
		return models.ValidationError(errors.New("partnerCode: cannot be blank"))
	}
	if !codePattern.MatchString(code) {
		return models.ValidationError(fmt.Errorf("partnerCode: must be %d characters A-Z or 0-9", codeLength))
	}
	return nil
}

// GenerateUniqueCode generates a partner code that no profile uses yet
func (s *ProfileService) GenerateUniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < codeMaxAttempts; i++ {
		code := generateCode()
		exists, err := s.profiles.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code existence: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique code after %d attempts", codeMaxAttempts)
}

// generateCode generates a random 6-character code
func generateCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}

// GenerateJWT generates a JWT token for a profile
func (s *ProfileService) GenerateJWT(profileID string) (string, error) {
	claims := jwt.MapClaims{
		"profile_id": profileID,
		"exp":        time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the profile ID
func (s *ProfileService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", models.ErrUnauthorized)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token: %w", models.ErrUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims: %w", models.ErrUnauthorized)
	}

	profileID, ok := claims["profile_id"].(string)
	if !ok || profileID == "" {
		return "", fmt.Errorf("profile_id not found in token: %w", models.ErrUnauthorized)
	}

	return profileID, nil
}

// CreateProfile creates a new profile.
// A missing code is generated; a supplied code that is taken fails with a conflict.
func (s *ProfileService) CreateProfile(ctx context.Context, req CreateProfileRequest) (*models.Profile, error) {
	p := &models.Profile{
		ID:          req.ID,
		Name:        strings.TrimSpace(req.Name),
		Code:        NormalizeCode(req.Code),
		Anniversary: req.Anniversary,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.Validate(); err != nil {
		return nil, models.ValidationError(err)
	}

	if _, err := uuid.Parse(p.ID); err != nil {
		p.ID = uuid.New().String()
	}

	if p.Code == "" {
		code, err := s.GenerateUniqueCode(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}
		p.Code = code
	} else if err := ValidateCode(p.Code); err != nil {
		return nil, err
	}

	if err := s.profiles.Create(ctx, p); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("partner code or id already in use: %w", models.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	if s.jwtSecret != "" {
		token, err := s.GenerateJWT(p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}
		p.Token = token
	}

	return p, nil
}

// UpsertProfile creates or updates a profile by ID.
// An ID that is not a valid UUID is replaced by a freshly generated one.
func (s *ProfileService) UpsertProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Code = NormalizeCode(p.Code)
	if err := p.Validate(); err != nil {
		return nil, models.ValidationError(err)
	}

	if _, err := uuid.Parse(p.ID); err != nil {
		p.ID = uuid.New().String()
	}

	existing, err := s.profiles.GetByID(ctx, p.ID)
	switch {
	case err == nil:
		p.CreatedAt = existing.CreatedAt
		if p.Code == "" {
			p.Code = existing.Code
		}
	case errors.Is(err, models.ErrNotFound):
		p.CreatedAt = time.Now().UTC()
	default:
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if p.Code == "" {
		code, err := s.GenerateUniqueCode(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}
		p.Code = code
	} else if err := ValidateCode(p.Code); err != nil {
		return nil, err
	}

	saved, err := s.profiles.Upsert(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return saved, nil
}

// GetProfile retrieves a profile by ID
func (s *ProfileService) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	if id == "" {
		return nil, models.ValidationError(errors.New("id: cannot be blank"))
	}
	return s.profiles.GetByID(ctx, id)
}

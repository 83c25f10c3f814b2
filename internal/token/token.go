package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/staffdesk/emis/internal/models"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
	TypeReset   = "reset"
)

var (
	// ErrExpired means the signature checked out but the token is past its exp.
	ErrExpired = errors.New("token expired")
	// ErrWrongType means a valid token of another kind was presented.
	ErrWrongType = errors.New("wrong token type")
	// ErrInvalid covers bad signatures, malformed tokens and missing claims.
	ErrInvalid = errors.New("invalid token")
)

// Claims is the decoded payload shared by all three token kinds.
type Claims struct {
	UserID uint
	Email  string
	Role   string
	Type   string
	JTI    string
}

// Service signs and verifies access, refresh and reset tokens. The three
// kinds share a payload shape and differ by secret, lifetime and the typ
// claim, which is checked on every verification.
type Service struct {
	AccessSecret  []byte
	RefreshSecret []byte
	ResetSecret   []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration

	// Now is overridable in tests.
	Now func() time.Time
}

func NewService(accessSecret, refreshSecret, resetSecret []byte) *Service {
	return &Service{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		ResetSecret:   resetSecret,
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		ResetTTL:      time.Hour,
		Now:           time.Now,
	}
}

func (s *Service) IssueAccess(user *models.User) (string, error) {
	exp := s.Now().Add(s.AccessTTL)
	claims := jwt.MapClaims{
		"sub":   float64(user.ID),
		"email": user.Email,
		"role":  user.Role,
		"typ":   TypeAccess,
		"exp":   exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.AccessSecret)
}

// IssueRefresh returns the signed token and its jti, which is the refresh
// registry key.
func (s *Service) IssueRefresh(user *models.User) (string, string, error) {
	jti := uuid.NewString()
	exp := s.Now().Add(s.RefreshTTL)
	claims := jwt.MapClaims{
		"sub":   float64(user.ID),
		"email": user.Email,
		"typ":   TypeRefresh,
		"jti":   jti,
		"exp":   exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.RefreshSecret)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

func (s *Service) IssueReset(user *models.User) (string, error) {
	exp := s.Now().Add(s.ResetTTL)
	claims := jwt.MapClaims{
		"sub":   float64(user.ID),
		"email": user.Email,
		"typ":   TypeReset,
		"exp":   exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.ResetSecret)
}

func (s *Service) VerifyAccess(raw string) (*Claims, error) {
	return s.verify(raw, s.AccessSecret, TypeAccess)
}

func (s *Service) VerifyRefresh(raw string) (*Claims, error) {
	return s.verify(raw, s.RefreshSecret, TypeRefresh)
}

func (s *Service) VerifyReset(raw string) (*Claims, error) {
	return s.verify(raw, s.ResetSecret, TypeReset)
}

func (s *Service) verify(raw string, secret []byte, wantType string) (*Claims, error) {
	t, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	if !t.Valid {
		return nil, ErrInvalid
	}

	mapClaims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalid
	}

	typ, _ := mapClaims["typ"].(string)
	if typ != wantType {
		return nil, ErrWrongType
	}

	sub, ok := mapClaims["sub"].(float64)
	if !ok {
		return nil, ErrInvalid
	}

	claims := &Claims{
		UserID: uint(sub),
		Type:   typ,
	}
	claims.Email, _ = mapClaims["email"].(string)
	claims.Role, _ = mapClaims["role"].(string)
	claims.JTI, _ = mapClaims["jti"].(string)
	return claims, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

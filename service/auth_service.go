package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/presale_portal/model"
	"github.com/presale_portal/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRefresh     = errors.New("invalid or expired refresh token")
)

const refreshKeyPrefix = "portal:refresh:"

// Token is one issued token with its expiry, the shape the portal client
// stores.
type Token struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type TokenPair struct {
	Access  Token `json:"access"`
	Refresh Token `json:"refresh"`
}

type LoginResult struct {
	User   *model.User `json:"user"`
	Tokens TokenPair   `json:"tokens"`
}

type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService owns registration, login and token lifecycle. Access tokens
// are short-lived JWTs; refresh tokens are opaque values held in Redis and
// rotated on every use.
type AuthService struct {
	users      *repository.UserRepository
	referrals  *repository.ReferralRepository
	rdb        *redis.Client
	logger     *zap.Logger
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(users *repository.UserRepository, referrals *repository.ReferralRepository, rdb *redis.Client, logger *zap.Logger, secret string, accessTTL, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		users:      users,
		referrals:  referrals,
		rdb:        rdb,
		logger:     logger,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

type RegisterArgs struct {
	Email       string  `json:"email"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Nationality string  `json:"nationality"`
	Password    string  `json:"password"`
	Mobile      *string `json:"mobile,omitempty"`
	ReferralID  string  `json:"referral,omitempty"`
}

func (s *AuthService) Register(ctx context.Context, args RegisterArgs) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(args.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email address")
	}
	if len(args.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	taken, err := s.users.EmailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(args.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		FirstName:    strings.TrimSpace(args.FirstName),
		LastName:     strings.TrimSpace(args.LastName),
		Email:        email,
		Mobile:       args.Mobile,
		Nationality:  args.Nationality,
		Role:         model.RoleUser,
		PasswordHash: string(hash),
	}

	if args.ReferralID != "" && args.ReferralID != user.ID {
		if _, err := s.users.FindByID(ctx, args.ReferralID); err == nil {
			user.ReferredBy = &args.ReferralID
		}
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if user.ReferredBy != nil {
		ref := &model.Referral{ReferrerID: *user.ReferredBy, ReferredID: user.ID}
		if err := s.referrals.Create(ctx, ref); err != nil {
			s.logger.Warn("record referral failed", zap.String("user", user.ID), zap.Error(err))
		}
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: tokens}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: tokens}, nil
}

// Refresh rotates a refresh token: the presented value is consumed and a
// fresh pair is issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	key := refreshKeyPrefix + refreshToken
	userID, err := s.rdb.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, ErrInvalidRefresh
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: tokens}, nil
}

// VerifyAccess parses and validates an access token, returning its claims.
func (s *AuthService) VerifyAccess(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid access token")
	}
	return claims, nil
}

type UpdateUserArgs struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	Nationality *string `json:"nationality,omitempty"`
	Mobile      *string `json:"mobile,omitempty"`
	Password    *string `json:"password,omitempty"`
}

// UpdateUser applies a partial profile update and returns the fresh record.
func (s *AuthService) UpdateUser(ctx context.Context, id string, args UpdateUserArgs) (*model.User, error) {
	fields := map[string]interface{}{}
	if args.FirstName != nil {
		fields["first_name"] = strings.TrimSpace(*args.FirstName)
	}
	if args.LastName != nil {
		fields["last_name"] = strings.TrimSpace(*args.LastName)
	}
	if args.Nationality != nil {
		fields["nationality"] = *args.Nationality
	}
	if args.Mobile != nil {
		fields["mobile"] = *args.Mobile
	}
	if args.Password != nil {
		if len(*args.Password) < 8 {
			return nil, fmt.Errorf("password must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*args.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		fields["password_hash"] = string(hash)
	}

	if len(fields) > 0 {
		if err := s.users.Update(ctx, id, fields); err != nil {
			return nil, err
		}
	}
	return s.users.FindByID(ctx, id)
}

func (s *AuthService) issueTokens(ctx context.Context, user *model.User) (TokenPair, error) {
	now := time.Now()
	accessExpiry := now.Add(s.accessTTL)

	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
			ID:        uuid.New().String(),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := uuid.New().String()
	refreshExpiry := now.Add(s.refreshTTL)
	if err := s.rdb.Set(ctx, refreshKeyPrefix+refresh, user.ID, s.refreshTTL).Err(); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return TokenPair{
		Access:  Token{Token: access, Expires: accessExpiry},
		Refresh: Token{Token: refresh, Expires: refreshExpiry},
	}, nil
}

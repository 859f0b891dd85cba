package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/loan-portal-api/internal/dto"
	"github.com/noah-isme/loan-portal-api/internal/legacy"
	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/internal/repository"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
)

type applicantAccounts interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}

type staffAccounts interface {
	FindByUsername(ctx context.Context, username string) (*models.Staff, error)
}

type tokenDenylist interface {
	RevokeSession(ctx context.Context, ns models.Namespace, tokenID string, ttl time.Duration) error
	SessionRevoked(ctx context.Context, ns models.Namespace, tokenID string) bool
}

// AuthConfig configures one session namespace.
type AuthConfig struct {
	Namespace  models.Namespace
	Secret     string
	Issuer     string
	Expiration time.Duration
}

// Audience is the JWT audience bound to the namespace.
func (c AuthConfig) Audience() string {
	return "loan-portal/" + string(c.Namespace)
}

// AuthService issues and validates session tokens for a single namespace.
// Applicant and staff sessions use separate instances with separate secrets.
type AuthService struct {
	users     applicantAccounts
	staff     staffAccounts
	denylist  tokenDenylist
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService. users serves the applicant
// namespace and staff the staff namespace; either may be nil for the other.
func NewAuthService(users applicantAccounts, staff staffAccounts, denylist tokenDenylist, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.Expiration <= 0 {
		config.Expiration = 8 * time.Hour
	}
	if config.Issuer == "" {
		config.Issuer = "loan-portal-api"
	}
	return &AuthService{users: users, staff: staff, denylist: denylist, validator: validate, logger: logger, config: config, now: time.Now}
}

// Namespace returns the namespace served by this instance.
func (s *AuthService) Namespace() models.Namespace {
	return s.config.Namespace
}

// Register creates an applicant account.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*models.Principal, error) {
	if s.config.Namespace != models.NamespaceApplicant || s.users == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "registration is only available to applicants")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid registration payload")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        req.Phone,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.ErrEmailTaken
		}
		return nil, appErrors.Internal(err, "failed to create user")
	}
	return &models.Principal{ID: user.ID, Email: user.Email, Name: user.Name, Role: models.RoleApplicant}, nil
}

// Login authenticates an applicant by email and password.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*models.LoginResult, error) {
	if s.config.Namespace != models.NamespaceApplicant || s.users == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "applicant login is not served here")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid login payload")
	}
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	if !passwordMatches(user.PasswordHash, req.Password) {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}
	if legacy.IsLegacyHash(user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, req.Password)
	}
	return s.issue(&models.SessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   models.RoleApplicant,
	})
}

// StaffLogin authenticates a staff member by username and password.
func (s *AuthService) StaffLogin(ctx context.Context, req dto.StaffLoginRequest) (*models.LoginResult, error) {
	if s.config.Namespace != models.NamespaceStaff || s.staff == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "staff login is not served here")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid login payload")
	}
	member, err := s.staff.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
		}
		return nil, appErrors.Internal(err, "failed to fetch staff")
	}
	if !passwordMatches(member.PasswordHash, req.Password) {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
	}
	role := member.Role
	if role != models.RoleAdmin {
		role = models.RoleStaff
	}
	return s.issue(&models.SessionClaims{
		UserID:   member.ID,
		Email:    member.Email,
		Username: member.Username,
		Role:     role,
	})
}

// ValidateToken parses a token of this namespace. Tokens signed for the other
// namespace or denylisted at logout are rejected.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithAudience(s.config.Audience()), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid || claims.Namespace != s.config.Namespace {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if s.denylist != nil && claims.ID != "" && s.denylist.SessionRevoked(ctx, s.config.Namespace, claims.ID) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session has ended")
	}
	return claims, nil
}

// Logout denylists the token id until the token would have expired.
func (s *AuthService) Logout(ctx context.Context, claims *models.SessionClaims) {
	if claims == nil || claims.ID == "" || s.denylist == nil || claims.ExpiresAt == nil {
		return
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		return
	}
	if err := s.denylist.RevokeSession(ctx, s.config.Namespace, claims.ID, ttl); err != nil {
		s.logger.Warn("failed to denylist session", zap.String("namespace", string(s.config.Namespace)), zap.Error(err))
	}
}

// ChangePassword rotates an applicant's password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req dto.ChangePasswordRequest) error {
	if s.users == nil {
		return appErrors.Clone(appErrors.ErrForbidden, "password change is only available to applicants")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid change password payload")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to load user")
	}
	if !passwordMatches(user.PasswordHash, req.CurrentPassword) {
		return appErrors.Clone(appErrors.ErrForbidden, "current password does not match")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return appErrors.Internal(err, "failed to update password")
	}
	return nil
}

// upgradeHash replaces an imported legacy hash with bcrypt after a successful login.
func (s *AuthService) upgradeHash(ctx context.Context, userID, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		s.logger.Warn("failed to upgrade legacy password hash", zap.String("user_id", userID), zap.Error(err))
	}
}

func passwordMatches(hash, password string) bool {
	if legacy.IsLegacyHash(hash) {
		return legacy.CheckPassword(hash, password)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *AuthService) issue(claims *models.SessionClaims) (*models.LoginResult, error) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.config.Expiration)
	claims.Namespace = s.config.Namespace
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    s.config.Issuer,
		Subject:   claims.UserID,
		Audience:  jwt.ClaimStrings{s.config.Audience()},
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create session token")
	}
	return &models.LoginResult{
		Token:     signed,
		ExpiresAt: expiresAt,
		Namespace: s.config.Namespace,
		Principal: claims.Principal(),
	}, nil
}

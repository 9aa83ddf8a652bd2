package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"portfolio/internal/middleware"
	"portfolio/internal/models"
	"portfolio/internal/repository"
	"portfolio/internal/session"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer   = "portfolio-api"
	tokenAudience = "portfolio-client"
)

// FailedLoginMessage is shown on the email field when credentials do not match.
const FailedLoginMessage = "The provided credentials do not match our records."

// dummyHash is compared against when the email is unknown so that both
// failure paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("portfolio-timing-guard"), bcrypt.DefaultCost)

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `form:"email" json:"email" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required"`
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	User    *models.User
	Session *models.Session
	Token   string
}

type AuthService struct {
	userRepo   repository.UserRepository
	sessions   session.Store
	validate   *validator.Validate
	secret     []byte
	sessionTTL time.Duration
}

func NewAuthService(userRepo repository.UserRepository, sessions session.Store, secret string, sessionTTL time.Duration) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		sessions:   sessions,
		validate:   newValidator(),
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
	}
}

// SessionTTL is the lifetime of sessions issued by Login.
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Login checks the credentials, ends every other session of the user and
// starts a fresh one. previousSessionID, when set, is discarded so the
// caller never keeps a pre-login session id.
func (s *AuthService) Login(ctx context.Context, in LoginInput, previousSessionID string) (*LoginResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validate.Struct(in); err != nil {
		middleware.LoginAttempts.WithLabelValues("invalid").Inc()
		return nil, validationError(err)
	}

	user, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}

	hash := dummyHash
	if user != nil {
		hash = []byte(user.Password)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(in.Password)) != nil || user == nil {
		middleware.LoginAttempts.WithLabelValues("failure").Inc()
		return nil, models.NewFieldValidationError(map[string][]string{
			"email": {FailedLoginMessage},
		})
	}

	if err := s.sessions.DeleteAllForUser(ctx, user.ID); err != nil {
		return nil, models.NewInternalError(err)
	}
	if previousSessionID != "" {
		if err := s.sessions.Delete(ctx, previousSessionID); err != nil {
			return nil, models.NewInternalError(err)
		}
	}

	sess, err := s.sessions.Create(ctx, user.ID, s.sessionTTL)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	token, err := s.IssueToken(user, sess)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	middleware.LoginAttempts.WithLabelValues("success").Inc()
	middleware.Logger.InfoContext(middleware.WithUserID(ctx, user.ID), "user logged in")

	return &LoginResult{User: user, Session: sess, Token: token}, nil
}

// Logout ends the session. Unknown ids are ignored.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// IssueToken signs a bearer token bound to sess.
func (s *AuthService) IssueToken(user *models.User, sess *models.Session) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(user.ID), 10),
		"iss":  tokenIssuer,
		"aud":  tokenAudience,
		"exp":  sess.ExpiresAt.Unix(),
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"jti":  sess.ID,
		"role": string(user.Role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ResolveSession returns the user owning session id, or nil when the
// session is unknown or expired.
func (s *AuthService) ResolveSession(ctx context.Context, id string) (*models.User, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.sessionUser(ctx, sess)
}

// ResolveToken validates a bearer token and returns its user and session id.
// The token is only valid while its session is alive.
func (s *AuthService) ResolveToken(ctx context.Context, tokenString string) (*models.User, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, "", models.NewUnauthorizedError("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, "", models.NewUnauthorizedError("Invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return nil, "", models.NewUnauthorizedError("Invalid user ID in token")
	}

	jti, _ := claims["jti"].(string)
	sess, err := s.sessions.Get(ctx, jti)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, "", models.NewUnauthorizedError("Token has been revoked")
		}
		return nil, "", models.NewInternalError(err)
	}
	if sess.UserID != uint(userID) {
		return nil, "", models.NewUnauthorizedError("Token does not match its session")
	}

	user, err := s.sessionUser(ctx, sess)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", models.NewUnauthorizedError("Token has been revoked")
	}
	return user, sess.ID, nil
}

func (s *AuthService) sessionUser(ctx context.Context, sess *models.Session) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, sess.UserID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			middleware.Logger.WarnContext(ctx, "session of deleted user",
				slog.Uint64("user_id", uint64(sess.UserID)))
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

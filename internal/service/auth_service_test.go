package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"portfolio/internal/models"
	"portfolio/internal/session"
	"portfolio/internal/testutil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

// userRepoStub is an in-memory repository.UserRepository.
type userRepoStub struct {
	users map[uint]*models.User
	err   error
}

func newUserRepoStub(users ...*models.User) *userRepoStub {
	s := &userRepoStub{users: make(map[uint]*models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *userRepoStub) GetByID(_ context.Context, id uint) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, models.NewNotFoundError("User", id)
	}
	return u, nil
}

func (s *userRepoStub) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (s *userRepoStub) FirstAdmin(context.Context) (*models.User, error) { return nil, nil }

func (s *userRepoStub) Create(_ context.Context, u *models.User) error {
	u.ID = uint(len(s.users) + 1)
	s.users[u.ID] = u
	return nil
}

func (s *userRepoStub) Update(_ context.Context, u *models.User) error {
	s.users[u.ID] = u
	return nil
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newAuthFixture(t *testing.T) (*AuthService, session.Store, *models.User) {
	t.Helper()
	_, rdb := testutil.NewTestRedis(t)
	store := session.NewRedisStore(rdb)
	user := &models.User{ID: 1, Name: "Admin", Email: "admin@example.com", Password: hashed(t, "password"), Role: models.RoleAdmin}
	return NewAuthService(newUserRepoStub(user), store, testSecret, time.Hour), store, user
}

func TestLogin_Success(t *testing.T) {
	t.Parallel()
	svc, store, user := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, LoginInput{Email: " Admin@Example.com ", Password: "password"}, "")
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)

	got, err := store.Get(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)

	resolved, err := svc.ResolveSession(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestLogin_InvalidatesOtherSessions(t *testing.T) {
	t.Parallel()
	svc, store, _ := newAuthFixture(t)
	ctx := context.Background()

	first, err := svc.Login(ctx, LoginInput{Email: "admin@example.com", Password: "password"}, "")
	require.NoError(t, err)
	anonymous, err := store.Create(ctx, 0, time.Hour)
	require.NoError(t, err)

	second, err := svc.Login(ctx, LoginInput{Email: "admin@example.com", Password: "password"}, anonymous.ID)
	require.NoError(t, err)

	assert.NotEqual(t, first.Session.ID, second.Session.ID)
	assert.NotEqual(t, anonymous.ID, second.Session.ID)

	_, err = store.Get(ctx, first.Session.ID)
	assert.ErrorIs(t, err, session.ErrNotFound, "other device is logged out")
	_, err = store.Get(ctx, anonymous.ID)
	assert.ErrorIs(t, err, session.ErrNotFound, "pre-login session id is discarded")

	_, _, err = svc.ResolveToken(ctx, first.Token)
	assertCode(t, err, models.CodeUnauthorized)

	u, sid, err := svc.ResolveToken(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, second.Session.ID, sid)
	assert.Equal(t, uint(1), u.ID)
}

func TestLogin_Failures(t *testing.T) {
	t.Parallel()
	svc, _, _ := newAuthFixture(t)

	tests := []struct {
		name   string
		in     LoginInput
		fields []string
		msg    string
	}{
		{"wrong password", LoginInput{Email: "admin@example.com", Password: "wrong"}, []string{"email"}, FailedLoginMessage},
		{"unknown email", LoginInput{Email: "ghost@example.com", Password: "password"}, []string{"email"}, FailedLoginMessage},
		{"malformed email", LoginInput{Email: "not-an-email", Password: "password"}, []string{"email"}, "The email must be a valid email address."},
		{"missing password", LoginInput{Email: "admin@example.com"}, []string{"password"}, "The password field is required."},
		{"missing both", LoginInput{}, []string{"email", "password"}, "The email field is required."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.in, "")
			assertValidationError(t, err, tt.fields...)
			var appErr *models.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.msg, appErr.Message)
		})
	}
}

func TestLogin_RepositoryError(t *testing.T) {
	t.Parallel()
	svc, _, _ := newAuthFixture(t)
	svc.userRepo.(*userRepoStub).err = models.NewInternalError(errors.New("db down"))

	_, err := svc.Login(context.Background(), LoginInput{Email: "admin@example.com", Password: "password"}, "")
	assertCode(t, err, models.CodeInternal)
}

func TestLogout(t *testing.T) {
	t.Parallel()
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, LoginInput{Email: "admin@example.com", Password: "password"}, "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, res.Session.ID))
	require.NoError(t, svc.Logout(ctx, ""))

	u, err := svc.ResolveSession(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestResolveToken_Rejects(t *testing.T) {
	t.Parallel()
	svc, store, user := newAuthFixture(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, user.ID, time.Hour)
	require.NoError(t, err)

	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": strconv.FormatUint(uint64(user.ID), 10),
			"iss": tokenIssuer,
			"aud": tokenAudience,
			"exp": time.Now().Add(time.Hour).Unix(),
			"jti": sess.ID,
		}
	}

	valid := sign(base(), testSecret)
	_, _, err = svc.ResolveToken(ctx, valid)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(base(), "another-secret")},
		{"expired", func() string { c := base(); c["exp"] = time.Now().Add(-time.Minute).Unix(); return sign(c, testSecret) }()},
		{"no expiry", func() string { c := base(); delete(c, "exp"); return sign(c, testSecret) }()},
		{"wrong issuer", func() string { c := base(); c["iss"] = "someone-else"; return sign(c, testSecret) }()},
		{"wrong audience", func() string { c := base(); c["aud"] = "someone-else"; return sign(c, testSecret) }()},
		{"unknown session", func() string { c := base(); c["jti"] = "nope"; return sign(c, testSecret) }()},
		{"subject mismatch", func() string { c := base(); c["sub"] = "2"; return sign(c, testSecret) }()},
		{"bad subject", func() string { c := base(); c["sub"] = "abc"; return sign(c, testSecret) }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.ResolveToken(ctx, tt.token)
			assertCode(t, err, models.CodeUnauthorized)
		})
	}
}

func TestResolveSession_DeletedUser(t *testing.T) {
	t.Parallel()
	svc, store, _ := newAuthFixture(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, 42, time.Hour)
	require.NoError(t, err)

	u, err := svc.ResolveSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, u)
}

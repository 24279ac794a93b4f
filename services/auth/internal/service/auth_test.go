package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/services/auth/internal/auth"
	"github.com/ncsyvn/microservices-go/services/auth/internal/domain"
	"github.com/ncsyvn/microservices-go/services/auth/internal/repository"
	"github.com/ncsyvn/microservices-go/services/auth/internal/repository/memory"
)

func TestMain(m *testing.M) {
	bcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockEventPublisher) PublishOTPRequested(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockEventPublisher) PublishPasswordReset(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

type fakeCooldown struct {
	held     map[string]bool
	err      error
	released []string
}

func (c *fakeCooldown) Acquire(_ context.Context, phone string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	if c.held[phone] {
		return false, nil
	}
	c.held[phone] = true
	return true, nil
}

func (c *fakeCooldown) Release(_ context.Context, phone string) error {
	delete(c.held, phone)
	c.released = append(c.released, phone)
	return nil
}

// issueFailStore wraps a store so that the n-th ledger row created through
// it, including inside transactions, fails with err.
type issueFailStore struct {
	repository.Store
	creates *int
	failAt  int
	err     error
}

func failIssuance(store repository.Store, failAt int, err error) issueFailStore {
	return issueFailStore{Store: store, creates: new(int), failAt: failAt, err: err}
}

func (s issueFailStore) Tokens() repository.TokenRepository {
	return issueFailTokens{TokenRepository: s.Store.Tokens(), store: s}
}

func (s issueFailStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithTx(ctx, func(tx repository.Store) error {
		return fn(issueFailStore{Store: tx, creates: s.creates, failAt: s.failAt, err: s.err})
	})
}

type issueFailTokens struct {
	repository.TokenRepository
	store issueFailStore
}

func (t issueFailTokens) Create(ctx context.Context, record *domain.TokenRecord) error {
	*t.store.creates++
	if *t.store.creates == t.store.failAt {
		return t.store.err
	}
	return t.TokenRepository.Create(ctx, record)
}

type testEnv struct {
	svc      *AuthService
	store    *memory.Store
	issuer   *auth.Issuer
	ledger   *auth.Ledger
	events   *mockEventPublisher
	cooldown *fakeCooldown
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	store.SetPermissions(domain.DefaultGroupID, "get@/api/v1/videos", "post@/api/v1/videos")
	issuer := auth.NewIssuer("test-secret-key-for-testing-only!", 24*time.Hour, 120*time.Hour)
	ledger := auth.NewLedger(store.Tokens())
	events := &mockEventPublisher{}
	events.On("PublishUserRegistered", mock.Anything, mock.Anything).Return(nil).Maybe()
	events.On("PublishOTPRequested", mock.Anything, mock.Anything).Return(nil).Maybe()
	events.On("PublishPasswordReset", mock.Anything, mock.Anything).Return(nil).Maybe()
	cooldown := &fakeCooldown{held: map[string]bool{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewAuthService(store, issuer, ledger, cooldown, events, 5*time.Minute, logger)
	env := &testEnv{
		svc:      svc,
		store:    store,
		issuer:   issuer,
		ledger:   ledger,
		events:   events,
		cooldown: cooldown,
		now:      time.Now(),
	}
	svc.now = func() time.Time { return env.now }
	svc.newOTP = func() (string, error) { return "123456", nil }
	return env
}

// seedUser stores an active user with the given phone and password.
func (e *testEnv) seedUser(t *testing.T, id, email, phone, password string, status int) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &domain.User{
		ID:             id,
		Email:          email,
		Phone:          phone,
		PasswordHash:   string(hash),
		IsActive:       true,
		GroupID:        domain.DefaultGroupID,
		RegisterStatus: status,
		CreatedAt:      e.now.Unix(),
		ModifiedAt:     e.now.Unix(),
	}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return u
}

func (e *testEnv) jti(t *testing.T, token, kind string) string {
	t.Helper()
	claims, err := e.issuer.Parse(token, kind)
	require.NoError(t, err)
	return claims.ID
}

func assertAppError(t *testing.T, err error, messageID string) {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, messageID, appErr.MessageID)
}

// ---------------------------------------------------------------------------
// Signup / Login
// ---------------------------------------------------------------------------

func TestSignup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Signup(ctx, SignupInput{Email: "new@example.com", Password: "Secret123"})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", res.Email)
	assert.True(t, res.IsActive)

	claims, err := env.issuer.Parse(res.AccessToken, domain.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, res.ID, claims.Subject)
	assert.ElementsMatch(t, []string{"get@/api/v1/videos", "post@/api/v1/videos"}, claims.UserClaims.ListPermission)

	revoked, err := env.ledger.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.False(t, revoked)
	env.events.AssertCalled(t, "PublishUserRegistered", mock.Anything, mock.Anything)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", "taken@example.com", "", "Secret123", domain.RegisterStatusNormal)

	_, err := env.svc.Signup(context.Background(), SignupInput{Email: "taken@example.com", Password: "Secret123"})
	assertAppError(t, err, apperrors.MsgAlreadyExists)
	assert.Empty(t, env.store.TokenRecords("u1"))
}

func TestSignup_PublishFailureDoesNotFail(t *testing.T) {
	env := newTestEnv(t)
	env.events.ExpectedCalls = nil
	env.events.On("PublishUserRegistered", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	_, err := env.svc.Signup(context.Background(), SignupInput{Email: "a@example.com", Password: "Secret123"})
	assert.NoError(t, err)
}

func TestLogin_ByEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", "a@example.com", "", "Secret123", domain.RegisterStatusNormal)

	res, err := env.svc.Login(context.Background(), LoginInput{Email: "a@example.com", Password: "Secret123"})
	require.NoError(t, err)
	assert.Equal(t, "u1", res.ID)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Len(t, env.store.TokenRecords("u1"), 2)
}

func TestLogin_WrongPasswordByEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", "a@example.com", "", "Secret123", domain.RegisterStatusNormal)

	_, err := env.svc.Login(context.Background(), LoginInput{Email: "a@example.com", Password: "nope"})
	assertAppError(t, err, apperrors.MsgWrongEmailPassword)

	_, err = env.svc.Login(context.Background(), LoginInput{Email: "ghost@example.com", Password: "Secret123"})
	assertAppError(t, err, apperrors.MsgWrongEmailPassword)
}

func TestLogin_ByPhoneAlternateForm(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", "a@example.com", "0912345678", "Secret123", domain.RegisterStatusNormal)

	res, err := env.svc.Login(context.Background(), LoginInput{Phone: "+84912345678", Password: "Secret123"})
	require.NoError(t, err)
	assert.Equal(t, "u1", res.ID)
}

func TestLogin_PhoneBelowNormalStatusIsUnknown(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", "a@example.com", "0912345678", "Secret123", domain.RegisterStepTwo)

	_, err := env.svc.Login(context.Background(), LoginInput{Phone: "0912345678", Password: "Secret123"})
	assertAppError(t, err, apperrors.MsgWrongPhonePassword)
}

func TestLogin_RequiresPasswordOrOTP(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Login(context.Background(), LoginInput{Email: "a@example.com"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestLogin_Inactive(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "u1", "a@example.com", "", "Secret123", domain.RegisterStatusNormal)
	u.IsActive = false
	require.NoError(t, env.store.Users().Update(context.Background(), u))

	_, err := env.svc.Login(context.Background(), LoginInput{Email: "a@example.com", Password: "Secret123"})
	assertAppError(t, err, apperrors.MsgInactiveAccount)
}

func TestLogin_WithOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "u1", "a@example.com", "0912345678", "Secret123", domain.RegisterStatusNormal)

	_, err := env.svc.SendOTP(ctx, "0912345678")
	require.NoError(t, err)

	_, err = env.svc.Login(ctx, LoginInput{Phone: "0912345678", OTP: "000000"})
	assertAppError(t, err, apperrors.MsgWrongOTP)

	res, err := env.svc.Login(ctx, LoginInput{Phone: "0912345678", OTP: "123456"})
	require.NoError(t, err)
	assert.Equal(t, "u1", res.ID)

	env.now = env.now.Add(6 * time.Minute)
	_, err = env.svc.Login(ctx, LoginInput{Phone: "0912345678", OTP: "123456"})
	assertAppError(t, err, apperrors.MsgOTPExpired)
}

// ---------------------------------------------------------------------------
// OTP and password reset
// ---------------------------------------------------------------------------

func TestSendOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "u1", "a@example.com", "0912345678", "Secret123", domain.RegisterStatusNormal)

	res, err := env.svc.SendOTP(ctx, "+84912345678")
	require.NoError(t, err)
	assert.Equal(t, "u1", res.UserID)

	stored, err := env.store.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "123456", stored.OTP)
	assert.Equal(t, env.now.Add(5*time.Minute).Unix(), stored.OTPTTL)
	env.events.AssertCalled(t, "PublishOTPRequested", mock.Anything, mock.Anything)
}

func TestSendOTP_UnknownOrInactivePhone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.SendOTP(ctx, "0900000000")
	assertAppError(t, err, apperrors.MsgNotFound)

	u := env.seedUser(t, "u1", "a@example.com", "0912345678", "Secret123", domain.RegisterStatusNormal)
	u.IsActive = false
	require.NoError(t, env.store.Users().Update(ctx, u))
	_, err = env.svc.SendOTP(ctx, "0912345678")
	assertAppError(t, err, apperrors.MsgNotFound)
}

func TestSendOTP_Cooldown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "u1", "a@example.com", "0912345678", "Secret123", domain.RegisterStatusNormal)

	_, err := env.svc.SendOTP(ctx, "0912345678")
	require.NoError(t, err)
	_, err = env.svc.SendOTP(ctx, "0912345678")
	assertAppError(t, err, apperrors.MsgOTPTooFrequent)
}

func TestSendOTP_CooldownUnavailableContinues(t *testing.T) {
	env := newTestEnv(t)
	env.cooldown.err = errors.New("redis down")
	env.seedUser(t, "u1", "a@example.com", "0912345678", "Secret123", domain.RegisterStatusNormal)

	_, err := env.svc.SendOTP(context.Background(), "0912345678")
	assert.NoError(t, err)
}

func TestCheckOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "u1", "a@example.com", "0912345678", "Secret123", domain.RegisterStatusNormal)
	_, err := env.svc.SendOTP(ctx, "0912345678")
	require.NoError(t, err)

	_, err = env.svc.CheckOTP(ctx, "u1", "999999")
	assertAppError(t, err, apperrors.MsgWrongOTP)

	schema, err := env.svc.CheckOTP(ctx, "u1", "123456")
	require.NoError(t, err)
	assert.Equal(t, "u1", schema.ID)

	stored, err := env.store.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RegisterStatusOTPVerified, stored.RegisterStatus)
}

func TestCheckOTP_ExpiredAndUnknown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "u1", "a@example.com", "0912345678", "Secret123", domain.RegisterStatusNormal)
	_, err := env.svc.SendOTP(ctx, "0912345678")
	require.NoError(t, err)

	env.now = env.now.Add(10 * time.Minute)
	_, err = env.svc.CheckOTP(ctx, "u1", "123456")
	assertAppError(t, err, apperrors.MsgOTPExpired)

	_, err = env.svc.CheckOTP(ctx, "ghost", "123456")
	assertAppError(t, err, apperrors.MsgNotFound)
}

func TestResetPassword_OTPVerifiedUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "u1", "a@example.com", "0912345678", "OldPass123", domain.RegisterStatusNormal)

	before, err := env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "OldPass123"})
	require.NoError(t, err)
	oldJTI := env.jti(t, before.RefreshToken, domain.TokenKindRefresh)

	_, err = env.svc.SendOTP(ctx, "0912345678")
	require.NoError(t, err)
	_, err = env.svc.CheckOTP(ctx, "u1", "123456")
	require.NoError(t, err)

	res, err := env.svc.ResetPassword(ctx, "u1", "NewPass123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)

	stored, err := env.store.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RegisterStatusNormal, stored.RegisterStatus)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("NewPass123")))

	revoked, err := env.ledger.IsRevoked(ctx, oldJTI)
	require.NoError(t, err)
	assert.True(t, revoked)

	newRevoked, err := env.ledger.IsRevoked(ctx, env.jti(t, res.AccessToken, domain.TokenKindAccess))
	require.NoError(t, err)
	assert.False(t, newRevoked)
	env.events.AssertCalled(t, "PublishPasswordReset", mock.Anything, mock.Anything)
}

func TestResetPassword_RequiresOTPVerification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "u1", "a@example.com", "0912345678", "OldPass123", domain.RegisterStatusNormal)

	_, err := env.svc.ResetPassword(ctx, "u1", "NewPass123")
	assertAppError(t, err, apperrors.MsgNotFound)

	stored, err := env.store.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("OldPass123")))
}

func TestResetPassword_IssuanceFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "u1", "a@example.com", "0912345678", "OldPass123", domain.RegisterStatusNormal)

	before, err := env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "OldPass123"})
	require.NoError(t, err)
	_, err = env.svc.SendOTP(ctx, "0912345678")
	require.NoError(t, err)
	_, err = env.svc.CheckOTP(ctx, "u1", "123456")
	require.NoError(t, err)
	records := len(env.store.TokenRecords("u1"))

	// access row succeeds, refresh row fails
	boom := errors.New("ledger unavailable")
	env.svc.store = failIssuance(env.store, 2, boom)

	_, err = env.svc.ResetPassword(ctx, "u1", "NewPass123")
	require.ErrorIs(t, err, boom)

	stored, err := env.store.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RegisterStatusOTPVerified, stored.RegisterStatus)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("OldPass123")))
	assert.Zero(t, stored.PasswordChangedAt)

	for _, token := range []string{before.AccessToken, before.RefreshToken} {
		kind := domain.TokenKindAccess
		if token == before.RefreshToken {
			kind = domain.TokenKindRefresh
		}
		revoked, err := env.ledger.IsRevoked(ctx, env.jti(t, token, kind))
		require.NoError(t, err)
		assert.False(t, revoked)
	}
	assert.Len(t, env.store.TokenRecords("u1"), records, "no half-issued pair is left behind")
	env.events.AssertNotCalled(t, "PublishPasswordReset", mock.Anything, mock.Anything)
}

// ---------------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------------

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "u1", "a@example.com", "", "Secret123", domain.RegisterStatusNormal)
	login, err := env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "Secret123"})
	require.NoError(t, err)

	res, err := env.svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	claims, err := env.issuer.Parse(res.AccessToken, domain.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Len(t, env.store.TokenRecords("u1"), 3)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "u1", "a@example.com", "", "Secret123", domain.RegisterStatusNormal)
	login, err := env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "Secret123"})
	require.NoError(t, err)

	_, err = env.svc.Refresh(ctx, login.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRefresh_RevokedToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "u1", "a@example.com", "", "Secret123", domain.RegisterStatusNormal)
	login, err := env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "Secret123"})
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx, env.jti(t, login.RefreshToken, domain.TokenKindRefresh)))

	_, err = env.svc.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrTokenRevoked)
}

func TestLogout_OnlyRevokesThatToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "u1", "a@example.com", "", "Secret123", domain.RegisterStatusNormal)
	login, err := env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "Secret123"})
	require.NoError(t, err)
	accessJTI := env.jti(t, login.AccessToken, domain.TokenKindAccess)
	refreshJTI := env.jti(t, login.RefreshToken, domain.TokenKindRefresh)

	require.NoError(t, env.svc.Logout(ctx, accessJTI))
	require.NoError(t, env.svc.Logout(ctx, accessJTI))

	revoked, err := env.ledger.IsRevoked(ctx, accessJTI)
	require.NoError(t, err)
	assert.True(t, revoked)
	revoked, err = env.ledger.IsRevoked(ctx, refreshJTI)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "u1", "a@example.com", "", "OldPass123", domain.RegisterStatusNormal)
	u.ForceChangePassword = true
	require.NoError(t, env.store.Users().Update(ctx, u))

	current, err := env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "OldPass123"})
	require.NoError(t, err)
	other, err := env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "OldPass123"})
	require.NoError(t, err)
	currentJTI := env.jti(t, current.AccessToken, domain.TokenKindAccess)

	res, err := env.svc.ChangePassword(ctx, ChangePasswordInput{
		UserID:          "u1",
		TokenID:         currentJTI,
		CurrentPassword: "OldPass123",
		NewPassword:     "NewPass123",
	})
	require.NoError(t, err)

	claims, err := env.issuer.Parse(res.AccessToken, domain.TokenKindAccess)
	require.NoError(t, err)
	assert.False(t, claims.UserClaims.ForceChangePassword)

	revoked, err := env.ledger.IsRevoked(ctx, currentJTI)
	require.NoError(t, err)
	assert.False(t, revoked, "the calling token stays valid")

	revoked, err = env.ledger.IsRevoked(ctx, env.jti(t, other.AccessToken, domain.TokenKindAccess))
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "NewPass123"})
	assert.NoError(t, err)
}

func TestChangePassword_IssuanceFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "u1", "a@example.com", "", "OldPass123", domain.RegisterStatusNormal)
	u.ForceChangePassword = true
	require.NoError(t, env.store.Users().Update(ctx, u))

	current, err := env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "OldPass123"})
	require.NoError(t, err)
	other, err := env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "OldPass123"})
	require.NoError(t, err)
	records := len(env.store.TokenRecords("u1"))

	boom := errors.New("ledger unavailable")
	env.svc.store = failIssuance(env.store, 1, boom)

	_, err = env.svc.ChangePassword(ctx, ChangePasswordInput{
		UserID:          "u1",
		TokenID:         env.jti(t, current.AccessToken, domain.TokenKindAccess),
		CurrentPassword: "OldPass123",
		NewPassword:     "NewPass123",
	})
	require.ErrorIs(t, err, boom)

	stored, err := env.store.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, stored.ForceChangePassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("OldPass123")))

	revoked, err := env.ledger.IsRevoked(ctx, env.jti(t, other.AccessToken, domain.TokenKindAccess))
	require.NoError(t, err)
	assert.False(t, revoked, "other sessions survive a failed change")
	assert.Len(t, env.store.TokenRecords("u1"), records)

	env.svc.store = env.store
	_, err = env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "OldPass123"})
	assert.NoError(t, err)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", "a@example.com", "", "OldPass123", domain.RegisterStatusNormal)

	_, err := env.svc.ChangePassword(context.Background(), ChangePasswordInput{
		UserID: "u1", TokenID: "jti", CurrentPassword: "Wrong1234", NewPassword: "NewPass123",
	})
	assertAppError(t, err, apperrors.MsgWrongEmailPassword)
}

func TestChangePassword_SamePassword(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.ChangePassword(context.Background(), ChangePasswordInput{
		UserID: "u1", TokenID: "jti", CurrentPassword: "Same1234", NewPassword: "Same1234",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", "a@example.com", "0912345678", "Secret123", domain.RegisterStatusNormal)

	schema, err := env.svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "0912345678", schema.Phone)

	_, err = env.svc.Me(context.Background(), "ghost")
	assertAppError(t, err, apperrors.MsgNotFound)
}

func TestPruneExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "u1", "a@example.com", "", "Secret123", domain.RegisterStatusNormal)
	_, err := env.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "Secret123"})
	require.NoError(t, err)

	res, err := env.svc.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Pruned)

	// Past the access expiry only.
	env.now = time.Now().Add(48 * time.Hour)
	res, err = env.svc.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Pruned)
	assert.Len(t, env.store.TokenRecords("u1"), 1)
}

func TestRandomOTP(t *testing.T) {
	for range 20 {
		otp, err := randomOTP()
		require.NoError(t, err)
		assert.Len(t, otp, 6)
	}
}

package flows

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/sessionkit/internal"
	"github.com/MrEthical07/sessionkit/jwt"
	"github.com/MrEthical07/sessionkit/session"
	"github.com/MrEthical07/sessionkit/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errNotReady     = errors.New("not ready")
	errInvalidInput = errors.New("invalid input")
	errPolicy       = errors.New("password policy")
	errExists       = errors.New("exists")
	errTaken        = errors.New("taken")
	errNotFound     = errors.New("not found")
	errBadCreds     = errors.New("bad credentials")
	errDisabled     = errors.New("disabled")
	errUnauthorized = errors.New("unauthorized")
	errBoom         = errors.New("boom")
)

// faultyRecords wraps real records and injects failures.
type faultyRecords struct {
	inner      RecordStore
	saveErr    error
	lookupErr  error
	revokeErr  error
	revokeMiss bool
	saves      atomic.Int32
}

func (f *faultyRecords) Save(ctx context.Context, subject, jti, fp string, ttl time.Duration) error {
	f.saves.Add(1)
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.inner.Save(ctx, subject, jti, fp, ttl)
}

func (f *faultyRecords) Lookup(ctx context.Context, subject, jti string) (string, error) {
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	return f.inner.Lookup(ctx, subject, jti)
}

func (f *faultyRecords) Revoke(ctx context.Context, subject, jti string) (bool, error) {
	if f.revokeErr != nil {
		return false, f.revokeErr
	}
	if f.revokeMiss {
		return false, nil
	}
	return f.inner.Revoke(ctx, subject, jti)
}

// countingCodec counts mints.
type countingCodec struct {
	TokenCodec
	mints atomic.Int32
}

func (c *countingCodec) Mint(subject string, kind jwt.Kind, ttl time.Duration) (string, string, error) {
	c.mints.Add(1)
	return c.TokenCodec.Mint(subject, kind, ttl)
}

type fixture struct {
	codec   *countingCodec
	records *faultyRecords
	kv      *store.Memory
	deps    IssueDeps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("flows-test-secret-flows-test-secret"),
	})
	require.NoError(t, err)

	kv := store.NewMemory()
	f := &fixture{
		codec:   &countingCodec{TokenCodec: mgr},
		records: &faultyRecords{inner: session.NewRecords(kv, "")},
		kv:      kv,
	}
	f.deps = IssueDeps{
		Codec:       f.codec,
		Records:     f.records,
		Fingerprint: internal.Fingerprint,
		AccessTTL:   30 * time.Minute,
		RefreshTTL:  7 * 24 * time.Hour,
	}
	return f
}

func (f *fixture) refreshDeps() RefreshDeps {
	return RefreshDeps{Issue: f.deps, FingerprintEqual: internal.FingerprintEqual}
}

func TestRunIssueSavesFingerprint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := RunIssue(ctx, "u1", f.deps)
	require.Equal(t, FailureNone, res.Failure, "err=%v", res.Err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)

	stored, err := f.kv.Get(ctx, "refresh:u1:"+res.RefreshTokenID)
	require.NoError(t, err)
	assert.Equal(t, internal.Fingerprint(res.RefreshToken), stored)
	assert.NotContains(t, stored, res.RefreshToken)
}

func TestRunIssueStoreFailureReturnsNoTokens(t *testing.T) {
	f := newFixture(t)
	f.records.saveErr = session.ErrStoreUnavailable

	res := RunIssue(context.Background(), "u1", f.deps)
	assert.Equal(t, FailureStoreUnavailable, res.Failure)
	assert.Empty(t, res.AccessToken)
	assert.Empty(t, res.RefreshToken)
}

func TestRunRefreshRotatesAndRejectsReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued := RunIssue(ctx, "u1", f.deps)
	require.Equal(t, FailureNone, issued.Failure)

	rotated := RunRefresh(ctx, issued.RefreshToken, f.refreshDeps())
	require.Equal(t, FailureNone, rotated.Failure, "err=%v", rotated.Err)
	assert.True(t, rotated.Revoked)
	assert.Equal(t, "u1", rotated.Subject)
	assert.Equal(t, issued.RefreshTokenID, rotated.OldTokenID)
	assert.NotEqual(t, issued.RefreshToken, rotated.RefreshToken)
	assert.Equal(t, 1, f.kv.Len(), "only the new record remains")

	replay := RunRefresh(ctx, issued.RefreshToken, f.refreshDeps())
	assert.Equal(t, FailureRevokedOrExpired, replay.Failure)

	again := RunRefresh(ctx, rotated.RefreshToken, f.refreshDeps())
	assert.Equal(t, FailureNone, again.Failure)
}

func TestRunRefreshTokenFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issued := RunIssue(ctx, "u1", f.deps)
	require.Equal(t, FailureNone, issued.Failure)

	assert.Equal(t, FailureWrongType, RunRefresh(ctx, issued.AccessToken, f.refreshDeps()).Failure)
	assert.Equal(t, FailureMalformed, RunRefresh(ctx, "garbage", f.refreshDeps()).Failure)

	parts := strings.Split(issued.RefreshToken, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	assert.Equal(t, FailureInvalidSignature, RunRefresh(ctx, tampered, f.refreshDeps()).Failure)
}

func TestRunRefreshFingerprintMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issued := RunIssue(ctx, "u1", f.deps)
	require.Equal(t, FailureNone, issued.Failure)

	require.NoError(t, f.kv.Put(ctx, "refresh:u1:"+issued.RefreshTokenID, internal.Fingerprint("other"), time.Hour))

	res := RunRefresh(ctx, issued.RefreshToken, f.refreshDeps())
	assert.Equal(t, FailureFingerprintMismatch, res.Failure)
	assert.False(t, res.Revoked)
}

func TestRunRefreshConcurrentLoserDoesNotMint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issued := RunIssue(ctx, "u1", f.deps)
	require.Equal(t, FailureNone, issued.Failure)
	mintsBefore := f.codec.mints.Load()

	f.records.revokeMiss = true
	res := RunRefresh(ctx, issued.RefreshToken, f.refreshDeps())
	assert.Equal(t, FailureRevokedOrExpired, res.Failure)
	assert.Equal(t, mintsBefore, f.codec.mints.Load())
}

func TestRunRefreshRevokeFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issued := RunIssue(ctx, "u1", f.deps)
	require.Equal(t, FailureNone, issued.Failure)
	mintsBefore := f.codec.mints.Load()

	f.records.revokeErr = session.ErrStoreUnavailable
	res := RunRefresh(ctx, issued.RefreshToken, f.refreshDeps())
	assert.Equal(t, FailureStoreUnavailable, res.Failure)
	assert.False(t, res.Revoked)
	assert.Equal(t, mintsBefore, f.codec.mints.Load())

	f.records.revokeErr = nil
	assert.Equal(t, FailureNone, RunRefresh(ctx, issued.RefreshToken, f.refreshDeps()).Failure)
}

func TestRunRefreshSaveFailureAfterRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issued := RunIssue(ctx, "u1", f.deps)
	require.Equal(t, FailureNone, issued.Failure)

	f.records.saveErr = session.ErrStoreUnavailable
	res := RunRefresh(ctx, issued.RefreshToken, f.refreshDeps())
	assert.Equal(t, FailureStoreUnavailable, res.Failure)
	assert.True(t, res.Revoked)
	assert.Empty(t, res.RefreshToken)

	f.records.saveErr = nil
	assert.Equal(t, FailureRevokedOrExpired, RunRefresh(ctx, issued.RefreshToken, f.refreshDeps()).Failure)
}

func TestRunRefreshLookupFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issued := RunIssue(ctx, "u1", f.deps)
	require.Equal(t, FailureNone, issued.Failure)

	f.records.lookupErr = session.ErrStoreUnavailable
	assert.Equal(t, FailureStoreUnavailable, RunRefresh(ctx, issued.RefreshToken, f.refreshDeps()).Failure)
}

func TestRunLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deps := LogoutDeps{Codec: f.codec, Records: f.records}

	empty := RunLogout(ctx, "", deps)
	assert.True(t, empty.NoToken)
	assert.Equal(t, FailureNone, empty.Failure)

	bad := RunLogout(ctx, "not-a-token", deps)
	assert.Equal(t, FailureMalformed, bad.Failure)
	assert.Error(t, bad.Err)

	issued := RunIssue(ctx, "u1", f.deps)
	require.Equal(t, FailureNone, issued.Failure)

	wrong := RunLogout(ctx, issued.AccessToken, deps)
	assert.Equal(t, FailureWrongType, wrong.Failure)

	ok := RunLogout(ctx, issued.RefreshToken, deps)
	assert.Equal(t, FailureNone, ok.Failure)
	assert.True(t, ok.Revoked)
	assert.Equal(t, 0, f.kv.Len())

	twice := RunLogout(ctx, issued.RefreshToken, deps)
	assert.Equal(t, FailureNone, twice.Failure)
	assert.False(t, twice.Revoked)

	assert.Equal(t, FailureRevokedOrExpired, RunRefresh(ctx, issued.RefreshToken, f.refreshDeps()).Failure)
}

func TestRunLogoutStoreFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issued := RunIssue(ctx, "u1", f.deps)
	require.Equal(t, FailureNone, issued.Failure)

	f.records.revokeErr = session.ErrStoreUnavailable
	res := RunLogout(ctx, issued.RefreshToken, LogoutDeps{Codec: f.codec, Records: f.records})
	assert.Equal(t, FailureStoreUnavailable, res.Failure)
	assert.Equal(t, "u1", res.Subject)
}

func TestFailureKindNames(t *testing.T) {
	assert.Equal(t, "revoked_or_expired", FailureRevokedOrExpired.String())
	assert.Equal(t, "unknown", FailureKind(99).String())
	assert.True(t, FailureExpired.TokenFailure())
	assert.False(t, FailureStoreUnavailable.TokenFailure())
	assert.False(t, FailureNone.TokenFailure())
}

type userDirectory struct {
	byEmail map[string]AccountUserRecord
	byID    map[string]AccountUserRecord
}

func newUserDirectory() *userDirectory {
	return &userDirectory{
		byEmail: make(map[string]AccountUserRecord),
		byID:    make(map[string]AccountUserRecord),
	}
}

func (d *userDirectory) getByEmail(_ context.Context, email string) (AccountUserRecord, error) {
	u, ok := d.byEmail[email]
	if !ok {
		return AccountUserRecord{}, errNotFound
	}
	return u, nil
}

func (d *userDirectory) getByID(_ context.Context, id string) (AccountUserRecord, error) {
	u, ok := d.byID[id]
	if !ok {
		return AccountUserRecord{}, errNotFound
	}
	return u, nil
}

func (d *userDirectory) getByUsername(_ context.Context, username string) (AccountUserRecord, error) {
	for _, u := range d.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return AccountUserRecord{}, errNotFound
}

func (d *userDirectory) create(_ context.Context, in AccountCreateUserInput) (AccountUserRecord, error) {
	u := AccountUserRecord{
		UserID:       "id-" + in.Email,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Active:       true,
	}
	d.byEmail[u.Email] = u
	d.byID[u.UserID] = u
	return u, nil
}

func (d *userDirectory) put(u AccountUserRecord) {
	d.byEmail[u.Email] = u
	d.byID[u.UserID] = u
}

func plainHash(p string) (string, error) { return "h:" + p, nil }

func plainVerify(p, h string) (bool, error) { return h == "h:"+p, nil }

var errTooShort = errors.New("too short")

func minLength(p string) error {
	if len(p) < 8 {
		return errTooShort
	}
	return nil
}

func accountDeps(f *fixture, dir *userDirectory) AccountDeps {
	return AccountDeps{
		GetUserByEmail:    dir.getByEmail,
		GetUserByUsername: dir.getByUsername,
		CheckPassword:     minLength,
		HashPassword:      plainHash,
		CreateUser:        dir.create,
		Issue:             f.deps,
		Errors: AccountErrors{
			EngineNotReady: errNotReady,
			InvalidInput:   errInvalidInput,
			PasswordPolicy: errPolicy,
			AccountExists:  errExists,
			UsernameTaken:  errTaken,
			UserNotFound:   errNotFound,
		},
	}
}

func loginDeps(f *fixture, dir *userDirectory) LoginDeps {
	return LoginDeps{
		GetUserByEmail: dir.getByEmail,
		GetUserByID:    dir.getByID,
		VerifyPassword: plainVerify,
		Issue:          f.deps,
		Errors: LoginErrors{
			EngineNotReady:     errNotReady,
			InvalidCredentials: errBadCreds,
			AccountDisabled:    errDisabled,
			UserNotFound:       errNotFound,
			Unauthorized:       errUnauthorized,
		},
	}
}

func TestRunCreateAccount(t *testing.T) {
	f := newFixture(t)
	dir := newUserDirectory()
	deps := accountDeps(f, dir)
	ctx := context.Background()

	res, err := RunCreateAccount(ctx, AccountCreateRequest{Email: "  Alice@Example.COM ", Username: "alice", Password: "correct-horse"}, deps)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, "h:correct-horse", res.User.PasswordHash)
	assert.Equal(t, FailureNone, res.Issue.Failure)

	_, err = RunCreateAccount(ctx, AccountCreateRequest{Email: "alice@example.com", Password: "correct-horse"}, deps)
	assert.ErrorIs(t, err, errExists)

	_, err = RunCreateAccount(ctx, AccountCreateRequest{Email: "bob@example.com", Username: "alice", Password: "correct-horse"}, deps)
	assert.ErrorIs(t, err, errTaken)

	_, err = RunCreateAccount(ctx, AccountCreateRequest{Email: "bob@example.com", Password: "short"}, deps)
	assert.ErrorIs(t, err, errPolicy)
	assert.ErrorContains(t, err, errTooShort.Error())

	_, err = RunCreateAccount(ctx, AccountCreateRequest{Email: "not-an-email", Password: "correct-horse"}, deps)
	assert.ErrorIs(t, err, errInvalidInput)

	deps.HashPassword = nil
	_, err = RunCreateAccount(ctx, AccountCreateRequest{Email: "c@example.com", Password: "correct-horse"}, deps)
	assert.ErrorIs(t, err, errNotReady)

	deps = accountDeps(f, dir)
	deps.CheckPassword = nil
	_, err = RunCreateAccount(ctx, AccountCreateRequest{Email: "c@example.com", Password: "correct-horse"}, deps)
	assert.ErrorIs(t, err, errNotReady)
}

func TestRunCreateAccountChecksPolicyBeforeLookup(t *testing.T) {
	f := newFixture(t)
	deps := accountDeps(f, newUserDirectory())
	var lookups int
	deps.GetUserByEmail = func(context.Context, string) (AccountUserRecord, error) {
		lookups++
		return AccountUserRecord{}, errNotFound
	}
	deps.CheckPassword = func(string) error { return errTooShort }

	_, err := RunCreateAccount(context.Background(), AccountCreateRequest{Email: "a@example.com", Password: "whatever-it-is"}, deps)
	assert.ErrorIs(t, err, errPolicy)
	assert.Zero(t, lookups)
}

func TestRunCreateAccountLookupFailure(t *testing.T) {
	f := newFixture(t)
	deps := accountDeps(f, newUserDirectory())
	deps.GetUserByEmail = func(context.Context, string) (AccountUserRecord, error) {
		return AccountUserRecord{}, errBoom
	}

	_, err := RunCreateAccount(context.Background(), AccountCreateRequest{Email: "a@example.com", Password: "correct-horse"}, deps)
	assert.ErrorIs(t, err, errBoom)
}

func TestRunLogin(t *testing.T) {
	f := newFixture(t)
	dir := newUserDirectory()
	dir.put(AccountUserRecord{UserID: "u1", Email: "a@example.com", PasswordHash: "h:secret-pass", Active: true})
	dir.put(AccountUserRecord{UserID: "u2", Email: "off@example.com", PasswordHash: "h:secret-pass"})
	dir.put(AccountUserRecord{UserID: "u3", Email: "gone@example.com", PasswordHash: "h:secret-pass", Active: true, Deleted: true})
	deps := loginDeps(f, dir)
	ctx := context.Background()

	res, err := RunLogin(ctx, "A@Example.com", "secret-pass", deps)
	require.NoError(t, err)
	assert.Equal(t, "u1", res.User.UserID)
	assert.Equal(t, FailureNone, res.Issue.Failure)

	_, err = RunLogin(ctx, "a@example.com", "wrong", deps)
	assert.ErrorIs(t, err, errBadCreds)
	_, err = RunLogin(ctx, "nobody@example.com", "secret-pass", deps)
	assert.ErrorIs(t, err, errBadCreds)
	_, err = RunLogin(ctx, "gone@example.com", "secret-pass", deps)
	assert.ErrorIs(t, err, errBadCreds)
	_, err = RunLogin(ctx, "off@example.com", "secret-pass", deps)
	assert.ErrorIs(t, err, errDisabled)
}

func TestRunLoginRehashesStaleHash(t *testing.T) {
	f := newFixture(t)
	dir := newUserDirectory()
	dir.put(AccountUserRecord{UserID: "u1", Email: "old@example.com", PasswordHash: "h:secret-pass", Active: true})
	dir.put(AccountUserRecord{UserID: "u2", Email: "new@example.com", PasswordHash: "h2:h:secret-pass", Active: true})

	updated := map[string]string{}
	deps := loginDeps(f, dir)
	deps.VerifyPassword = func(p, h string) (bool, error) {
		return h == "h:"+p || h == "h2:h:"+p, nil
	}
	deps.NeedsRehash = func(h string) (bool, error) { return !strings.HasPrefix(h, "h2:"), nil }
	deps.HashPassword = func(p string) (string, error) { return "h2:h:" + p, nil }
	deps.UpdatePasswordHash = func(_ context.Context, id, hash string) error {
		updated[id] = hash
		return nil
	}
	ctx := context.Background()

	res, err := RunLogin(ctx, "old@example.com", "secret-pass", deps)
	require.NoError(t, err)
	assert.True(t, res.Rehashed)
	assert.NoError(t, res.RehashErr)
	assert.Equal(t, "h2:h:secret-pass", updated["u1"])

	res, err = RunLogin(ctx, "new@example.com", "secret-pass", deps)
	require.NoError(t, err)
	assert.False(t, res.Rehashed)
	assert.NotContains(t, updated, "u2")

	// a failed upgrade still signs the user in
	deps.UpdatePasswordHash = func(context.Context, string, string) error { return errBoom }
	res, err = RunLogin(ctx, "old@example.com", "secret-pass", deps)
	require.NoError(t, err)
	assert.False(t, res.Rehashed)
	assert.ErrorIs(t, res.RehashErr, errBoom)
	assert.Equal(t, FailureNone, res.Issue.Failure)

	// wrong password never reaches the upgrade path
	updated = map[string]string{}
	deps.UpdatePasswordHash = func(_ context.Context, id, hash string) error {
		updated[id] = hash
		return nil
	}
	_, err = RunLogin(ctx, "old@example.com", "wrong-pass", deps)
	assert.ErrorIs(t, err, errBadCreds)
	assert.Empty(t, updated)
}

func TestRunCurrentUser(t *testing.T) {
	f := newFixture(t)
	dir := newUserDirectory()
	dir.put(AccountUserRecord{UserID: "u1", Email: "a@example.com", Active: true})
	dir.put(AccountUserRecord{UserID: "u2", Email: "off@example.com"})
	deps := loginDeps(f, dir)
	validate := ValidateDeps{Codec: f.codec}
	ctx := context.Background()

	issue := func(sub string) IssueResult {
		res := RunIssue(ctx, sub, f.deps)
		require.Equal(t, FailureNone, res.Failure)
		return res
	}

	ok := RunCurrentUser(ctx, issue("u1").AccessToken, validate, deps)
	require.NoError(t, ok.Err)
	assert.Equal(t, "a@example.com", ok.User.Email)

	disabled := RunCurrentUser(ctx, issue("u2").AccessToken, validate, deps)
	assert.ErrorIs(t, disabled.Err, errDisabled)

	missing := RunCurrentUser(ctx, issue("ghost").AccessToken, validate, deps)
	assert.ErrorIs(t, missing.Err, errUnauthorized)

	refresh := RunCurrentUser(ctx, issue("u1").RefreshToken, validate, deps)
	assert.Equal(t, FailureWrongType, refresh.Failure)
}

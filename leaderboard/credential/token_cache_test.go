package credential

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Ftotnem/isabot-go/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	mu    sync.Mutex
	cred  *models.Credential
	saves int
}

func (m *memStore) Latest(context.Context) (*models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil, nil
	}
	c := *m.cred
	return &c, nil
}

func (m *memStore) Save(_ context.Context, cred models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = &cred
	m.saves++
	return nil
}

type mockSource struct {
	calls   int32
	fetchFn func(ctx context.Context, call int32) (TokenResponse, error)
}

func (m *mockSource) FetchToken(ctx context.Context) (TokenResponse, error) {
	n := atomic.AddInt32(&m.calls, 1)
	return m.fetchFn(ctx, n)
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestGetToken_ReusesValidCredential(t *testing.T) {
	cached := models.Credential{AccessToken: "cached", ExpiresAt: fixedNow.Add(time.Minute), Subject: "app"}
	store := &memStore{cred: &cached}
	source := &mockSource{fetchFn: func(context.Context, int32) (TokenResponse, error) {
		t.Fatal("token endpoint must not be called on a cache hit")
		return TokenResponse{}, nil
	}}

	tc := NewTokenCache(store, source, Options{Now: clock}, zap.NewNop())

	got, err := tc.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cached, got)
	assert.EqualValues(t, 0, source.calls)
}

func TestGetToken_RefreshesExpiredCredential(t *testing.T) {
	expired := models.Credential{AccessToken: "old", ExpiresAt: fixedNow.Add(-time.Second)}
	store := &memStore{cred: &expired}
	source := &mockSource{fetchFn: func(context.Context, int32) (TokenResponse, error) {
		return TokenResponse{AccessToken: "new", ExpiresIn: 24 * time.Hour, Subject: "app"}, nil
	}}

	tc := NewTokenCache(store, source, Options{Now: clock}, zap.NewNop())

	got, err := tc.GetToken(context.Background())
	require.NoError(t, err)

	want := models.Credential{AccessToken: "new", ExpiresAt: fixedNow.Add(24 * time.Hour), Subject: "app"}
	assert.Equal(t, want, got)
	assert.EqualValues(t, 1, source.calls)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, want, *store.cred)
}

func TestGetToken_ExpiryBoundaryIsExpired(t *testing.T) {
	atBoundary := models.Credential{AccessToken: "edge", ExpiresAt: fixedNow}
	store := &memStore{cred: &atBoundary}
	source := &mockSource{fetchFn: func(context.Context, int32) (TokenResponse, error) {
		return TokenResponse{AccessToken: "fresh", ExpiresIn: time.Hour}, nil
	}}

	tc := NewTokenCache(store, source, Options{Now: clock}, zap.NewNop())

	got, err := tc.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.AccessToken)
}

func TestGetToken_RetriesThenSucceeds(t *testing.T) {
	store := &memStore{}
	source := &mockSource{fetchFn: func(_ context.Context, call int32) (TokenResponse, error) {
		if call == 1 {
			return TokenResponse{}, errors.New("connection reset")
		}
		return TokenResponse{AccessToken: "second", ExpiresIn: time.Hour}, nil
	}}

	tc := NewTokenCache(store, source, Options{MaxAttempts: 2, Now: clock}, zap.NewNop())

	got, err := tc.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", got.AccessToken)
	assert.EqualValues(t, 2, source.calls)
}

func TestGetToken_RetryExhaustion(t *testing.T) {
	for _, attempts := range []int{1, 2, 4} {
		store := &memStore{}
		source := &mockSource{fetchFn: func(context.Context, int32) (TokenResponse, error) {
			return TokenResponse{}, errors.New("503 from token endpoint")
		}}

		tc := NewTokenCache(store, source, Options{MaxAttempts: attempts, Backoff: time.Millisecond, Now: clock}, zap.NewNop())

		_, err := tc.GetToken(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCredentialUnavailable))
		assert.EqualValues(t, attempts, source.calls)
		assert.Nil(t, store.cred)
	}
}

func TestGetToken_RejectsMissingExpiry(t *testing.T) {
	source := &mockSource{fetchFn: func(context.Context, int32) (TokenResponse, error) {
		return TokenResponse{AccessToken: "no-expiry"}, nil
	}}

	tc := NewTokenCache(&memStore{}, source, Options{MaxAttempts: 2, Now: clock}, zap.NewNop())

	_, err := tc.GetToken(context.Background())
	assert.True(t, errors.Is(err, ErrCredentialUnavailable))
}

func TestGetToken_ConcurrentCallersShareOneRefresh(t *testing.T) {
	release := make(chan struct{})
	source := &mockSource{fetchFn: func(context.Context, int32) (TokenResponse, error) {
		<-release
		return TokenResponse{AccessToken: "shared", ExpiresIn: time.Hour}, nil
	}}

	tc := NewTokenCache(&memStore{}, source, Options{Now: clock}, zap.NewNop())

	const callers = 16
	var wg sync.WaitGroup
	results := make([]models.Credential, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cred, err := tc.GetToken(context.Background())
			assert.NoError(t, err)
			results[i] = cred
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&source.calls))
	for _, r := range results {
		assert.Equal(t, "shared", r.AccessToken)
	}
}

func TestClientCredentialsSource_FetchToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"bearer","expires_in":86399,"sub":"client-id"}`))
	}))
	defer srv.Close()

	src := NewClientCredentialsSource("client-id", "client-secret", srv.URL, srv.Client())

	resp, err := src.FetchToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.AccessToken)
	assert.Equal(t, 86399*time.Second, resp.ExpiresIn)
	assert.Equal(t, "client-id", resp.Subject)
}

func TestClientCredentialsSource_MissingExpiresIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"bearer"}`))
	}))
	defer srv.Close()

	src := NewClientCredentialsSource("id", "secret", srv.URL, srv.Client())

	_, err := src.FetchToken(context.Background())
	assert.Error(t, err)
}

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/openboard/openboard/internal/logging"
	"github.com/openboard/openboard/types"
)

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

const (
	refreshCheckInterval = 5 * time.Minute
	refreshAhead         = 10 * time.Minute
	maxRefreshFailures   = 3
)

// ErrSessionExpired is returned when the refresh token has been rejected and
// the session has been cleared.
var ErrSessionExpired = errors.New("session expired")

type refreshCall struct {
	done chan struct{}
	err  error
}

// Manager owns the client session: it restores persisted tokens on startup,
// logs in and out against the server, and keeps the access token fresh with
// a background check. Construct one per application, not per request.
type Manager struct {
	baseURL string
	store   Store
	http    *http.Client
	log     logging.Logger
	secure  bool
	now     func() time.Time

	mu           sync.Mutex
	state        State
	accessToken  string
	refreshToken string
	user         types.PublicUser
	inflight     *refreshCall
	stopRefresh  context.CancelFunc

	// OnSessionExpired, when set, is called after the session is cleared by
	// a rejected refresh. Set it before Initialize.
	OnSessionExpired func()
}

// NewManager constructs a Manager talking to the API at baseURL.
func NewManager(baseURL string, store Store, log logging.Logger, httpClient *http.Client) *Manager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = logging.NewDefault()
	}
	return &Manager{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		http:    httpClient,
		log:     log,
		secure:  strings.HasPrefix(baseURL, "https://"),
		now:     time.Now,
		state:   StateUninitialized,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AccessToken returns the current access token, or empty when anonymous.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken
}

// User returns the cached identity snapshot.
func (m *Manager) User() types.PublicUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// Client returns an HTTP client that attaches the access token and retries
// once through a refresh on 401.
func (m *Manager) Client() *Client {
	return NewClient(m.http, m)
}

// Initialize restores the persisted session and reconciles the cached
// identity with the server. It moves the manager out of the uninitialized
// state exactly once; calling it again is a no-op.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		return nil
	}
	m.state = StateInitializing

	if entry, ok := m.store.Get(EntryAccessToken); ok {
		m.accessToken = entry.Value
	}
	if entry, ok := m.store.Get(EntryRefreshToken); ok {
		m.refreshToken = entry.Value
	}
	if entry, ok := m.store.Get(EntryUser); ok {
		_ = json.Unmarshal([]byte(entry.Value), &m.user)
	}
	restored := m.accessToken != ""
	m.mu.Unlock()

	if !restored {
		m.setState(StateAnonymous)
		return nil
	}

	// The cached identity may be stale or empty; the server's copy wins.
	// Client.Do already covers the expired-access-token case with a refresh.
	user, err := m.fetchMe(ctx)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			// fetchMe's refresh already cleared the session.
			return nil
		}
		// Network trouble: keep the restored session and let the background
		// refresh sort it out.
		m.log.Warn(ctx, "session restore could not reach the server", "error", err)
		m.setState(StateAuthenticated)
		return nil
	}

	m.mu.Lock()
	m.user = user
	m.state = StateAuthenticated
	m.mu.Unlock()
	m.persistUser(ctx, user)
	return nil
}

// Login authenticates and stores the resulting session. On failure the
// previous session state is left untouched.
func (m *Manager) Login(ctx context.Context, loginID, password string) error {
	body, err := json.Marshal(map[string]string{"loginId": loginID, "password": password})
	if err != nil {
		return err
	}

	resp, env, err := m.post(ctx, "/auth/login", body, "")
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		if env.Message != "" {
			return errors.New(env.Message)
		}
		return fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var data struct {
		AccessToken  string           `json:"accessToken"`
		RefreshToken string           `json:"refreshToken"`
		User         types.PublicUser `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if data.AccessToken == "" || data.RefreshToken == "" {
		return errors.New("login response missing tokens")
	}

	m.mu.Lock()
	m.accessToken = data.AccessToken
	m.refreshToken = data.RefreshToken
	m.user = data.User
	m.state = StateAuthenticated
	m.mu.Unlock()

	_ = m.store.Set(newEntry(EntryAccessToken, data.AccessToken, accessEntryTTL, m.secure))
	_ = m.store.Set(newEntry(EntryRefreshToken, data.RefreshToken, refreshEntryTTL, m.secure))
	m.persistUser(ctx, data.User)
	return nil
}

// Logout revokes the refresh token server-side, best-effort, and clears all
// local session material.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	accessToken := m.accessToken
	refreshToken := m.refreshToken
	m.mu.Unlock()

	if accessToken != "" {
		body, _ := json.Marshal(map[string]string{"refreshToken": refreshToken})
		if _, _, err := m.post(ctx, "/auth/logout", body, accessToken); err != nil {
			m.log.Warn(ctx, "logout request failed", "error", err)
		}
	}

	m.clearSession(ctx)
}

// Refresh exchanges the refresh token for a new access token. Concurrent
// callers share a single in-flight request.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.inflight != nil {
		call := m.inflight
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	m.inflight = call
	refreshToken := m.refreshToken
	m.mu.Unlock()

	call.err = m.doRefresh(ctx, refreshToken)

	m.mu.Lock()
	m.inflight = nil
	m.mu.Unlock()
	close(call.done)
	return call.err
}

// StartAutoRefresh runs the proactive refresh loop until ctx is cancelled,
// the session expires, or refreshing keeps failing.
func (m *Manager) StartAutoRefresh(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.stopRefresh != nil {
		m.stopRefresh()
	}
	m.stopRefresh = cancel
	m.mu.Unlock()

	go m.autoRefreshLoop(ctx)
}

func (m *Manager) autoRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(refreshCheckInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		token := m.AccessToken()
		if token == "" {
			continue
		}
		remaining, ok := accessTokenRemaining(token, m.now())
		if ok && remaining >= refreshAhead {
			continue
		}

		err := m.Refresh(ctx)
		switch {
		case err == nil:
			failures = 0
		case errors.Is(err, ErrSessionExpired):
			// The session is already cleared; nothing left to keep fresh.
			return
		default:
			failures++
			m.log.Warn(ctx, "proactive token refresh failed", "error", err, "failures", failures)
			if failures >= maxRefreshFailures {
				m.log.Error(ctx, "giving up on proactive token refresh", "failures", failures)
				return
			}
		}
	}
}

func (m *Manager) doRefresh(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		m.clearSession(ctx)
		if m.OnSessionExpired != nil {
			m.OnSessionExpired()
		}
		return ErrSessionExpired
	}

	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return err
	}

	resp, env, err := m.post(ctx, "/auth/refresh", body, "")
	if err != nil {
		return fmt.Errorf("refresh request: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		m.clearSession(ctx)
		if m.OnSessionExpired != nil {
			m.OnSessionExpired()
		}
		return ErrSessionExpired
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		return fmt.Errorf("refresh failed with status %d", resp.StatusCode)
	}

	var data struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return fmt.Errorf("decode refresh response: %w", err)
	}
	if data.AccessToken == "" {
		return errors.New("refresh response missing access token")
	}

	m.mu.Lock()
	m.accessToken = data.AccessToken
	m.mu.Unlock()
	_ = m.store.Set(newEntry(EntryAccessToken, data.AccessToken, accessEntryTTL, m.secure))
	return nil
}

func (m *Manager) fetchMe(ctx context.Context) (types.PublicUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/auth/me", nil)
	if err != nil {
		return types.PublicUser{}, err
	}

	resp, err := m.Client().Do(req)
	if err != nil {
		return types.PublicUser{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return types.PublicUser{}, ErrSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		return types.PublicUser{}, fmt.Errorf("me failed with status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return types.PublicUser{}, fmt.Errorf("decode me response: %w", err)
	}
	var user types.PublicUser
	if err := json.Unmarshal(env.Data, &user); err != nil {
		return types.PublicUser{}, fmt.Errorf("decode me response: %w", err)
	}
	return user, nil
}

// persistUser writes the identity snapshot. A snapshot with a blank identity
// is refused and logged instead of stored: it must never be possible for a
// stale empty write to wipe out a valid one.
func (m *Manager) persistUser(ctx context.Context, user types.PublicUser) {
	if user.LoginID == "" && user.Name == "" {
		m.log.Warn(ctx, "refusing to persist a blank user snapshot")
		return
	}
	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	_ = m.store.Set(newEntry(EntryUser, string(data), accessEntryTTL, m.secure))
}

func (m *Manager) clearSession(ctx context.Context) {
	m.mu.Lock()
	m.accessToken = ""
	m.refreshToken = ""
	m.user = types.PublicUser{}
	m.state = StateAnonymous
	stop := m.stopRefresh
	m.stopRefresh = nil
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	_ = m.store.Delete(EntryAccessToken)
	_ = m.store.Delete(EntryRefreshToken)
	_ = m.store.Delete(EntryUser)
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (m *Manager) post(ctx context.Context, path string, body []byte, bearer string) (*http.Response, envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, envelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, envelope{}, err
	}
	defer resp.Body.Close()

	var env envelope
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp, envelope{}, err
	}
	_ = json.Unmarshal(data, &env)
	return resp, env, nil
}

// accessTokenRemaining reads the expiry claim without verifying the
// signature. The token is only inspected, never trusted.
func accessTokenRemaining(tokenString string, now time.Time) (time.Duration, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return 0, false
	}
	if claims.ExpiresAt == nil {
		return 0, false
	}
	return claims.ExpiresAt.Time.Sub(now), true
}

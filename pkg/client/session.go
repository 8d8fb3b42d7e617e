package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/medibook/booking-api/internal/model"
)

// Session holds the credential pair. ExpiresAt is a hint only: the
// manager never checks it proactively, it reacts to 401 responses.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// SessionManager owns the process-wide session and implements
// http.RoundTripper: it attaches the access token to outgoing
// requests and, on an authorization failure, refreshes the credential
// pair exactly once for any number of concurrent callers, then
// replays each original request a single time with the new token.
//
// The refresh token is single use server-side. Two concurrent refresh
// calls would have the second invalidate the pair the first just
// rotated, so all 401s funnel through one singleflight group.
type SessionManager struct {
	refreshURL string
	base       http.RoundTripper
	logger     *zerolog.Logger

	mu      sync.RWMutex
	session *Session

	sf singleflight.Group
}

func NewSessionManager(refreshURL string, base http.RoundTripper, logger *zerolog.Logger) *SessionManager {
	if base == nil {
		base = http.DefaultTransport
	}
	return &SessionManager{
		refreshURL: refreshURL,
		base:       base,
		logger:     logger,
	}
}

// SetSession installs a new credential pair, replacing any previous one.
func (m *SessionManager) SetSession(accessToken, refreshToken string, expiresIn time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(expiresIn),
	}
}

// Clear tears down the session. Subsequent authenticated calls fail
// until SetSession is called again.
func (m *SessionManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
}

// Current returns a copy of the live session, if any.
func (m *SessionManager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

func (m *SessionManager) Authenticated() bool {
	_, ok := m.Current()
	return ok
}

func (m *SessionManager) RoundTrip(req *http.Request) (*http.Response, error) {
	sess, ok := m.Current()
	if !ok {
		// Unauthenticated calls (login, register, refresh) pass through.
		return m.base.RoundTrip(req)
	}

	attempt, err := cloneRequest(req)
	if err != nil {
		return nil, err
	}
	attempt.Header.Set("Authorization", "Bearer "+sess.AccessToken)

	resp, err := m.base.RoundTrip(attempt)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drain(resp)

	token, err := m.refresh(req.Context(), sess.AccessToken)
	if err != nil {
		return nil, err
	}

	// Replay exactly once. A second 401 after a successful refresh
	// means the server no longer accepts this principal at all.
	replay, err := cloneRequest(req)
	if err != nil {
		return nil, err
	}
	replay.Header.Set("Authorization", "Bearer "+token)

	resp, err = m.base.RoundTrip(replay)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		m.Clear()
		return nil, ErrAuthExpired
	}
	return resp, nil
}

// refresh rotates the credential pair. Concurrent callers share one
// in-flight refresh; every waiter gets the same new access token or
// the same error. staleToken identifies the credential the caller was
// using, so a caller that lost the race to an already-finished
// refresh does not trigger a second one.
func (m *SessionManager) refresh(ctx context.Context, staleToken string) (string, error) {
	v, err, _ := m.sf.Do("refresh", func() (interface{}, error) {
		sess, ok := m.Current()
		if !ok {
			return "", ErrAuthExpired
		}
		if sess.AccessToken != staleToken {
			// Another caller already rotated the pair.
			return sess.AccessToken, nil
		}

		tokens, err := m.callRefresh(ctx, sess.RefreshToken)
		if err != nil {
			m.Clear()
			return "", fmt.Errorf("%w: %v", ErrAuthExpired, err)
		}

		m.SetSession(tokens.AccessToken, tokens.RefreshToken,
			time.Duration(tokens.ExpiresIn)*time.Second)
		return tokens.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *SessionManager) callRefresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	body, err := json.Marshal(model.RefreshTokenRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.refreshURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.base.RoundTrip(req)
	if err != nil {
		return nil, &NetworkError{Op: "refresh token", Err: err}
	}
	defer resp.Body.Close()

	var env struct {
		Status  string              `json:"status"`
		Message string              `json:"message"`
		Data    model.TokenResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &NetworkError{Op: "refresh token", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("refresh rejected (%d): %s", resp.StatusCode, env.Message)
	}

	if m.logger != nil {
		m.logger.Debug().Msg("session refreshed")
	}
	return &env.Data, nil
}

// cloneRequest makes a replayable copy. Requests with a body must
// carry GetBody, which http.NewRequest sets for common body types.
func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("request body is not replayable")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

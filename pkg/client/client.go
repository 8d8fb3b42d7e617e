package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/medibook/booking-api/internal/model"
)

const (
	defaultPollInterval    = 2 * time.Second
	defaultMaxPollAttempts = 10
)

// Config is the externally tunable surface of the client. Poll
// interval and attempt budget are configuration, not invariants.
type Config struct {
	BaseURL         string
	PollInterval    time.Duration
	MaxPollAttempts int
	HTTPClient      *http.Client
	Logger          *zerolog.Logger
}

// Client is the patient-side entry point for the booking pipeline. It
// owns the session, the availability and intent caches, and the HTTP
// plumbing shared by every component.
type Client struct {
	baseURL         string
	http            *http.Client
	sessions        *SessionManager
	pollInterval    time.Duration
	maxPollAttempts int
	logger          *zerolog.Logger

	availability *gocache.Cache
	intents      *gocache.Cache

	clock func() time.Time

	draftMu sync.RWMutex
	draft   *BookingDraft
}

func New(cfg Config) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = defaultMaxPollAttempts
	}
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	var base http.RoundTripper
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		base = cfg.HTTPClient.Transport
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	sessions := NewSessionManager(baseURL+"/auth/refresh", base, logger)

	httpClient := &http.Client{Transport: sessions}
	if cfg.HTTPClient != nil {
		httpClient.Timeout = cfg.HTTPClient.Timeout
	}

	return &Client{
		baseURL:         baseURL,
		http:            httpClient,
		sessions:        sessions,
		pollInterval:    cfg.PollInterval,
		maxPollAttempts: cfg.MaxPollAttempts,
		logger:          logger,
		availability:    gocache.New(gocache.NoExpiration, 0),
		intents:         gocache.New(gocache.NoExpiration, 0),
	}
}

// Sessions exposes the session manager for lifecycle control.
func (c *Client) Sessions() *SessionManager {
	return c.sessions
}

// Login establishes a session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var tokens model.TokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/login",
		model.LoginRequest{Email: email, Password: password}, &tokens)
	if err != nil {
		return err
	}
	c.sessions.SetSession(tokens.AccessToken, tokens.RefreshToken,
		time.Duration(tokens.ExpiresIn)*time.Second)
	return nil
}

// Logout revokes the server-side tokens and destroys the local
// session and caches.
func (c *Client) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.sessions.Clear()
	c.availability.Flush()
	c.intents.Flush()
	return err
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// doJSON issues one API call and decodes the response envelope into
// out. Non-2xx responses map onto the client error taxonomy.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body *bytes.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	if decErr := json.NewDecoder(resp.Body).Decode(&env); decErr != nil && resp.StatusCode < 300 {
		return &NetworkError{Op: method + " " + path, Err: decErr}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrAuthExpired
	case resp.StatusCode == http.StatusBadGateway:
		return &GatewayError{StatusCode: resp.StatusCode, Message: env.Message}
	case resp.StatusCode >= 500:
		return &NetworkError{Op: method + " " + path,
			Err: fmt.Errorf("server error (%d): %s", resp.StatusCode, env.Message)}
	default:
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	return nil
}

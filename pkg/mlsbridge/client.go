// Package mlsbridge implements the thin HTTP client the session manager
// uses to reach an external MLS group server: join, fetch the current
// roster, and resync after a suspected epoch change. It never implements
// the MLS wire protocol itself (spec Section 1).
package mlsbridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/pion/logging"
)

// DefaultTimeout is the default deadline applied to a bridge operation when
// the caller's context carries no deadline of its own (spec Section 5).
const DefaultTimeout = 10 * time.Second

// Client talks to one MLS server over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	log        logging.LeveledLogger

	// retryPolicy governs transient-failure retries for every bridge
	// call; a fresh instance (via cloneBackoff) is used per call so state from
	// one call's backoff sequence never leaks into the next.
	retryPolicy *backoff.ExponentialBackOff
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the MLS server's base URL, e.g. "https://mls.example.com".
	BaseURL string

	// HTTPClient is the transport to use. If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	// Timeout bounds an operation when the caller's context has no
	// deadline. Default: DefaultTimeout.
	Timeout time.Duration

	// LoggerFactory creates the client's leveled logger. If nil, uses
	// logging.NewDefaultLoggerFactory().
	LoggerFactory logging.LoggerFactory
}

// NewClient creates a new MLS bridge client.
func NewClient(config ClientConfig) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 100 * time.Millisecond
	retry.MaxInterval = 2 * time.Second
	retry.MaxElapsedTime = 0 // bounded by the caller's context instead

	loggerFactory := config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	c := &Client{
		baseURL:     config.BaseURL,
		httpClient:  httpClient,
		timeout:     timeout,
		retryPolicy: retry,
		log:         loggerFactory.NewLogger("mlsbridge"),
	}

	return c
}

// withDeadline applies the client's default timeout if ctx has no deadline
// of its own.
func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Join performs POST /mls/join for identity in room and returns the
// resulting leaf index, epoch, epoch secret and roster (spec Section 4.7,
// Section 6).
func (c *Client) Join(ctx context.Context, identity string, room uint64) (JoinResult, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	corrID := uuid.NewString()

	reqBody := joinRequest{Identity: identity, RoomID: room}

	var resp joinResponse
	if err := c.doJSONRetry(ctx, corrID, http.MethodPost, "/mls/join", reqBody, &resp); err != nil {
		return JoinResult{}, err
	}

	secret, err := decodeMasterSecret(resp.MasterSecret)
	if err != nil {
		return JoinResult{}, err
	}

	result := JoinResult{
		RosterSnapshot: RosterSnapshot{
			Epoch:   resp.Epoch,
			GroupID: resp.GroupID,
			RoomID:  resp.RoomID,
			Roster:  resp.Roster,
		},
		SenderIndex: resp.SenderIndex,
		EpochSecret: secret,
	}

	c.log.Infof("[%s] joined room %d as leaf %d at epoch %d", corrID, room, result.SenderIndex, result.Epoch)

	return result, nil
}

// FetchRoster performs GET /mls/roster?room_id=ID and returns the roster
// snapshot at whatever epoch the server currently reports.
func (c *Client) FetchRoster(ctx context.Context, room uint64) (RosterSnapshot, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	corrID := uuid.NewString()
	path := fmt.Sprintf("/mls/roster?room_id=%d", room)

	var resp rosterResponse
	if err := c.doJSONRetry(ctx, corrID, http.MethodGet, path, nil, &resp); err != nil {
		return RosterSnapshot{}, err
	}

	return RosterSnapshot{
		Epoch:   resp.Epoch,
		GroupID: resp.GroupID,
		RoomID:  resp.RoomID,
		Roster:  resp.Roster,
	}, nil
}

// Resync re-runs Join and reports whether the resulting epoch differs from
// current's epoch; if changed, the caller MUST rekey (spec Section 4.7).
func (c *Client) Resync(ctx context.Context, identity string, room uint64, current RosterSnapshot) (bool, JoinResult, error) {
	result, err := c.Join(ctx, identity, room)
	if err != nil {
		return false, JoinResult{}, err
	}
	return result.Epoch != current.Epoch, result, nil
}

// doJSONRetry performs one HTTP round trip, retrying transient failures
// (network errors and 5xx responses) with exponential backoff until ctx is
// done. A non-2xx response other than a retried 5xx is surfaced
// immediately as ErrMlsFailure (spec Section 6).
func (c *Client) doJSONRetry(ctx context.Context, corrID, method, path string, reqBody, respBody any) error {
	policy := backoff.WithContext(cloneBackoff(c.retryPolicy), ctx)

	operation := func() error {
		err := c.doJSON(ctx, method, path, reqBody, respBody)
		if err == nil {
			return nil
		}
		if httpErr, ok := err.(*httpStatusError); ok && httpErr.status >= 500 {
			c.log.Warnf("[%s] %s %s: %v, retrying", corrID, method, path, err)
			return err
		}
		// Transport failures from httpClient.Do arrive as *url.Error; a
		// malformed URL (Op "parse") is not transient.
		if urlErr, ok := err.(*url.Error); ok && urlErr.Op != "parse" {
			c.log.Warnf("[%s] %s %s: %v, retrying", corrID, method, path, err)
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(operation, policy); err != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		// backoff.Retry unwraps *backoff.PermanentError to its Err field,
		// so err here is always the original doJSON failure.
		return fmt.Errorf("%w: %v", ErrMlsFailure, err)
	}
	return nil
}

func cloneBackoff(src *backoff.ExponentialBackOff) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = src.InitialInterval
	b.MaxInterval = src.MaxInterval
	b.MaxElapsedTime = src.MaxElapsedTime
	b.Multiplier = src.Multiplier
	b.RandomizationFactor = src.RandomizationFactor
	return b
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, respBody any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpStatusError{status: resp.StatusCode, body: string(data)}
	}

	if respBody == nil {
		return nil
	}
	return json.Unmarshal(data, respBody)
}

func decodeMasterSecret(encoded string) ([32]byte, error) {
	var secret [32]byte
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return secret, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	if len(raw) != 32 {
		return secret, ErrInvalidSecret
	}
	copy(secret[:], raw)
	return secret, nil
}

// Package platform implements the HTTP client for the platform service
// that owns user profiles, notifications, and the daily-pick activity
// feed. The follow core treats all of it as remote collaborator state:
// nothing fetched here is stored locally beyond the bounded caches.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/phlock-app/phlock-core/internal/domain/graph"
	"github.com/phlock-app/phlock-core/internal/domain/shared"
	"github.com/phlock-app/phlock-core/pkg/circuitbreaker"
	"github.com/phlock-app/phlock-core/pkg/logger"
	"github.com/phlock-app/phlock-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the platform API client.
type ClientConfig struct {
	// BaseURL is the platform API base URL.
	BaseURL string

	// APIKey authenticates this service to the platform.
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// RateLimiterConfig for API rate limiting.
	RateLimiterConfig RateLimiterConfig

	// Logger for structured logging.
	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:           baseURL,
		Timeout:           30 * time.Second,
		RateLimiterConfig: DefaultRateLimiterConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client talks to the platform service. It implements
// graph.UserDirectory, graph.FollowNotifier, and phlock.ActivitySignal.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	log         *logger.Logger
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.Breaker
	retrier     *retry.Retrier
}

// NewClient creates a platform API client.
func NewClient(config ClientConfig) *Client {
	log := config.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("platform_client"))

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		log:         log,
		rateLimiter: NewRateLimiter(config.RateLimiterConfig),
		retrier:     retry.PlatformRetrier(),
	}
	c.breaker = circuitbreaker.PlatformBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state change",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()))
	})
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// USER DIRECTORY
// ══════════════════════════════════════════════════════════════════════════════

// GetUser fetches one user profile. A 404 maps to shared.ErrUserNotFound.
func (c *Client) GetUser(ctx context.Context, id string) (*graph.User, error) {
	path := fmt.Sprintf("/api/v1/users/%s", url.PathEscape(id))

	var response APIResponse[UserDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		if isNotFound(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !response.Success {
		return nil, fmt.Errorf("get user: api error: %s", response.Error)
	}
	return UserFromDTO(&response.Data), nil
}

// GetUsers batch-resolves user IDs. Users the platform does not know are
// simply absent from the result map.
func (c *Client) GetUsers(ctx context.Context, ids []string) (map[string]*graph.User, error) {
	if len(ids) == 0 {
		return map[string]*graph.User{}, nil
	}

	path := "/api/v1/users/batch?ids=" + url.QueryEscape(strings.Join(ids, ","))

	var response APIResponse[[]UserDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	if !response.Success {
		return nil, fmt.Errorf("get users: api error: %s", response.Error)
	}

	users := make(map[string]*graph.User, len(response.Data))
	for i := range response.Data {
		u := UserFromDTO(&response.Data[i])
		users[u.ID] = u
	}
	return users, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

// NotifyNewFollower pushes a "new follower" notification to targetID.
func (c *Client) NotifyNewFollower(ctx context.Context, targetID, followerID string) error {
	return c.notify(ctx, NotificationRequestDTO{
		RecipientID: targetID,
		ActorID:     followerID,
		Kind:        NotificationNewFollower,
	})
}

// NotifyFollowRequest pushes a "follow request" notification to targetID.
func (c *Client) NotifyFollowRequest(ctx context.Context, targetID, requesterID string) error {
	return c.notify(ctx, NotificationRequestDTO{
		RecipientID: targetID,
		ActorID:     requesterID,
		Kind:        NotificationFollowRequest,
	})
}

func (c *Client) notify(ctx context.Context, req NotificationRequestDTO) error {
	var response APIResponse[struct{}]
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/notifications", req, &response); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	if !response.Success {
		return fmt.Errorf("send notification: api error: %s", response.Error)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY SIGNAL
// ══════════════════════════════════════════════════════════════════════════════

// HasPostedToday reports whether the user's daily pick already went out
// today. The swap scheduler defers cutover to midnight when it has.
func (c *Client) HasPostedToday(ctx context.Context, userID string) (bool, error) {
	path := fmt.Sprintf("/api/v1/users/%s/daily-activity", url.PathEscape(userID))

	var response APIResponse[DailyActivityDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return false, fmt.Errorf("get daily activity: %w", err)
	}
	if !response.Success {
		return false, fmt.Errorf("get daily activity: api error: %s", response.Error)
	}
	return response.Data.PostedToday, nil
}

// IsHealthy checks if the platform API is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	var response APIResponse[map[string]interface{}]
	err := c.doSingleRequest(ctx, http.MethodGet, "/api/v1/health", nil, &response)
	return err == nil && response.Success
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs an HTTP request behind the circuit breaker with
// rate limiting and retries.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			if err := c.rateLimiter.Allow(ctx); err != nil {
				return retry.Transient(err)
			}

			err := c.doSingleRequest(ctx, method, path, body, result)
			if err == nil {
				return nil
			}

			var rateLimitErr *RateLimitError
			if errors.As(err, &rateLimitErr) {
				c.rateLimiter.RecordRateLimitHit(rateLimitErr.RetryAfter)
				return retry.Transient(err)
			}

			var apiErr *APIErrorDTO
			if errors.As(err, &apiErr) && apiErr.Status < 500 {
				return retry.Permanent(err)
			}
			return retry.Transient(err)
		})
	})
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	fullURL := c.config.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{
			RetryAfter: retryAfter,
			Message:    "rate limit exceeded",
		}
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIErrorDTO{Status: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Code = "HTTP_" + strconv.Itoa(resp.StatusCode)
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *APIErrorDTO
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

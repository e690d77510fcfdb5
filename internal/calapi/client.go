// Package calapi is the HTTP client of the calendar API.
package calapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"omnidesk/internal/availability"
	"omnidesk/internal/calendar"
	"omnidesk/internal/metrics"
	"omnidesk/internal/model"
	"omnidesk/internal/service"
	"omnidesk/internal/timekey"
)

// APIError is a non-2xx response of the calendar API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is a 409 from the API, i.e. the slot was
// taken.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// Client calls the calendar API on behalf of one user.
type Client struct {
	baseURL    string
	apiKey     string
	userID     string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client with baseURL, API key and the acting user.
func NewClient(baseURL, apiKey, userID string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		userID:     userID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache enables a read-through cache of month payloads.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func monthCacheKey(monthKey string) string {
	return "calendar:month:" + monthKey
}

// FetchMonth returns the month payload, from the cache when possible.
func (c *Client) FetchMonth(ctx context.Context, monthKey string) (*availability.MonthData, error) {
	var data availability.MonthData
	if c.readCache(ctx, monthCacheKey(monthKey), &data) {
		return &data, nil
	}

	endpoint := fmt.Sprintf("%s/api/v1/calendar/month?month=%s", c.baseURL, url.QueryEscape(monthKey))
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &data); err != nil {
		return nil, err
	}
	c.writeCache(ctx, monthCacheKey(monthKey), data)
	return &data, nil
}

// FetchDay returns the server-computed day view.
func (c *Client) FetchDay(ctx context.Context, dateKey string) (*availability.DayView, error) {
	endpoint := fmt.Sprintf("%s/api/v1/calendar/day?date=%s", c.baseURL, url.QueryEscape(dateKey))
	var view availability.DayView
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// CreateEvent books a slot and drops the cached month of its date.
func (c *Client) CreateEvent(ctx context.Context, in service.NewEventInput) (*model.CalendarEvent, error) {
	endpoint := fmt.Sprintf("%s/api/v1/calendar/events", c.baseURL)
	var e model.CalendarEvent
	err := c.doJSON(ctx, http.MethodPost, endpoint, in, &e)
	if monthKey, ok := calendar.MonthOf(in.Date); ok && (err == nil || IsConflict(err)) {
		c.invalidate(ctx, monthCacheKey(monthKey))
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateStatus changes the status of an event.
func (c *Client) UpdateStatus(ctx context.Context, id string, status model.EventStatus) (*model.CalendarEvent, error) {
	endpoint := fmt.Sprintf("%s/api/v1/calendar/events/%s/status", c.baseURL, url.PathEscape(id))
	var e model.CalendarEvent
	if err := c.doJSON(ctx, http.MethodPatch, endpoint, map[string]model.EventStatus{"status": status}, &e); err != nil {
		return nil, err
	}
	if monthKey, ok := calendar.MonthOf(timekey.DateKeyInTimezone(e.StartsAtUTC, e.Timezone)); ok {
		c.invalidate(ctx, monthCacheKey(monthKey))
	}
	return &e, nil
}

// HealthCheck checks if the calendar API is available.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil || json.Unmarshal(val, out) != nil {
		metrics.IncCache("miss")
		return false
	}
	metrics.IncCache("hit")
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) invalidate(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, key).Err()
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phlock-app/phlock-core/internal/domain/shared"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig(srv.URL)
	cfg.RateLimiterConfig = RateLimiterConfig{
		RequestsPerSecond: 1000,
		BurstSize:         1000,
	}
	return NewClient(cfg)
}

func TestClient_GetUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/u1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"id":           "u1",
				"handle":       "amelia",
				"display_name": "Amelia",
				"is_private":   true,
			},
		})
	})

	user, err := client.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "amelia", user.Handle)
	assert.True(t, user.IsPrivate)
}

func TestClient_GetUser_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "USER_NOT_FOUND",
			"message": "no such user",
		})
	})

	_, err := client.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
}

func TestClient_GetUsers_AbsentUsersMissingFromResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/batch", r.URL.Path)
		assert.Equal(t, "u1,u2,u3", r.URL.Query().Get("ids"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": []map[string]interface{}{
				{"id": "u1", "handle": "a"},
				{"id": "u3", "handle": "c"},
			},
		})
	})

	users, err := client.GetUsers(context.Background(), []string{"u1", "u2", "u3"})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Contains(t, users, "u1")
	assert.NotContains(t, users, "u2")
}

func TestClient_GetUsers_EmptyInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty input")
	})

	users, err := client.GetUsers(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestClient_NotifyNewFollower(t *testing.T) {
	var got NotificationRequestDTO
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/notifications", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": map[string]any{}})
	})

	err := client.NotifyNewFollower(context.Background(), "target", "follower")
	require.NoError(t, err)
	assert.Equal(t, "target", got.RecipientID)
	assert.Equal(t, "follower", got.ActorID)
	assert.Equal(t, NotificationNewFollower, got.Kind)
}

func TestClient_HasPostedToday(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/u9/daily-activity", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"user_id": "u9", "posted_today": true},
		})
	})

	posted, err := client.HasPostedToday(context.Background(), "u9")
	require.NoError(t, err)
	assert.True(t, posted)
}

func TestClient_RetriesTransientServerErrors(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"id": "u1", "handle": "a"},
		})
	})

	user, err := client.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, 3, attempts)
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "FORBIDDEN",
			"message": "nope",
		})
	})

	_, err := client.GetUser(context.Background(), "u1")
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

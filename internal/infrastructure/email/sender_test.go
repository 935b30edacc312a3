package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSendPasswordReset(t *testing.T) {
	var got sgRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSender("sg-key", "noreply@example.com", "https://app.example.com", zap.NewNop(), WithEndpoint(srv.URL))
	require.NoError(t, s.SendPasswordReset(context.Background(), "ann@example.com", "abc123"))

	assert.Equal(t, "Bearer sg-key", auth)
	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, "ann@example.com", got.Personalizations[0].To[0].Email)
	assert.Equal(t, "noreply@example.com", got.From.Email)
	require.Len(t, got.Content, 1)
	assert.Contains(t, got.Content[0].Value, "https://app.example.com/reset-password?token=abc123")
}

func TestSendWelcomeEscapesName(t *testing.T) {
	var got sgRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSender("k", "noreply@example.com", "https://app.example.com", zap.NewNop(), WithEndpoint(srv.URL))
	require.NoError(t, s.SendWelcome(context.Background(), "bob@example.com", "<bob>"))
	assert.Contains(t, got.Content[0].Value, "&lt;bob&gt;")
}

func TestSendReportsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad key"}]}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewSender("bad", "noreply@example.com", "https://app.example.com", zap.NewNop(),
		WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	err := s.SendPasswordChanged(context.Background(), "ann@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
	assert.Contains(t, err.Error(), "bad key")
}

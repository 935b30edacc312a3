package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"learnplatform/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewLocalApp(t *testing.T) {
	a, err := New(context.Background(), config.Config{
		Stage:            "local",
		AWSRegion:        "us-east-1",
		UploadURLTTLMins: 15,
		AllowedOrigins:   "*",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	body := `{"email":"alice@example.com","username":"alice","password":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestNewRequiresSecretsOutsideLocal(t *testing.T) {
	_, err := New(context.Background(), config.Config{Stage: "prod"}, zap.NewNop())
	assert.Error(t, err)
}

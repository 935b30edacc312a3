package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLambdaAdapterRoutesThroughTheRouter(t *testing.T) {
	s := newServer(t)
	adapter := NewLambdaAdapter(s.router)

	res, err := adapter.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/health",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, res.Body)
	assert.Equal(t, "application/json; charset=utf-8", res.Headers["Content-Type"])

	payload, _ := json.Marshal(gin.H{"email": "al@example.com", "username": "al_x", "password": "password123"})
	res, err = adapter.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/api/v1/auth/register",
		Headers:         map[string]string{"Content-Type": "application/json", "X-Device-Name": "phone"},
		Body:            base64.StdEncoding.EncodeToString(payload),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.StatusCode, res.Body)

	res, err = adapter.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:            http.MethodGet,
		Path:                  "/api/v1/courses",
		QueryStringParameters: map[string]string{"limit": "5"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = adapter.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/api/v1/auth/login",
		Body:            "%%%",
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"learnplatform/internal/application/usecase"
	"learnplatform/internal/domain"
	"learnplatform/internal/middleware"
)

// Responder writes JSON responses. Domain errors map to their status; any
// other error is a 500 whose message is shown only on local and dev stages.
type Responder struct {
	exposeErrors bool
	log          *zap.Logger
}

func NewResponder(stage string, log *zap.Logger) *Responder {
	return &Responder{exposeErrors: stage == "local" || stage == "dev", log: log}
}

func statusOf(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindPermission:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (r *Responder) OK(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}

func (r *Responder) Created(c *gin.Context, body any) {
	c.JSON(http.StatusCreated, body)
}

func (r *Responder) Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (r *Responder) Error(c *gin.Context, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		c.JSON(statusOf(de.Kind), gin.H{"error": de.Message})
		return
	}

	_ = c.Error(err)
	r.log.Error("unhandled error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	body := gin.H{"error": "Internal server error"}
	if r.exposeErrors {
		body["message"] = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}

// bind decodes the JSON body into req, answering 400 on failure.
func (r *Responder) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// actor returns the identity set by the auth middleware. Routes that call it
// are always behind one of the Require gates.
func actor(c *gin.Context) usecase.Actor {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return usecase.Actor{}
	}
	a := usecase.Actor{UserID: claims.UserID}
	for _, r := range claims.Roles {
		a.Roles = append(a.Roles, domain.Role(r))
	}
	return a
}

// sessionID is the session the access token was issued for.
func sessionID(c *gin.Context) string {
	if claims, ok := middleware.ClaimsFromContext(c); ok {
		return claims.SessionID
	}
	return ""
}

func device(c *gin.Context) domain.DeviceInfo {
	return domain.DeviceInfo{
		DeviceName: c.GetHeader("X-Device-Name"),
		UserAgent:  c.Request.UserAgent(),
		IPAddress:  c.ClientIP(),
	}
}

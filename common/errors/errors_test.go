package errors_test

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "marketplace-service/common/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("approve: %w", apperrors.InvalidTransition("refund is %s", "completed"))

	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidTransition))
	assert.False(t, stderrors.Is(err, apperrors.ErrValidation))
	assert.Equal(t, "approve: refund is completed", err.Error())
}

func TestStorage_KeepsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := apperrors.Storage("failed to load refund", cause)

	assert.True(t, stderrors.Is(err, apperrors.ErrStorageFailure))
	assert.True(t, stderrors.Is(err, cause))
}

func setupRouter(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware(zap.NewNop()))
	r.GET("/", handler)
	return r
}

func TestErrorMiddleware_RendersAppError(t *testing.T) {
	r := setupRouter(func(c *gin.Context) {
		_ = c.Error(apperrors.NotFound("refund %s not found", "r1"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "refund r1 not found", body["message"])
}

func TestErrorMiddleware_UnknownErrorIs500(t *testing.T) {
	r := setupRouter(func(c *gin.Context) {
		_ = c.Error(stderrors.New("boom"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
	// shared sentinels must not pick up request-scoped causes
	assert.Nil(t, apperrors.ErrStorageFailure.Err)
}

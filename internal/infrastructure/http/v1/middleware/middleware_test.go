package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/internal/core/apperror"
	appctx "posledger/internal/core/context"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Recovery())
	r.Use(Trace())
	r.Use(ErrorHandler())
	r.Use(mw...)
	return r
}

func signToken(t *testing.T, secret, subject, name, issuer string) string {
	t.Helper()
	claims := ActorClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestActor_DevFallback(t *testing.T) {
	r := newTestRouter(Actor("", ""))

	var gotActorID string
	r.GET("/x", func(c *gin.Context) {
		gotActorID = appctx.GetActorID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderActorID, "cashier-7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cashier-7", gotActorID)
}

func TestActor_DevFallbackMissingHeader(t *testing.T) {
	r := newTestRouter(Actor("", ""))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestActor_ValidToken(t *testing.T) {
	const secret = "test-secret"
	r := newTestRouter(Actor(secret, "posledger"))

	var gotActor *appctx.ActorContext
	r.GET("/x", func(c *gin.Context) {
		gotActor = appctx.GetActor(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "seller-1", "Alice", "posledger"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, gotActor)
	assert.Equal(t, "seller-1", gotActor.ActorID)
	assert.Equal(t, "Alice", gotActor.DisplayName)
}

func TestActor_RejectsBadSignature(t *testing.T) {
	r := newTestRouter(Actor("right-secret", ""))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong-secret", "seller-1", "", ""))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperror.CodeUnauthorized, body["code"])
}

func TestActor_RejectsWrongIssuer(t *testing.T) {
	const secret = "test-secret"
	r := newTestRouter(Actor(secret, "posledger"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "seller-1", "", "someone-else"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestErrorHandler_AppError(t *testing.T) {
	r := newTestRouter()
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(apperror.NewInsufficientStock("prod-1", 10, 7))
		c.Abort()
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperror.CodeInsufficientStock, body["code"])

	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(10), details["requested"])
	assert.Equal(t, float64(7), details["available"])
}

func TestErrorHandler_UnknownErrorHidden(t *testing.T) {
	r := newTestRouter()
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.Abort()
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.Equal(t, "Internal server error", body["message"])
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	r := newTestRouter()
	r.GET("/x", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.Equal(t, "Internal server error", body["message"])
}

func TestTrace_GeneratesAndEchoesIDs(t *testing.T) {
	r := newTestRouter()

	var gotTraceID string
	r.GET("/x", func(c *gin.Context) {
		gotTraceID = appctx.GetTraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderTraceID, "trace-abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "trace-abc", gotTraceID)
	assert.Equal(t, "trace-abc", w.Header().Get(HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

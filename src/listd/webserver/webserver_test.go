package webserver

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/listkeeper/src/listd/data"
	"github.com/example/listkeeper/src/listd/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, data.Migrate(db))
	return db
}

func postJSON(router *gin.Engine, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	router := gin.New()
	router.POST("/submit", Public{DB: db}.Submit)

	w := postJSON(router, "/submit", `{"email":"fan@example.com","handles":["@Alice","bob"]}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"submitted":2`)

	var count int64
	require.NoError(t, db.Model(&types.Submission{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestSubmit_BadEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/submit", Public{DB: newTestDB(t)}.Submit)

	w := postJSON(router, "/submit", `{"email":"not-an-email","handles":["alice"]}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmit_HandleTooLong(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/submit", Public{DB: newTestDB(t)}.Submit)

	w := postJSON(router, "/submit", `{"email":"fan@example.com","handles":["thishandleiswaytoolong"]}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "between 1 and 15")
	assert.Contains(t, w.Body.String(), `"submitted":0`)
}

func TestSubmit_DuplicateSkipped(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	router := gin.New()
	router.POST("/submit", Public{DB: db}.Submit)

	first := postJSON(router, "/submit", `{"email":"fan@example.com","handles":["alice"]}`, nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := postJSON(router, "/submit", `{"email":"other@example.com","handles":["alice"]}`, nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "pending review")

	var count int64
	require.NoError(t, db.Model(&types.Submission{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestJWT_Guard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("test-secret")
	router := gin.New()
	router.GET("/guarded", JWT(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"operator": c.GetString("operator")})
	})

	// no token
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/guarded", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// valid token
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"operator": "sam",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sam")

	// wrong secret
	bad, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+bad)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/admin/login", AuthHandler{AdminToken: "hunter2", JWTSecret: []byte("s")}.Login)

	ok := postJSON(router, "/admin/login", `{"token":"hunter2","operator":"sam"}`, nil)
	require.Equal(t, http.StatusOK, ok.Code)
	assert.Contains(t, ok.Body.String(), "token")

	bad := postJSON(router, "/admin/login", `{"token":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
}

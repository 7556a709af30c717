// Package testutil holds helpers shared by service and handler tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"royalty-admin/internal/app"
	"royalty-admin/internal/config"
	"royalty-admin/internal/database"
	"royalty-admin/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const TestSecret = "test_secret"

// TestDB opens a migrated in-memory database private to the test.
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "Failed to create test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db), "Failed to migrate test database")
	return db
}

// TestConfig is a debug-mode configuration suitable for tests.
func TestConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		GinMode:        "test",
		CORSOrigins:    "http://localhost:3000",
		LogLevel:       "error",
		DBDriver:       "sqlite",
		JWTSecret:      TestSecret,
		JWTTTL:         time.Hour,
		PermCacheTTL:   time.Minute,
		PermCacheSize:  32,
		LoginRateRPS:   100,
		LoginRateBurst: 100,
		SplitCompanyID: "default",
	}
}

// SetupTestApp builds the full application over a fresh database with the
// catalog and system roles seeded.
func SetupTestApp(t *testing.T, cfg *config.Config) (*app.App, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if cfg == nil {
		cfg = TestConfig()
	}
	db := TestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	a := app.New(ctx, cfg, db)
	go a.Hub.Run(ctx)
	_, err := a.Roles.SeedDefaults(ctx)
	require.NoError(t, err, "Failed to seed roles")
	return a, db
}

func CreateTestUser(t *testing.T, db *gorm.DB, email, password, roleName string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  "Test User",
		Role:         roleName,
		Status:       model.UserStatusActive,
	}
	require.NoError(t, db.Create(user).Error, "Failed to create test user")
	return user
}

// GetAuthToken issues an access token for user.
func GetAuthToken(t *testing.T, a *app.App, user *model.User) string {
	t.Helper()
	tok, _, err := a.Tokens.Issue(user.ID.String(), user.Role, user.Email)
	require.NoError(t, err, "Failed to generate test token")
	return tok
}

func MakeRequest(h http.Handler, method, url string, body interface{}, token string) *httptest.ResponseRecorder {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, url, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// StandardResponse mirrors the response envelope with a raw data payload.
type StandardResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Error   string          `json:"error"`
}

func ParseResponse(t *testing.T, rec *httptest.ResponseRecorder) StandardResponse {
	t.Helper()
	var out StandardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

// DecodeData unmarshals the envelope's data field into v.
func DecodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	resp := ParseResponse(t, rec)
	require.True(t, resp.Success, "expected success, got %d: %s", rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

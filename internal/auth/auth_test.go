package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gramchat/gramchat/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testSecret = []byte("test-secret")

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	ok, err := VerifyPassword("hunter2", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Error("correct password rejected")
	}

	ok, err = VerifyPassword("wrong", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Error("wrong password accepted")
	}
}

func TestHashPassword_Empty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestVerifyPassword_Malformed(t *testing.T) {
	if _, err := VerifyPassword("x", "not-a-hash"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestIssueAndParseToken(t *testing.T) {
	signed, expires, err := IssueToken(testSecret, "user-1", models.RoleManager, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if time.Until(expires) < 55*time.Minute {
		t.Errorf("expiry too soon: %v", expires)
	}

	claims, err := ParseToken(testSecret, signed)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != models.RoleManager {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseToken_Expired(t *testing.T) {
	signed, _, err := IssueToken(testSecret, "user-1", models.RoleManager, -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	_, err = ParseToken(testSecret, signed)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	signed, _, err := IssueToken(testSecret, "user-1", models.RoleManager, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	_, err = ParseToken([]byte("other"), signed)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

// --- middleware tests ---

func openAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newAuthRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Middleware(db, testSecret, zap.NewNop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": UserFrom(c).ID})
	})
	r.GET("/admin", Middleware(db, testSecret, zap.NewNop()), RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func seedAuthUser(t *testing.T, db *gorm.DB, role string, active bool) *models.User {
	t.Helper()
	u := models.User{ID: uuid.NewString(), Username: "u-" + uuid.NewString()[:8], Role: role, IsActive: active}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &u
}

func TestMiddleware_MissingHeader(t *testing.T) {
	r := newAuthRouter(openAuthTestDB(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestMiddleware_ValidToken(t *testing.T) {
	db := openAuthTestDB(t)
	u := seedAuthUser(t, db, models.RoleManager, true)
	signed, _, _ := IssueToken(testSecret, u.ID, u.Role, time.Hour)

	r := newAuthRouter(db)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
}

func TestMiddleware_DeactivatedAccount(t *testing.T) {
	db := openAuthTestDB(t)
	u := seedAuthUser(t, db, models.RoleManager, false)
	signed, _, _ := IssueToken(testSecret, u.ID, u.Role, time.Hour)

	r := newAuthRouter(db)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for deactivated account", w.Code)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	db := openAuthTestDB(t)
	u := seedAuthUser(t, db, models.RoleManager, true)
	signed, _, _ := IssueToken(testSecret, u.ID, u.Role, time.Hour)

	r := newAuthRouter(db)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

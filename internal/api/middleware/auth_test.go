package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	apiContext "redbud/internal/api/context"
	"redbud/internal/platform/auth"
	"redbud/internal/platform/config"
	"redbud/internal/platform/repositories"
)

func TestAuthMiddleware(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	tokenSvc := auth.NewTokenService(config.JWTConfig{
		Secret:         "test-secret",
		AccessTokenTTL: time.Hour,
	})
	users := repositories.NewUserRepository(db)
	mw := NewAuthMiddleware(tokenSvc, users)

	t.Run("Valid Token", func(t *testing.T) {
		token, err := tokenSvc.GenerateAccessToken("user_123", "a@example.com", false)
		if err != nil {
			t.Fatalf("GenerateAccessToken failed: %v", err)
		}

		now := time.Now().UTC()
		rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "is_site_admin", "created_at", "updated_at"}).
			AddRow("user_123", "a@example.com", "hash", false, now, now)
		mock.ExpectQuery("SELECT (.+) FROM users WHERE id = ?").
			WithArgs("user_123").
			WillReturnRows(rows)

		req, _ := http.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		rr := httptest.NewRecorder()
		handler := mw.Handle(func(w http.ResponseWriter, r *http.Request) {
			user := apiContext.CurrentUser(r)
			if user == nil || user.ID != "user_123" {
				t.Errorf("expected user_123 in context, got %+v", user)
			}
			w.WriteHeader(http.StatusOK)
		})
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
	})

	t.Run("Missing Header", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)

		rr := httptest.NewRecorder()
		handler := mw.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %v", rr.Code)
		}
	})

	t.Run("Garbage Token", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")

		rr := httptest.NewRecorder()
		handler := mw.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %v", rr.Code)
		}
	})

	t.Run("Token For Deleted User", func(t *testing.T) {
		token, _ := tokenSvc.GenerateAccessToken("user_gone", "gone@example.com", false)

		mock.ExpectQuery("SELECT (.+) FROM users WHERE id = ?").
			WithArgs("user_gone").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "is_site_admin", "created_at", "updated_at"}))

		req, _ := http.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		rr := httptest.NewRecorder()
		handler := mw.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %v", rr.Code)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{APIReadPerMinute: 3, APIWritePerMinute: 1})

	for i := 0; i < 3; i++ {
		if !rl.Allow("k:api_read", 3) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("k:api_read", 3) {
		t.Error("fourth request should be rejected")
	}

	// Buckets are independent per key.
	if !rl.Allow("other:api_read", 3) {
		t.Error("separate key should have its own bucket")
	}
}

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tokosenja/api/internal/auth"
	"github.com/tokosenja/api/internal/database"
	"github.com/tokosenja/api/internal/enum"
	"github.com/tokosenja/api/internal/handler"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock AuthStore ---

type mockAuthStore struct {
	getUserByEmailFn func(ctx context.Context, email string) (database.User, error)
	getUserByIDFn    func(ctx context.Context, id uuid.UUID) (database.User, error)
}

func (m *mockAuthStore) GetUserByEmail(ctx context.Context, email string) (database.User, error) {
	if m.getUserByEmailFn != nil {
		return m.getUserByEmailFn(ctx, email)
	}
	return database.User{}, pgx.ErrNoRows
}

func (m *mockAuthStore) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(ctx, id)
	}
	return database.User{}, pgx.ErrNoRows
}

func setupAuthRouter(store *mockAuthStore) *chi.Mux {
	h := handler.NewAuthHandler(store, testJWTSecret)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func testUser(t *testing.T, password string) database.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return database.User{
		ID:             uuid.New(),
		Email:          "siti@tokosenja.com",
		HashedPassword: string(hashed),
		FullName:       "Siti Rahma",
		Role:           enum.UserRoleStaff,
	}
}

// --- Tests ---

func TestLogin_HappyPath(t *testing.T) {
	user := testUser(t, "rahasia123")
	store := &mockAuthStore{
		getUserByEmailFn: func(ctx context.Context, email string) (database.User, error) {
			if email != user.Email {
				t.Errorf("email: got %q, want %q", email, user.Email)
			}
			return user, nil
		},
	}

	router := setupAuthRouter(store)
	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    user.Email,
		"password": "rahasia123",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["access_token"] == "" {
		t.Error("expected access_token in response")
	}
	if resp["refresh_token"] == "" {
		t.Error("expected refresh_token in response")
	}

	// Access token carries the user's identity
	tokenStr, _ := resp["access_token"].(string)
	claims, err := auth.ValidateToken(testJWTSecret, tokenStr)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("user ID: got %s, want %s", claims.UserID, user.ID)
	}
	if claims.FullName != user.FullName {
		t.Errorf("full name: got %q, want %q", claims.FullName, user.FullName)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	user := testUser(t, "rahasia123")
	store := &mockAuthStore{
		getUserByEmailFn: func(ctx context.Context, email string) (database.User, error) {
			return user, nil
		},
	}

	router := setupAuthRouter(store)
	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    user.Email,
		"password": "salah",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    "nobody@tokosenja.com",
		"password": "whatever1",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "invalid credentials" {
		t.Errorf("error: got %v, want 'invalid credentials'", resp["error"])
	}
}

func TestLogin_MissingFields(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email": "siti@tokosenja.com",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestRefresh_HappyPath(t *testing.T) {
	user := testUser(t, "rahasia123")
	store := &mockAuthStore{
		getUserByIDFn: func(ctx context.Context, id uuid.UUID) (database.User, error) {
			if id != user.ID {
				t.Errorf("user ID: got %s, want %s", id, user.ID)
			}
			return user, nil
		},
	}

	refreshToken, err := auth.GenerateRefreshToken(testJWTSecret, user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	router := setupAuthRouter(store)
	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["access_token"] == "" {
		t.Error("expected access_token in response")
	}
}

func TestRefresh_InvalidToken(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{
		"refresh_token": "not-a-jwt",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
}

func TestRefresh_UserGone(t *testing.T) {
	refreshToken, err := auth.GenerateRefreshToken(testJWTSecret, uuid.New())
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
}

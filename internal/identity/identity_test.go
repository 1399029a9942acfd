package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Moosv/simplefleet/internal/shared/auth"
	"github.com/Moosv/simplefleet/internal/shared/config"
	"github.com/Moosv/simplefleet/internal/shared/errors"
	"github.com/Moosv/simplefleet/internal/shared/types"
)

type fakeStore struct {
	accounts map[string]*Account
	drivers  map[string]*VerifiedDriver

	lastRole         string
	lastRequestAdmin bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[string]*Account),
		drivers:  make(map[string]*VerifiedDriver),
	}
}

func (f *fakeStore) CreateSignup(ctx context.Context, account *Account, driverName, department, role string, requestAdmin bool) error {
	if _, exists := f.accounts[account.Email]; exists {
		return errors.Conflict("account with this email already exists")
	}
	f.accounts[account.Email] = account
	f.lastRole = role
	f.lastRequestAdmin = requestAdmin
	return nil
}

func (f *fakeStore) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	if a, ok := f.accounts[email]; ok {
		return a, nil
	}
	return nil, errors.NotFound("account", email)
}

func (f *fakeStore) VerifyDriver(ctx context.Context, name, department string) (*VerifiedDriver, error) {
	if d, ok := f.drivers[name+"/"+department]; ok {
		return d, nil
	}
	return nil, errors.NotFound("driver", name)
}

func (f *fakeStore) Departments(ctx context.Context) ([]string, error) {
	return nil, nil
}

var _ Store = (*fakeStore)(nil)

func testHandler(store Store) *Handler {
	return NewHandler(store,
		config.AuthConfig{JWTSecret: "test-secret", TokenTTLMinutes: 60},
		config.SignupConfig{AllowedDomain: "korea.kr", MasterEmail: "master@korea.kr"},
		nil,
	)
}

func postJSON(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestSignupRejectsForeignDomain(t *testing.T) {
	store := newFakeStore()
	h := testHandler(store)

	rec := postJSON(t, h.Signup, SignupRequest{
		Email:    "driver@example.com",
		Password: "correcthorse",
		Name:     "Kim Minsu",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.accounts) != 0 {
		t.Error("Rejected signup must not create an account")
	}
}

func TestSignupDefaultsToUserRole(t *testing.T) {
	store := newFakeStore()
	h := testHandler(store)

	rec := postJSON(t, h.Signup, SignupRequest{
		Email:    "driver@korea.kr",
		Password: "correcthorse",
		Name:     "Kim Minsu",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.lastRole != "user" {
		t.Errorf("Expected role user, got %s", store.lastRole)
	}
	if store.lastRequestAdmin {
		t.Error("No admin request expected")
	}
}

func TestSignupAdminRequestStartsPending(t *testing.T) {
	store := newFakeStore()
	h := testHandler(store)

	rec := postJSON(t, h.Signup, SignupRequest{
		Email:        "chief@korea.kr",
		Password:     "correcthorse",
		Name:         "Park Jiyoung",
		RequestAdmin: true,
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.lastRole != "pending_admin" {
		t.Errorf("Admin request should start pending, got %s", store.lastRole)
	}
	if !store.lastRequestAdmin {
		t.Error("Admin request flag should be recorded")
	}
}

func TestSignupStoresBcryptHash(t *testing.T) {
	store := newFakeStore()
	h := testHandler(store)

	postJSON(t, h.Signup, SignupRequest{
		Email:    "driver@korea.kr",
		Password: "correcthorse",
		Name:     "Kim Minsu",
	})

	account := store.accounts["driver@korea.kr"]
	if account == nil {
		t.Fatal("Account not created")
	}
	if account.PasswordHash == "correcthorse" {
		t.Fatal("Password stored in clear")
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("correcthorse")) != nil {
		t.Error("Stored hash does not verify against the password")
	}
}

func seedAccount(store *fakeStore, email, password, metadataRole string) *Account {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	account := &Account{
		ID:           types.NewID(),
		Email:        email,
		PasswordHash: string(hash),
		MetadataRole: metadataRole,
	}
	store.accounts[email] = account
	return account
}

func TestLoginIssuesTokenWithMetadataRole(t *testing.T) {
	store := newFakeStore()
	h := testHandler(store)
	account := seedAccount(store, "chief@korea.kr", "correcthorse", "admin")

	rec := postJSON(t, h.Login, LoginRequest{Email: "chief@korea.kr", Password: "correcthorse"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("Expected a token")
	}

	claims := &auth.Claims{}
	_, err := jwt.ParseWithClaims(resp.Token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil {
		t.Fatalf("Token does not parse: %v", err)
	}
	if claims.Subject != account.ID.String() {
		t.Errorf("Expected subject %s, got %s", account.ID, claims.Subject)
	}
	if claims.Email != "chief@korea.kr" {
		t.Errorf("Expected email claim, got %s", claims.Email)
	}
	if claims.MetadataRole != "admin" {
		t.Errorf("Expected metadata role admin in token, got %s", claims.MetadataRole)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store := newFakeStore()
	h := testHandler(store)
	seedAccount(store, "chief@korea.kr", "correcthorse", "")

	tests := []struct {
		name string
		req  LoginRequest
	}{
		{"wrong password", LoginRequest{Email: "chief@korea.kr", Password: "wrong"}},
		{"unknown email", LoginRequest{Email: "nobody@korea.kr", Password: "correcthorse"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.Login, tt.req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestVerifyUser(t *testing.T) {
	store := newFakeStore()
	h := testHandler(store)
	dept := "Motor Pool"
	store.drivers["Kim Minsu/Motor Pool"] = &VerifiedDriver{
		DriverID:   types.NewID(),
		Name:       "Kim Minsu",
		Department: &dept,
		Role:       "user",
	}

	rec := postJSON(t, h.VerifyUser, VerifyUserRequest{Name: "Kim Minsu", Department: "Motor Pool"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, h.VerifyUser, VerifyUserRequest{Name: "Kim Minsu", Department: "Administration"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Mismatched department should be 401, got %d", rec.Code)
	}

	rec = postJSON(t, h.VerifyUser, VerifyUserRequest{Name: "", Department: ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Blank fields should be 400, got %d", rec.Code)
	}
}

func TestDepartmentsAlwaysReturnsArray(t *testing.T) {
	store := newFakeStore()
	h := testHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Departments(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["data"] == nil {
		t.Error("Expected an empty array, got null")
	}
}

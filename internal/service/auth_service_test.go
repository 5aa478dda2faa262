package service

import (
	"errors"
	"testing"
	"time"

	"github.com/supabase-community/supabase-go"

	"plan-gate-server/internal/domain"
)

// MockSupabaseClient for testing
type MockSupabaseClient struct {
	calls int
}

func NewMockSupabaseClient() *MockSupabaseClient {
	return &MockSupabaseClient{}
}

func (m *MockSupabaseClient) Initialize() error {
	return nil
}

func (m *MockSupabaseClient) ValidateToken(token string) (*domain.SupabaseUser, error) {
	m.calls++
	if token == "valid-token" {
		return &domain.SupabaseUser{
			ID:    "user-123",
			Email: "test@example.com",
		}, nil
	}
	if token == "invalid-token" {
		return nil, errors.New("invalid token")
	}
	return nil, errors.New("token validation failed")
}

func (m *MockSupabaseClient) DB() *supabase.Client {
	return nil
}

func TestAuthService_ValidateToken(t *testing.T) {
	client := NewMockSupabaseClient()
	logger := NewMockLogger()

	service := NewAuthService(client, logger)

	user, err := service.ValidateToken("valid-token")
	if err != nil {
		t.Fatalf("Expected no error for valid token, got %v", err)
	}
	if user.ID != "user-123" {
		t.Errorf("Expected user ID 'user-123', got '%s'", user.ID)
	}
	if user.Email != "test@example.com" {
		t.Errorf("Expected user email 'test@example.com', got '%s'", user.Email)
	}

	_, err = service.ValidateToken("invalid-token")
	if err == nil {
		t.Fatal("Expected error for invalid token")
	}
	expectedError := "invalid token: invalid token"
	if err.Error() != expectedError {
		t.Errorf("Expected error message '%s', got '%s'", expectedError, err.Error())
	}

	if _, err = service.ValidateToken(""); err == nil {
		t.Error("Expected error for empty token")
	}
}

func TestAuthService_CachesValidTokens(t *testing.T) {
	client := NewMockSupabaseClient()
	service := NewAuthService(client, NewMockLogger())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := service.ValidateToken("valid-token"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if client.calls != 1 {
		t.Errorf("Expected 1 upstream call within the TTL, got %d", client.calls)
	}

	now = now.Add(tokenCacheTTL)
	if _, err := service.ValidateToken("valid-token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != 2 {
		t.Errorf("Expected a fresh upstream call after expiry, got %d calls", client.calls)
	}
}

func TestAuthService_DoesNotCacheFailures(t *testing.T) {
	client := NewMockSupabaseClient()
	service := NewAuthService(client, NewMockLogger())

	for i := 0; i < 2; i++ {
		if _, err := service.ValidateToken("invalid-token"); err == nil {
			t.Fatal("Expected error for invalid token")
		}
	}
	if client.calls != 2 {
		t.Errorf("Expected every failed token to reach upstream, got %d calls", client.calls)
	}
}

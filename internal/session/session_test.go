package session

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, c jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestNewReadsIdentityFromClaims(t *testing.T) {
	t.Parallel()

	s := New(signed(t, jwt.MapClaims{"userId": "T-1", "email": "t@school.test", "userType": "teacher"}))
	id := s.Identity()
	if id == nil {
		t.Fatal("expected identity")
	}
	if id.UserID != "T-1" || id.Email != "t@school.test" || id.UserType != "teacher" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestNewFallsBackToSubject(t *testing.T) {
	t.Parallel()

	s := New(signed(t, jwt.MapClaims{"sub": "teacher-9"}))
	if id := s.Identity(); id == nil || id.UserID != "teacher-9" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestOpaqueTokenHasNoIdentity(t *testing.T) {
	t.Parallel()

	s := New("opaque-token")
	if s.Token() != "opaque-token" {
		t.Fatalf("unexpected token %q", s.Token())
	}
	if s.Identity() != nil {
		t.Fatal("opaque token should not yield identity")
	}
}

func TestClearOnlyCountsOnce(t *testing.T) {
	t.Parallel()

	s := New("tok")
	if !s.Clear() {
		t.Fatal("first clear should report true")
	}
	if s.Clear() {
		t.Fatal("second clear should report false")
	}
	if s.Token() != "" {
		t.Fatal("token should be empty after clear")
	}
	if s.Clears() != 1 {
		t.Fatalf("expected 1 clear, got %d", s.Clears())
	}
}

func TestNilSessionIsEmpty(t *testing.T) {
	t.Parallel()

	var s *Session
	if s.Token() != "" || s.Identity() != nil || s.Clear() {
		t.Fatal("nil session should behave as empty")
	}
}

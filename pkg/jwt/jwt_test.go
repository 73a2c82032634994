package jwt

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestTokenRoundTrip(t *testing.T) {
	participantID := uuid.NewString()

	token, err := GenerateToken(participantID)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.ParticipantID != participantID {
		t.Errorf("ParticipantID = %s, want %s", claims.ParticipantID, participantID)
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	token, err := GenerateToken(uuid.NewString())
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("x", len(parts[2]))

	if _, err := ValidateToken(tampered); err == nil {
		t.Error("Expected tampered token to be rejected")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	if _, err := ValidateToken("not-a-token"); err == nil {
		t.Error("Expected garbage token to be rejected")
	}
}

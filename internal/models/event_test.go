package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverity_Valid(t *testing.T) {
	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Severity("urgent").Valid())
	assert.False(t, Severity("").Valid())
}

func TestNewSecurityEvent(t *testing.T) {
	e := NewSecurityEvent("login_failed", "203.0.113.7", SeverityMedium, "bad credentials", "user-1")

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "login_failed", e.Event)
	assert.Equal(t, "203.0.113.7", e.IP)
	assert.Equal(t, SeverityMedium, e.Severity)
	assert.Equal(t, "user-1", e.UserID)
	assert.False(t, e.Timestamp.IsZero())
}

func TestNewSecurityEvent_CoercesUnknownSeverity(t *testing.T) {
	e := NewSecurityEvent("odd_event", "203.0.113.7", Severity("catastrophic"), "", "")
	assert.Equal(t, SeverityMedium, e.Severity)
}

func TestSecurityEvent_String(t *testing.T) {
	e := SecurityEvent{Event: "blocked_ip_request", IP: "198.51.100.2", Severity: SeverityHigh, Details: "on blocklist"}
	assert.Equal(t, "[high] blocked_ip_request ip=198.51.100.2 on blocklist", e.String())
}

func TestLoginRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     LoginRequest
		wantErr bool
	}{
		{"valid", LoginRequest{Identifier: "ci-bot", Secret: "gk_secret"}, false},
		{"missing identifier", LoginRequest{Secret: "gk_secret"}, true},
		{"blank identifier", LoginRequest{Identifier: "   ", Secret: "gk_secret"}, true},
		{"missing secret", LoginRequest{Identifier: "ci-bot"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerateRequest_Validate(t *testing.T) {
	assert.NoError(t, (&GenerateRequest{Prompt: "hello"}).Validate())
	assert.Error(t, (&GenerateRequest{Prompt: "  "}).Validate())

	long := make([]byte, 32*1024+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, (&GenerateRequest{Prompt: string(long)}).Validate())
}

// Package models - Incoming API request types.
package models

import (
	"errors"
	"strings"
)

// LoginRequest carries credentials for the login endpoint. Identifier is the
// configured key name; Secret is the raw API key.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Identifier) == "" {
		return errors.New("identifier is required")
	}
	if r.Secret == "" {
		return errors.New("secret is required")
	}
	return nil
}

// GenerateRequest carries a prompt for the upstream completion proxy.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	// NoCache skips the response cache for this request.
	NoCache bool `json:"no_cache,omitempty"`
}

func (r *GenerateRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if len(r.Prompt) > 32*1024 {
		return errors.New("prompt exceeds maximum length")
	}
	return nil
}

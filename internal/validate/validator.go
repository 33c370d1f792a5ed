// Package validate performs structural request checks before business logic
// runs: client IP derivation, block-list lookup, size and content-type
// limits, and a coarse attack-signature scan over the URL and headers.
// Checks accumulate errors rather than short-circuiting, so one response
// reports everything wrong with a request.
package validate

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/models"
	"gatekeeper/internal/reputation"

	"github.com/Masterminds/semver/v3"
)

// Content types accepted for mutating methods.
var allowedContentTypes = []string{
	"application/json",
	"application/x-www-form-urlencoded",
	"multipart/form-data",
	"text/plain",
}

// Result is the outcome of request validation. Security decisions are
// returned, never raised: the caller picks the HTTP status from the content.
type Result struct {
	IsValid bool
	Context models.SecurityContext
	Errors  []string
	// Blocked is set when the source IP is on the block list, so the
	// middleware can answer with the dedicated status code.
	Blocked bool
}

// PayloadResult is the outcome of JSON payload validation.
type PayloadResult struct {
	IsValid bool
	Errors  []string
}

// Validator checks requests against the configured limits and the
// reputation store. It is stateless per call; the interesting state lives in
// the stores it consults.
type Validator struct {
	cfg        models.ValidationConfig
	reputation *reputation.Store
	auditLog   *audit.Logger
	minVersion *semver.Version
}

// New creates a validator. A malformed min_client_version is reported as an
// error rather than silently ignored.
func New(cfg models.ValidationConfig, rep *reputation.Store, auditLog *audit.Logger) (*Validator, error) {
	v := &Validator{
		cfg:        cfg,
		reputation: rep,
		auditLog:   auditLog,
	}
	if cfg.MinClientVersion != "" {
		min, err := semver.NewVersion(cfg.MinClientVersion)
		if err != nil {
			return nil, fmt.Errorf("invalid min_client_version %q: %w", cfg.MinClientVersion, err)
		}
		v.minVersion = min
	}
	return v, nil
}

// ClientIP derives the client address from forwarding headers, first match
// wins: X-Forwarded-For (first comma-separated value) → X-Real-IP →
// X-Vercel-Forwarded-For → "unknown".
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if xvf := r.Header.Get("X-Vercel-Forwarded-For"); xvf != "" {
		return xvf
	}
	return "unknown"
}

// ValidateRequest runs all synchronous metadata checks. It never reads the
// body. Each triggered condition reports a suspicious-activity signal to the
// reputation store, except the already-blocked case which goes straight to
// the audit log.
func (v *Validator) ValidateRequest(r *http.Request) Result {
	ctx := r.Context()
	ip := ClientIP(r)

	result := Result{
		IsValid: true,
		Context: models.SecurityContext{
			IP:        ip,
			UserAgent: r.Header.Get("User-Agent"),
		},
	}

	fail := func(msg, reason string) {
		result.IsValid = false
		result.Errors = append(result.Errors, msg)
		if v.reputation != nil && reason != "" {
			v.reputation.ReportSuspicious(ctx, ip, reason)
		}
	}

	if v.reputation != nil && v.reputation.IsBlocked(ip) {
		result.IsValid = false
		result.Blocked = true
		result.Errors = append(result.Errors, "source address is blocked")
		if v.auditLog != nil {
			v.auditLog.Log(ctx, "blocked_ip_request", ip, models.SeverityHigh,
				fmt.Sprintf("method=%s path=%s", r.Method, r.URL.Path), "")
		}
	}

	if r.ContentLength > v.cfg.MaxRequestSize {
		fail(fmt.Sprintf("request body exceeds maximum size of %d bytes", v.cfg.MaxRequestSize),
			"oversized request body")
	}

	if isMutating(r.Method) && r.ContentLength != 0 {
		if !contentTypeAllowed(r.Header.Get("Content-Type")) {
			fail(fmt.Sprintf("content type %q is not allowed", r.Header.Get("Content-Type")),
				"disallowed content type")
		}
	}

	if name := matchAttackPattern(r.URL.RequestURI()); name != "" {
		fail(fmt.Sprintf("request URL matches %s signature", name),
			fmt.Sprintf("attack signature in URL: %s", name))
	}
	for header, values := range r.Header {
		for _, value := range values {
			if name := matchAttackPattern(value); name != "" {
				fail(fmt.Sprintf("header %s matches %s signature", header, name),
					fmt.Sprintf("attack signature in header %s: %s", header, name))
			}
		}
	}

	if v.minVersion != nil {
		if raw := r.Header.Get("X-Client-Version"); raw != "" {
			clientVer, err := semver.NewVersion(raw)
			if err != nil {
				fail(fmt.Sprintf("invalid client version %q", raw), "")
			} else if clientVer.LessThan(v.minVersion) {
				fail(fmt.Sprintf("client version %s is below minimum %s", clientVer, v.minVersion), "")
			}
		}
	}

	if !result.IsValid && !result.Blocked && v.auditLog != nil {
		v.auditLog.Log(ctx, "request_validation_failed", ip, models.SeverityMedium,
			strings.Join(result.Errors, "; "), "")
	}

	return result
}

// ValidateJSONPayload reads the request body and decodes it into dst. The
// body is read through a size-limited reader; anything past the configured
// maximum fails validation. Parse failures are converted to a single error
// string, never propagated as errors.
func (v *Validator) ValidateJSONPayload(r *http.Request, dst any) PayloadResult {
	body, err := io.ReadAll(io.LimitReader(r.Body, v.cfg.MaxRequestSize+1))
	if err != nil {
		return PayloadResult{Errors: []string{"failed to read request body"}}
	}
	if int64(len(body)) > v.cfg.MaxRequestSize {
		return PayloadResult{Errors: []string{
			fmt.Sprintf("request body exceeds maximum size of %d bytes", v.cfg.MaxRequestSize),
		}}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return PayloadResult{Errors: []string{fmt.Sprintf("invalid JSON payload: %v", err)}}
	}
	return PayloadResult{IsValid: true}
}

// ValidateUpload checks an uploaded file's extension and size against the
// configured limits.
func (v *Validator) ValidateUpload(header *multipart.FileHeader) []string {
	var errs []string

	ext := strings.ToLower(filepath.Ext(header.Filename))
	allowed := false
	for _, e := range v.cfg.AllowedUploadExt {
		if ext == strings.ToLower(e) {
			allowed = true
			break
		}
	}
	if !allowed {
		errs = append(errs, fmt.Sprintf("file extension %q is not allowed", ext))
	}
	if header.Size > v.cfg.MaxUploadSize {
		errs = append(errs, fmt.Sprintf("file exceeds maximum upload size of %d bytes", v.cfg.MaxUploadSize))
	}
	return errs
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func contentTypeAllowed(value string) bool {
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}
	for _, allowed := range allowedContentTypes {
		if mediaType == allowed {
			return true
		}
	}
	return false
}

package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/cache"
	"gatekeeper/internal/health"
	"gatekeeper/internal/lockout"
	"gatekeeper/internal/models"
	"gatekeeper/internal/queue"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/reputation"
	"gatekeeper/internal/validate"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Deps collects the collaborators the handlers need.
type Deps struct {
	Config     *models.Config
	Validator  *validate.Validator
	Lockouts   *lockout.Tracker
	Limiters   map[string]ratelimit.Limiter
	AuditLog   *audit.Logger
	Reputation *reputation.Store
	Queue      *queue.Queue
	Aggregator *health.Aggregator
	Stats      *health.RequestStats
	Sessions   *cache.Cache
	Keys       *cache.Cache
	Responses  *cache.Cache
	Upstream   *http.Client
}

// Handlers contains the HTTP handlers for the gatekeeper API.
type Handlers struct {
	cfg        *models.Config
	validator  *validate.Validator
	lockouts   *lockout.Tracker
	limiters   map[string]ratelimit.Limiter
	auditLog   *audit.Logger
	reputation *reputation.Store
	queue      *queue.Queue
	aggregator *health.Aggregator
	stats      *health.RequestStats
	sessions   *cache.Cache
	keys       *cache.Cache
	responses  *cache.Cache
	upstream   *http.Client
}

// NewHandlers creates a new handlers instance.
func NewHandlers(deps Deps) *Handlers {
	upstream := deps.Upstream
	if upstream == nil {
		upstream = &http.Client{}
	}
	return &Handlers{
		cfg:        deps.Config,
		validator:  deps.Validator,
		lockouts:   deps.Lockouts,
		limiters:   deps.Limiters,
		auditLog:   deps.AuditLog,
		reputation: deps.Reputation,
		queue:      deps.Queue,
		aggregator: deps.Aggregator,
		stats:      deps.Stats,
		sessions:   deps.Sessions,
		keys:       deps.Keys,
		responses:  deps.Responses,
		upstream:   upstream,
	}
}

// Login handles credential checks against the configured API keys.
// POST /api/v1/auth/login
//
// The lockout tracker is consulted before the credential check, so a locked
// identifier is refused without leaking whether the credentials were right.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	sc := GetSecurityContext(r)

	var req models.LoginRequest
	if payload := h.validator.ValidateJSONPayload(r, &req); !payload.IsValid {
		h.writeJSONResponse(w, http.StatusBadRequest, models.NewValidationErrorResponse(payload.Errors))
		return
	}
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}

	if h.lockouts.IsLocked(req.Identifier) {
		h.auditLog.Log(r.Context(), "login_attempt_while_locked", sc.IP, models.SeverityHigh,
			fmt.Sprintf("identifier=%s", req.Identifier), "")
		h.writeJSONResponse(w, http.StatusUnauthorized, &models.LoginFailureResponse{
			Error:   "error",
			Code:    models.ErrorCodeAccountLocked,
			Message: "Account is temporarily locked",
		})
		return
	}

	key := h.findKeyByName(req.Identifier)
	if key == nil || !key.Enabled || !key.Matches(req.Secret) {
		result := h.lockouts.RecordFailedAttempt(req.Identifier)
		h.auditLog.Log(r.Context(), "login_failed", sc.IP, models.SeverityMedium,
			fmt.Sprintf("identifier=%s attempts_remaining=%d", req.Identifier, result.AttemptsRemaining), "")

		if result.IsLocked {
			h.auditLog.Log(r.Context(), "account_locked", sc.IP, models.SeverityHigh,
				fmt.Sprintf("identifier=%s", req.Identifier), "")
			h.writeJSONResponse(w, http.StatusUnauthorized, &models.LoginFailureResponse{
				Error:       "error",
				Code:        models.ErrorCodeAccountLocked,
				Message:     "Account is temporarily locked",
				LockedUntil: result.LockedUntil,
			})
			return
		}

		h.writeJSONResponse(w, http.StatusUnauthorized, &models.LoginFailureResponse{
			Error:             "error",
			Code:              models.ErrorCodeUnauthorized,
			Message:           "Invalid credentials",
			AttemptsRemaining: result.AttemptsRemaining,
		})
		return
	}

	h.lockouts.ClearFailedAttempts(req.Identifier)

	session := &Session{
		Token:     uuid.New().String(),
		Key:       key,
		ExpiresAt: time.Now().UTC().Add(h.cfg.Security.SessionTTL),
	}
	h.sessions.SetWithTTL(session.Token, session, h.cfg.Security.SessionTTL)

	h.auditLog.Log(r.Context(), "login_success", sc.IP, models.SeverityLow,
		fmt.Sprintf("identifier=%s", req.Identifier), key.ID)

	h.writeJSONResponse(w, http.StatusOK, &models.LoginResponse{
		SessionToken: session.Token,
		KeyName:      key.Name,
		ExpiresAt:    session.ExpiresAt,
	})
}

// Logout drops the caller's session.
// POST /api/v1/auth/logout
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeUnauthorized(w, "Authorization required")
		return
	}
	h.sessions.Delete(token)
	w.WriteHeader(http.StatusNoContent)
}

// Generate proxies a prompt to the upstream completion endpoint through the
// bounded queue and circuit breaker. Results are memoized in the responses
// cache keyed by prompt hash.
// POST /api/v1/generate
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if payload := h.validator.ValidateJSONPayload(r, &req); !payload.IsValid {
		h.writeJSONResponse(w, http.StatusBadRequest, models.NewValidationErrorResponse(payload.Errors))
		return
	}
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}

	cacheKey := promptHash(req.Prompt)
	if !req.NoCache {
		if cached, ok := h.responses.Get(cacheKey); ok {
			if result, ok := cached.(string); ok {
				h.writeJSONResponse(w, http.StatusOK, &models.GenerateResponse{Result: result, Cached: true})
				return
			}
		}
	}

	start := time.Now()
	result, err := h.queue.Submit(r.Context(), func(ctx context.Context) (string, error) {
		return h.callUpstream(ctx, req.Prompt)
	})
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrCircuitOpen), errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrClosed):
			h.writeErrorResponse(w, http.StatusServiceUnavailable, models.ErrorCodeServiceUnavailable,
				"Upstream is unavailable, try again later")
		case errors.Is(err, context.DeadlineExceeded):
			h.writeErrorResponse(w, http.StatusGatewayTimeout, models.ErrorCodeServiceUnavailable,
				"Upstream request timed out")
		case errors.Is(err, context.Canceled):
			// The client disconnected; there is no one left to answer.
			return
		default:
			h.writeErrorResponse(w, http.StatusBadGateway, models.ErrorCodeServiceUnavailable,
				"Upstream request failed")
		}
		return
	}

	h.responses.Set(cacheKey, result)
	h.writeJSONResponse(w, http.StatusOK, &models.GenerateResponse{
		Result:   result,
		Cached:   false,
		Duration: time.Since(start).Round(time.Millisecond).String(),
	})
}

// callUpstream posts the prompt to the configured completion endpoint and
// returns the raw response body.
func (h *Handlers) callUpstream(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(models.GenerateRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal upstream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.Upstream.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.upstream.Do(req)
	if err != nil {
		return "", fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.Security.Validation.MaxRequestSize))
	if err != nil {
		return "", fmt.Errorf("read upstream response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	return string(data), nil
}

// Upload accepts a multipart file upload after extension and size checks.
// POST /api/v1/upload
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	sc := GetSecurityContext(r)

	if err := r.ParseMultipartForm(h.cfg.Security.Validation.MaxUploadSize); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	if errs := h.validator.ValidateUpload(header); len(errs) > 0 {
		h.auditLog.Log(r.Context(), "upload_rejected", sc.IP, models.SeverityMedium,
			fmt.Sprintf("filename=%s: %s", header.Filename, errs[0]), "")
		h.writeJSONResponse(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	// The file content is discarded: this service governs uploads, storage
	// belongs to the upstream.
	if _, err := io.Copy(io.Discard, file); err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal server error")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, &models.UploadResponse{
		Filename: header.Filename,
		Size:     header.Size,
		Message:  "Upload accepted",
	})
}

// AuditQuery lists the most recent security events for an IP.
// GET /api/v1/audit/{ip}
func (h *Handlers) AuditQuery(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ip := vars["ip"]

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := h.auditLog.Store().EventsByIP(r.Context(), ip, limit)
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal server error")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, &models.AuditQueryResponse{
		IP:     ip,
		Count:  len(events),
		Events: events,
	})
}

// RateLimitReset clears one identifier's counters in a named limiter.
// DELETE /api/v1/ratelimit/{scope}/{identifier}
func (h *Handlers) RateLimitReset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	scope := vars["scope"]
	identifier := vars["identifier"]

	limiter, ok := h.limiters[scope]
	if !ok {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound,
			fmt.Sprintf("Unknown rate limiter scope: %s", scope))
		return
	}

	limiter.Reset(identifier)
	h.auditLog.Log(r.Context(), "rate_limit_reset", GetSecurityContext(r).IP, models.SeverityLow,
		fmt.Sprintf("scope=%s identifier=%s", scope, identifier), keyID(GetAPIKey(r)))
	w.WriteHeader(http.StatusNoContent)
}

// ReputationList reports blocked IPs and suspicion counters.
// GET /api/v1/reputation
func (h *Handlers) ReputationList(w http.ResponseWriter, r *http.Request) {
	blocked, suspicious := h.reputation.Snapshot()
	h.writeJSONResponse(w, http.StatusOK, &models.ReputationResponse{
		BlockedIPs: blocked,
		Suspicious: suspicious,
	})
}

// reputationBlockRequest is the body for the administrative block endpoint.
type reputationBlockRequest struct {
	IP     string `json:"ip"`
	Reason string `json:"reason"`
}

// ReputationBlock adds an IP to the block list.
// POST /api/v1/reputation/block
func (h *Handlers) ReputationBlock(w http.ResponseWriter, r *http.Request) {
	var req reputationBlockRequest
	if payload := h.validator.ValidateJSONPayload(r, &req); !payload.IsValid {
		h.writeJSONResponse(w, http.StatusBadRequest, models.NewValidationErrorResponse(payload.Errors))
		return
	}
	if req.IP == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "ip is required")
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "administrative block"
	}
	h.reputation.Block(r.Context(), req.IP, reason)
	w.WriteHeader(http.StatusNoContent)
}

// ReputationUnblock removes an IP from the block list.
// DELETE /api/v1/reputation/{ip}
func (h *Handlers) ReputationUnblock(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.reputation.Unblock(r.Context(), vars["ip"])
	w.WriteHeader(http.StatusNoContent)
}

// Echo answers with the caller's derived identity. It exists so the full
// governance chain can be exercised without credentials.
// GET /echo
func (h *Handlers) Echo(w http.ResponseWriter, r *http.Request) {
	sc := GetSecurityContext(r)
	h.writeJSONResponse(w, http.StatusOK, map[string]string{
		"message":    "ok",
		"ip":         sc.IP,
		"user_agent": sc.UserAgent,
	})
}

// findKeyByName returns the configured API key with the given name, or nil.
func (h *Handlers) findKeyByName(name string) *models.APIKey {
	for i := range h.cfg.Security.APIKeys {
		if h.cfg.Security.APIKeys[i].Name == name {
			return &h.cfg.Security.APIKeys[i]
		}
	}
	return nil
}

func promptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

func keyID(key *models.APIKey) string {
	if key == nil {
		return ""
	}
	return key.ID
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing useful can be sent anymore.
		fmt.Printf("Error encoding JSON response: %v\n", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(message, errorCode))
}

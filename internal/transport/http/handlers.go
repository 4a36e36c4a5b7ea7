// @title seedkeeper API
// @version 1.0.0
// @description Seed provisioning, TOTP and commit attestation service

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0

// @host localhost:8080
// @BasePath /

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/opentrusty/seedkeeper/internal/apperr"
	"github.com/opentrusty/seedkeeper/internal/observability/logger"
	"github.com/opentrusty/seedkeeper/internal/service"
)

// Core is the set of operations the HTTP layer translates to routes.
type Core interface {
	GetPublicKey(ctx context.Context) string
	KeyID() string
	ProvisionSeed(ctx context.Context, encryptedB64 string) (service.ProvisionResult, error)
	GenerateCode(ctx context.Context) (service.CodeResult, error)
	VerifyCode(ctx context.Context, code string) (service.VerifyResult, error)
	SignCommit(ctx context.Context, hash, recipientPEM string) (service.SignResult, error)
}

// DefaultMaxBodyBytes bounds JSON request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Handler holds HTTP handlers and dependencies
type Handler struct {
	core         Core
	maxBodyBytes int64
}

// NewHandler creates a new HTTP handler
func NewHandler(core Core, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		core:         core,
		maxBodyBytes: maxBodyBytes,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/", h.Root)
	r.Get("/health", h.HealthCheck)

	r.Get("/public-key", h.PublicKey)
	r.Post("/decrypt-seed", h.DecryptSeed)
	r.Get("/generate-2fa", h.GenerateCode)
	r.Post("/verify-2fa", h.VerifyCode)
	r.Post("/sign-commit", h.SignCommit)

	return r
}

// DecryptSeedRequest carries a base64 RSA-OAEP ciphertext of the hex seed.
type DecryptSeedRequest struct {
	EncryptedSeed string `json:"encrypted_seed"`
}

type VerifyCodeRequest struct {
	Code OTPCode `json:"code" swaggertype:"string"`
}

// OTPCode is a one-time code sent either as a JSON string or a JSON number.
// Numbers keep their literal digits, so a code with leading zeros must be
// sent as a string.
type OTPCode string

func (c *OTPCode) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = OTPCode(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = OTPCode(n.String())
	return nil
}

// SignCommitRequest asks for a signature over a 40 character commit hash,
// optionally encrypted to RecipientPublicKey (PEM).
type SignCommitRequest struct {
	CommitHash         string `json:"commit_hash"`
	RecipientPublicKey string `json:"recipient_public_key,omitempty"`
}

// Root is a plain text liveness banner.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "seedkeeper is running\n")
}

// HealthCheck returns the health status
// @Summary Health Check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "seedkeeper",
	})
}

// PublicKey serves the service public key for seed encryption.
// @Summary Service public key
// @Tags Provisioning
// @Produce plain
// @Success 200 {string} string "SPKI PEM"
// @Router /public-key [get]
func (h *Handler) PublicKey(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-pem-file")
	w.Header().Set("X-Key-Id", h.core.KeyID())
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, h.core.GetPublicKey(r.Context()))
}

// DecryptSeed provisions the shared secret.
// @Summary Provision seed
// @Tags Provisioning
// @Accept json
// @Produce json
// @Param request body DecryptSeedRequest true "Encrypted seed"
// @Success 200 {object} service.ProvisionResult
// @Failure 400 {object} apperr.Error
// @Router /decrypt-seed [post]
func (h *Handler) DecryptSeed(w http.ResponseWriter, r *http.Request) {
	var req DecryptSeedRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.core.ProvisionSeed(r.Context(), req.EncryptedSeed)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GenerateCode returns the current one-time code.
// @Summary Generate code
// @Tags OTP
// @Produce json
// @Success 200 {object} service.CodeResult
// @Failure 500 {object} apperr.Error
// @Router /generate-2fa [get]
func (h *Handler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	res, err := h.core.GenerateCode(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, res)
}

// VerifyCode checks a presented code.
// @Summary Verify code
// @Tags OTP
// @Accept json
// @Produce json
// @Param request body VerifyCodeRequest true "Code"
// @Success 200 {object} service.VerifyResult
// @Failure 400 {object} apperr.Error
// @Router /verify-2fa [post]
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.core.VerifyCode(r.Context(), string(req.Code))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// SignCommit signs a commit hash with the service key.
// @Summary Sign commit
// @Tags Attestation
// @Accept json
// @Produce json
// @Param request body SignCommitRequest true "Commit"
// @Success 200 {object} service.SignResult
// @Failure 400 {object} apperr.Error
// @Router /sign-commit [post]
func (h *Handler) SignCommit(w http.ResponseWriter, r *http.Request) {
	var req SignCommitRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.core.SignCommit(r.Context(), req.CommitHash, req.RecipientPublicKey)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// decode reads a bounded JSON body into v and writes the error response
// itself when it fails.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondJSON(w, http.StatusRequestEntityTooLarge, &apperr.Error{
				Code:        apperr.CodeMalformedInput,
				Description: "request body too large",
			})
			return false
		}
		slog.WarnContext(r.Context(), "invalid request body", logger.Path(r.URL.Path), logger.Error(err))
		respondJSON(w, http.StatusBadRequest, &apperr.Error{
			Code:        apperr.CodeMalformedInput,
			Description: "request body must be a JSON object",
		})
		return false
	}
	return true
}

// statusFor maps a stable error code to an HTTP status.
func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeMalformedInput,
		apperr.CodeDecryptionFailed,
		apperr.CodeInvalidSeedFormat,
		apperr.CodeInvalidCodeFormat,
		apperr.CodeInvalidHash,
		apperr.CodeEncryptionFailed:
		return http.StatusBadRequest
	default:
		// seed_missing, key_missing, internal_error
		return http.StatusInternalServerError
	}
}

func respondAppError(w http.ResponseWriter, err error) {
	wire := apperr.From(err)
	respondJSON(w, statusFor(wire.Code), wire)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

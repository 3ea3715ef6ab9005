// internal/server/mux.go
// Package server implements the HTTP handlers and routing for the audit
// registry service. It exposes the complaint lifecycle operations with
// optional JWT authentication, schema validation, and event publishing.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CaseTrail/casetrail-audit-go/internal/artifact"
	"github.com/CaseTrail/casetrail-audit-go/internal/config"
	errordefs "github.com/CaseTrail/casetrail-audit-go/internal/errors"
	"github.com/CaseTrail/casetrail-audit-go/internal/event"
	"github.com/CaseTrail/casetrail-audit-go/internal/identity"
	"github.com/CaseTrail/casetrail-audit-go/internal/jwks"
	"github.com/CaseTrail/casetrail-audit-go/internal/metrics"
	"github.com/CaseTrail/casetrail-audit-go/internal/model"
	"github.com/CaseTrail/casetrail-audit-go/internal/registry"
	"github.com/CaseTrail/casetrail-audit-go/internal/schema"
	"github.com/CaseTrail/casetrail-audit-go/internal/storage"
	"github.com/CaseTrail/casetrail-audit-go/internal/tools"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ContextKey is used for context values to avoid collisions
// when storing values in request context
type ContextKey string

const (
	// Context keys for storing request-scoped values
	ContextKeySubject       ContextKey = "subject"       // Stores the subject claim from JWT
	ContextKeyCorrelationID ContextKey = "correlationId" // Unique ID for request tracking
)

const tracerName = "audit-service"

// Mux handles HTTP requests for the audit registry service.
// It manages dependencies such as the registry service, event publishing,
// and complainant directory lookups.
type Mux struct {
	mux         *http.ServeMux     // HTTP request multiplexer
	svc         *registry.Service  // Complaint registry service
	store       storage.Store      // Storage interface, used for readiness checks
	p           event.Publisher    // Event publisher for streaming updates
	id          *identity.Client   // Complainant directory client (can be nil)
	jwksClient  *jwks.Client       // JWKS client for JWT validation
	jwtIssuer   string             // Expected JWT issuer for validation
	jwtAudience string             // Expected JWT audience for validation
	authEnabled bool               // Whether mutating endpoints require a bearer token
	validator   *schema.Validator  // Schema validator for operation payloads
	artifacts   *artifact.S3Client // S3 client for evidence artifact uploads (can be nil)
	metrics     *metrics.Metrics   // Metrics for monitoring

	// Artifact limits
	maxArtifactSize  int64    // Maximum artifact size in bytes
	allowedMimeTypes []string // Allowed MIME types for artifact uploads

	// CORS configuration
	corsAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// NewMux creates a new HTTP mux with all audit registry endpoints.
// Parameters:
//   - svc: Complaint registry service
//   - store: Storage interface, used for readiness checks
//   - p: Event publisher for streaming updates
//   - id: Complainant directory client (can be nil)
//   - jwksClient: JWKS client for JWT validation (nil means discover from issuer)
//   - cfg: Environment-driven service configuration
func NewMux(svc *registry.Service, store storage.Store, p event.Publisher, id *identity.Client, jwksClient *jwks.Client, cfg config.Config) (*http.ServeMux, error) {
	// Initialize schema validator
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize schema validator: %w", err)
	}

	// Initialize artifact client if S3 configuration is present
	var artifacts *artifact.S3Client
	if cfg.S3Endpoint != "" && cfg.S3Bucket != "" {
		artifacts, err = artifact.NewS3Client(cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
		}
	}

	// Use provided JWKS client or discover from the issuer
	if jwksClient == nil && cfg.AuthEnabled() {
		jwksURL := cfg.JWKSURL
		if jwksURL == "" {
			jwksURL = fmt.Sprintf("%s/.well-known/jwks.json", cfg.JWTIssuer)
		}
		jwksClient = jwks.NewClient(jwksURL)
	}

	m := &Mux{
		mux:                http.NewServeMux(),
		svc:                svc,
		store:              store,
		p:                  p,
		id:                 id,
		jwksClient:         jwksClient,
		jwtIssuer:          cfg.JWTIssuer,
		jwtAudience:        cfg.JWTAudience,
		authEnabled:        cfg.AuthEnabled(),
		validator:          validator,
		artifacts:          artifacts,
		metrics:            metrics.NewMetrics(),
		maxArtifactSize:    cfg.MaxArtifactSize,
		allowedMimeTypes:   cfg.AllowedMimeTypes,
		corsAllowedOrigins: cfg.CORSAllowedOrigins,
	}

	// Register health endpoints
	m.mux.HandleFunc("/healthz", m.handleHealthz)
	m.mux.HandleFunc("/readyz", m.handleReadyz)
	m.mux.Handle("/metrics", promhttp.Handler())

	// Register complaint lifecycle endpoints with appropriate middleware.
	// /v1/complaints dispatches on method; the subtree handler routes
	// /v1/complaints/{id}, /{id}/proofs, and /{id}/status.
	m.mux.HandleFunc("/v1/complaints", m.withMiddleware(m.handleComplaints))
	m.mux.HandleFunc("/v1/complaints/", m.withMiddleware(m.handleComplaintSubtree))
	m.mux.HandleFunc("/v1/proofs/uploadInit", m.method("POST", m.withMiddleware(m.handleUploadInit)))
	m.mux.HandleFunc("/v1/proofs/uploadComplete", m.method("POST", m.withMiddleware(m.handleUploadComplete)))

	// Operation metadata endpoints for function-calling clients
	m.mux.HandleFunc("/v1/tools", m.method("GET", m.handleTools))
	m.mux.HandleFunc("/v1/prompts", m.method("GET", m.handlePrompts))

	return m.mux, nil
}

// method ensures the HTTP method matches the expected method
func (m *Mux) method(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			err := errordefs.New(errordefs.AUD_BAD_REQUEST, "method not allowed", "")
			m.writeErrorDef(w, err)
			return
		}
		h(w, r)
	}
}

// corsOriginAllowed reports whether the given origin is on the allow list.
func (m *Mux) corsOriginAllowed(origin string) bool {
	for _, allowedOrigin := range m.corsAllowedOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}
	return false
}

// withMiddleware applies common middleware to handlers
func (m *Mux) withMiddleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Handle CORS preflight requests
		if r.Method == "OPTIONS" {
			if len(m.corsAllowedOrigins) > 0 {
				origin := r.Header.Get("Origin")
				if origin != "" && m.corsOriginAllowed(origin) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Correlation-Id")
					w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours
				}
			}
			w.WriteHeader(http.StatusOK)
			return
		}

		// Set CORS headers for regular requests
		if len(m.corsAllowedOrigins) > 0 {
			origin := r.Header.Get("Origin")
			if origin != "" && m.corsOriginAllowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}

		// Add correlation ID if not present
		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		r = r.WithContext(context.WithValue(r.Context(), ContextKeyCorrelationID, correlationID))
		w.Header().Set("X-Correlation-Id", correlationID)

		// Apply JWT authentication for mutating endpoints when configured
		if m.authEnabled && r.Method == "POST" {
			subject, err := m.validateJWT(r)
			if err != nil {
				var errorDef *errordefs.Error
				if e, ok := err.(*errordefs.Error); ok {
					errorDef = e
					errorDef.CorrelationID = correlationID
				} else {
					errorDef = errordefs.New(errordefs.AUD_AUTHN, err.Error(), correlationID)
				}
				m.writeErrorDef(w, errorDef)
				m.logRequest(r, errorDef.HTTPStatus, time.Since(start), correlationID, err)
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), ContextKeySubject, subject))
		}

		// Call the handler
		h(w, r)
	}
}

// validateJWT validates a JWT and extracts the subject using JWKS
func (m *Mux) validateJWT(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errordefs.New(errordefs.AUD_AUTHN, "missing Authorization header", "")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", errordefs.New(errordefs.AUD_AUTHN, "invalid Authorization header format", "")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	// Validate JWT using JWKS
	claims, err := m.jwksClient.ValidateJWT(r.Context(), tokenString, m.jwtIssuer, m.jwtAudience)
	if err != nil {
		// Map specific JWT validation errors to appropriate error codes
		errStr := err.Error()
		switch {
		case strings.Contains(errStr, "expired"):
			return "", errordefs.New(errordefs.AUD_JWT_EXPIRED, "JWT token expired", "")
		case strings.Contains(errStr, "invalid issuer"):
			return "", errordefs.New(errordefs.AUD_JWT_INVALID, "invalid JWT issuer", "")
		case strings.Contains(errStr, "invalid audience"):
			return "", errordefs.New(errordefs.AUD_JWT_INVALID, "invalid JWT audience", "")
		case strings.Contains(errStr, "kid"):
			return "", errordefs.New(errordefs.AUD_JWT_MALFORMED, "missing or invalid kid in JWT header", "")
		case strings.Contains(errStr, "key"):
			return "", errordefs.New(errordefs.AUD_JWT_INVALID, "failed to get key for JWT validation", "")
		case strings.Contains(errStr, "signature"), strings.Contains(errStr, "verify"):
			return "", errordefs.New(errordefs.AUD_JWT_INVALID, "invalid JWT signature", "")
		default:
			return "", errordefs.New(errordefs.AUD_JWT_INVALID, fmt.Sprintf("failed to validate JWT: %v", err), "")
		}
	}

	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return "", errordefs.New(errordefs.AUD_JWT_INVALID, "missing or invalid sub claim", "")
	}

	return subject, nil
}

// writeSuccess writes a successful response
func (m *Mux) writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]interface{}{
		"data": data,
	}
	_ = json.NewEncoder(w).Encode(response)
}

// writeError writes an error response following the audit error taxonomy
func (m *Mux) writeError(w http.ResponseWriter, statusCode int, code, message, correlationID string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]interface{}{
		"error": map[string]interface{}{
			"code":          code,
			"message":       message,
			"correlationId": correlationID,
		},
	}

	if details != nil {
		response["error"].(map[string]interface{})["details"] = details
	}

	_ = json.NewEncoder(w).Encode(response)
}

// writeErrorDef writes an error response using the error definitions package
func (m *Mux) writeErrorDef(w http.ResponseWriter, err *errordefs.Error) {
	m.writeError(w, err.HTTPStatus, string(err.Code), err.Message, err.CorrelationID, err.Details)
}

// registryError maps a registry service error to an error definition.
func (m *Mux) registryError(err error, correlationID string) *errordefs.Error {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return errordefs.New(errordefs.AUD_NOT_FOUND, "complaint not found", correlationID)
	case errors.Is(err, registry.ErrConflict):
		return errordefs.New(errordefs.AUD_CONFLICT, "complaint already registered", correlationID)
	case errors.Is(err, registry.ErrFrozen):
		return errordefs.New(errordefs.AUD_FROZEN, "complaint is in a terminal state", correlationID)
	case errors.Is(err, registry.ErrInvalidStatus):
		return errordefs.New(errordefs.AUD_STATUS_INVALID, err.Error(), correlationID)
	case errors.Is(err, registry.ErrValidation):
		return errordefs.New(errordefs.AUD_VALIDATION, err.Error(), correlationID)
	default:
		return errordefs.New(errordefs.AUD_INTERNAL, "internal error", correlationID)
	}
}

// observeOperation records counter and duration metrics for a registry operation.
func (m *Mux) observeOperation(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.metrics.RegistryOperationTotal.WithLabelValues(operation, status).Inc()
	m.metrics.RegistryOperationDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

// validatePayload runs a request body through the schema validator and records
// validation metrics.
func (m *Mux) validatePayload(operation string, body []byte) error {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return err
	}

	start := time.Now()
	_, err := m.validator.Validate(operation, payload)
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.metrics.SchemaValidationTotal.WithLabelValues(operation, status).Inc()
	m.metrics.SchemaValidationDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
	return err
}

// logRequest logs request details
func (m *Mux) logRequest(r *http.Request, status int, duration time.Duration, correlationID string, err error) {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("user_agent", r.UserAgent()),
		slog.String("remote_addr", r.RemoteAddr),
	}

	if correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	if subject, ok := r.Context().Value(ContextKeySubject).(string); ok && subject != "" {
		attrs = append(attrs, slog.String("subject", subject))
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		slog.LogAttrs(r.Context(), slog.LevelError, "request completed with error", attrs...)
	} else {
		slog.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
	}
}

// handleHealthz handles liveness health check requests
func (m *Mux) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz handles readiness health check requests
func (m *Mux) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Probe the store with a lookup that is expected to miss. ErrNotFound
	// means the backend is reachable; any other error indicates a problem.
	_, err := m.store.GetComplaint(ctx, "health-check")
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleComplaints dispatches /v1/complaints by method: POST registers a new
// complaint, GET returns the full registry snapshot.
func (m *Mux) handleComplaints(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "POST":
		m.handleRegisterComplaint(w, r)
	case "GET":
		m.handleListComplaints(w, r)
	default:
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_BAD_REQUEST, "method not allowed", ""))
	}
}

// handleComplaintSubtree routes /v1/complaints/{id} and its proofs and status
// subresources.
func (m *Mux) handleComplaintSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/complaints/")
	parts := strings.Split(rest, "/")

	correlationID, _ := r.Context().Value(ContextKeyCorrelationID).(string)

	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != "GET" {
			m.writeErrorDef(w, errordefs.New(errordefs.AUD_BAD_REQUEST, "method not allowed", correlationID))
			return
		}
		m.handleGetComplaint(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "proofs":
		if r.Method != "POST" {
			m.writeErrorDef(w, errordefs.New(errordefs.AUD_BAD_REQUEST, "method not allowed", correlationID))
			return
		}
		m.handleAttachProof(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "status":
		if r.Method != "POST" {
			m.writeErrorDef(w, errordefs.New(errordefs.AUD_BAD_REQUEST, "method not allowed", correlationID))
			return
		}
		m.handleUpdateStatus(w, r, parts[0])
	default:
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_BAD_REQUEST, "unknown resource", correlationID))
	}
}

// handleRegisterComplaint handles POST /v1/complaints
func (m *Mux) handleRegisterComplaint(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleRegisterComplaint")
	defer span.End()
	defer r.Body.Close()

	correlationID, _ := ctx.Value(ContextKeyCorrelationID).(string)
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		span.SetStatus(codes.Error, "unreadable body")
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_VALIDATION, "unreadable request body", correlationID))
		return
	}

	var req model.RegisterComplaintRequest
	if err := json.Unmarshal(body, &req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_VALIDATION, "invalid JSON", correlationID))
		return
	}

	span.SetAttributes(
		attribute.String("complaintId", req.ComplaintID),
		attribute.String("userId", req.UserID),
	)

	// Validate payload against the operation schema
	if err := m.validatePayload("complaint_register", body); err != nil {
		span.SetStatus(codes.Error, "schema validation failed")
		m.writeErrorDef(w, errordefs.NewWithDetails(errordefs.AUD_SCHEMA_REJECT, "schema validation failed", correlationID, err.Error()))
		return
	}

	// Advisory complainant lookup; unknown complainants are logged, not rejected
	if m.id != nil {
		if _, err := m.id.Get(ctx, req.UserID); err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				slog.Warn("complainant not found in directory", "user_id", req.UserID, "correlation_id", correlationID)
			} else {
				slog.Warn("complainant directory lookup failed", "error", err, "correlation_id", correlationID)
			}
		}
	}

	rec, err := m.svc.Register(ctx, req.ComplaintID, req.ComplaintHash, req.UserID, req.Timestamp)
	m.observeOperation("register", start, err)
	if err != nil {
		span.SetStatus(codes.Error, "register failed")
		errDef := m.registryError(err, correlationID)
		m.writeErrorDef(w, errDef)
		m.logRequest(r, errDef.HTTPStatus, time.Since(start), correlationID, err)
		return
	}

	// Publish complaint registered event
	if err := m.p.PublishComplaintRegistered(ctx, *rec); err != nil {
		slog.Warn("failed to publish complaint registered event", "error", err)
	}

	response := model.RegisterComplaintData{
		ComplaintID: rec.ComplaintID,
		Status:      rec.Status,
		FiledAt:     rec.FiledAt,
	}

	m.writeSuccess(w, http.StatusCreated, response)
	m.logRequest(r, http.StatusCreated, time.Since(start), correlationID, nil)
}

// handleListComplaints handles GET /v1/complaints
func (m *Mux) handleListComplaints(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleListComplaints")
	defer span.End()

	correlationID, _ := ctx.Value(ContextKeyCorrelationID).(string)
	start := time.Now()

	complaints, err := m.svc.GetAll(ctx)
	m.observeOperation("get_all", start, err)
	if err != nil {
		span.SetStatus(codes.Error, "failed to list complaints")
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_INTERNAL, "failed to list complaints", correlationID))
		return
	}

	span.SetAttributes(attribute.Int("count", len(complaints)))

	m.writeSuccess(w, http.StatusOK, complaints)
	m.logRequest(r, http.StatusOK, time.Since(start), correlationID, nil)
}

// handleGetComplaint handles GET /v1/complaints/{id}
func (m *Mux) handleGetComplaint(w http.ResponseWriter, r *http.Request, complaintID string) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleGetComplaint")
	defer span.End()

	correlationID, _ := ctx.Value(ContextKeyCorrelationID).(string)
	start := time.Now()

	span.SetAttributes(attribute.String("complaintId", complaintID))

	rec, err := m.svc.GetOne(ctx, complaintID)
	m.observeOperation("get_one", start, err)
	if err != nil {
		span.SetStatus(codes.Error, "failed to get complaint")
		errDef := m.registryError(err, correlationID)
		m.writeErrorDef(w, errDef)
		m.logRequest(r, errDef.HTTPStatus, time.Since(start), correlationID, err)
		return
	}

	m.writeSuccess(w, http.StatusOK, rec)
	m.logRequest(r, http.StatusOK, time.Since(start), correlationID, nil)
}

// handleAttachProof handles POST /v1/complaints/{id}/proofs
func (m *Mux) handleAttachProof(w http.ResponseWriter, r *http.Request, complaintID string) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleAttachProof")
	defer span.End()
	defer r.Body.Close()

	correlationID, _ := ctx.Value(ContextKeyCorrelationID).(string)
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		span.SetStatus(codes.Error, "unreadable body")
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_VALIDATION, "unreadable request body", correlationID))
		return
	}

	var req model.AttachProofRequest
	if err := json.Unmarshal(body, &req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_VALIDATION, "invalid JSON", correlationID))
		return
	}

	span.SetAttributes(
		attribute.String("complaintId", complaintID),
		attribute.String("proofKind", req.ProofKind),
	)

	// The schema covers the full operation payload including the complaint id
	// from the path.
	payload, _ := json.Marshal(map[string]interface{}{
		"complaintId": complaintID,
		"proofHash":   req.ProofHash,
		"proofKind":   req.ProofKind,
		"timestamp":   req.Timestamp,
	})
	if err := m.validatePayload("register_proof", payload); err != nil {
		span.SetStatus(codes.Error, "schema validation failed")
		m.writeErrorDef(w, errordefs.NewWithDetails(errordefs.AUD_SCHEMA_REJECT, "schema validation failed", correlationID, err.Error()))
		return
	}

	proof, err := m.svc.AttachProof(ctx, complaintID, req.ProofHash, req.ProofKind, req.Timestamp)
	m.observeOperation("attach_proof", start, err)
	if err != nil {
		span.SetStatus(codes.Error, "attach proof failed")
		errDef := m.registryError(err, correlationID)
		m.writeErrorDef(w, errDef)
		m.logRequest(r, errDef.HTTPStatus, time.Since(start), correlationID, err)
		return
	}

	// Publish proof attached event
	if err := m.p.PublishProofAttached(ctx, complaintID, *proof); err != nil {
		slog.Warn("failed to publish proof attached event", "error", err)
	}

	m.writeSuccess(w, http.StatusCreated, proof)
	m.logRequest(r, http.StatusCreated, time.Since(start), correlationID, nil)
}

// handleUpdateStatus handles POST /v1/complaints/{id}/status
func (m *Mux) handleUpdateStatus(w http.ResponseWriter, r *http.Request, complaintID string) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleUpdateStatus")
	defer span.End()
	defer r.Body.Close()

	correlationID, _ := ctx.Value(ContextKeyCorrelationID).(string)
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		span.SetStatus(codes.Error, "unreadable body")
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_VALIDATION, "unreadable request body", correlationID))
		return
	}

	var req model.UpdateStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_VALIDATION, "invalid JSON", correlationID))
		return
	}

	span.SetAttributes(
		attribute.String("complaintId", complaintID),
		attribute.String("status", req.Status),
	)

	payload, _ := json.Marshal(map[string]interface{}{
		"complaintId": complaintID,
		"status":      req.Status,
		"timestamp":   req.Timestamp,
	})
	if err := m.validatePayload("update_complaint_status", payload); err != nil {
		span.SetStatus(codes.Error, "schema validation failed")
		m.writeErrorDef(w, errordefs.NewWithDetails(errordefs.AUD_SCHEMA_REJECT, "schema validation failed", correlationID, err.Error()))
		return
	}

	if err := m.svc.UpdateStatus(ctx, complaintID, req.Status, req.Timestamp); err != nil {
		m.observeOperation("update_status", start, err)
		span.SetStatus(codes.Error, "update status failed")
		errDef := m.registryError(err, correlationID)
		m.writeErrorDef(w, errDef)
		m.logRequest(r, errDef.HTTPStatus, time.Since(start), correlationID, err)
		return
	}
	m.observeOperation("update_status", start, nil)

	// Publish status changed event with the updated record
	if rec, err := m.svc.GetOne(ctx, complaintID); err == nil {
		if err := m.p.PublishStatusChanged(ctx, *rec); err != nil {
			slog.Warn("failed to publish status changed event", "error", err)
		}
	}

	m.writeSuccess(w, http.StatusOK, map[string]string{
		"complaintId": complaintID,
		"status":      req.Status,
	})
	m.logRequest(r, http.StatusOK, time.Since(start), correlationID, nil)
}

// handleUploadInit handles POST /v1/proofs/uploadInit
func (m *Mux) handleUploadInit(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleUploadInit")
	defer span.End()
	defer r.Body.Close()

	correlationID, _ := ctx.Value(ContextKeyCorrelationID).(string)
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		span.SetStatus(codes.Error, "unreadable body")
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_VALIDATION, "unreadable request body", correlationID))
		return
	}

	var req model.UploadInitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_VALIDATION, "invalid JSON", correlationID))
		return
	}

	span.SetAttributes(
		attribute.String("complaintId", req.ComplaintID),
		attribute.String("mimeType", req.MimeType),
		attribute.Int64("size", req.Size),
	)

	if err := m.validatePayload("proof_upload_init", body); err != nil {
		span.SetStatus(codes.Error, "schema validation failed")
		m.writeErrorDef(w, errordefs.NewWithDetails(errordefs.AUD_SCHEMA_REJECT, "schema validation failed", correlationID, err.Error()))
		return
	}

	// Validate artifact size limit
	if req.Size > m.maxArtifactSize {
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_ARTIFACT_SIZE, fmt.Sprintf("artifact size exceeds limit of %d bytes", m.maxArtifactSize), correlationID))
		return
	}

	// Validate artifact type
	allowed := false
	for _, mimeType := range m.allowedMimeTypes {
		if req.MimeType == mimeType {
			allowed = true
			break
		}
	}
	if !allowed {
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_ARTIFACT_TYPE, fmt.Sprintf("artifact type %s is not allowed", req.MimeType), correlationID))
		return
	}

	// The complaint must exist and accept evidence before an upload slot is
	// handed out.
	rec, err := m.svc.GetOne(ctx, req.ComplaintID)
	if err != nil {
		errDef := m.registryError(err, correlationID)
		m.writeErrorDef(w, errDef)
		m.logRequest(r, errDef.HTTPStatus, time.Since(start), correlationID, err)
		return
	}
	if rec.Status.IsTerminal() {
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_FROZEN, "complaint is in a terminal state", correlationID))
		return
	}

	objectKey := artifact.ObjectKey(req.ComplaintID, req.SHA256, req.Filename)

	// Generate presigned URL for S3 upload
	var uploadURL string
	var expiresAt time.Time
	if m.artifacts != nil {
		expiresAt = time.Now().Add(15 * time.Minute)
		uploadURL, err = m.artifacts.GenerateUploadURL(ctx, objectKey, 15*time.Minute)
		if err != nil {
			m.writeErrorDef(w, errordefs.New(errordefs.AUD_INTERNAL, "failed to generate upload URL", correlationID))
			return
		}
	} else {
		// Fallback for deployments without object storage
		uploadURL = fmt.Sprintf("http://localhost:8081/upload/%s", objectKey)
		expiresAt = time.Now().Add(15 * time.Minute)
	}

	response := model.UploadInitData{
		UploadURL: uploadURL,
		ObjectKey: objectKey,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}

	m.writeSuccess(w, http.StatusOK, response)
	m.logRequest(r, http.StatusOK, time.Since(start), correlationID, nil)
}

// handleUploadComplete handles POST /v1/proofs/uploadComplete
func (m *Mux) handleUploadComplete(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleUploadComplete")
	defer span.End()
	defer r.Body.Close()

	correlationID, _ := ctx.Value(ContextKeyCorrelationID).(string)
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		span.SetStatus(codes.Error, "unreadable body")
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_VALIDATION, "unreadable request body", correlationID))
		return
	}

	var req model.UploadCompleteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_VALIDATION, "invalid JSON", correlationID))
		return
	}

	span.SetAttributes(
		attribute.String("complaintId", req.ComplaintID),
		attribute.String("objectKey", req.ObjectKey),
	)

	if err := m.validatePayload("proof_upload_complete", body); err != nil {
		span.SetStatus(codes.Error, "schema validation failed")
		m.writeErrorDef(w, errordefs.NewWithDetails(errordefs.AUD_SCHEMA_REJECT, "schema validation failed", correlationID, err.Error()))
		return
	}

	// The complaint must still accept evidence when the upload is acknowledged
	rec, err := m.svc.GetOne(ctx, req.ComplaintID)
	if err != nil {
		errDef := m.registryError(err, correlationID)
		m.writeErrorDef(w, errDef)
		m.logRequest(r, errDef.HTTPStatus, time.Since(start), correlationID, err)
		return
	}
	if rec.Status.IsTerminal() {
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_FROZEN, "complaint is in a terminal state", correlationID))
		return
	}

	// Confirm the object landed in storage. Deployments without object
	// storage accept the acknowledgement unverified, matching the
	// uploadInit fallback.
	response := model.UploadCompleteData{ObjectKey: req.ObjectKey}
	if m.artifacts != nil {
		exists, size, err := m.artifacts.VerifyObject(ctx, req.ObjectKey)
		if err != nil {
			span.SetStatus(codes.Error, "object verification failed")
			m.writeErrorDef(w, errordefs.New(errordefs.AUD_INTERNAL, "failed to verify evidence object", correlationID))
			m.logRequest(r, http.StatusInternalServerError, time.Since(start), correlationID, err)
			return
		}
		if !exists {
			m.writeErrorDef(w, errordefs.New(errordefs.AUD_NOT_FOUND, "evidence object not found in storage", correlationID))
			return
		}
		if size > m.maxArtifactSize {
			m.writeErrorDef(w, errordefs.New(errordefs.AUD_ARTIFACT_SIZE, fmt.Sprintf("artifact size exceeds limit of %d bytes", m.maxArtifactSize), correlationID))
			return
		}
		response.Size = size
		response.Verified = true
	}

	m.writeSuccess(w, http.StatusOK, response)
	m.logRequest(r, http.StatusOK, time.Since(start), correlationID, nil)
}

// handleTools handles GET /v1/tools
func (m *Mux) handleTools(w http.ResponseWriter, r *http.Request) {
	doc, err := tools.ToolsJSON()
	if err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_INTERNAL, "failed to render tools document", ""))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// handlePrompts handles GET /v1/prompts
func (m *Mux) handlePrompts(w http.ResponseWriter, r *http.Request) {
	doc, err := tools.PromptsJSON()
	if err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.AUD_INTERNAL, "failed to render prompts document", ""))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

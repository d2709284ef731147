// Package gateway exposes the draw engine over HTTP. A request passes the
// client block list, body decoding, content screening, validation and the
// per-client rate limit before the engine runs. Successful draws are then
// recorded, announced to givers and published on draw.completed.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/secretsanta/giftdraw/internal/ban"
	"github.com/secretsanta/giftdraw/internal/draw"
	"github.com/secretsanta/giftdraw/internal/metrics"
	"github.com/secretsanta/giftdraw/internal/moderation"
	"github.com/secretsanta/giftdraw/internal/notify"
	"github.com/secretsanta/giftdraw/internal/protocol"
	"github.com/secretsanta/giftdraw/internal/ratelimit"
	"github.com/secretsanta/giftdraw/internal/record"
)

// MaxBodyBytes caps the size of a draw request body.
const MaxBodyBytes = 1 << 20

// Response messages.
const (
	msgCompleted      = "draw completed, notifications sent"
	msgDeliveryFailed = "draw completed, but sending notifications failed"
	msgTooStrict      = "restrictions are too strict for the group size, remove some restrictions or add participants"
	msgRateLimited    = "too many draws, please try again later"
	msgBlocked        = "this client is temporarily blocked"
	msgInternal       = "internal error"
)

// Drawer produces an assignment for a participant list.
type Drawer interface {
	Draw(participants []draw.Participant, restrictions []draw.Restriction) (*draw.Outcome, error)
}

// Notifier delivers the assignments of a completed draw.
type Notifier interface {
	Notify(ctx context.Context, drawID string, assignments []draw.Assignment, event notify.Event) (*notify.Report, error)
}

// Limiter throttles draw requests per client.
type Limiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
	RetryAfter(ctx context.Context, identifier string, rule ratelimit.Rule) time.Duration
}

// Blocker tracks clients that submitted blocked content.
type Blocker interface {
	Check(ctx context.Context, clientIP string) (*ban.Block, error)
	RecordOffense(ctx context.Context, clientIP string, reason string) (time.Duration, error)
}

// Recorder keeps the audit trail of draws.
type Recorder interface {
	Create(ctx context.Context, d *record.Draw) error
}

// CompletionPublisher announces completed draws.
type CompletionPublisher interface {
	PublishDrawCompleted(data []byte) error
}

// Config holds the HTTP behavior of the gateway.
type Config struct {
	AllowedOrigin  string        // Access-Control-Allow-Origin value
	RequestTimeout time.Duration // bounds draw plus notification, 0 disables
}

// DefaultConfig returns a Config with permissive CORS and a 30s timeout.
func DefaultConfig() Config {
	return Config{
		AllowedOrigin:  "*",
		RequestTimeout: 30 * time.Second,
	}
}

// Handler serves the draw API.
type Handler struct {
	config   Config
	engine   Drawer
	notifier Notifier

	filter    *moderation.Filter
	limiter   Limiter
	blocker   Blocker
	recorder  Recorder
	completed CompletionPublisher

	startedAt time.Time
	now       func() time.Time
}

// Option configures optional collaborators of a Handler.
type Option func(*Handler)

// WithFilter screens names and event text before drawing.
func WithFilter(f *moderation.Filter) Option {
	return func(h *Handler) { h.filter = f }
}

// WithLimiter rate limits draws per client IP.
func WithLimiter(l Limiter) Option {
	return func(h *Handler) { h.limiter = l }
}

// WithBlocker rejects blocked clients and records content offenses.
func WithBlocker(b Blocker) Option {
	return func(h *Handler) { h.blocker = b }
}

// WithRecorder writes an audit record for every draw that reached the engine.
func WithRecorder(r Recorder) Option {
	return func(h *Handler) { h.recorder = r }
}

// WithCompletionPublisher publishes a DrawCompleted event after each
// successful draw.
func WithCompletionPublisher(p CompletionPublisher) Option {
	return func(h *Handler) { h.completed = p }
}

// NewHandler creates a Handler. engine and notifier are required.
func NewHandler(config Config, engine Drawer, notifier Notifier, opts ...Option) *Handler {
	h := &Handler{
		config:    config,
		engine:    engine,
		notifier:  notifier,
		startedAt: time.Now(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the HTTP handler for /api/draw, /health and /metrics.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/draw", h.handleDraw)
	mux.HandleFunc("/health", h.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	return h.cors(mux)
}

// cors allows browser clients from the configured origin and answers
// preflight requests.
func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", h.config.AllowedOrigin)
		hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		hdr.Set("Access-Control-Allow-Headers", "Content-Type")
		if h.config.AllowedOrigin != "*" {
			hdr.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleDraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		writeError(w, http.StatusMethodNotAllowed, protocol.CodeMethodNotAllowed, "method not allowed")
		return
	}

	ctx := r.Context()
	if h.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.RequestTimeout)
		defer cancel()
	}

	clientIP := ratelimit.ClientIP(r)

	if h.blocker != nil {
		block, err := h.blocker.Check(ctx, clientIP)
		if err != nil {
			log.Printf("[gateway] block check ip=%s failed: %v (allowing)", clientIP, err)
		}
		if block != nil {
			metrics.DrawsTotal.WithLabelValues("blocked").Inc()
			if block.Remaining > 0 {
				w.Header().Set("Retry-After", retryAfterSeconds(block.Remaining))
			}
			writeError(w, http.StatusForbidden, protocol.CodeClientBlocked, msgBlocked)
			return
		}
	}

	var req protocol.DrawRequest
	if err := decodeBody(w, r, &req); err != nil {
		metrics.DrawsTotal.WithLabelValues("invalid").Inc()
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, protocol.CodeInvalidRequest, err.Error())
		return
	}

	participants, restrictions := req.DrawInput()
	event := req.Event()

	if h.filter != nil {
		if res := h.filter.CheckFields(screenedFields(participants, event)); res.Blocked {
			metrics.DrawsTotal.WithLabelValues("blocked").Inc()
			log.Printf("[gateway] content blocked ip=%s field=%s reason=%s", clientIP, res.Field, res.Reason)
			h.recordOffense(ctx, clientIP, res.Reason)
			writeError(w, http.StatusBadRequest, protocol.CodeContentBlocked,
				res.Field+" contains content that is not allowed")
			return
		}
	}

	if err := draw.Validate(participants); err != nil {
		metrics.DrawsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, protocol.CodeValidation, validationMessage(err))
		return
	}

	if h.limiter != nil {
		// Allow fails open and logs on Redis errors.
		if ok, _ := h.limiter.Allow(ctx, clientIP, ratelimit.RuleDraw); !ok {
			metrics.DrawsTotal.WithLabelValues("rate_limited").Inc()
			w.Header().Set("Retry-After", retryAfterSeconds(h.limiter.RetryAfter(ctx, clientIP, ratelimit.RuleDraw)))
			writeError(w, http.StatusTooManyRequests, protocol.CodeRateLimited, msgRateLimited)
			return
		}
	}

	drawID := uuid.NewString()

	start := time.Now()
	outcome, err := h.engine.Draw(participants, restrictions)
	metrics.DrawDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		var infeasible *draw.InfeasibleError
		if errors.As(err, &infeasible) {
			metrics.DrawsTotal.WithLabelValues("infeasible").Inc()
			log.Printf("[gateway] draw=%s infeasible: %v", drawID, err)
			h.record(ctx, &record.Draw{
				ID:               drawID,
				ParticipantCount: len(participants),
				RestrictionCount: len(restrictions),
				Attempts:         infeasible.Attempts,
				Outcome:          record.OutcomeInfeasible,
			})
			writeError(w, http.StatusUnprocessableEntity, protocol.CodeTooStrict, msgTooStrict)
			return
		}
		log.Printf("[gateway] draw=%s engine error: %v", drawID, err)
		writeError(w, http.StatusInternalServerError, protocol.CodeInternal, msgInternal)
		return
	}

	metrics.DrawsTotal.WithLabelValues("assigned").Inc()
	metrics.DrawAttempts.Observe(float64(outcome.Attempts))
	log.Printf("[gateway] draw=%s assigned participants=%d restrictions=%d attempts=%d",
		drawID, len(participants), len(restrictions), outcome.Attempts)

	report, notifyErr := h.notifier.Notify(ctx, drawID, outcome.Assignments, event)

	var failed []string
	var delivery *notify.DeliveryError
	if errors.As(notifyErr, &delivery) {
		failed = delivery.FailedGivers()
	}
	notified := 0
	if report != nil {
		notified = report.Sent
	}

	h.record(ctx, &record.Draw{
		ID:               drawID,
		ParticipantCount: len(participants),
		RestrictionCount: len(restrictions),
		Attempts:         outcome.Attempts,
		Outcome:          record.OutcomeAssigned,
		Notified:         notified,
		Failed:           len(failed),
	})
	h.publishCompleted(protocol.DrawCompleted{
		DrawID:       drawID,
		Participants: len(participants),
		Restrictions: len(restrictions),
		Attempts:     outcome.Attempts,
		Notified:     notified,
		Failed:       failed,
		CompletedAt:  h.now().Unix(),
	})

	switch {
	case delivery != nil:
		writeJSON(w, http.StatusBadGateway, protocol.ErrorResponse{
			Error:  msgDeliveryFailed,
			Code:   protocol.CodeDeliveryFailed,
			DrawID: drawID,
			Failed: failed,
		})
	case notifyErr != nil:
		log.Printf("[gateway] draw=%s notify error: %v", drawID, notifyErr)
		writeError(w, http.StatusInternalServerError, protocol.CodeInternal, msgInternal)
	default:
		writeJSON(w, http.StatusOK, protocol.DrawResponse{
			Message:  msgCompleted,
			DrawID:   drawID,
			Notified: notified,
		})
	}
}

// handleHealth reports status and uptime as JSON.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}{
		Status: "ok",
		Uptime: time.Since(h.startedAt).Round(time.Second).String(),
	})
}

func (h *Handler) recordOffense(ctx context.Context, clientIP, reason string) {
	if h.blocker == nil {
		return
	}
	blocked, err := h.blocker.RecordOffense(ctx, clientIP, reason)
	if err != nil {
		log.Printf("[gateway] record offense ip=%s failed: %v", clientIP, err)
		return
	}
	if blocked > 0 {
		log.Printf("[gateway] ip=%s blocked for %s", clientIP, blocked)
	}
}

// record writes an audit entry. Failures are logged; the draw stands.
func (h *Handler) record(ctx context.Context, d *record.Draw) {
	if h.recorder == nil {
		return
	}
	// The request context may already be spent on notifications.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.recorder.Create(ctx, d); err != nil {
		log.Printf("[gateway] draw=%s record failed: %v", d.ID, err)
	}
}

func (h *Handler) publishCompleted(evt protocol.DrawCompleted) {
	if h.completed == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("[gateway] draw=%s marshal completion: %v", evt.DrawID, err)
		return
	}
	if err := h.completed.PublishDrawCompleted(data); err != nil {
		log.Printf("[gateway] draw=%s publish completion failed: %v", evt.DrawID, err)
	}
}

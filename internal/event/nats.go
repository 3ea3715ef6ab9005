// internal/event/nats.go
// Package event provides NATS JetStream implementation for event publishing.
// It streams complaint lifecycle events so downstream audit consumers can
// follow registrations, evidence submissions, and status transitions.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/CaseTrail/casetrail-audit-go/internal/model"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Publisher interface defines the event publishing operations required by the
// audit registry service.
type Publisher interface {
	// PublishComplaintRegistered announces a freshly registered complaint.
	PublishComplaintRegistered(ctx context.Context, complaint model.ComplaintRecord) error

	// PublishProofAttached announces a proof appended to a complaint.
	PublishProofAttached(ctx context.Context, complaintID string, proof model.ProofRecord) error

	// PublishStatusChanged announces an accepted status transition.
	PublishStatusChanged(ctx context.Context, complaint model.ComplaintRecord) error

	// Close closes the publisher connection
	Close() error
}

// noop is a no-op implementation of Publisher for when NATS is not configured.
// All methods do nothing and return nil, so the service functions without
// event streaming.
type noop struct{}

func (n *noop) Close() error { return nil }

func (n *noop) PublishComplaintRegistered(ctx context.Context, complaint model.ComplaintRecord) error {
	return nil
}

func (n *noop) PublishProofAttached(ctx context.Context, complaintID string, proof model.ProofRecord) error {
	return nil
}

func (n *noop) PublishStatusChanged(ctx context.Context, complaint model.ComplaintRecord) error {
	return nil
}

// natsPub is the NATS JetStream implementation of Publisher.
type natsPub struct {
	nc *nats.Conn            // NATS connection
	js nats.JetStreamContext // JetStream context for stream operations

	// Deduplication fields: a restarting host may replay the same operation,
	// so recently published keys are suppressed for a short window.
	registerDedup map[string]time.Time // complaint id → last register publish
	statusDedup   map[string]time.Time // complaint id + status → last status publish
	mutex         sync.RWMutex
}

// NewPublisherFromEnv creates a new publisher based on environment
// configuration. It reads AUDIT_NATS_URL; if NATS is not configured or the
// connection fails, it returns a no-op publisher.
func NewPublisherFromEnv() Publisher {
	url := os.Getenv("AUDIT_NATS_URL")
	if url == "" {
		return &noop{}
	}

	nc, err := nats.Connect(url)
	if err != nil {
		slog.Warn("NATS connect failed, using noop publisher", "error", err)
		return &noop{}
	}

	js, err := nc.JetStream()
	if err != nil {
		slog.Warn("NATS JetStream context creation failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	if err := initStreams(js); err != nil {
		slog.Warn("NATS stream initialization failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	return &natsPub{
		nc:            nc,
		js:            js,
		registerDedup: make(map[string]time.Time),
		statusDedup:   make(map[string]time.Time),
	}
}

// initStreams initializes the required NATS streams. A single stream carries
// all complaint lifecycle subjects.
func initStreams(js nats.JetStreamContext) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      "AUDIT_COMPLAINTS",
		Subjects:  []string{"audit.complaints.*"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Discard:   nats.DiscardOld,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create AUDIT_COMPLAINTS stream: %w", err)
	}
	return nil
}

// EventEnvelope represents the standard event envelope structure.
// All events published to NATS are wrapped in this envelope for consistency.
type EventEnvelope struct {
	Type          string      `json:"type"`          // Event type identifier
	Version       string      `json:"version"`       // Event schema version
	OccurredAt    time.Time   `json:"occurredAt"`    // When the event occurred
	CorrelationID string      `json:"correlationId"` // Correlation ID for tracing
	Payload       interface{} `json:"payload"`       // Event-specific data
}

// Close closes the NATS connection.
func (p *natsPub) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// shouldDedup checks if an event should be suppressed based on the 2-minute
// window.
func (p *natsPub) shouldDedup(key string, dedupMap map[string]time.Time) bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if lastTime, exists := dedupMap[key]; exists {
		return time.Since(lastTime) < 2*time.Minute
	}
	return false
}

// updateDedup records a successful publish and prunes stale entries.
func (p *natsPub) updateDedup(key string, dedupMap map[string]time.Time) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	cutoff := time.Now().Add(-5 * time.Minute)
	for k, t := range dedupMap {
		if t.Before(cutoff) {
			delete(dedupMap, k)
		}
	}
	dedupMap[key] = time.Now()
}

// publish wraps a payload in the standard envelope and sends it.
func (p *natsPub) publish(subject, eventType string, payload interface{}) error {
	envelope := EventEnvelope{
		Type:          eventType,
		Version:       "1.0.0",
		OccurredAt:    time.Now().UTC(),
		CorrelationID: uuid.New().String(),
		Payload:       payload,
	}

	b, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, b)
	return err
}

// PublishComplaintRegistered publishes a complaint registered event.
func (p *natsPub) PublishComplaintRegistered(ctx context.Context, complaint model.ComplaintRecord) error {
	if p.shouldDedup(complaint.ComplaintID, p.registerDedup) {
		return nil
	}

	if err := p.publish("audit.complaints.registered", "audit.complaints.registered", complaint); err != nil {
		return err
	}
	p.updateDedup(complaint.ComplaintID, p.registerDedup)
	return nil
}

// PublishProofAttached publishes a proof attached event. Proof ids are unique
// ULIDs, so no dedup window is needed here.
func (p *natsPub) PublishProofAttached(ctx context.Context, complaintID string, proof model.ProofRecord) error {
	payload := struct {
		ComplaintID string            `json:"complaintId"`
		Proof       model.ProofRecord `json:"proof"`
	}{ComplaintID: complaintID, Proof: proof}

	return p.publish("audit.complaints.proof_attached", "audit.complaints.proof_attached", payload)
}

// PublishStatusChanged publishes a status changed event.
func (p *natsPub) PublishStatusChanged(ctx context.Context, complaint model.ComplaintRecord) error {
	key := complaint.ComplaintID + "|" + string(complaint.Status) + "|" + complaint.LastStatusUpdate
	if p.shouldDedup(key, p.statusDedup) {
		return nil
	}

	if err := p.publish("audit.complaints.status_changed", "audit.complaints.status_changed", complaint); err != nil {
		return err
	}
	p.updateDedup(key, p.statusDedup)
	return nil
}

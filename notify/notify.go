// Package notify delivers plan lifecycle notifications: mobile push, in-app
// rows and optional NATS events. Every path is best effort; a notification
// failure never changes a job outcome.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
)

// TokenStore provides push tokens and in-app notification rows.
type TokenStore interface {
	PushTokens(ctx context.Context, userID string) ([]string, error)
	InsertNotification(ctx context.Context, userID, title, body, notifType, screen string, data map[string]any) error
}

// Notifier fans one event out to push, in-app and NATS.
type Notifier struct {
	store    TokenStore
	endpoint string
	client   *http.Client
	nc       *nats.Conn
	logger   *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// WithHTTPClient overrides the push HTTP client (tests).
func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) {
		n.client = client
	}
}

// WithNATS attaches a NATS connection for event publishing. Nil disables it.
func WithNATS(nc *nats.Conn) Option {
	return func(n *Notifier) {
		n.nc = nc
	}
}

// New creates a Notifier pushing through endpoint.
func New(store TokenStore, endpoint string, opts ...Option) *Notifier {
	n := &Notifier{
		store:    store,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// pushMessage is the Expo push payload, one message per token.
type pushMessage struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
	Sound string         `json:"sound,omitempty"`
}

// PlanReady notifies the user their plan finished generating.
func (n *Notifier) PlanReady(ctx context.Context, userID, planID string) {
	data := map[string]any{"planId": planID, "type": "plan_ready"}
	n.deliver(ctx, userID,
		"Your plan is ready",
		"Your new 7-day fitness plan has been generated. Take a look!",
		"plan_ready", "Plan", data)
	n.publish("plans.generated", map[string]any{"user_id": userID, "plan_id": planID})
}

// PlanFailed notifies the user generation failed terminally.
func (n *Notifier) PlanFailed(ctx context.Context, userID, jobID string) {
	data := map[string]any{"jobId": jobID, "type": "plan_failed"}
	n.deliver(ctx, userID,
		"Plan generation failed",
		"We couldn't generate your plan. Please try again from the app.",
		"plan_failed", "Plan", data)
	n.publish("plans.failed", map[string]any{"user_id": userID, "job_id": jobID})
}

// deliver writes the in-app row and pushes to each registered token.
func (n *Notifier) deliver(ctx context.Context, userID, title, body, notifType, screen string, data map[string]any) {
	if err := n.store.InsertNotification(ctx, userID, title, body, notifType, screen, data); err != nil {
		n.logger.Warn("In-app notification failed", "user_id", userID, "error", err)
	}

	tokens, err := n.store.PushTokens(ctx, userID)
	if err != nil {
		n.logger.Warn("Push token lookup failed", "user_id", userID, "error", err)
		return
	}
	if len(tokens) == 0 || n.endpoint == "" {
		return
	}

	messages := make([]pushMessage, 0, len(tokens))
	for _, token := range tokens {
		messages = append(messages, pushMessage{
			To:    token,
			Title: title,
			Body:  body,
			Data:  data,
			Sound: "default",
		})
	}
	if err := n.push(ctx, messages); err != nil {
		n.logger.Warn("Push delivery failed", "user_id", userID, "tokens", len(tokens), "error", err)
	}
}

// push POSTs the message batch to the push gateway.
func (n *Notifier) push(ctx context.Context, messages []pushMessage) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway status %d", resp.StatusCode)
	}
	return nil
}

// publish emits a NATS event when a connection is attached.
func (n *Notifier) publish(subject string, event map[string]any) {
	if n.nc == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := n.nc.Publish(subject, payload); err != nil {
		n.logger.Warn("Event publish failed", "subject", subject, "error", err)
	}
}

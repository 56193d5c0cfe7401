// Package notify publishes change and findings events over NATS so other
// services can react to rule edits without polling.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dutylens/dutylens/internal/metrics"
	"github.com/dutylens/dutylens/internal/pillar"
)

// Subjects for the events this service emits.
const (
	SubjectRulesChanged   = "dutylens.rules.changed"
	SubjectPromptsChanged = "dutylens.prompts.changed"
	SubjectFindingsSynced = "dutylens.findings.synced"
)

// RuleChangeEvent is published whenever a rule set, prompt document or
// threshold override is written.
type RuleChangeEvent struct {
	Pillar    pillar.Pillar `json:"pillar,omitempty"`
	Action    string        `json:"action"`
	Timestamp time.Time     `json:"timestamp"`
}

// Publisher is the part of the NATS client the service layer needs.
type Publisher interface {
	PublishJSON(ctx context.Context, subject string, data interface{}) error
	Close() error
}

// Config holds NATS connection configuration.
type Config struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "dutylens",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// Client implements Publisher over a NATS connection.
type Client struct {
	conn *nats.Conn
}

func NewClient(cfg Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Client{conn: conn}, nil
}

// PublishJSON marshals data to JSON and publishes it to the subject.
func (c *Client) PublishJSON(ctx context.Context, subject string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.conn.Publish(subject, bytes); err != nil {
		metrics.NotificationErrors.Inc()
		return err
	}

	metrics.NotificationsPublished.WithLabelValues(subject).Inc()
	return nil
}

func (c *Client) Close() error {
	c.conn.Close()
	return nil
}

// NopPublisher discards every event. Used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishJSON(context.Context, string, interface{}) error { return nil }
func (NopPublisher) Close() error                                          { return nil }

package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/buildingvitals/vitalstore/internal/subscriber"
)

// SubjectPrefix is the queue subject space for live telemetry. One subject
// per site: vitals.samples.<site_id>
const SubjectPrefix = "vitals.samples"

// Writer persists decoded samples
type Writer interface {
	Write(ctx context.Context, samples []models.Sample) error
}

// Consumer subscribes to per-site telemetry subjects and writes batches into
// the hot store
type Consumer struct {
	sub    subscriber.Subscriber
	writer Writer
	logger *logging.Logger

	sites []string
}

// NewConsumer creates a live-ingest consumer for the given sites
func NewConsumer(sub subscriber.Subscriber, writer Writer, sites []string, logger *logging.Logger) *Consumer {
	return &Consumer{
		sub:    sub,
		writer: writer,
		logger: logger,
		sites:  sites,
	}
}

// SubjectForSite returns the queue subject carrying a site's telemetry
func SubjectForSite(siteID string) string {
	return SubjectPrefix + "." + siteID
}

// siteFromSubject extracts the site ID from a telemetry subject
func siteFromSubject(subject string) string {
	if !strings.HasPrefix(subject, SubjectPrefix+".") {
		return ""
	}
	return subject[len(SubjectPrefix)+1:]
}

// Start subscribes to every configured site's subject
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.sites) == 0 {
		return fmt.Errorf("no sites configured for ingest")
	}

	for _, site := range c.sites {
		subject := SubjectForSite(site)
		if err := c.sub.Subscribe(ctx, subject, c.handleMessage); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
	}

	c.logger.Info("Live ingest started", "sites", len(c.sites))
	return nil
}

// handleMessage decodes and persists one batch. A returned error leaves the
// message unacked so the queue redelivers it.
func (c *Consumer) handleMessage(ctx context.Context, subject string, data []byte) error {
	siteID := siteFromSubject(subject)

	samples, dropped, err := DecodeBatch(siteID, data)
	if err != nil {
		c.logger.Error("Discarding undecodable batch", "subject", subject, "error", err)
		// Malformed payloads never become valid on redelivery
		return nil
	}

	if dropped > 0 {
		c.logger.Warn("Dropped invalid readings from batch",
			"subject", subject,
			"dropped", dropped,
			"kept", len(samples),
		)
	}

	if len(samples) == 0 {
		return nil
	}

	if err := c.writer.Write(ctx, samples); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}

	c.logger.Debug("Ingested batch", "subject", subject, "samples", len(samples))
	return nil
}

// Stop unsubscribes from all site subjects
func (c *Consumer) Stop() error {
	var lastErr error
	for _, site := range c.sites {
		if err := c.sub.Unsubscribe(SubjectForSite(site)); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

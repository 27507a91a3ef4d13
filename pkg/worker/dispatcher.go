package worker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/isolink-io/isolink/pkg/store"
)

const (
	// dispatchCursorKey is the system_state key holding the last delivered
	// link_events rowid.
	dispatchCursorKey = "webhook_dispatcher_cursor"
	// dispatchBatchSize is the number of records fetched per poll.
	dispatchBatchSize = 50
	// dispatchInterval is how often to check for new records.
	dispatchInterval = 1 * time.Second
	// dispatchTimeout is the HTTP client timeout per delivery.
	dispatchTimeout = 5 * time.Second
	// dispatchMaxRetries is the number of delivery attempts.
	dispatchMaxRetries = 3
)

// WebhookStore is the slice of the store the dispatcher needs.
type WebhookStore interface {
	ReadLinkEventsAfter(ctx context.Context, after int64, limit int) ([]store.LinkRecord, error)
	ListWebhooks(ctx context.Context, activeOnly bool) ([]store.WebhookConfig, error)
	GetSystemState(ctx context.Context, key string) (string, error)
	SetSystemState(ctx context.Context, key, value string) error
}

// Dispatcher delivers persisted link events to registered webhooks,
// at-least-once, in ingest order. The cursor survives restarts because it
// tracks store rowids, not journal sequences.
type Dispatcher struct {
	store  WebhookStore
	client *http.Client
	logger *slog.Logger
}

// NewDispatcher creates a webhook dispatcher.
func NewDispatcher(st WebhookStore, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:  st,
		client: &http.Client{Timeout: dispatchTimeout},
		logger: logger,
	}
}

// Run polls for new records until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("starting webhook dispatcher", "interval", dispatchInterval)

	cursor, err := d.loadCursor(ctx)
	if err != nil {
		d.logger.Warn("failed to load dispatcher cursor, starting from 0", "error", err)
		cursor = 0
	}

	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("webhook dispatcher stopped")
			return
		case <-ticker.C:
			newCursor, count, err := d.processBatch(ctx, cursor)
			if err != nil {
				d.logger.Error("webhook batch failed", "error", err)
				continue
			}
			if count > 0 {
				cursor = newCursor
				if err := d.saveCursor(ctx, cursor); err != nil {
					d.logger.Error("failed to save dispatcher cursor", "error", err)
				}
			}
		}
	}
}

// processBatch fetches records past the cursor and delivers them. It returns
// the new cursor and the number of records consumed.
func (d *Dispatcher) processBatch(ctx context.Context, cursor int64) (int64, int, error) {
	records, err := d.store.ReadLinkEventsAfter(ctx, cursor, dispatchBatchSize)
	if err != nil {
		return cursor, 0, err
	}
	if len(records) == 0 {
		return cursor, 0, nil
	}

	webhooks, err := d.store.ListWebhooks(ctx, true)
	if err != nil {
		return cursor, 0, fmt.Errorf("failed to list webhooks: %w", err)
	}
	if len(webhooks) == 0 {
		// No listeners; advance past the batch.
		return records[len(records)-1].RowID, len(records), nil
	}

	last := cursor
	for _, rec := range records {
		for _, wh := range webhooks {
			if !wantsType(wh, rec) {
				continue
			}
			if err := d.send(ctx, wh, rec); err != nil {
				d.logger.Error("webhook delivery failed",
					"webhook_id", wh.WebhookID, "record_id", rec.RecordID, "error", err)
			}
		}
		last = rec.RowID
	}

	return last, len(records), nil
}

// wantsType checks the webhook's type subscription. An empty list or "*"
// subscribes to everything.
func wantsType(wh store.WebhookConfig, rec store.LinkRecord) bool {
	if len(wh.Types) == 0 {
		return true
	}
	for _, t := range wh.Types {
		if t == "*" || t == string(rec.Type) {
			return true
		}
	}
	return false
}

// send performs the HTTP POST with retries and an HMAC-SHA256 signature over
// the payload when the webhook carries a secret.
func (d *Dispatcher) send(ctx context.Context, wh store.WebhookConfig, rec store.LinkRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	var lastErr error
	for i := 0; i < dispatchMaxRetries; i++ {
		if i > 0 {
			// Linear backoff: 1s, 2s.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "isolinkd-dispatcher/1.0")
		req.Header.Set("X-Isolink-Record-ID", rec.RecordID)
		req.Header.Set("X-Isolink-Event-Type", string(rec.Type))
		if wh.Secret != "" {
			req.Header.Set("X-Isolink-Signature", "sha256="+sign(wh.Secret, payload))
		}

		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = err
			continue // Retry on network error
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook responded with status: %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return lastErr // Don't retry client errors
		}
	}

	return fmt.Errorf("max retries reached: %w", lastErr)
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (d *Dispatcher) loadCursor(ctx context.Context) (int64, error) {
	val, err := d.store.GetSystemState(ctx, dispatchCursorKey)
	if err != nil {
		return 0, err
	}
	if val == "" {
		return 0, nil
	}
	return strconv.ParseInt(val, 10, 64)
}

func (d *Dispatcher) saveCursor(ctx context.Context, cursor int64) error {
	return d.store.SetSystemState(ctx, dispatchCursorKey, strconv.FormatInt(cursor, 10))
}

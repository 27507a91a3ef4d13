package store

import (
	"context"
	"testing"

	"github.com/isolink-io/isolink/pkg/linker"
)

func TestWebhookLifecycle(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	// 1. Create
	wh := WebhookConfig{
		WebhookID: "wh-1",
		URL:       "https://example.com/hooks/isolink",
		Secret:    "s3cret",
		Types:     []string{string(linker.EventIndirectLink)},
		Active:    true,
	}
	if err := store.CreateWebhook(ctx, wh); err != nil {
		t.Fatalf("CreateWebhook failed: %v", err)
	}

	// Wildcard listener, no secret.
	all := WebhookConfig{WebhookID: "wh-2", URL: "https://example.com/all", Active: true}
	if err := store.CreateWebhook(ctx, all); err != nil {
		t.Fatalf("CreateWebhook failed: %v", err)
	}

	inactive := WebhookConfig{WebhookID: "wh-3", URL: "https://example.com/off", Active: false}
	if err := store.CreateWebhook(ctx, inactive); err != nil {
		t.Fatalf("CreateWebhook failed: %v", err)
	}

	// 2. List active only
	active, err := store.ListWebhooks(ctx, true)
	if err != nil {
		t.Fatalf("ListWebhooks failed: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active webhooks, got %d", len(active))
	}
	if active[0].WebhookID != "wh-1" {
		t.Errorf("expected wh-1 first, got %s", active[0].WebhookID)
	}
	if len(active[0].Types) != 1 || active[0].Types[0] != string(linker.EventIndirectLink) {
		t.Errorf("types did not round-trip: %+v", active[0].Types)
	}
	if active[0].Secret != "s3cret" {
		t.Errorf("secret did not round-trip")
	}
	if active[0].CreatedAt.IsZero() {
		t.Errorf("expected created_at to be set")
	}

	// 3. List all
	everything, err := store.ListWebhooks(ctx, false)
	if err != nil {
		t.Fatalf("ListWebhooks failed: %v", err)
	}
	if len(everything) != 3 {
		t.Errorf("expected 3 webhooks, got %d", len(everything))
	}

	// 4. Delete
	if err := store.DeleteWebhook(ctx, "wh-2"); err != nil {
		t.Fatalf("DeleteWebhook failed: %v", err)
	}
	if err := store.DeleteWebhook(ctx, "wh-2"); err == nil {
		t.Errorf("expected error deleting missing webhook, got nil")
	}

	active, _ = store.ListWebhooks(ctx, true)
	if len(active) != 1 {
		t.Errorf("expected 1 active webhook after delete, got %d", len(active))
	}
}

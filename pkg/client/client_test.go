package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_Resolve(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse ResolveResult
		serverStatus   int
		wantLinked     bool
		wantTarget     string
		wantReason     string
		wantErr        bool
	}{
		{
			name: "Linked",
			serverResponse: ResolveResult{
				SourceID: "app",
				Anchor:   "fetch",
				TargetID: "svc",
				Linked:   true,
			},
			serverStatus: http.StatusOK,
			wantLinked:   true,
			wantTarget:   "svc",
		},
		{
			name: "NotLinked",
			serverResponse: ResolveResult{
				SourceID: "app",
				Anchor:   "cold",
				Linked:   false,
			},
			serverStatus: http.StatusOK,
			wantLinked:   false,
		},
		{
			name:         "ServerError",
			serverStatus: http.StatusInternalServerError,
			wantLinked:   false,
			wantReason:   "upstream_error", // Fail-closed means no error, just no link
		},
		{
			name:         "UnknownSource",
			serverStatus: http.StatusNotFound,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/resolve" {
					t.Errorf("Expected path /v1/resolve, got %s", r.URL.Path)
				}
				if r.Method != http.MethodPost {
					t.Errorf("Expected method POST, got %s", r.Method)
				}

				w.WriteHeader(tt.serverStatus)
				if tt.serverStatus == http.StatusOK {
					json.NewEncoder(w).Encode(tt.serverResponse)
				}
			}))
			defer server.Close()

			c := NewClient(server.URL)
			got, err := c.Resolve(context.Background(), "app", "fetch")

			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Linked != tt.wantLinked {
				t.Errorf("Resolve() linked = %v, want %v", got.Linked, tt.wantLinked)
			}
			if got.TargetID != tt.wantTarget {
				t.Errorf("Resolve() target = %q, want %q", got.TargetID, tt.wantTarget)
			}
			if tt.wantReason != "" && got.Reason != tt.wantReason {
				t.Errorf("Resolve() reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestClient_ResolveFailsClosedWhenUnreachable(t *testing.T) {
	// Point at a server that is already gone.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := NewClient(server.URL)
	got, err := c.Resolve(context.Background(), "app", "fetch")
	if err != nil {
		t.Fatalf("Expected fail-closed result, got error %v", err)
	}
	if got.Linked {
		t.Error("Unreachable daemon must never report a link")
	}
	if got.Reason != "daemon_unreachable" {
		t.Errorf("Expected daemon_unreachable, got %q", got.Reason)
	}
}

func TestClient_ResolveRequiresAnchor(t *testing.T) {
	c := NewClient("")
	if _, err := c.Resolve(context.Background(), "app", ""); err == nil {
		t.Error("Expected error for empty anchor")
	}
}

func TestClient_ComponentLifecycle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "POST /v1/components":
			var spec ComponentSpec
			if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
				t.Errorf("Bad create body: %v", err)
			}
			if spec.ComponentID != "render" || len(spec.Residues) != 1 {
				t.Errorf("Unexpected spec: %+v", spec)
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(CreateResult{ComponentID: spec.ComponentID, Status: "registered"})
		case "GET /v1/components/render":
			json.NewEncoder(w).Encode(ComponentView{ComponentID: "render", Phase: "dormant", Class: "unresolved"})
		case "DELETE /v1/components/render":
			json.NewEncoder(w).Encode(map[string]string{"status": "destroyed"})
		default:
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL)
	ctx := context.Background()

	created, err := c.CreateComponent(ctx, ComponentSpec{
		ComponentID: "render",
		Residues:    []ResidueSpec{{Anchor: "draw"}},
	})
	if err != nil {
		t.Fatalf("CreateComponent() error = %v", err)
	}
	if created.Status != "registered" {
		t.Errorf("Expected registered, got %q", created.Status)
	}

	view, err := c.Component(ctx, "render")
	if err != nil {
		t.Fatalf("Component() error = %v", err)
	}
	if view.Phase != "dormant" {
		t.Errorf("Expected dormant, got %q", view.Phase)
	}

	if err := c.DestroyComponent(ctx, "render"); err != nil {
		t.Fatalf("DestroyComponent() error = %v", err)
	}
}

func TestClient_GetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(Health{Status: "ok", Leader: true})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	c.SetBackoff(&ExponentialBackoff{Base: time.Millisecond, Max: time.Millisecond, Factor: 1}, 2)

	health, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("Expected ok, got %q", health.Status)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("Expected 2 attempts, got %d", got)
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"component_not_found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.URL)
	c.SetBackoff(&ExponentialBackoff{Base: time.Millisecond, Max: time.Millisecond, Factor: 1}, 3)

	_, err := c.Component(context.Background(), "ghost")
	if err == nil {
		t.Fatal("Expected error for 404")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Expected 1 attempt for client error, got %d", got)
	}
}

func TestClient_SendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("Expected bearer token, got %q", got)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(CreateResult{ComponentID: "x", Status: "registered"})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	c.SetToken("sekrit")
	if _, err := c.CreateComponent(context.Background(), ComponentSpec{ComponentID: "x"}); err != nil {
		t.Fatalf("CreateComponent() error = %v", err)
	}
}

func TestClient_FollowsLeaderRedirect(t *testing.T) {
	leader := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(CreateResult{ComponentID: "x", Status: "registered"})
	}))
	defer leader.Close()

	follower := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, leader.URL+r.URL.Path, http.StatusTemporaryRedirect)
	}))
	defer follower.Close()

	c := NewClient(follower.URL)
	created, err := c.CreateComponent(context.Background(), ComponentSpec{ComponentID: "x"})
	if err != nil {
		t.Fatalf("CreateComponent() through redirect error = %v", err)
	}
	if created.Status != "registered" {
		t.Errorf("Expected registered, got %q", created.Status)
	}
}

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/health" {
			t.Errorf("Expected path /v1/health, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(Health{Status: "ok", Leader: true, Components: 3})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	health, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if health.Status != "ok" || health.Components != 3 {
		t.Errorf("Unexpected health: %+v", health)
	}
}

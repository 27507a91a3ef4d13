package main

import (
	"strings"
	"testing"
)

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		envVars     map[string]string
		expectError bool
		errorSubstr string
	}{
		{
			name:        "valid defaults",
			args:        []string{},
			expectError: false,
		},
		{
			name:        "zero lease ttl with sqlite election",
			args:        []string{"-election", "sqlite", "-lease-ttl", "0s"},
			expectError: true,
			errorSubstr: "lease ttl must be positive",
		},
		{
			name:        "negative lease ttl with redis election",
			args:        []string{"-election", "redis", "-redis-addr", "127.0.0.1:6379", "-lease-ttl", "-5s"},
			expectError: true,
			errorSubstr: "lease ttl must be positive",
		},
		{
			name:        "invalid lease ttl format",
			args:        []string{"-lease-ttl", "soon"},
			expectError: true,
			errorSubstr: "invalid lease ttl",
		},
		{
			name:        "invalid lease ttl from env",
			envVars:     map[string]string{"ISOLINK_LEASE_TTL": "soon"},
			expectError: true,
			errorSubstr: "invalid ISOLINK_LEASE_TTL",
		},
		{
			name:        "redis election without address",
			args:        []string{"-election", "redis"},
			expectError: true,
			errorSubstr: "requires redis-addr",
		},
		{
			name:        "unknown election backend",
			args:        []string{"-election", "raft"},
			expectError: true,
			errorSubstr: "unsupported election backend",
		},
		{
			name:        "unknown comparer",
			args:        []string{"-comparer", "psychic"},
			expectError: true,
			errorSubstr: "unsupported comparer",
		},
		{
			name:        "embedding comparer without api key",
			args:        []string{"-comparer", "embedding"},
			expectError: true,
			errorSubstr: "ISOLINK_EMBED_API_KEY",
		},
		{
			name: "embedding comparer with api key",
			args: []string{"-comparer", "embedding"},
			envVars: map[string]string{
				"ISOLINK_EMBED_API_KEY": "test-key",
			},
			expectError: false,
		},
		{
			name: "embedding comparer with ollama needs no key",
			args: []string{"-comparer", "embedding"},
			envVars: map[string]string{
				"ISOLINK_EMBED_PROVIDER": "ollama",
			},
			expectError: false,
		},
		{
			name:        "tls cert without key",
			args:        []string{"-tls-cert", "server.crt"},
			expectError: true,
			errorSubstr: "tls-cert and tls-key must be set together",
		},
		{
			name:        "invalid capacity from env",
			envVars:     map[string]string{"ISOLINK_CAPACITY": "many"},
			expectError: true,
			errorSubstr: "invalid ISOLINK_CAPACITY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, err := LoadConfig(tt.args)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errorSubstr)
				} else if !strings.Contains(err.Error(), tt.errorSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errorSubstr, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig([]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr != defaultAddr {
		t.Errorf("expected default addr %q, got %q", defaultAddr, cfg.Addr)
	}
	if cfg.Comparer != "always" {
		t.Errorf("expected comparer always, got %q", cfg.Comparer)
	}
	if cfg.Election != "solo" {
		t.Errorf("expected election solo, got %q", cfg.Election)
	}
	if cfg.LeaseTTL != defaultLeaseTTL {
		t.Errorf("expected default lease ttl %v, got %v", defaultLeaseTTL, cfg.LeaseTTL)
	}
	if cfg.Advertise != "http://"+defaultAddr {
		t.Errorf("expected advertise derived from addr, got %q", cfg.Advertise)
	}
	if !strings.HasSuffix(cfg.DBPath, "isolink.db") {
		t.Errorf("expected db path ending in isolink.db, got %q", cfg.DBPath)
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	t.Setenv("ISOLINK_PORT", "9000")
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Errorf("expected port env to shape addr, got %q", cfg.Addr)
	}

	t.Setenv("ISOLINK_ADDR", "10.0.0.1:8095")
	cfg, err = LoadConfig([]string{"-addr", "10.0.0.2:8095"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "10.0.0.2:8095" {
		t.Errorf("expected flag to beat env, got %q", cfg.Addr)
	}

	t.Setenv("ISOLINK_ELECTION", "sqlite")
	cfg, err = LoadConfig(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Election != "sqlite" {
		t.Errorf("expected env election backend, got %q", cfg.Election)
	}
}

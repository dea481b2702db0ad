package cachekey

import (
	"strings"
	"testing"

	"github.com/talentforge/research-engine/internal/models"
)

func TestDeriveDeterministic(t *testing.T) {
	base := models.GenerationRequest{
		Task:     models.TaskMarketInsightsQuick,
		Role:     "Backend Engineer",
		Level:    "Senior",
		Location: "Berlin",
		Keywords: []string{"go", "kubernetes"},
	}

	tests := []struct {
		name string
		req  models.GenerationRequest
	}{
		{
			name: "identical input",
			req:  base,
		},
		{
			name: "different casing",
			req: models.GenerationRequest{
				Task:     models.TaskMarketInsightsQuick,
				Role:     "backend engineer",
				Level:    "SENIOR",
				Location: "berlin",
				Keywords: []string{"go", "kubernetes"},
			},
		},
		{
			name: "extra whitespace",
			req: models.GenerationRequest{
				Task:     models.TaskMarketInsightsQuick,
				Role:     "  Backend   Engineer ",
				Level:    "Senior",
				Location: "Berlin",
				Keywords: []string{"go", "kubernetes"},
			},
		},
		{
			name: "keyword order",
			req: models.GenerationRequest{
				Task:     models.TaskMarketInsightsQuick,
				Role:     "Backend Engineer",
				Level:    "Senior",
				Location: "Berlin",
				Keywords: []string{"kubernetes", "go"},
			},
		},
	}

	want := Derive(base)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Derive(tt.req); got != want {
				t.Errorf("Derive() = %s, want %s", got, want)
			}
		})
	}
}

func TestDeriveDistinguishesInput(t *testing.T) {
	a := Derive(models.GenerationRequest{Role: "backend engineer"})
	b := Derive(models.GenerationRequest{Role: "frontend engineer"})
	if a == b {
		t.Error("different roles produced the same key")
	}

	c := Derive(models.GenerationRequest{Role: "backend engineer", Task: models.TaskJobDescription})
	if a == c {
		t.Error("different tasks produced the same key")
	}
}

func TestDeriveKeyShape(t *testing.T) {
	key := Derive(models.GenerationRequest{Role: "designer"})

	if len(key) != KeyLength {
		t.Fatalf("key length = %d, want %d", len(key), KeyLength)
	}
	if !IsValidKey(key) {
		t.Errorf("IsValidKey(%s) = false", key)
	}
}

func TestDeriveNamespaced(t *testing.T) {
	req := models.GenerationRequest{Role: "designer"}
	key := DeriveNamespaced("listings-", req)

	if !strings.HasPrefix(key, "listings-") {
		t.Fatalf("key %s missing prefix", key)
	}
	if len(key) != len("listings-")+namespacedDigestLength {
		t.Errorf("key length = %d, want %d", len(key), len("listings-")+namespacedDigestLength)
	}
	if IsValidKey(key) {
		t.Error("namespaced key should not validate as a plain key")
	}

	plain := Derive(req)
	if !strings.HasPrefix(plain, strings.TrimPrefix(key, "listings-")) {
		t.Error("namespaced digest should be a truncation of the plain digest")
	}
}

func TestIsValidKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"valid", Derive(models.GenerationRequest{Role: "x"}), true},
		{"empty", "", false},
		{"too short", "abc123", false},
		{"uppercase hex", strings.ToUpper(Derive(models.GenerationRequest{Role: "x"})), false},
		{"non-hex", strings.Repeat("z", 64), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidKey(tt.key); got != tt.want {
				t.Errorf("IsValidKey(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

package control

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/ecosetu/internal/core/config"
	"github.com/vietddude/ecosetu/internal/core/domain"
	"github.com/vietddude/ecosetu/internal/telemetry"
)

func testConfig() *config.AppConfig {
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.HealthPort = 0
	cfg.Auth.TrustHeaders = true
	cfg.Events.Sink = "none"
	return cfg
}

func TestApp_Lifecycle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := NewApp(context.Background(), testConfig(), logger)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}

	mem := app.Storage().Memory
	if mem == nil {
		t.Fatal("expected memory storage without a database url")
	}
	mem.PutMaterial(&domain.MaterialSummary{ID: "M1", SellerRef: "S1", Status: domain.MaterialAvailable})
	mem.PutNegotiation(&domain.Negotiation{
		ID: "N1", MaterialRef: "M1", BuyerRef: "B1", SellerRef: "S1",
		ProposedPrice: decimal.NewFromInt(500), Status: domain.NegotiationPending,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	url := "http://" + app.APIAddr().String() + "/api/transactions"
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(`{"negotiation_ref":"N1"}`))
	req.Header.Set("X-User-ID", "B1")
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	var txn domain.Transaction
	if err := json.NewDecoder(resp.Body).Decode(&txn); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if txn.CurrentStatus != domain.StatusConfirmed {
		t.Errorf("expected confirmed, got %s", txn.CurrentStatus)
	}

	if err := app.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := app.Wait(); err != nil {
		t.Errorf("Wait after Stop: %v", err)
	}
}

func TestNewApp_RejectsBadPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Ledger.TransitionPolicy = "yolo"
	if _, err := NewApp(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected an unknown transition policy to fail")
	}
}

// stubTracing replaces tracing setup and counts shutdown calls.
func stubTracing(t *testing.T) *int {
	t.Helper()
	calls := new(int)
	orig := setupTracing
	setupTracing = func(context.Context, telemetry.Config) (telemetry.ShutdownFunc, error) {
		return func(context.Context) error {
			*calls++
			return nil
		}, nil
	}
	t.Cleanup(func() { setupTracing = orig })
	return calls
}

func TestNewApp_ShutsDownTracingOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.AppConfig)
	}{
		{"bad policy", func(c *config.AppConfig) { c.Ledger.TransitionPolicy = "yolo" }},
		{"bad event sink", func(c *config.AppConfig) { c.Events.Sink = "carrier-pigeon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := stubTracing(t)
			cfg := testConfig()
			tt.mutate(cfg)
			if _, err := NewApp(context.Background(), cfg, nil); err == nil {
				t.Fatal("expected NewApp to fail")
			}
			if *calls != 1 {
				t.Errorf("expected tracing shut down once, got %d", *calls)
			}
		})
	}
}

func TestNewApp_KeepsTracingOnSuccess(t *testing.T) {
	calls := stubTracing(t)
	app, err := NewApp(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	if *calls != 0 {
		t.Fatalf("expected tracing to stay up, got %d shutdowns", *calls)
	}
	if err := app.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if *calls != 1 {
		t.Errorf("expected Stop to shut tracing down once, got %d", *calls)
	}
}

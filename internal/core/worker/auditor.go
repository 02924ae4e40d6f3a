package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/ecosetu/internal/core/ledger"
	"github.com/vietddude/ecosetu/internal/infra/storage"
	"github.com/vietddude/ecosetu/internal/tracking/health"
	"github.com/vietddude/ecosetu/internal/tracking/metrics"
)

// AuditRecorder receives the result of each pass.
type AuditRecorder interface {
	RecordAudit(summary health.AuditSummary)
}

// AuditorConfig controls the audit loop.
type AuditorConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
}

// Auditor periodically re-verifies every stored chain.
type Auditor struct {
	cfg      AuditorConfig
	txRepo   storage.TransactionRepository
	recorder AuditRecorder
	log      *slog.Logger
}

// NewAuditor creates a new Auditor worker.
func NewAuditor(
	cfg AuditorConfig,
	txRepo storage.TransactionRepository,
	recorder AuditRecorder,
	logger *slog.Logger,
) *Auditor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		cfg:      cfg,
		txRepo:   txRepo,
		recorder: recorder,
		log:      logger.With("component", "auditor"),
	}
}

// Start runs the audit loop until ctx is cancelled.
func (a *Auditor) Start(ctx context.Context) {
	if a.cfg.Interval <= 0 {
		return // auditing disabled
	}

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	a.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.RunOnce(ctx)
		}
	}
}

// RunOnce verifies every transaction page by page.
func (a *Auditor) RunOnce(ctx context.Context) health.AuditSummary {
	summary := health.AuditSummary{At: time.Now().UTC()}

	for offset := 0; ; offset += a.cfg.BatchSize {
		page, err := a.txRepo.List(ctx, storage.ListFilter{Limit: a.cfg.BatchSize, Offset: offset})
		if err != nil {
			a.log.Error("failed to list transactions", "offset", offset, "error", err)
			return summary
		}

		for _, txn := range page {
			summary.Checked++
			report := ledger.VerifyChain(txn.History)
			if report.Valid {
				continue
			}
			summary.Broken++
			summary.BrokenIDs = append(summary.BrokenIDs, txn.ID)
			for _, b := range report.Breaks {
				metrics.ChainBreaks.WithLabelValues(string(b.Reason)).Inc()
			}
			a.log.Error("ledger chain broken",
				"transaction_id", txn.ID,
				"broken", report.BrokenIndices(),
				"entries", report.Entries,
			)
		}

		if len(page) < a.cfg.BatchSize {
			break
		}
	}

	metrics.AuditRuns.Inc()
	metrics.AuditLastBroken.Set(float64(summary.Broken))
	if a.recorder != nil {
		a.recorder.RecordAudit(summary)
	}
	a.log.Info("audit complete", "checked", summary.Checked, "broken", summary.Broken)
	return summary
}

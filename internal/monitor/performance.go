// Package monitor observes recorded decisions: it aggregates closed trades
// into periodic performance reports and resolves in-flight transactions into
// final outcomes.
package monitor

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pojakpijak/H-5N1P3R/internal/domain"
	"github.com/pojakpijak/H-5N1P3R/internal/ledger"
	"github.com/pojakpijak/H-5N1P3R/pkg/logger"
)

// PerformanceMonitor periodically computes KPI reports over a trailing
// window of ledger records and publishes them for the optimizer.
type PerformanceMonitor struct {
	storage     ledger.Storage
	reports     chan<- domain.PerformanceReport
	windowHours float64
	interval    time.Duration
	log         zerolog.Logger
}

// NewPerformanceMonitor builds a monitor that analyzes the trailing
// windowHours every interval and sends reports on the given channel.
func NewPerformanceMonitor(
	storage ledger.Storage,
	reports chan<- domain.PerformanceReport,
	windowHours float64,
	interval time.Duration,
	log zerolog.Logger,
) *PerformanceMonitor {
	return &PerformanceMonitor{
		storage:     storage,
		reports:     reports,
		windowHours: windowHours,
		interval:    interval,
		log:         logger.Component(log, "performance_monitor"),
	}
}

// Run analyzes on every tick until the context is cancelled. A failed pass
// is logged and retried at the next tick.
func (m *PerformanceMonitor) Run(ctx context.Context) {
	m.log.Info().
		Float64("window_hours", m.windowHours).
		Dur("interval", m.interval).
		Msg("Performance monitor started")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("Performance monitor stopping")
			return
		case <-ticker.C:
			report, err := m.Analyze(ctx, m.windowHours)
			if err != nil {
				m.log.Error().Err(err).Msg("Performance analysis failed, waiting for next tick")
				continue
			}
			select {
			case m.reports <- report:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Analyze computes a KPI report over the trailing windowHours. Only closed
// trades (Profit or Loss) enter the financial KPIs; an empty window yields a
// zero-valued report.
func (m *PerformanceMonitor) Analyze(ctx context.Context, windowHours float64) (domain.PerformanceReport, error) {
	since := time.Now().UnixMilli() - int64(windowHours*float64(time.Hour/time.Millisecond))
	records, err := m.storage.GetRecordsSince(ctx, since)
	if err != nil {
		return domain.PerformanceReport{}, err
	}

	report := buildReport(records, windowHours)

	m.log.Info().
		Str("report_id", report.ID).
		Int("trades", report.TotalTradesEvaluated).
		Float64("win_rate", report.WinRatePercent).
		Float64("profit_factor", report.ProfitFactor).
		Float64("net_profit_sol", report.NetProfitSol).
		Msg("Performance report generated")

	return report, nil
}

// buildReport derives every KPI from a window of records. Records in the
// slice are assumed oldest-first, as GetRecordsSince returns them; the
// drawdown path depends on that order.
func buildReport(records []domain.TransactionRecord, windowHours float64) domain.PerformanceReport {
	report := domain.PerformanceReport{
		ID:                   uuid.NewString(),
		Timestamp:            time.Now().UnixMilli(),
		TimeWindowHours:      windowHours,
		TotalTradesEvaluated: len(records),
	}

	var (
		profits, losses       int
		sumProfit, sumLoss    float64
		cumulative, peak      float64
		maxDrawdownPct        float64
		closedProfitAndLosses int
	)

	for _, rec := range records {
		var pnl float64
		switch rec.ActualOutcome.Kind {
		case domain.OutcomeProfit:
			profits++
			sumProfit += rec.ActualOutcome.Amount
			pnl = rec.ActualOutcome.Amount
		case domain.OutcomeLoss:
			losses++
			sumLoss += math.Abs(rec.ActualOutcome.Amount)
			pnl = -math.Abs(rec.ActualOutcome.Amount)
		default:
			continue
		}
		closedProfitAndLosses++

		// Peak-to-trough on the cumulative P&L curve, in decision order.
		cumulative += pnl
		if cumulative > peak {
			peak = cumulative
		}
		if peak > 0 {
			if dd := (peak - cumulative) / peak * 100.0; dd > maxDrawdownPct {
				maxDrawdownPct = dd
			}
		}
	}

	if closedProfitAndLosses == 0 {
		return report
	}

	report.WinRatePercent = float64(profits) / float64(closedProfitAndLosses) * 100.0
	report.NetProfitSol = sumProfit - sumLoss
	report.MaxDrawdownPercent = maxDrawdownPct

	if sumLoss > 0 {
		report.ProfitFactor = sumProfit / sumLoss
	} else if sumProfit > 0 {
		report.ProfitFactor = math.Inf(1)
	}

	if profits > 0 {
		report.AverageProfitSol = sumProfit / float64(profits)
	}
	if losses > 0 {
		report.AverageLossSol = sumLoss / float64(losses)
	}

	return report
}

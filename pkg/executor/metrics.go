// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce     sync.Once
	actionCounter   metric.Int64Counter
	actionLatencyMs metric.Float64Histogram
	approvalCounter metric.Int64Counter
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter("helicon/executor")
		actionCounter, _ = meter.Int64Counter("helicon.executor.action.count")
		actionLatencyMs, _ = meter.Float64Histogram("helicon.executor.action.latency_ms")
		approvalCounter, _ = meter.Int64Counter("helicon.executor.approval.count")
	})
}

func recordAction(ctx context.Context, result ActionResult) {
	initMetrics()
	attrs := metric.WithAttributes(
		attribute.String("target", result.Target),
		attribute.String("kind", string(result.Metadata.Kind)),
		attribute.Bool("success", result.Success),
	)
	if actionCounter != nil {
		actionCounter.Add(ctx, 1, attrs)
	}
	if actionLatencyMs != nil {
		actionLatencyMs.Record(ctx, float64(result.Duration)/float64(time.Millisecond), attrs)
	}
}

func recordApproval(ctx context.Context, target, outcome string) {
	initMetrics()
	if approvalCounter == nil {
		return
	}
	approvalCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target", target),
		attribute.String("outcome", outcome),
	))
}

// ABOUTME: SSTable telemetry metrics interface and implementation for tracking block and lookup activity
// ABOUTME: Provides instrumentation for block flushes, block reads, lookups, and corruption detection

package sstable

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/KevoDB/blockpack/pkg/telemetry"
)

// SSTableMetrics defines the interface for SSTable telemetry operations.
// All metrics are optional - implementations can safely be no-op.
type SSTableMetrics interface {
	telemetry.ComponentMetrics

	// RecordBlockFlush records a data block written by a Writer.
	RecordBlockFlush(ctx context.Context, entries int, bytes int, tableID string)

	// RecordBlockRead records a data block loaded by a Reader.
	RecordBlockRead(ctx context.Context, duration time.Duration, bytes int, tableID string)

	// RecordGet records a point lookup and whether it found the key.
	RecordGet(ctx context.Context, duration time.Duration, found bool, tableID string)

	// RecordCorruption records when a malformed file or block is detected.
	RecordCorruption(ctx context.Context, reason string, tableID string)

	// StartSpan starts a span covering one SSTable operation.
	StartSpan(ctx context.Context, opType string, tableID string) (context.Context, func())
}

// sstableMetrics implements SSTableMetrics using the telemetry interface.
type sstableMetrics struct {
	tel telemetry.Telemetry
}

// NewSSTableMetrics creates a new SSTable metrics implementation.
// If tel is nil, returns a no-op implementation.
func NewSSTableMetrics(tel telemetry.Telemetry) SSTableMetrics {
	if tel == nil {
		return &noopSSTableMetrics{}
	}
	return &sstableMetrics{tel: tel}
}

func (m *sstableMetrics) RecordBlockFlush(ctx context.Context, entries int, bytes int, tableID string) {
	m.tel.RecordCounter(ctx, "blockpack.sstable.blocks.written", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
		attribute.String(telemetry.AttrTableID, tableID),
	)
	m.tel.RecordCounter(ctx, "blockpack.sstable.entries.written", int64(entries),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
		attribute.String(telemetry.AttrTableID, tableID),
	)
	telemetry.RecordBytes(ctx, m.tel, "blockpack.sstable.bytes.written", int64(bytes),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
		attribute.String(telemetry.AttrTableID, tableID),
	)
	m.tel.RecordHistogram(ctx, "blockpack.sstable.block.size", float64(bytes),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
	)
}

func (m *sstableMetrics) RecordBlockRead(ctx context.Context, duration time.Duration, bytes int, tableID string) {
	m.tel.RecordHistogram(ctx, "blockpack.sstable.block.read.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
		attribute.String(telemetry.AttrTableID, tableID),
	)
	m.tel.RecordCounter(ctx, "blockpack.sstable.blocks.read", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
		attribute.String(telemetry.AttrTableID, tableID),
	)
	telemetry.RecordBytes(ctx, m.tel, "blockpack.sstable.bytes.read", int64(bytes),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
		attribute.String(telemetry.AttrTableID, tableID),
	)
}

func (m *sstableMetrics) RecordGet(ctx context.Context, duration time.Duration, found bool, tableID string) {
	status := telemetry.StatusSuccess
	if !found {
		status = telemetry.StatusMiss
	}
	m.tel.RecordHistogram(ctx, "blockpack.sstable.get.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
		attribute.String(telemetry.AttrStatus, status),
	)
	m.tel.RecordCounter(ctx, "blockpack.sstable.get.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
		attribute.String(telemetry.AttrTableID, tableID),
		attribute.String(telemetry.AttrStatus, status),
	)
}

func (m *sstableMetrics) RecordCorruption(ctx context.Context, reason string, tableID string) {
	m.tel.RecordCounter(ctx, "blockpack.sstable.corruption.count", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
		attribute.String(telemetry.AttrErrorType, reason),
		attribute.String(telemetry.AttrTableID, tableID),
	)
}

func (m *sstableMetrics) StartSpan(ctx context.Context, opType string, tableID string) (context.Context, func()) {
	ctx, span := m.tel.StartSpan(ctx, "sstable."+opType,
		attribute.String(telemetry.AttrOperationType, opType),
		attribute.String(telemetry.AttrTableID, tableID),
	)
	return ctx, func() { span.End() }
}

// Close releases any resources held by the metrics implementation.
func (m *sstableMetrics) Close() error {
	return nil
}

// noopSSTableMetrics provides a no-operation implementation for disabled telemetry.
type noopSSTableMetrics struct{}

func (n *noopSSTableMetrics) RecordBlockFlush(context.Context, int, int, string) {}

func (n *noopSSTableMetrics) RecordBlockRead(context.Context, time.Duration, int, string) {}

func (n *noopSSTableMetrics) RecordGet(context.Context, time.Duration, bool, string) {}

func (n *noopSSTableMetrics) RecordCorruption(context.Context, string, string) {}

func (n *noopSSTableMetrics) StartSpan(ctx context.Context, _ string, _ string) (context.Context, func()) {
	return ctx, func() {}
}

// Close is a no-op.
func (n *noopSSTableMetrics) Close() error {
	return nil
}

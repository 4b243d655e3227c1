package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_TrackOperation(t *testing.T) {
	collector := NewAtomicCollector()

	collector.TrackOperation(OpBlockRead)
	collector.TrackOperation(OpBlockRead)
	collector.TrackOperation(OpGet)

	stats := collector.GetStats()
	assert.Equal(t, uint64(2), stats["block_read_ops"])
	assert.Equal(t, uint64(1), stats["get_ops"])
	assert.Contains(t, stats, "last_block_read_time")
	assert.Contains(t, stats, "last_get_time")
}

func TestCollector_TrackOperationWithLatency(t *testing.T) {
	collector := NewAtomicCollector()

	collector.TrackOperationWithLatency(OpGet, 200)
	collector.TrackOperationWithLatency(OpGet, 100)
	collector.TrackOperationWithLatency(OpGet, 300)

	stats := collector.GetStats()
	latencyStats, ok := stats["get_latency"].(map[string]interface{})
	require.True(t, ok, "get_latency is %T", stats["get_latency"])

	assert.Equal(t, uint64(3), latencyStats["count"])
	assert.Equal(t, uint64(200), latencyStats["avg_ns"])
	assert.Equal(t, uint64(100), latencyStats["min_ns"])
	assert.Equal(t, uint64(300), latencyStats["max_ns"])
	assert.Equal(t, uint64(3), stats["get_ops"])
}

func TestCollector_TrackErrorsAndBytes(t *testing.T) {
	collector := NewAtomicCollector()

	collector.TrackError(ErrTypeCorruption)
	collector.TrackError(ErrTypeCorruption)
	collector.TrackError(ErrTypeIO)
	collector.TrackBytes(true, 1000)
	collector.TrackBytes(false, 500)
	collector.TrackBytes(false, 250)

	stats := collector.GetStats()
	errors := stats["errors"].(map[string]uint64)
	assert.Equal(t, uint64(2), errors[ErrTypeCorruption])
	assert.Equal(t, uint64(1), errors[ErrTypeIO])
	assert.Equal(t, uint64(1000), stats["total_bytes_written"])
	assert.Equal(t, uint64(750), stats["total_bytes_read"])
}

func TestCollector_TrackBlock(t *testing.T) {
	collector := NewAtomicCollector()
	assert.Equal(t, uint64(0), collector.GetStats()["block_count"])
	assert.NotContains(t, collector.GetStats(), "block_avg_bytes")

	collector.TrackBlock(10, 4000)
	collector.TrackBlock(20, 4090)

	stats := collector.GetStats()
	assert.Equal(t, uint64(2), stats["block_count"])
	assert.Equal(t, uint64(15), stats["block_avg_entries"])
	assert.Equal(t, uint64(4045), stats["block_avg_bytes"])
}

func TestCollector_GetStatsFiltered(t *testing.T) {
	collector := NewAtomicCollector()
	collector.TrackOperation(OpBlockFlush)
	collector.TrackBlock(1, 10)
	collector.TrackOperation(OpGet)

	filtered := collector.GetStatsFiltered("block")
	assert.Contains(t, filtered, "block_flush_ops")
	assert.Contains(t, filtered, "block_count")
	assert.NotContains(t, filtered, "get_ops")
	assert.NotContains(t, filtered, "total_bytes_read")
}

func TestCollector_Concurrent(t *testing.T) {
	collector := NewAtomicCollector()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				collector.TrackOperationWithLatency(OpGet, uint64(i+1))
				collector.TrackError(ErrTypeIO)
				collector.TrackBytes(false, 1)
			}
		}()
	}
	wg.Wait()

	stats := collector.GetStats()
	assert.Equal(t, uint64(1000), stats["get_ops"])
	assert.Equal(t, uint64(1000), stats["errors"].(map[string]uint64)[ErrTypeIO])
	assert.Equal(t, uint64(1000), stats["total_bytes_read"])

	latencyStats := stats["get_latency"].(map[string]interface{})
	assert.Equal(t, uint64(1), latencyStats["min_ns"])
	assert.Equal(t, uint64(100), latencyStats["max_ns"])
}

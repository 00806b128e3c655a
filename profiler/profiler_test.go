package profiler

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDuration(t *testing.T) {
	p := New()
	p.RecordDuration("match", 3*time.Millisecond)
	p.RecordDuration("match", time.Millisecond)
	p.RecordDuration("match", 2*time.Millisecond)

	stage, ok := p.Stage("match")
	require.True(t, ok)
	assert.Equal(t, int64(3), stage.Count)
	assert.Equal(t, time.Millisecond, stage.MinTime)
	assert.Equal(t, 3*time.Millisecond, stage.MaxTime)
	assert.Equal(t, 2*time.Millisecond, stage.Mean())

	_, ok = p.Stage("reduce")
	assert.False(t, ok)
}

func TestStartOperation(t *testing.T) {
	p := New()
	done := p.StartOperation("load")
	time.Sleep(time.Millisecond)
	done()

	stage, ok := p.Stage("load")
	require.True(t, ok)
	assert.Equal(t, int64(1), stage.Count)
	assert.GreaterOrEqual(t, stage.TotalTime, time.Millisecond)
}

func TestRecordMetricConcurrent(t *testing.T) {
	p := New()

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.RecordMetric("loss_bbox", float64(i))
		}()
	}
	wg.Wait()

	m, ok := p.Metric("loss_bbox")
	require.True(t, ok)
	assert.Equal(t, int64(10), m.Count)
	assert.Equal(t, 1.0, m.Min)
	assert.Equal(t, 10.0, m.Max)
	assert.InDelta(t, 5.5, m.Mean(), 1e-12)
}

func TestReport(t *testing.T) {
	p := New()
	p.RecordDuration("load", time.Millisecond)
	p.RecordDuration("forward", 2*time.Millisecond)
	p.RecordMetric("loss_giou", 0.25)
	p.RecordMetric("loss_ce", 0.5)

	var buf bytes.Buffer
	p.Report(&buf)
	out := buf.String()

	assert.Contains(t, out, "STAGE TIMINGS")
	assert.Less(t, strings.Index(out, "load:"), strings.Index(out, "forward:"))
	assert.Less(t, strings.Index(out, "loss_ce:"), strings.Index(out, "loss_giou:"))
	assert.Contains(t, out, "Heap Alloc")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2<<20))
}

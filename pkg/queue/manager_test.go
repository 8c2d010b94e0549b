package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/jainyogya07/monolith/pkg/model"
)

func newTestManager(opts ...Option) *Manager {
	return NewManager(Config{
		SampleInterval: 50 * time.Millisecond,
		DrainInterval:  time.Millisecond,
		HeavyDuration:  2 * time.Millisecond,
		CostUnit:       0,
	}, zap.NewNop(), opts...)
}

func TestObserveLagSmoothing(t *testing.T) {
	m := newTestManager()

	m.observeLag(150 * time.Millisecond)
	assert.InDelta(t, 10, m.RawLag(), 1e-9)
	assert.InDelta(t, 10, m.AutoLoad(), 1e-9)

	// On-time fire contributes zero lag.
	m.observeLag(50 * time.Millisecond)
	assert.InDelta(t, 9, m.RawLag(), 1e-9)

	// Early fire is not negative lag.
	m.observeLag(10 * time.Millisecond)
	assert.InDelta(t, 8.1, m.RawLag(), 1e-9)
}

func TestAutoLoadSaturates(t *testing.T) {
	m := newTestManager()
	for i := 0; i < 200; i++ {
		m.observeLag(time.Second)
	}
	assert.Greater(t, m.RawLag(), 100.0)
	assert.Equal(t, 100.0, m.AutoLoad())
	assert.Equal(t, 100.0, m.EffectiveLoad())
}

func TestManualLoadOverride(t *testing.T) {
	m := newTestManager()
	assert.Equal(t, 0.0, m.EffectiveLoad())

	m.SetManualLoad(80)
	assert.Equal(t, 80.0, m.EffectiveLoad())

	m.observeLag(150 * time.Millisecond) // auto load 10
	assert.Equal(t, 80.0, m.EffectiveLoad(), "override wins when higher")

	m.SetManualLoad(0)
	assert.InDelta(t, 10, m.EffectiveLoad(), 1e-9, "auto load wins when higher")

	m.SetManualLoad(250)
	assert.Equal(t, 100.0, m.ManualLoad())
	m.SetManualLoad(-3)
	assert.Equal(t, 0.0, m.ManualLoad())
}

func TestDrainOnceProcessesHighestPriorityFirst(t *testing.T) {
	var processed []string
	m := newTestManager(WithProcessedHook(func(e model.QueuedEntry, _, _ time.Duration) {
		processed = append(processed, e.Task.Source)
	}))

	m.Enqueue(entry("background", 8))
	m.Enqueue(entry("critical", 91))
	m.Enqueue(entry("standard", 52))

	ctx := context.Background()
	for m.DrainOnce(ctx) {
	}

	assert.Equal(t, []string{"critical", "standard", "background"}, processed)
	assert.Equal(t, 0, m.Len())
	assert.False(t, m.DrainOnce(ctx))
}

func TestHeavyTaskBlocksForConfiguredDuration(t *testing.T) {
	var took time.Duration
	m := NewManager(Config{HeavyDuration: 15 * time.Millisecond}, zap.NewNop(),
		WithProcessedHook(func(_ model.QueuedEntry, _, d time.Duration) { took = d }),
	)

	heavy := entry("heavy", 10)
	heavy.Task.Payload = model.Payload{Heavy: true}
	m.Enqueue(heavy)

	require.True(t, m.DrainOnce(context.Background()))
	assert.GreaterOrEqual(t, took, 15*time.Millisecond)
}

func TestLightTaskWaitsProportionalToCost(t *testing.T) {
	var took time.Duration
	m := NewManager(Config{CostUnit: time.Millisecond}, zap.NewNop(),
		WithProcessedHook(func(_ model.QueuedEntry, _, d time.Duration) { took = d }),
	)

	light := entry("light", 50)
	light.Score.EstimatedCost = 12
	m.Enqueue(light)

	require.True(t, m.DrainOnce(context.Background()))
	assert.GreaterOrEqual(t, took, 12*time.Millisecond)
}

func TestSnapshot(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := newTestManager(WithClock(func() time.Time { return fixed }))
	m.Enqueue(entry("a", 1))
	m.SetManualLoad(42)

	snap := m.Snapshot()
	assert.Equal(t, 1, snap.QueueLength)
	assert.Equal(t, 42.0, snap.SystemLoad)
	assert.Equal(t, 0.0, snap.RawLag)
	assert.Equal(t, fixed.UnixMilli(), snap.Timestamp)
}

func TestStarveIsBounded(t *testing.T) {
	m := newTestManager()
	assert.Equal(t, time.Duration(0), m.Starve(-time.Second))

	start := time.Now()
	assert.Equal(t, 5*time.Millisecond, m.Starve(5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestStarveOnOneGoroutineDoesNotSaturateAutoLoad(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewManager(Config{SampleInterval: 5 * time.Millisecond, DrainInterval: time.Millisecond}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	m.Starve(100 * time.Millisecond)

	// The sampler is preempted in, not frozen out, so the smoothed lag stays
	// far from the 100 ms that maps to full load.
	assert.Less(t, m.AutoLoad(), maxLoad)
	assert.Equal(t, 0.0, m.ManualLoad())

	m.SetManualLoad(100)
	assert.Equal(t, 100.0, m.EffectiveLoad())

	cancel()
	require.NoError(t, <-done)
}

func TestRunDrainsBacklogAndStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newTestManager()
	for i := 0; i < 20; i++ {
		m.Enqueue(entry("job", float64(i)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	assert.Eventually(t, func() bool { return m.Len() == 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentEnqueueKeepsInvariant(t *testing.T) {
	m := newTestManager()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.Enqueue(entry("w", float64((w*31+i*7)%100)))
			}
		}(w)
	}
	wg.Wait()

	entries := m.Entries()
	require.Len(t, entries, 800)
	for i := 1; i < len(entries); i++ {
		require.GreaterOrEqual(t, entries[i-1].Score.Priority, entries[i].Score.Priority)
	}
}

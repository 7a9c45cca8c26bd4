package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Ullaakut/nmap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/scanfinder/internal/metrics"
	"github.com/anstrom/scanfinder/internal/scanning"
	"github.com/anstrom/scanfinder/internal/scanning/mocks"
	"github.com/anstrom/scanfinder/internal/scanning/scantest"
)

// recordingProgress captures progress events for assertions.
type recordingProgress struct {
	mu       sync.Mutex
	total    int
	mode     scanning.Mode
	advanced []scanning.Outcome
	started  int
	finished int
}

func (r *recordingProgress) Start(total int, mode scanning.Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	r.total = total
	r.mode = mode
}

func (r *recordingProgress) Advance(outcome scanning.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advanced = append(r.advanced, outcome)
}

func (r *recordingProgress) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
}

func addresses(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("10.0.%d.%d", i/250, i%250+1)
	}
	return out
}

func upEngine(addrs []string, mode scanning.Mode, delay time.Duration) *scantest.Engine {
	engine := scantest.NewEngine()
	for _, a := range addrs {
		engine.Respond(mode, a, scantest.Response{Run: scantest.Run(scantest.Up(a)), Delay: delay})
	}
	return engine
}

func sortedAddresses(outcomes []scanning.Outcome) []string {
	out := make([]string, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Address
	}
	sort.Strings(out)
	return out
}

func TestPoolSize(t *testing.T) {
	tests := []struct {
		workers, n, want int
	}{
		{10, 3, 3},
		{1, 5, 1},
		{0, 5, 1},
		{-4, 5, 1},
		{4, 4, 4},
		{4, 9, 4},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("w=%d n=%d", tt.workers, tt.n), func(t *testing.T) {
			assert.Equal(t, tt.want, PoolSize(tt.workers, tt.n))
		})
	}
}

func TestRunBatch_OneOutcomePerAddress(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		workers int
	}{
		{"single worker", 7, 1},
		{"more workers than targets", 3, 10},
		{"zero workers treated as one", 4, 0},
		{"wide batch", 120, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addrs := addresses(tt.n)
			engine := upEngine(addrs, scanning.ModeDiscovery, 0)

			batch := New(engine).RunBatch(context.Background(), addrs, tt.workers, scanning.ModeDiscovery)

			require.Equal(t, tt.n, batch.Len())
			assert.Len(t, engine.Calls(), tt.n)
			assert.Equal(t, sortedAddresses(batch.Outcomes), sortedAddresses(batch.InInputOrder()))

			want := append([]string(nil), addrs...)
			sort.Strings(want)
			assert.Equal(t, want, sortedAddresses(batch.Outcomes))
			assert.LessOrEqual(t, engine.MaxConcurrent(), PoolSize(tt.workers, tt.n))
		})
	}
}

func TestRunBatch_EmptyInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	engine.EXPECT().Scan(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	progress := &recordingProgress{}

	batch := New(engine, WithProgress(progress)).RunBatch(context.Background(), nil, 10, scanning.ModeDiscovery)

	assert.Zero(t, batch.Len())
	assert.NotEmpty(t, batch.ID)
	assert.Zero(t, progress.started, "no progress for an empty batch")
}

// Three targets: one reachable, one timing out, one the engine never reports.
func TestRunBatch_MixedOutcomes(t *testing.T) {
	engine := scantest.NewEngine().
		Respond(scanning.ModeDiscovery, "10.0.0.1", scantest.Response{Run: scantest.Run(scantest.Up("10.0.0.1"))}).
		Respond(scanning.ModeDiscovery, "10.0.0.2", scantest.Response{Err: nmap.ErrScanTimeout}).
		Respond(scanning.ModeDiscovery, "10.0.0.3", scantest.Response{Run: scantest.Run()})
	progress := &recordingProgress{}

	batch := New(engine, WithProgress(progress)).
		RunBatch(context.Background(), []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, 10, scanning.ModeDiscovery)

	require.Equal(t, 3, batch.Len())
	ordered := batch.InInputOrder()

	assert.True(t, ordered[0].Success)
	assert.Equal(t, "Host: 10.0.0.1\nState: up", ordered[0].Detail)
	assert.False(t, ordered[1].Success)
	assert.Equal(t, scanning.DetailTimeout, ordered[1].Detail)
	assert.False(t, ordered[2].Success)
	assert.Equal(t, scanning.DetailNotFound, ordered[2].Detail)

	assert.Equal(t, 1, batch.SuccessCount())
	successful := batch.Successful()
	require.Len(t, successful, 1)
	assert.Equal(t, "10.0.0.1", successful[0].Address)

	assert.Equal(t, 1, progress.started)
	assert.Equal(t, 3, progress.total)
	assert.Equal(t, scanning.ModeDiscovery, progress.mode)
	assert.Len(t, progress.advanced, 3)
	assert.Equal(t, 1, progress.finished)
}

func TestRunBatch_ToleratesPanickingEngine(t *testing.T) {
	engine := scantest.NewEngine().
		Respond(scanning.ModePortScan, "10.0.0.1", scantest.Response{Panic: "engine crashed"}).
		Respond(scanning.ModePortScan, "10.0.0.2", scantest.Response{Run: scantest.Run(
			scantest.WithPorts(scantest.Up("10.0.0.2"), scantest.Port(22, "tcp", "open", "ssh")))})

	batch := New(engine).RunBatch(context.Background(), []string{"10.0.0.1", "10.0.0.2"}, 2, scanning.ModePortScan)

	require.Equal(t, 2, batch.Len())
	ordered := batch.InInputOrder()
	assert.Equal(t, "Error: engine crashed", ordered[0].Detail)
	assert.True(t, ordered[1].Success)
}

func TestRunBatch_Idempotent(t *testing.T) {
	addrs := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"}
	engine := scantest.NewEngine().
		Respond(scanning.ModeDiscovery, "10.0.0.1", scantest.Response{Run: scantest.Run(scantest.Up("10.0.0.1"))}).
		Respond(scanning.ModeDiscovery, "10.0.0.2", scantest.Response{Run: scantest.Run(scantest.Down("10.0.0.2"))}).
		Respond(scanning.ModeDiscovery, "10.0.0.3", scantest.Response{Run: scantest.Run(scantest.Up("10.0.0.3")), Delay: 5 * time.Millisecond})
	o := New(engine)

	summarize := func(b Batch) map[string]bool {
		out := make(map[string]bool)
		for _, oc := range b.Outcomes {
			out[oc.Address] = oc.Success
		}
		return out
	}

	first := o.RunBatch(context.Background(), addrs, 3, scanning.ModeDiscovery)
	second := o.RunBatch(context.Background(), addrs, 1, scanning.ModeDiscovery)

	assert.Equal(t, summarize(first), summarize(second))
	assert.Equal(t, first.SuccessCount(), second.SuccessCount())
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRunBatch_DuplicatesScannedPerOccurrence(t *testing.T) {
	addrs := []string{"10.0.0.1", "10.0.0.1", "10.0.0.1"}
	engine := upEngine(addrs[:1], scanning.ModeDiscovery, 0)

	batch := New(engine).RunBatch(context.Background(), addrs, 2, scanning.ModeDiscovery)

	assert.Equal(t, 3, batch.Len())
	assert.Equal(t, 3, engine.CallCount(scanning.ModeDiscovery))
	seqs := []int{}
	for _, o := range batch.InInputOrder() {
		seqs = append(seqs, o.Seq)
	}
	assert.Equal(t, []int{0, 1, 2}, seqs)
}

func TestRunBatch_CompletionOrder(t *testing.T) {
	engine := scantest.NewEngine().
		Respond(scanning.ModeDiscovery, "10.0.0.1", scantest.Response{Run: scantest.Run(scantest.Up("10.0.0.1")), Delay: 200 * time.Millisecond}).
		Respond(scanning.ModeDiscovery, "10.0.0.2", scantest.Response{Run: scantest.Run(scantest.Up("10.0.0.2"))})

	batch := New(engine).RunBatch(context.Background(), []string{"10.0.0.1", "10.0.0.2"}, 2, scanning.ModeDiscovery)

	require.Equal(t, 2, batch.Len())
	assert.Equal(t, "10.0.0.2", batch.Outcomes[0].Address, "fast probe is collected first")
	assert.Equal(t, "10.0.0.1", batch.InInputOrder()[0].Address)
}

func TestRunBatch_Cancellation(t *testing.T) {
	addrs := addresses(20)
	engine := upEngine(addrs, scanning.ModeDiscovery, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	batch := New(engine).RunBatch(ctx, addrs, 2, scanning.ModeDiscovery)

	require.Equal(t, len(addrs), batch.Len())
	assert.Less(t, len(engine.Calls()), len(addrs), "pending probes must not reach the engine")

	canceled := 0
	for _, o := range batch.Outcomes {
		if o.Detail == "Error: context canceled" {
			canceled++
		}
	}
	assert.Greater(t, canceled, 0)
}

func TestRunBatch_ReleasesProbeContext(t *testing.T) {
	var mu sync.Mutex
	var seen []context.Context
	engine := scanning.EngineFunc(func(ctx context.Context, address string, _ scanning.Mode) (*nmap.Run, error) {
		mu.Lock()
		seen = append(seen, ctx)
		mu.Unlock()
		return scantest.Run(scantest.Up(address)), nil
	})

	parent, cancel := context.WithCancel(context.Background())
	defer cancel()

	batch := New(engine).RunBatch(parent, addresses(3), 2, scanning.ModeDiscovery)
	require.Equal(t, 3, batch.Len())
	require.NoError(t, parent.Err())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	for _, ctx := range seen {
		assert.ErrorIs(t, ctx.Err(), context.Canceled, "probe context must be released when the batch returns")
	}
}

func TestRunBatch_AlreadyCanceled(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	engine.EXPECT().Scan(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := New(engine).RunBatch(ctx, addresses(5), 3, scanning.ModePortScan)

	require.Equal(t, 5, batch.Len())
	for _, o := range batch.Outcomes {
		assert.False(t, o.Success)
		assert.Equal(t, scanning.FailureError, o.Failure)
	}
}

func TestRunBatch_RecordsMetrics(t *testing.T) {
	pm := metrics.NewPrometheusMetrics()
	engine := scantest.NewEngine().
		Respond(scanning.ModeDiscovery, "10.0.0.1", scantest.Response{Run: scantest.Run(scantest.Up("10.0.0.1"))}).
		Respond(scanning.ModeDiscovery, "10.0.0.2", scantest.Response{Err: nmap.ErrScanTimeout})

	New(engine, WithRecorder(pm)).
		RunBatch(context.Background(), []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, 3, scanning.ModeDiscovery)

	families, err := pm.GetRegistry().Gather()
	require.NoError(t, err)

	counts := make(map[string]float64)
	for _, f := range families {
		if f.GetName() != "scanfinder_probe_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" {
					counts[l.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, map[string]float64{"success": 1, "timeout": 1, "not_found": 1}, counts)
}

func TestRunBatch_RateLimit(t *testing.T) {
	addrs := addresses(4)
	engine := upEngine(addrs, scanning.ModeDiscovery, 0)

	start := time.Now()
	batch := New(engine, WithRateLimit(20)).RunBatch(context.Background(), addrs, 1, scanning.ModeDiscovery)

	assert.Equal(t, 4, batch.Len())
	// Burst equals the pool size (1), so four starts need three 50ms intervals.
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}

// lockedBuffer is a bytes.Buffer safe for concurrent writers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestConsoleProgress(t *testing.T) {
	var buf lockedBuffer
	p := NewConsoleProgress(&buf)

	p.Start(2, scanning.ModeDiscovery)
	p.Advance(scanning.Outcome{Address: "10.0.0.1", Success: true})
	p.Advance(scanning.Outcome{Address: "10.0.0.2"})
	p.Finish()

	out := buf.String()
	assert.Contains(t, out, "✓ 10.0.0.1 - Scannable")
	assert.NotContains(t, out, "✓ 10.0.0.2")
	assert.NotContains(t, out, "SUCCESS", "success lines carry only the check mark")
}

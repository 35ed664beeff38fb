package receipts

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"posledger/internal/core/receipt"
)

// Mock objects
type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

type mockQuerier struct {
	mu sync.Mutex
	// vals simulates one sequence row per key
	vals  map[string]int64
	calls int
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{vals: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	key, _ := args[0].(string)
	var increment int64 = 1
	if len(args) == 2 {
		if val, ok := args[1].(int64); ok {
			increment = val
		}
	}

	m.vals[key] += increment
	return &mockRow{val: m.vals[key]}
}

func (m *mockQuerier) value(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vals[key]
}

func TestGetNextNumber_Strict(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	cfg := receipt.DefaultConfig(receipt.PrefixSale)

	period := time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)

	num, err := svc.GetNextNumber(ctx, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "RCP-20260901-0001" {
		t.Errorf("expected RCP-20260901-0001, got %s", num)
	}

	num, err = svc.GetNextNumber(ctx, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "RCP-20260901-0002" {
		t.Errorf("expected RCP-20260901-0002, got %s", num)
	}
}

func TestGetNextNumber_DailyReset(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	cfg := receipt.DefaultConfig(receipt.PrefixSale)

	day1 := time.Date(2026, 9, 1, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 9, 2, 0, 1, 0, 0, time.UTC)

	num, err := svc.GetNextNumber(ctx, cfg, nil, day1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "RCP-20260901-0001" {
		t.Errorf("expected RCP-20260901-0001, got %s", num)
	}

	// New day starts a fresh sequence
	num, err = svc.GetNextNumber(ctx, cfg, nil, day2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "RCP-20260902-0001" {
		t.Errorf("expected RCP-20260902-0001, got %s", num)
	}
}

func TestGetNextNumber_PrefixesAreIndependent(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	period := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	saleCfg := receipt.DefaultConfig(receipt.PrefixSale)
	refundCfg := receipt.DefaultConfig(receipt.PrefixRefund)

	for i := 0; i < 3; i++ {
		if _, err := svc.GetNextNumber(ctx, saleCfg, nil, period); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	num, err := svc.GetNextNumber(ctx, refundCfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "REF-20260901-0001" {
		t.Errorf("expected REF-20260901-0001, got %s", num)
	}
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	cfg := receipt.DefaultConfig("HLD")
	period := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	opts := &receipt.Options{
		Strategy:  receipt.StrategyCached,
		RangeSize: 10,
	}

	num, err := svc.GetNextNumber(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "HLD-20260901-0001" {
		t.Errorf("expected HLD-20260901-0001, got %s", num)
	}

	// One range of 10 reserved in DB
	if got := q.value("HLD_20260901"); got != 10 {
		t.Errorf("expected DB value to be 10, got %d", got)
	}

	// Second call served from memory, DB unchanged
	num, err = svc.GetNextNumber(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "HLD-20260901-0002" {
		t.Errorf("expected HLD-20260901-0002, got %s", num)
	}
	if got := q.value("HLD_20260901"); got != 10 {
		t.Errorf("expected DB value to stay 10, got %d", got)
	}

	// Exhaust the range, next call reserves a new one
	for i := 0; i < 8; i++ {
		_, _ = svc.GetNextNumber(ctx, cfg, opts, period)
	}

	num, err = svc.GetNextNumber(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "HLD-20260901-0011" {
		t.Errorf("expected HLD-20260901-0011, got %s", num)
	}
	if got := q.value("HLD_20260901"); got != 20 {
		t.Errorf("expected DB value to be 20, got %d", got)
	}
}

func TestGetNextNumber_ConcurrentUnique(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	cfg := receipt.DefaultConfig(receipt.PrefixSale)
	period := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	const workers = 20
	const perWorker = 10

	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				num, err := svc.GetNextNumber(ctx, cfg, nil, period)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				mu.Lock()
				if seen[num] {
					t.Errorf("duplicate receipt number: %s", num)
				}
				seen[num] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("expected %d unique numbers, got %d", workers*perWorker, len(seen))
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"RCP-20260901-0042", 42},
		{"REF-20260901-0001", 1},
		{"HLD-0007", 7},
		{"garbage", -1},
		{"RCP-", -1},
		{"RCP-20260901-x1", -1},
	}

	for _, tt := range tests {
		if got := ParseNumber(tt.in); got != tt.want {
			t.Errorf("ParseNumber(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNewWithProvider(t *testing.T) {
	q := newMockQuerier()
	svc := NewWithProvider(func(ctx context.Context) Querier { return q })
	ctx := context.Background()
	cfg := receipt.DefaultConfig(receipt.PrefixSale)
	period := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	num, err := svc.GetNextNumber(ctx, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := fmt.Sprintf("RCP-%s-0001", period.Format("20060102"))
	if num != want {
		t.Errorf("expected %s, got %s", want, num)
	}
}

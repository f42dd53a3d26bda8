package composer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []int
}

func (r *recorder) fn(v int) func() {
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, v)
	}
}

func (r *recorder) got() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.calls...)
}

func TestDebouncer_LeadingAndTrailing(t *testing.T) {
	t.Parallel()

	var rec recorder
	d := newDebouncer(200 * time.Millisecond)
	d.Do(rec.fn(1))
	assert.Equal(t, []int{1}, rec.got())

	d.Do(rec.fn(2))
	d.Do(rec.fn(3))
	assert.Equal(t, []int{1}, rec.got())

	require.Eventually(t, func() bool { return len(rec.got()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1, 3}, rec.got())
}

func TestDebouncer_SingleCallRunsOnce(t *testing.T) {
	t.Parallel()

	var rec recorder
	d := newDebouncer(10 * time.Millisecond)
	d.Do(rec.fn(1))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []int{1}, rec.got())

	// window closed: next call leads again
	d.Do(rec.fn(2))
	assert.Equal(t, []int{1, 2}, rec.got())
}

func TestDebouncer_FlushAndCancel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		op   func(d *debouncer)
		want []int
	}{
		{name: "flush_runs_pending", op: (*debouncer).Flush, want: []int{1, 2}},
		{name: "cancel_drops_pending", op: (*debouncer).Cancel, want: []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var rec recorder
			d := newDebouncer(time.Hour)
			d.Do(rec.fn(1))
			d.Do(rec.fn(2))
			tt.op(d)
			assert.Equal(t, tt.want, rec.got())

			// nothing left to run
			d.Flush()
			assert.Equal(t, tt.want, rec.got())
		})
	}
}

package job

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlora-pipeline/controlplane/internal/domain/model"
)

func lines(from, to int) []string {
	out := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, fmt.Sprintf("line-%d", i))
	}
	return out
}

func TestLogBuffer_ReadIncremental(t *testing.T) {
	b := newLogBuffer(10)
	for _, l := range lines(0, 3) {
		b.Append(l)
	}

	page := b.Read(0)
	assert.Equal(t, model.LogPage{Logs: lines(0, 3), NextOffset: 3, Total: 3}, page)

	page = b.Read(2)
	assert.Equal(t, []string{"line-2"}, page.Logs)
	assert.Equal(t, 3, page.NextOffset)
}

func TestLogBuffer_ReadIsIdempotentWithoutNewOutput(t *testing.T) {
	b := newLogBuffer(10)
	b.Append("a")
	b.Append("b")

	first := b.Read(2)
	second := b.Read(2)
	assert.Equal(t, first, second)
	assert.Empty(t, first.Logs)
	assert.NotNil(t, first.Logs)
	assert.Equal(t, 2, first.NextOffset)
}

func TestLogBuffer_EvictionAndReset(t *testing.T) {
	const capacity, extra = 2000, 37
	b := newLogBuffer(capacity)
	for _, l := range lines(0, capacity+extra) {
		b.Append(l)
	}

	base, total := b.Offsets()
	assert.Equal(t, extra, base)
	assert.Equal(t, capacity+extra, total)

	page := b.Read(0)
	assert.True(t, page.Reset)
	assert.Equal(t, extra, page.Dropped)
	assert.Equal(t, capacity+extra, page.Total)
	assert.Equal(t, capacity+extra, page.NextOffset)
	require.Len(t, page.Logs, capacity)
	assert.Equal(t, "line-37", page.Logs[0])
	assert.Equal(t, fmt.Sprintf("line-%d", capacity+extra-1), page.Logs[capacity-1])

	page = b.Read(extra)
	assert.False(t, page.Reset)
	assert.Zero(t, page.Dropped)
	assert.Len(t, page.Logs, capacity)
}

func TestLogBuffer_SinceBeyondTotal(t *testing.T) {
	b := newLogBuffer(4)
	b.Append("x")

	page := b.Read(50)
	assert.Empty(t, page.Logs)
	assert.False(t, page.Reset)
	assert.Equal(t, 1, page.NextOffset)
}

func TestLogBuffer_AppendReportsEviction(t *testing.T) {
	b := newLogBuffer(2)
	assert.False(t, b.Append("a"))
	assert.False(t, b.Append("b"))
	assert.True(t, b.Append("c"))
	assert.Equal(t, []string{"b", "c"}, b.Read(0).Logs)
}

func TestLogStore_AppendSkipsEmptyAndCreatesLazily(t *testing.T) {
	var evicted []string
	s := NewLogStore(LogStoreOptions{MaxLines: 1, OnEvict: func(id string) { evicted = append(evicted, id) }})

	s.Append("j", "")
	assert.Empty(t, s.Read("j", 0).Logs)

	s.Append("j", "first")
	s.Append("j", "second")
	page := s.Read("j", 0)
	assert.Equal(t, []string{"second"}, page.Logs)
	assert.True(t, page.Reset)
	assert.Equal(t, []string{"j"}, evicted)

	s.Delete("j")
	assert.Equal(t, model.LogPage{Logs: []string{}}, s.Read("j", 0))
}

func TestLogStore_ConcurrentAppendersKeepTotals(t *testing.T) {
	s := NewLogStore(LogStoreOptions{MaxLines: 100})
	const writers, each = 8, 250

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				s.Append("job", fmt.Sprintf("%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()

	page := s.Read("job", 0)
	assert.Equal(t, writers*each, page.Total)
	assert.Len(t, page.Logs, 100)
	assert.Equal(t, writers*each-100, page.Dropped)
}

package job

import (
	"sync"

	"github.com/qlora-pipeline/controlplane/internal/domain/model"
)

// DefaultMaxLogLines bounds every job's retained output.
const DefaultMaxLogLines = 2000

// LogBuffer is a bounded FIFO of one job's output lines.
//
// base counts lines evicted from the front over the job's lifetime, so base+count is
// always the total number of lines ever appended.
type LogBuffer struct {
	mu    sync.Mutex
	ring  []string
	start int
	count int
	base  int
}

func newLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultMaxLogLines
	}
	return &LogBuffer{ring: make([]string, capacity)}
}

// Append stores line, evicting the oldest line when full. It reports whether a line was evicted.
func (b *LogBuffer) Append(line string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.ring)
	if b.count < capacity {
		b.ring[(b.start+b.count)%capacity] = line
		b.count++
		return false
	}
	b.ring[b.start] = line
	b.start = (b.start + 1) % capacity
	b.base++
	return true
}

// Read returns every retained line at or after offset since.
func (b *LogBuffer) Read(since int) model.LogPage {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := b.base + b.count
	page := model.LogPage{NextOffset: total, Total: total}

	first := since - b.base
	if since < b.base {
		page.Reset = true
		page.Dropped = b.base - since
		first = 0
	}
	if first >= b.count {
		page.Logs = []string{}
		return page
	}

	page.Logs = make([]string, 0, b.count-first)
	for i := first; i < b.count; i++ {
		page.Logs = append(page.Logs, b.ring[(b.start+i)%len(b.ring)])
	}
	return page
}

// Offsets returns the evicted line count and the total appended so far.
func (b *LogBuffer) Offsets() (base, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.base, b.base + b.count
}

// LogStore holds one LogBuffer per job. The map lock is held only to find or create
// a buffer; appends and reads lock the individual buffer.
type LogStore struct {
	mu       sync.RWMutex
	buffers  map[string]*LogBuffer
	capacity int
	notifier *Notifier
	onEvict  func(jobID string)
}

// LogStoreOptions configures a LogStore.
type LogStoreOptions struct {
	MaxLines int
	// Notifier is signalled after every append. Optional.
	Notifier *Notifier
	// OnEvict is called after a line is evicted. Optional.
	OnEvict func(jobID string)
}

// NewLogStore constructs an empty store.
func NewLogStore(opts LogStoreOptions) *LogStore {
	capacity := opts.MaxLines
	if capacity <= 0 {
		capacity = DefaultMaxLogLines
	}
	return &LogStore{
		buffers:  make(map[string]*LogBuffer),
		capacity: capacity,
		notifier: opts.Notifier,
		onEvict:  opts.OnEvict,
	}
}

// Create installs an empty buffer for jobID, replacing any previous one.
func (s *LogStore) Create(jobID string) {
	s.mu.Lock()
	s.buffers[jobID] = newLogBuffer(s.capacity)
	s.mu.Unlock()
}

// Append adds one line to jobID's buffer, creating the buffer if needed.
// Empty lines are dropped.
func (s *LogStore) Append(jobID, line string) {
	if line == "" {
		return
	}
	if s.buffer(jobID, true).Append(line) && s.onEvict != nil {
		s.onEvict(jobID)
	}
	if s.notifier != nil {
		s.notifier.Notify(jobID)
	}
}

// Read returns the page for jobID starting at since. A job without a buffer reads as empty.
func (s *LogStore) Read(jobID string, since int) model.LogPage {
	buf := s.buffer(jobID, false)
	if buf == nil {
		return model.LogPage{Logs: []string{}}
	}
	return buf.Read(since)
}

// Delete drops jobID's buffer.
func (s *LogStore) Delete(jobID string) {
	s.mu.Lock()
	delete(s.buffers, jobID)
	s.mu.Unlock()
}

func (s *LogStore) buffer(jobID string, create bool) *LogBuffer {
	s.mu.RLock()
	buf := s.buffers[jobID]
	s.mu.RUnlock()
	if buf != nil || !create {
		return buf
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if buf = s.buffers[jobID]; buf == nil {
		buf = newLogBuffer(s.capacity)
		s.buffers[jobID] = buf
	}
	return buf
}

package service

import (
	"fmt"
	"sync"
	"time"

	domainjob "github.com/qlora-pipeline/controlplane/internal/domain/job"
)

// steppingClock returns a clock that advances one second per call from start.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(time.Second)
		return now
	}
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("job-%d", n)
	}
}

func newTestRegistry(notifier *domainjob.Notifier) *domainjob.Registry {
	return domainjob.NewRegistry(domainjob.RegistryOptions{
		MaxLogLines: 100,
		Notifier:    notifier,
		Clock:       steppingClock(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)),
		NewID:       sequentialIDs(),
	})
}

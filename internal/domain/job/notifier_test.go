package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNotifier_SubscribeReceivesNotifications(t *testing.T) {
	n := NewNotifier()
	unsub, ch := n.Subscribe("job-1")
	defer unsub()

	n.Notify("job-1")
	select {
	case <-ch:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected notification to be delivered")
	}
}

func TestNotifier_CoalescesBurst(t *testing.T) {
	n := NewNotifier()
	unsub, ch := n.Subscribe("job-1")
	defer unsub()

	for i := 0; i < 10; i++ {
		n.Notify("job-1")
	}
	<-ch
	select {
	case <-ch:
		t.Fatal("burst should coalesce into one pending wakeup")
	default:
	}
}

func TestNotifier_ScopedPerJob(t *testing.T) {
	n := NewNotifier()
	unsub, ch := n.Subscribe("job-1")
	defer unsub()

	n.Notify("job-2")
	select {
	case <-ch:
		t.Fatal("unexpected notification for another job")
	default:
	}
}

func TestNotifier_UnsubscribeClosesChannel(t *testing.T) {
	n := NewNotifier()
	unsub, ch := n.Subscribe("job-1")
	n.Notify("job-1")

	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed and drained")
	assert.Zero(t, n.Subscribers("job-1"))
}

func TestNotifier_StopAll(t *testing.T) {
	n := NewNotifier()
	_, a := n.Subscribe("a")
	_, b := n.Subscribe("b")

	n.StopAll()

	_, okA := <-a
	_, okB := <-b
	assert.False(t, okA)
	assert.False(t, okB)
	assert.NotPanics(t, func() { n.Notify("a") })
}

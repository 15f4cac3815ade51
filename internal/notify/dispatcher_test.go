package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"barber_queue/internal/models"
	"barber_queue/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	endpoint string
	msg      Message
}

type fakePusher struct {
	mu       sync.Mutex
	sent     []sent
	outcomes map[string]Outcome
	delay    time.Duration

	inFlight, maxInFlight atomic.Int32
}

func (f *fakePusher) Send(_ context.Context, sub models.PushSubscription, payload []byte) (Outcome, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	var msg Message
	_ = json.Unmarshal(payload, &msg)
	f.mu.Lock()
	f.sent = append(f.sent, sent{endpoint: sub.Endpoint, msg: msg})
	f.mu.Unlock()

	switch f.outcomes[sub.Endpoint] {
	case Gone:
		return Gone, errors.New("410")
	case Transient:
		return Transient, errors.New("503")
	}
	return Delivered, nil
}

func (f *fakePusher) endpoints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.endpoint)
	}
	return out
}

func sub(user, device string) models.PushSubscription {
	return models.PushSubscription{
		Endpoint: "https://push.example.com/" + user + "/" + device,
		P256dh:   "key",
		Auth:     "auth",
		UserID:   user,
	}
}

func newStore(t *testing.T, subs ...models.PushSubscription) *storage.MemorySubscriptionStore {
	t.Helper()
	s := storage.NewMemorySubscriptionStore()
	for _, sb := range subs {
		require.NoError(t, s.Save(context.Background(), sb))
	}
	return s
}

func entry(id, user string, pos int) models.QueueEntry {
	return models.QueueEntry{ID: id, ProviderID: "p1", UserID: user, Position: pos}
}

func TestPositionChanges(t *testing.T) {
	before := []models.QueueEntry{entry("a", "A", 1), entry("c", "C", 3)}
	after := []models.QueueEntry{entry("a", "A", 1), entry("c", "C", 2)}

	changed := PositionChanges(before, after)
	require.Len(t, changed, 1)
	assert.Equal(t, "c", changed[0].ID)

	assert.Empty(t, PositionChanges(nil, after))
	assert.Empty(t, PositionChanges(before, nil))
}

func TestNotifyAfterMiddleLeave(t *testing.T) {
	store := newStore(t, sub("A", "phone"), sub("B", "phone"), sub("C", "phone"))
	pusher := &fakePusher{}
	d := NewDispatcher(store, pusher)

	// B (позиция 2) вышел: A остаётся #1, C сдвигается с #3 на #2
	before := []models.QueueEntry{entry("a", "A", 1), entry("c", "C", 3)}
	after := []models.QueueEntry{entry("a", "A", 1), entry("c", "C", 2)}

	r := d.NotifyPositionChanges(context.Background(), "p1", before, after)
	assert.Equal(t, Report{Attempted: 1, Delivered: 1}, r)

	require.Len(t, pusher.sent, 1)
	assert.Equal(t, sub("C", "phone").Endpoint, pusher.sent[0].endpoint)
	assert.Contains(t, pusher.sent[0].msg.Body, "#2")
	assert.Equal(t, "/icon.png", pusher.sent[0].msg.Icon)
}

func TestNotifyNothingForRemovedEntry(t *testing.T) {
	store := newStore(t, sub("A", "phone"))
	pusher := &fakePusher{}
	d := NewDispatcher(store, pusher)

	// единственная запись вышла: в after её нет
	r := d.NotifyPositionChanges(context.Background(), "p1", []models.QueueEntry{entry("a", "A", 1)}, nil)
	assert.Zero(t, r.Attempted)
	assert.Empty(t, pusher.sent)
}

func TestNotifyWithoutSubscriptionIsNoop(t *testing.T) {
	pusher := &fakePusher{}
	d := NewDispatcher(newStore(t), pusher)

	r := d.NotifyPositionChanges(context.Background(), "p1",
		[]models.QueueEntry{entry("c", "C", 3)}, []models.QueueEntry{entry("c", "C", 2)})
	assert.Equal(t, Report{}, r)
	assert.Empty(t, pusher.sent)
}

func TestDevicePolicy(t *testing.T) {
	before := []models.QueueEntry{entry("c", "C", 3)}
	after := []models.QueueEntry{entry("c", "C", 2)}

	t.Run("all devices", func(t *testing.T) {
		pusher := &fakePusher{}
		d := NewDispatcher(newStore(t, sub("C", "phone"), sub("C", "laptop")), pusher)
		r := d.NotifyPositionChanges(context.Background(), "p1", before, after)
		assert.Equal(t, 2, r.Delivered)
		assert.ElementsMatch(t, []string{sub("C", "phone").Endpoint, sub("C", "laptop").Endpoint}, pusher.endpoints())
	})

	t.Run("first device", func(t *testing.T) {
		pusher := &fakePusher{}
		d := NewDispatcher(newStore(t, sub("C", "phone"), sub("C", "laptop")), pusher, WithPolicy(PolicyFirstDevice))
		r := d.NotifyPositionChanges(context.Background(), "p1", before, after)
		assert.Equal(t, 1, r.Delivered)
		assert.Equal(t, []string{sub("C", "phone").Endpoint}, pusher.endpoints())
	})
}

func TestGoneRemovesOnlyThatSubscription(t *testing.T) {
	stale := sub("B", "old")
	store := newStore(t, sub("A", "phone"), stale, sub("B", "new"), sub("C", "phone"))
	pusher := &fakePusher{outcomes: map[string]Outcome{stale.Endpoint: Gone}}
	d := NewDispatcher(store, pusher)

	before := []models.QueueEntry{entry("b", "B", 3), entry("c", "C", 4)}
	after := []models.QueueEntry{entry("b", "B", 2), entry("c", "C", 3)}
	r := d.NotifyPositionChanges(context.Background(), "p1", before, after)
	assert.Equal(t, Report{Attempted: 3, Delivered: 2, Gone: 1}, r)

	all, err := store.FindAll(context.Background())
	require.NoError(t, err)
	endpoints := make([]string, 0, len(all))
	for _, s := range all {
		endpoints = append(endpoints, s.Endpoint)
	}
	assert.ElementsMatch(t, []string{sub("A", "phone").Endpoint, sub("B", "new").Endpoint, sub("C", "phone").Endpoint}, endpoints)
}

func TestTransientFailureDoesNotStopOthers(t *testing.T) {
	flaky := sub("B", "phone")
	store := newStore(t, flaky, sub("C", "phone"), sub("D", "phone"))
	pusher := &fakePusher{outcomes: map[string]Outcome{flaky.Endpoint: Transient}}
	d := NewDispatcher(store, pusher)

	before := []models.QueueEntry{entry("b", "B", 2), entry("c", "C", 3), entry("d", "D", 4)}
	after := []models.QueueEntry{entry("b", "B", 1), entry("c", "C", 2), entry("d", "D", 3)}
	r := d.NotifyPositionChanges(context.Background(), "p1", before, after)
	assert.Equal(t, Report{Attempted: 3, Delivered: 2, Failed: 1}, r)

	// подписка при временной ошибке не удаляется
	left, _ := store.FindByUser(context.Background(), "B")
	assert.Len(t, left, 1)
}

func TestBoundedConcurrency(t *testing.T) {
	var subs []models.PushSubscription
	var before, after []models.QueueEntry
	for i := 0; i < 20; i++ {
		user := string(rune('a' + i))
		subs = append(subs, sub(user, "phone"))
		before = append(before, entry(user, user, i+2))
		after = append(after, entry(user, user, i+1))
	}
	pusher := &fakePusher{delay: 5 * time.Millisecond}
	d := NewDispatcher(newStore(t, subs...), pusher, WithConcurrency(4))

	r := d.NotifyPositionChanges(context.Background(), "p1", before, after)
	assert.Equal(t, 20, r.Delivered)
	assert.LessOrEqual(t, pusher.maxInFlight.Load(), int32(4))
	assert.Greater(t, pusher.maxInFlight.Load(), int32(1), "доставка должна идти параллельно")
}

func TestNotifyAnnouncement(t *testing.T) {
	gone := sub("B", "old")
	store := newStore(t, sub("A", "phone"), gone, sub("C", "laptop"))
	pusher := &fakePusher{outcomes: map[string]Outcome{gone.Endpoint: Gone}}
	d := NewDispatcher(store, pusher)

	r := d.NotifyAnnouncement(context.Background(), Message{Title: "Мы открыты", Body: "Ждём вас"})
	assert.Equal(t, Report{Attempted: 3, Delivered: 2, Gone: 1}, r)

	for _, s := range pusher.sent {
		assert.Equal(t, "Мы открыты", s.msg.Title)
		assert.Equal(t, "/icon.png", s.msg.Icon)
	}
	all, _ := store.FindAll(context.Background())
	assert.Len(t, all, 2)
}

type brokenSubs struct{ storage.SubscriptionStore }

func (brokenSubs) FindByUser(context.Context, string) ([]models.PushSubscription, error) {
	return nil, errors.New("db down")
}

func (brokenSubs) FindAll(context.Context) ([]models.PushSubscription, error) {
	return nil, errors.New("db down")
}

func TestStoreErrorsAreSwallowed(t *testing.T) {
	pusher := &fakePusher{}
	d := NewDispatcher(brokenSubs{}, pusher)

	r := d.NotifyPositionChanges(context.Background(), "p1",
		[]models.QueueEntry{entry("c", "C", 3)}, []models.QueueEntry{entry("c", "C", 2)})
	assert.Zero(t, r.Attempted)
	assert.Zero(t, d.NotifyAnnouncement(context.Background(), Message{Title: "x"}).Attempted)
}

package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"barber_queue/internal/async"
	"barber_queue/internal/models"
	"barber_queue/internal/notify"
	"barber_queue/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu            sync.Mutex
	broadcasts    []string
	announcements []notify.Message
}

func (r *recorder) BroadcastSnapshot(_ context.Context, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, providerID)
	return nil
}

func (r *recorder) NotifyAnnouncement(_ context.Context, msg notify.Message) notify.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.announcements = append(r.announcements, msg)
	return notify.Report{}
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.broadcasts), len(r.announcements)
}

func newController(store storage.StatusStore) (*Controller, *recorder, *async.Group) {
	rec := &recorder{}
	tasks := async.NewGroup(zerolog.Nop())
	c := NewController(store, nil, rec, rec, tasks, zerolog.Nop())
	return c, rec, tasks
}

func TestToggleCycle(t *testing.T) {
	store := storage.NewMemoryStatusStore()
	c, rec, tasks := newController(store)
	ctx := context.Background()

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	state, err := c.State(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, Unset, state)

	// Unset -> Open: объявление + рассылка
	tr, err := c.Toggle(ctx, "p1")
	require.NoError(t, err)
	tasks.Wait()
	assert.Equal(t, Unset, tr.From)
	assert.Equal(t, Open, tr.To)
	assert.True(t, tr.Status.OpenedAt.Equal(clock))
	b, a := rec.counts()
	assert.Equal(t, 1, b)
	assert.Equal(t, 1, a)
	assert.Equal(t, OpenAnnouncement.Title, rec.announcements[0].Title)

	// Open -> Closed: только рассылка
	tr, err = c.Toggle(ctx, "p1")
	require.NoError(t, err)
	tasks.Wait()
	assert.Equal(t, Closed, tr.To)
	b, a = rec.counts()
	assert.Equal(t, 2, b)
	assert.Equal(t, 1, a)

	st, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, st.IsOpen)
	assert.True(t, st.OpenedAt.Equal(clock), "закрытие не трогает время открытия")

	// Closed -> Open: снова объявление, время открытия обновлено
	clock = clock.Add(2 * time.Hour)
	tr, err = c.Toggle(ctx, "p1")
	require.NoError(t, err)
	tasks.Wait()
	assert.Equal(t, Closed, tr.From)
	assert.Equal(t, Open, tr.To)
	b, a = rec.counts()
	assert.Equal(t, 3, b)
	assert.Equal(t, 2, a)

	st, err = store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, st.IsOpen)
	assert.True(t, st.OpenedAt.Equal(clock))
}

func TestToggleIsPerProvider(t *testing.T) {
	c, _, tasks := newController(storage.NewMemoryStatusStore())
	ctx := context.Background()

	_, err := c.Toggle(ctx, "p1")
	require.NoError(t, err)
	tasks.Wait()

	state, err := c.State(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, Unset, state)
}

func TestConcurrentTogglesAdvanceOneStepEach(t *testing.T) {
	c, rec, tasks := newController(storage.NewMemoryStatusStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Toggle(ctx, "p1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	tasks.Wait()

	// Unset->Open->Closed->Open->Closed->Open
	state, err := c.State(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, Open, state)
	b, a := rec.counts()
	assert.Equal(t, 5, b)
	assert.Equal(t, 3, a)
}

type brokenStore struct{ storage.StatusStore }

func (brokenStore) Get(context.Context, string) (models.ProviderStatus, error) {
	return models.ProviderStatus{}, errors.New("db down")
}

func TestToggleFailureTriggersNothing(t *testing.T) {
	c, rec, tasks := newController(brokenStore{})

	_, err := c.Toggle(context.Background(), "p1")
	require.Error(t, err)
	tasks.Wait()

	b, a := rec.counts()
	assert.Zero(t, b)
	assert.Zero(t, a)

	_, err = c.Toggle(context.Background(), "")
	assert.ErrorIs(t, err, ErrValidation)
}

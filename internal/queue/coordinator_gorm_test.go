package queue

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"barber_queue/internal/config"
	"barber_queue/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSQLiteCoordinator поднимает координатор над gorm-хранилищем с уникальным индексом (provider_id, position).
func newSQLiteCoordinator(t *testing.T) (*Coordinator, storage.QueueStore) {
	t.Helper()
	db, err := storage.ConnectDatabase(config.Database{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "queue.db"),
	}, zerolog.Nop())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := storage.NewQueueStore(db)
	return NewCoordinator(store, NewLocalLocker(), zerolog.Nop()), store
}

func TestGormConcurrentJoinsAndLeaves(t *testing.T) {
	c, store := newSQLiteCoordinator(t)
	ctx := context.Background()

	const joins = 20
	ids := make([]string, joins)
	var wg sync.WaitGroup
	for i := 0; i < joins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := c.Join(ctx, "p1", fmt.Sprintf("u%d", i))
			if assert.NoError(t, err) {
				ids[i] = entry.ID
			}
		}(i)
	}
	wg.Wait()
	requireDense(t, store, "p1")

	list, err := store.ListFor(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, joins)

	// середина, голова и хвост: каждая перенумерация проходит через уникальный индекс
	for _, victim := range []string{list[joins/2].ID, list[0].ID, list[joins-1].ID} {
		_, err := c.Leave(ctx, victim, "p1")
		require.NoError(t, err)
		requireDense(t, store, "p1")
	}

	// выходы и входы вперемешку
	list, err = store.ListFor(ctx, "p1")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			_, err := c.Leave(ctx, id, "p1")
			assert.NoError(t, err)
		}(list[i*2].ID)
		go func(i int) {
			defer wg.Done()
			_, err := c.Join(ctx, "p1", fmt.Sprintf("late%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	requireDense(t, store, "p1")
	n, err := store.CountFor(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, joins-3, n)
}

func TestGormLeaveShiftsOnlyLaterEntries(t *testing.T) {
	c, store := newSQLiteCoordinator(t)
	ctx := context.Background()

	a, err := c.Join(ctx, "p1", "A")
	require.NoError(t, err)
	b, err := c.Join(ctx, "p1", "B")
	require.NoError(t, err)
	cc, err := c.Join(ctx, "p1", "C")
	require.NoError(t, err)
	_, err = c.Join(ctx, "p2", "D")
	require.NoError(t, err)

	res, err := c.Leave(ctx, b.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, positions(res.Before))
	assert.Equal(t, []int{1, 2}, positions(res.After))

	list, err := store.ListFor(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, cc.ID, list[1].ID)
	assert.Equal(t, 2, list[1].Position)

	other, err := store.ListFor(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, positions(other))

	_, err = c.Leave(ctx, a.ID, "p2")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

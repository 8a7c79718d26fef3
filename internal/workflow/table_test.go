package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Desteles/deli-pwa-app/internal/domain"
	"github.com/Desteles/deli-pwa-app/internal/store"
)

func newRedisTable(t *testing.T, ttl time.Duration) (*Table, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewTable(store.NewRedisKV(rdb), ttl), mr
}

func TestTable_SaveLoadRedis(t *testing.T) {
	ctx := context.Background()
	tbl, mr := newRedisTable(t, time.Minute)

	s := NewIntake(11, time.Now())
	_, err := s.ApplyIntake("Acme")
	require.NoError(t, err)
	require.NoError(t, tbl.Save(ctx, s))

	assert.True(t, mr.Exists("dispatch:session:11"))
	assert.Equal(t, time.Minute, mr.TTL("dispatch:session:11"))

	got, err := tbl.Resolve(ctx, s.Handle())
	require.NoError(t, err)
	assert.Equal(t, StepPayer, got.Step)
	assert.Equal(t, "Acme", got.Form.Supplier)
}

func TestTable_Expiry(t *testing.T) {
	ctx := context.Background()
	tbl, mr := newRedisTable(t, time.Minute)

	s := NewIntake(11, time.Now())
	require.NoError(t, tbl.Save(ctx, s))
	mr.FastForward(2 * time.Minute)

	_, err := tbl.Load(ctx, 11)
	assert.ErrorIs(t, err, domain.ErrNoSession)
}

func TestTable_ReplacedHandleIsStale(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable(store.NewMemoryKV(), 0)

	first := NewIntake(5, time.Now())
	require.NoError(t, tbl.Save(ctx, first))
	second := NewIntake(5, time.Now())
	require.NoError(t, tbl.Save(ctx, second))

	_, err := tbl.Resolve(ctx, first.Handle())
	assert.ErrorIs(t, err, domain.ErrNoSession)

	got, err := tbl.Resolve(ctx, second.Handle())
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestTable_ParticipantsDoNotShare(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable(store.NewMemoryKV(), time.Minute)

	a := NewIntake(1, time.Now())
	_, _ = a.ApplyIntake("A")
	require.NoError(t, tbl.Save(ctx, a))
	require.NoError(t, tbl.Save(ctx, NewFieldEdit(2, 9, domain.FieldPayer, time.Now())))

	got, err := tbl.Load(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, KindFieldEdit, got.Kind)
	assert.Empty(t, got.Form.Supplier)

	require.NoError(t, tbl.Delete(ctx, 1))
	_, err = tbl.Load(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNoSession)
}

type brokenKV struct{}

func (brokenKV) Get(context.Context, string) (string, error) { return "", errors.New("conn refused") }
func (brokenKV) Set(context.Context, string, string, time.Duration) error {
	return errors.New("conn refused")
}
func (brokenKV) Del(context.Context, string) error { return errors.New("conn refused") }

func TestTable_StoreFailure(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable(brokenKV{}, time.Minute)

	_, err := tbl.Load(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, tbl.Save(ctx, NewIntake(1, time.Now())), domain.ErrStoreUnavailable)
	assert.ErrorIs(t, tbl.Delete(ctx, 1), domain.ErrStoreUnavailable)
}

func TestTable_CorruptPayloadIsDropped(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, "dispatch:session:3", "{not json", time.Minute))

	tbl := NewTable(kv, time.Minute)
	_, err := tbl.Load(ctx, 3)
	assert.ErrorIs(t, err, domain.ErrNoSession)

	_, err = kv.Get(ctx, "dispatch:session:3")
	assert.ErrorIs(t, err, store.ErrMiss)
}

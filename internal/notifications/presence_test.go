package notifications

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func newPresenceRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestPresenceTracker_GraceSuppressesOfflineOnRapidReconnect(t *testing.T) {
	rdb := newPresenceRedis(t)

	var offline int32
	p := NewPresenceTracker(rdb, PresenceOptions{
		OfflineGrace: 50 * time.Millisecond,
		OnOffline:    func(uint) { atomic.AddInt32(&offline, 1) },
	})
	defer p.Stop()

	ctx := context.Background()
	p.Register(ctx, 42)
	p.Unregister(ctx, 42)

	// Reconnect inside the grace window, no offline should fire.
	p.Register(ctx, 42)

	assert.Never(t, func() bool {
		return atomic.LoadInt32(&offline) > 0
	}, 200*time.Millisecond, testPollInterval)
	assert.True(t, p.IsOnline(ctx, 42))
}

func TestPresenceTracker_LastDisconnectTriggersOfflineOnce(t *testing.T) {
	// Nil Redis keeps this a pure local-socket test, the grace timer path
	// is identical either way.
	var online, offline int32
	p := NewPresenceTracker(nil, PresenceOptions{
		OfflineGrace: 20 * time.Millisecond,
		OnOnline:     func(uint) { atomic.AddInt32(&online, 1) },
		OnOffline:    func(uint) { atomic.AddInt32(&offline, 1) },
	})
	defer p.Stop()

	ctx := context.Background()

	// Two sockets, one online transition.
	p.Register(ctx, 7)
	p.Register(ctx, 7)
	assert.Equal(t, int32(1), atomic.LoadInt32(&online))

	p.Unregister(ctx, 7)
	assert.True(t, p.IsOnline(ctx, 7))

	p.Unregister(ctx, 7)
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&offline) == 1
	}, testEventuallyTimeout, testPollInterval)
	assert.False(t, p.IsOnline(ctx, 7))

	// The grace timer already fired, a second offline must not sneak in.
	assert.Never(t, func() bool {
		return atomic.LoadInt32(&offline) > 1
	}, 100*time.Millisecond, testPollInterval)
}

func TestPresenceTracker_IsOnlineAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)

	writerRdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = writerRdb.Close() }()
	readerRdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = readerRdb.Close() }()

	writer := NewPresenceTracker(writerRdb, PresenceOptions{})
	defer writer.Stop()
	reader := NewPresenceTracker(readerRdb, PresenceOptions{})
	defer reader.Stop()

	ctx := context.Background()
	writer.Register(ctx, 9)

	// The reader has no local socket for user 9 but sees the shared mirror.
	assert.True(t, reader.IsOnline(ctx, 9))
	assert.False(t, reader.IsOnline(ctx, 10))
}

func TestPresenceTracker_SweepRemovesStalePresence(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	var offline int32
	p := NewPresenceTracker(rdb, PresenceOptions{
		OnOffline: func(uint) { atomic.AddInt32(&offline, 1) },
	})
	defer p.Stop()

	ctx := context.Background()

	// A crashed instance left the set member behind with no last-seen key.
	require.NoError(t, rdb.SAdd(ctx, presenceOnlineSetKey, "55").Err())

	p.sweepOnce(ctx)

	members, err := rdb.SMembers(ctx, presenceOnlineSetKey).Result()
	require.NoError(t, err)
	assert.Empty(t, members)
	assert.Equal(t, int32(1), atomic.LoadInt32(&offline))
}

func TestPresenceTracker_OnlineUserIDsFiltersStaleMembers(t *testing.T) {
	rdb := newPresenceRedis(t)

	p := NewPresenceTracker(rdb, PresenceOptions{})
	defer p.Stop()

	ctx := context.Background()
	p.Register(ctx, 1)

	// Stale member with no last-seen key should be filtered out and pruned.
	require.NoError(t, rdb.SAdd(ctx, presenceOnlineSetKey, "2").Err())

	ids := p.OnlineUserIDs(ctx)
	assert.Equal(t, []uint{1}, ids)

	members, err := rdb.SMembers(ctx, presenceOnlineSetKey).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, members)
}

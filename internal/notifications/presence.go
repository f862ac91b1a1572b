package notifications

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"chirp/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	presenceOnlineSetKey   = "presence:online"
	presenceLastSeenPrefix = "presence:last_seen:"
	presenceLastSeenTTL    = 90 * time.Second
	presenceOfflineGrace   = 5 * time.Second
	presenceSweepInterval  = 60 * time.Second
)

// PresenceOptions tunes Redis key names, expiry windows, and the transition
// callbacks. Zero values fall back to the package defaults.
type PresenceOptions struct {
	OnlineSetKey   string
	LastSeenPrefix string
	LastSeenTTL    time.Duration
	OfflineGrace   time.Duration
	SweepInterval  time.Duration
	OnOnline       func(userID uint)
	OnOffline      func(userID uint)
}

// PresenceTracker answers "does this user have a live notification socket".
// Local socket counts are authoritative for this instance; Redis mirrors
// them (online set + per-user last-seen TTL key) so any instance can answer
// for the whole deployment. Disconnects are debounced by a grace window so a
// page reload does not flap offline/online.
type PresenceTracker struct {
	rdb *redis.Client

	mu          sync.RWMutex
	sockets     map[uint]int
	graceTimers map[uint]*time.Timer
	offlineSent map[uint]bool

	onlineSetKey   string
	lastSeenPrefix string
	lastSeenTTL    time.Duration
	offlineGrace   time.Duration
	sweepInterval  time.Duration

	onOnline  func(userID uint)
	onOffline func(userID uint)

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresenceTracker builds a tracker and, when Redis is available, starts a
// background sweep that clears entries left behind by crashed instances.
func NewPresenceTracker(rdb *redis.Client, opts PresenceOptions) *PresenceTracker {
	if opts.OnlineSetKey == "" {
		opts.OnlineSetKey = presenceOnlineSetKey
	}
	if opts.LastSeenPrefix == "" {
		opts.LastSeenPrefix = presenceLastSeenPrefix
	}
	if opts.LastSeenTTL <= 0 {
		opts.LastSeenTTL = presenceLastSeenTTL
	}
	if opts.OfflineGrace <= 0 {
		opts.OfflineGrace = presenceOfflineGrace
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = presenceSweepInterval
	}

	p := &PresenceTracker{
		rdb:            rdb,
		sockets:        make(map[uint]int),
		graceTimers:    make(map[uint]*time.Timer),
		offlineSent:    make(map[uint]bool),
		onlineSetKey:   opts.OnlineSetKey,
		lastSeenPrefix: opts.LastSeenPrefix,
		lastSeenTTL:    opts.LastSeenTTL,
		offlineGrace:   opts.OfflineGrace,
		sweepInterval:  opts.SweepInterval,
		onOnline:       opts.OnOnline,
		onOffline:      opts.OnOffline,
		stopCh:         make(chan struct{}),
	}

	if p.rdb != nil {
		go p.sweepLoop()
	}

	return p
}

// Stop halts the sweep loop and cancels pending offline timers.
func (p *PresenceTracker) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.mu.Lock()
		for userID, timer := range p.graceTimers {
			timer.Stop()
			delete(p.graceTimers, userID)
		}
		p.mu.Unlock()
	})
}

// Register records one more socket for the user and refreshes the Redis
// mirror. The first socket fires the online callback.
func (p *PresenceTracker) Register(ctx context.Context, userID uint) {
	wasOnline := p.IsOnline(ctx, userID)

	p.mu.Lock()
	if timer, ok := p.graceTimers[userID]; ok {
		timer.Stop()
		delete(p.graceTimers, userID)
	}
	p.sockets[userID]++
	p.offlineSent[userID] = false
	p.mu.Unlock()

	p.Touch(ctx, userID)
	if !wasOnline {
		p.notifyOnline(userID)
	}
}

// Touch refreshes the user's Redis presence. Called on register and by
// anything that wants to extend the last-seen window (e.g. socket pings).
func (p *PresenceTracker) Touch(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	if err := p.rdb.SAdd(ctx, p.onlineSetKey, uid).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "presence online-set update failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
	}
	now := strconv.FormatInt(time.Now().Unix(), 10)
	if err := p.rdb.SetEx(ctx, p.lastSeenKey(userID), now, p.lastSeenTTL).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "presence last-seen update failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
	}
}

// Unregister drops one socket. When the last socket goes, the user is marked
// offline only after the grace window passes without a reconnect.
func (p *PresenceTracker) Unregister(ctx context.Context, userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := p.sockets[userID]; n > 1 {
		p.sockets[userID] = n - 1
		return
	}
	delete(p.sockets, userID)

	if timer, ok := p.graceTimers[userID]; ok {
		timer.Stop()
	}
	p.graceTimers[userID] = time.AfterFunc(p.offlineGrace, func() {
		p.settleOffline(context.Background(), userID)
	})
}

// IsOnline checks local sockets first, then the Redis last-seen mirror so
// users connected to other instances still read as online.
func (p *PresenceTracker) IsOnline(ctx context.Context, userID uint) bool {
	p.mu.RLock()
	local := p.sockets[userID] > 0
	p.mu.RUnlock()
	if local {
		return true
	}

	if p.rdb == nil {
		return false
	}
	exists, err := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
	return err == nil && exists > 0
}

// OnlineUserIDs unions the deployment-wide Redis online set (dropping stale
// members as it goes) with this instance's local sockets.
func (p *PresenceTracker) OnlineUserIDs(ctx context.Context) []uint {
	local := p.localUserIDs()
	if p.rdb == nil {
		return local
	}

	members, err := p.rdb.SMembers(ctx, p.onlineSetKey).Result()
	if err != nil {
		return local
	}

	seen := make(map[uint]struct{}, len(members)+len(local))
	ids := make([]uint, 0, len(members)+len(local))
	for _, raw := range members {
		id64, parseErr := strconv.ParseUint(raw, 10, 32)
		if parseErr != nil {
			continue
		}
		userID := uint(id64)
		alive, aliveErr := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
		if aliveErr != nil {
			continue
		}
		if alive == 0 {
			_ = p.rdb.SRem(ctx, p.onlineSetKey, raw).Err()
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		ids = append(ids, userID)
	}
	for _, userID := range local {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		ids = append(ids, userID)
	}
	return ids
}

// sweepOnce removes online-set members whose last-seen key expired, firing
// the offline callback for users with no local socket either.
func (p *PresenceTracker) sweepOnce(ctx context.Context) {
	members, err := p.rdb.SMembers(ctx, p.onlineSetKey).Result()
	if err != nil {
		return
	}

	for _, raw := range members {
		id64, parseErr := strconv.ParseUint(raw, 10, 32)
		if parseErr != nil {
			continue
		}
		userID := uint(id64)
		alive, aliveErr := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
		if aliveErr != nil || alive > 0 {
			continue
		}

		_ = p.rdb.SRem(ctx, p.onlineSetKey, raw).Err()

		p.mu.RLock()
		hasLocal := p.sockets[userID] > 0
		p.mu.RUnlock()
		if !hasLocal {
			p.notifyOffline(userID)
		}
	}
}

func (p *PresenceTracker) sweepLoop() {
	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sweepOnce(ctx)
		}
	}
}

// settleOffline runs when the grace window elapses. A reconnect in the
// meantime, or a fresh last-seen key written by another instance, keeps the
// user online.
func (p *PresenceTracker) settleOffline(ctx context.Context, userID uint) {
	p.mu.Lock()
	delete(p.graceTimers, userID)
	if p.sockets[userID] > 0 {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if p.rdb != nil {
		alive, err := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
		if err == nil && alive > 0 {
			return
		}
		uid := strconv.FormatUint(uint64(userID), 10)
		_ = p.rdb.SRem(ctx, p.onlineSetKey, uid).Err()
	}

	p.notifyOffline(userID)
}

func (p *PresenceTracker) notifyOnline(userID uint) {
	p.mu.Lock()
	p.offlineSent[userID] = false
	cb := p.onOnline
	p.mu.Unlock()
	if cb != nil {
		cb(userID)
	}
}

// notifyOffline fires at most once per offline transition.
func (p *PresenceTracker) notifyOffline(userID uint) {
	p.mu.Lock()
	if p.offlineSent[userID] {
		p.mu.Unlock()
		return
	}
	p.offlineSent[userID] = true
	cb := p.onOffline
	p.mu.Unlock()
	if cb != nil {
		cb(userID)
	}
}

func (p *PresenceTracker) localUserIDs() []uint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]uint, 0, len(p.sockets))
	for userID, n := range p.sockets {
		if n > 0 {
			ids = append(ids, userID)
		}
	}
	return ids
}

func (p *PresenceTracker) lastSeenKey(userID uint) string {
	return p.lastSeenPrefix + strconv.FormatUint(uint64(userID), 10)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"anoa.com/runclub/internal/entity"
	bookingService "anoa.com/runclub/internal/modules/booking/service"
	leaderboardDto "anoa.com/runclub/internal/modules/leaderboard/dto"
	"anoa.com/runclub/pkg/changefeed"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const snapshotKey = "leaderboard:snapshot"

type LeaderboardService interface {
	// GetLeaderboard returns the latest snapshot, computing one when the
	// engine has not produced any yet.
	GetLeaderboard(ctx context.Context, limit int) (*leaderboardDto.Snapshot, error)
	Rebuild(ctx context.Context) (*leaderboardDto.Snapshot, error)
}

type UserLister interface {
	FindAll(ctx context.Context) ([]entity.User, error)
}

type StatsSource interface {
	CalculateMany(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]bookingService.Stats, error)
}

type Options struct {
	Users      UserLister
	Stats      StatsSource
	Publisher  changefeed.Publisher
	Subscriber changefeed.Subscriber
	Redis      *redis.Client
	Debounce   time.Duration
	Log        logrus.FieldLogger
}

// Engine keeps the leaderboard current. Any change on the users or bookings
// topics schedules one full recompute after the debounce window; further
// changes inside the window push it back.
type Engine struct {
	opts Options

	mu       sync.RWMutex
	snapshot *leaderboardDto.Snapshot

	timerMu sync.Mutex
	timer   *time.Timer

	rebuildMu sync.Mutex
	now       func() time.Time

	// runCtx is the context Run was started with; guarded by timerMu.
	runCtx context.Context
}

func NewEngine(opts Options) *Engine {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	return &Engine{opts: opts, now: time.Now}
}

// Run subscribes to the source topics and blocks until ctx is done. Without
// a Subscriber, recomputes come from LocalPublisher instead.
func (e *Engine) Run(ctx context.Context) error {
	e.timerMu.Lock()
	e.runCtx = ctx
	e.timerMu.Unlock()

	if e.opts.Subscriber == nil {
		e.Trigger(ctx)
		<-ctx.Done()
		e.stopTimer()
		return nil
	}

	var subs []*changefeed.Subscription
	for _, topic := range []string{changefeed.TopicUsers, changefeed.TopicBookings} {
		sub, err := e.opts.Subscriber.Subscribe(ctx, topic)
		if err != nil {
			for _, s := range subs {
				_ = s.Close()
			}
			return fmt.Errorf("leaderboard subscribe %s: %w", topic, err)
		}
		subs = append(subs, sub)
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub *changefeed.Subscription) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-sub.Events():
					if !ok {
						return
					}
					e.Trigger(ctx)
				}
			}
		}(sub)
	}

	e.Trigger(ctx)

	<-ctx.Done()
	e.stopTimer()
	for _, s := range subs {
		_ = s.Close()
	}
	wg.Wait()
	return nil
}

// Trigger schedules a recompute, replacing any pending one.
func (e *Engine) Trigger(ctx context.Context) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()

	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.opts.Debounce, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := e.Rebuild(ctx); err != nil {
			e.opts.Log.WithError(err).Warn("leaderboard recompute failed")
		}
	})
}

// LocalPublisher wraps next so that publishes on the users and bookings
// topics also schedule a recompute in this process. It is meant for a
// single-instance deployment without a shared change feed.
func (e *Engine) LocalPublisher(next changefeed.Publisher) changefeed.Publisher {
	return &localPublisher{next: next, engine: e}
}

type localPublisher struct {
	next   changefeed.Publisher
	engine *Engine
}

func (p *localPublisher) Publish(ctx context.Context, topic string, ev changefeed.Event) error {
	var err error
	if p.next != nil {
		err = p.next.Publish(ctx, topic, ev)
	}
	if topic == changefeed.TopicUsers || topic == changefeed.TopicBookings {
		p.engine.notify()
	}
	return err
}

// notify triggers a recompute bound to the Run context, not the caller's
// request context. Before Run starts it does nothing.
func (e *Engine) notify() {
	e.timerMu.Lock()
	ctx := e.runCtx
	e.timerMu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	e.Trigger(ctx)
}

func (e *Engine) stopTimer() {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) Rebuild(ctx context.Context) (*leaderboardDto.Snapshot, error) {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	users, err := e.opts.Users.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	stats, err := e.opts.Stats.CalculateMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("calculate stats: %w", err)
	}

	entries := make([]leaderboardDto.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		s := stats[u.ID]
		entries = append(entries, leaderboardDto.LeaderboardEntry{
			UserID:        u.ID,
			DisplayName:   u.DisplayName,
			PhotoURL:      u.PhotoURL,
			TotalRuns:     s.TotalRuns,
			TotalDistance: s.TotalDistance,
		})
	}

	snap := &leaderboardDto.Snapshot{Entries: Rank(entries), GeneratedAt: e.now().UTC()}

	e.mu.Lock()
	e.snapshot = snap
	e.mu.Unlock()

	e.store(ctx, snap)
	e.publish(ctx, snap)

	e.opts.Log.WithField("entries", len(snap.Entries)).Debug("leaderboard recomputed")
	return snap, nil
}

func (e *Engine) GetLeaderboard(ctx context.Context, limit int) (*leaderboardDto.Snapshot, error) {
	e.mu.RLock()
	snap := e.snapshot
	e.mu.RUnlock()

	if snap == nil {
		snap = e.load(ctx)
	}
	if snap == nil {
		var err error
		if snap, err = e.Rebuild(ctx); err != nil {
			e.opts.Log.WithError(err).Warn("leaderboard unavailable, serving empty board")
			return &leaderboardDto.Snapshot{Entries: []leaderboardDto.LeaderboardEntry{}, GeneratedAt: e.now().UTC()}, nil
		}
	}
	return snap.Top(limit), nil
}

func (e *Engine) store(ctx context.Context, snap *leaderboardDto.Snapshot) {
	if e.opts.Redis == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := e.opts.Redis.Set(ctx, snapshotKey, payload, 0).Err(); err != nil {
		e.opts.Log.WithError(err).Warn("failed to cache leaderboard snapshot")
	}
}

// load reads the cached snapshot so a restarted process can serve the last
// known board before its first recompute.
func (e *Engine) load(ctx context.Context) *leaderboardDto.Snapshot {
	if e.opts.Redis == nil {
		return nil
	}
	raw, err := e.opts.Redis.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			e.opts.Log.WithError(err).Warn("failed to read cached leaderboard")
		}
		return nil
	}

	var snap leaderboardDto.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil
	}

	e.mu.Lock()
	if e.snapshot == nil {
		e.snapshot = &snap
	}
	e.mu.Unlock()
	return &snap
}

func (e *Engine) publish(ctx context.Context, snap *leaderboardDto.Snapshot) {
	if e.opts.Publisher == nil {
		return
	}
	ev, err := changefeed.NewEvent("leaderboard", changefeed.Snapshot, "", snap)
	if err == nil {
		err = e.opts.Publisher.Publish(ctx, changefeed.TopicLeaderboard, ev)
	}
	if err != nil {
		e.opts.Log.WithError(err).Warn("failed to publish leaderboard")
	}
}

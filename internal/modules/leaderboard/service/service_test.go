package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"anoa.com/runclub/internal/entity"
	bookingService "anoa.com/runclub/internal/modules/booking/service"
	leaderboardDto "anoa.com/runclub/internal/modules/leaderboard/dto"
	"anoa.com/runclub/pkg/changefeed"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(name string, runs int) leaderboardDto.LeaderboardEntry {
	s := bookingService.NewStats(runs)
	return leaderboardDto.LeaderboardEntry{DisplayName: name, TotalRuns: s.TotalRuns, TotalDistance: s.TotalDistance}
}

func names(entries []leaderboardDto.LeaderboardEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.DisplayName)
	}
	return out
}

func TestRankOrdersByDistanceThenRuns(t *testing.T) {
	in := []leaderboardDto.LeaderboardEntry{
		entry("a", 1),
		entry("b", 5),
		{DisplayName: "c", TotalRuns: 2, TotalDistance: 10},
		entry("d", 5),
		entry("e", 0),
	}

	ranked := Rank(in)
	assert.Equal(t, []string{"b", "d", "c", "a", "e"}, names(ranked))
	for i, e := range ranked {
		assert.Equal(t, i+1, e.Position)
	}
	assert.Equal(t, 0, in[0].Position, "input must not be modified")
}

func TestRankKeepsInputOrderOnTies(t *testing.T) {
	ranked := Rank([]leaderboardDto.LeaderboardEntry{entry("x", 3), entry("y", 3), entry("z", 3)})
	assert.Equal(t, []string{"x", "y", "z"}, names(ranked))
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil))
}

type fakeUsers struct {
	users []entity.User
	err   error
}

func (f *fakeUsers) FindAll(context.Context) ([]entity.User, error) { return f.users, f.err }

type countingStats struct {
	calls atomic.Int32
	runs  map[uuid.UUID]int
}

func (c *countingStats) CalculateMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bookingService.Stats, error) {
	c.calls.Add(1)
	out := make(map[uuid.UUID]bookingService.Stats, len(ids))
	for _, id := range ids {
		out[id] = bookingService.NewStats(c.runs[id])
	}
	return out, nil
}

type recordingFeed struct {
	mu     sync.Mutex
	events []changefeed.Event
}

func (f *recordingFeed) Publish(_ context.Context, topic string, ev changefeed.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev.Topic = topic
	f.events = append(f.events, ev)
	return nil
}

func fixtureUsers() ([]entity.User, map[uuid.UUID]int) {
	ana := entity.User{ID: uuid.New(), DisplayName: "ana"}
	budi := entity.User{ID: uuid.New(), DisplayName: "budi"}
	cita := entity.User{ID: uuid.New(), DisplayName: "cita"}
	return []entity.User{ana, budi, cita}, map[uuid.UUID]int{ana.ID: 1, budi.ID: 4}
}

func TestRebuildRanksAllUsers(t *testing.T) {
	users, runs := fixtureUsers()
	feed := &recordingFeed{}
	log, _ := test.NewNullLogger()
	engine := NewEngine(Options{
		Users:     &fakeUsers{users: users},
		Stats:     &countingStats{runs: runs},
		Publisher: feed,
		Log:       log,
	})

	snap, err := engine.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"budi", "ana", "cita"}, names(snap.Entries))
	assert.Equal(t, 8, snap.Entries[0].TotalDistance)
	assert.Equal(t, 0, snap.Entries[2].TotalRuns)

	require.Len(t, feed.events, 1)
	assert.Equal(t, changefeed.TopicLeaderboard, feed.events[0].Topic)
	assert.Equal(t, changefeed.Snapshot, feed.events[0].Type)
}

func TestRebuildPropagatesUserError(t *testing.T) {
	log, _ := test.NewNullLogger()
	engine := NewEngine(Options{
		Users: &fakeUsers{err: errors.New("db down")},
		Stats: &countingStats{},
		Log:   log,
	})

	_, err := engine.Rebuild(context.Background())
	assert.Error(t, err)
}

func TestGetLeaderboardComputesLazilyAndLimits(t *testing.T) {
	users, runs := fixtureUsers()
	stats := &countingStats{runs: runs}
	log, _ := test.NewNullLogger()
	engine := NewEngine(Options{Users: &fakeUsers{users: users}, Stats: stats, Log: log})

	snap, err := engine.GetLeaderboard(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"budi", "ana"}, names(snap.Entries))

	_, err = engine.GetLeaderboard(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), stats.calls.Load())
}

func TestTriggerDebouncesBursts(t *testing.T) {
	users, runs := fixtureUsers()
	stats := &countingStats{runs: runs}
	log, _ := test.NewNullLogger()
	engine := NewEngine(Options{
		Users:    &fakeUsers{users: users},
		Stats:    stats,
		Debounce: 30 * time.Millisecond,
		Log:      log,
	})

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		engine.Trigger(ctx)
	}

	require.Eventually(t, func() bool { return stats.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), stats.calls.Load())
}

func TestTriggerSkippedAfterCancel(t *testing.T) {
	stats := &countingStats{}
	log, _ := test.NewNullLogger()
	engine := NewEngine(Options{Users: &fakeUsers{}, Stats: stats, Debounce: 10 * time.Millisecond, Log: log})

	ctx, cancel := context.WithCancel(context.Background())
	engine.Trigger(ctx)
	cancel()

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), stats.calls.Load())
}

func TestSnapshotCachedInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users, runs := fixtureUsers()
	log, _ := test.NewNullLogger()
	first := NewEngine(Options{Users: &fakeUsers{users: users}, Stats: &countingStats{runs: runs}, Redis: rdb, Log: log})
	_, err := first.Rebuild(context.Background())
	require.NoError(t, err)
	assert.True(t, mr.Exists(snapshotKey))

	stats := &countingStats{}
	second := NewEngine(Options{Users: &fakeUsers{}, Stats: stats, Redis: rdb, Log: log})
	snap, err := second.GetLeaderboard(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"budi", "ana", "cita"}, names(snap.Entries))
	assert.Equal(t, int32(0), stats.calls.Load())
}

func TestRunRecomputesOnBookingChange(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	feed := changefeed.New(rdb)

	users, runs := fixtureUsers()
	stats := &countingStats{runs: runs}
	log, _ := test.NewNullLogger()
	engine := NewEngine(Options{
		Users:      &fakeUsers{users: users},
		Stats:      stats,
		Subscriber: feed,
		Debounce:   10 * time.Millisecond,
		Log:        log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	require.Eventually(t, func() bool { return stats.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	before := stats.calls.Load()

	require.Eventually(t, func() bool {
		_ = feed.Publish(ctx, changefeed.TopicBookings, changefeed.Event{Collection: "bookings", Type: changefeed.Created})
		return stats.calls.Load() > before
	}, 2*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestGetLeaderboardServesEmptyBoardWhenStoreDown(t *testing.T) {
	log, hook := test.NewNullLogger()
	engine := NewEngine(Options{
		Users: &fakeUsers{err: errors.New("db down")},
		Stats: &countingStats{},
		Log:   log,
	})

	snap, err := engine.GetLeaderboard(context.Background(), 10)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Empty(t, snap.Entries)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestLocalPublisherRecomputesWithoutSharedFeed(t *testing.T) {
	users, runs := fixtureUsers()
	stats := &countingStats{runs: runs}
	log, _ := test.NewNullLogger()
	engine := NewEngine(Options{
		Users:    &fakeUsers{users: users},
		Stats:    stats,
		Debounce: 10 * time.Millisecond,
		Log:      log,
	})
	next := &recordingFeed{}
	pub := engine.LocalPublisher(next)

	// not running yet: nothing is scheduled
	require.NoError(t, pub.Publish(context.Background(), changefeed.TopicBookings, changefeed.Event{Collection: "bookings"}))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), stats.calls.Load())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	require.Eventually(t, func() bool { return stats.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// a request context that ends right after publishing must not cancel the recompute
	reqCtx, reqCancel := context.WithCancel(context.Background())
	require.NoError(t, pub.Publish(reqCtx, changefeed.TopicUsers, changefeed.Event{Collection: "users"}))
	reqCancel()
	require.Eventually(t, func() bool { return stats.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, pub.Publish(ctx, changefeed.TopicPosts, changefeed.Event{Collection: "posts"}))
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(2), stats.calls.Load())

	next.mu.Lock()
	assert.Len(t, next.events, 3)
	next.mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

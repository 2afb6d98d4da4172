package job

import (
	"context"
	"time"

	leaderboardDto "anoa.com/runclub/internal/modules/leaderboard/dto"
	"github.com/sirupsen/logrus"
)

type funcJob struct {
	name     string
	schedule string
	fn       func(ctx context.Context) error
}

func (j funcJob) Name() string                      { return j.name }
func (j funcJob) Schedule() string                  { return j.schedule }
func (j funcJob) Execute(ctx context.Context) error { return j.fn(ctx) }

type LeaderboardRebuilder interface {
	Rebuild(ctx context.Context) (*leaderboardDto.Snapshot, error)
}

// LeaderboardRebuild recomputes the leaderboard in case a change event was
// missed while the feed was down.
func LeaderboardRebuild(rebuilder LeaderboardRebuilder, schedule string, log logrus.FieldLogger) Job {
	return funcJob{
		name:     "leaderboard_rebuild",
		schedule: schedule,
		fn: func(ctx context.Context) error {
			snap, err := rebuilder.Rebuild(ctx)
			if err != nil {
				return err
			}
			log.WithField("entries", len(snap.Entries)).Debug("leaderboard rebuilt")
			return nil
		},
	}
}

type NotificationPruner interface {
	PruneRead(ctx context.Context, retention time.Duration) (int64, error)
}

func NotificationPrune(pruner NotificationPruner, retention time.Duration, schedule string, log logrus.FieldLogger) Job {
	return funcJob{
		name:     "notification_prune",
		schedule: schedule,
		fn: func(ctx context.Context) error {
			n, err := pruner.PruneRead(ctx, retention)
			if err != nil {
				return err
			}
			log.WithField("deleted", n).Info("pruned read notifications")
			return nil
		},
	}
}

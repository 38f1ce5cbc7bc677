package workers

import (
	"context"
	"errors"
	"time"

	pgrepo "github.com/chromatech/advisor/internal/repositories/postgres"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const retentionLockKey = "advisor:retention:lock"

var purgedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "advisor_retention_purged_total",
	Help: "Conversations soft-deleted after their retention window.",
})

// RetentionWorker soft-deletes conversations whose expiry has passed. With
// Redis configured only one replica purges per interval.
type RetentionWorker struct {
	Conversations pgrepo.ConversationRepo
	Redis         *redis.Client // optional
	Interval      time.Duration
	Logger        *logrus.Logger
	Now           func() time.Time
}

func (w *RetentionWorker) Start(ctx context.Context) error {
	if w.Conversations == nil {
		return errors.New("RetentionWorker missing dependency: Conversations must be set")
	}
	if w.Interval <= 0 {
		w.Interval = time.Hour
	}
	if w.Logger == nil {
		w.Logger = logrus.New()
	}
	if w.Now == nil {
		w.Now = time.Now
	}

	go w.loop(ctx)
	return nil
}

func (w *RetentionWorker) loop(ctx context.Context) {
	t := time.NewTicker(w.Interval)
	defer t.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.Logger.WithError(err).Warn("retention purge failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// RunOnce purges expired conversations and returns how many were removed.
func (w *RetentionWorker) RunOnce(ctx context.Context) (int64, error) {
	if w.Redis != nil {
		ok, err := w.Redis.SetNX(ctx, retentionLockKey, "1", w.Interval/2).Result()
		if err != nil {
			w.Logger.WithError(err).Warn("retention lock unavailable, purging anyway")
		} else if !ok {
			return 0, nil
		}
	}

	n, err := w.Conversations.DeleteExpired(ctx, w.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		purgedTotal.Add(float64(n))
		w.Logger.WithField("purged", n).Info("expired conversations purged")
	}
	return n, nil
}

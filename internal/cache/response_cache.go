package cache

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/chromatech/advisor/internal/background"
	"github.com/chromatech/advisor/internal/keywords"
	"github.com/chromatech/advisor/internal/models"
	pgrepo "github.com/chromatech/advisor/internal/repositories/postgres"
	"github.com/chromatech/advisor/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTTL    = 30 * 24 * time.Hour
	sampleMaxRune = 200
	hotKeyPrefix  = "answer:"
)

// HotTier holds recently served answers in front of the answer table. Entries
// carry their own expiry so a stale hot copy never outlives the row.
type HotTier interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
}

type Options struct {
	TTL        time.Duration
	Hot        HotTier // optional
	Logger     *logrus.Logger
	Background *background.Group
	Now        func() time.Time
}

// ResponseCache maps a question's keyword set to a previously generated answer.
// Expired rows are ignored, never purged.
type ResponseCache struct {
	entries pgrepo.CacheRepo
	hot     HotTier
	log     *logrus.Logger
	bg      *background.Group
	ttl     time.Duration
	now     func() time.Time
}

type hotEntry struct {
	Answer    string    `json:"answer"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewResponseCache(entries pgrepo.CacheRepo, opts Options) *ResponseCache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Background == nil {
		opts.Background = background.NewGroup(opts.Logger, 0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ResponseCache{
		entries: entries,
		hot:     opts.Hot,
		log:     opts.Logger,
		bg:      opts.Background,
		ttl:     opts.TTL,
		now:     opts.Now,
	}
}

// Check returns the cached answer for question. Store failures count as a miss.
func (c *ResponseCache) Check(ctx context.Context, question string) (string, bool) {
	kw := keywords.Extract(question)
	if len(kw) == 0 {
		lookupsTotal.WithLabelValues("miss").Inc()
		return "", false
	}
	hash := keywords.HashKeywords(kw)
	now := c.now().UTC()

	if c.hot != nil {
		var he hotEntry
		hit, err := c.hot.GetJSON(ctx, hotKeyPrefix+hash, &he)
		if err != nil {
			c.log.WithError(err).WithField("hash", hash).Warn("hot cache lookup failed")
		} else if hit && now.Before(he.ExpiresAt) {
			c.countHit(ctx, hash)
			lookupsTotal.WithLabelValues("hit").Inc()
			return he.Answer, true
		}
	}

	e, err := c.entries.FindActive(ctx, hash, now)
	if err != nil {
		if !errors.Is(err, utils.ErrNotFound) {
			c.log.WithError(err).WithField("hash", hash).Warn("cache lookup failed")
			lookupsTotal.WithLabelValues("error").Inc()
			return "", false
		}
		lookupsTotal.WithLabelValues("miss").Inc()
		return "", false
	}

	c.countHit(ctx, hash)
	c.warm(ctx, hash, e.Answer, e.ExpiresAt)
	lookupsTotal.WithLabelValues("hit").Inc()
	return e.Answer, true
}

// Save stores answer for question's keyword set, overwriting any earlier
// answer. Personalized questions are silently skipped.
func (c *ResponseCache) Save(ctx context.Context, question, answer string) error {
	const op = "ResponseCache.Save"

	if keywords.IsPersonalized(question) {
		return nil
	}
	kw := keywords.Extract(question)
	if len(kw) == 0 || answer == "" {
		return nil
	}

	now := c.now().UTC()
	e := &models.CacheEntry{
		ID:             uuid.NewString(),
		QuestionHash:   keywords.HashKeywords(kw),
		Keywords:       kw,
		QuestionSample: truncate(question, sampleMaxRune),
		Answer:         answer,
		CreatedAt:      now,
		ExpiresAt:      now.Add(c.ttl),
	}
	if err := c.entries.Upsert(ctx, e); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to save cache entry", err)
	}
	savesTotal.Inc()
	c.warm(ctx, e.QuestionHash, e.Answer, e.ExpiresAt)
	return nil
}

// RecordFeedback adjusts the like/dislike counters of the entry serving question.
func (c *ResponseCache) RecordFeedback(ctx context.Context, question string, like bool) error {
	const op = "ResponseCache.RecordFeedback"

	if keywords.IsPersonalized(question) {
		return nil
	}
	kw := keywords.Extract(question)
	if len(kw) == 0 {
		return nil
	}
	if err := c.entries.RecordFeedback(ctx, keywords.HashKeywords(kw), like); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "cache entry not found", err)
		}
		return utils.E(utils.CodeUnavailable, op, "failed to record cache feedback", err)
	}
	return nil
}

func (c *ResponseCache) Top(ctx context.Context, limit int) ([]models.CacheEntry, error) {
	const op = "ResponseCache.Top"

	rows, err := c.entries.TopByHits(ctx, limit)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to list cache entries", err)
	}
	return rows, nil
}

func (c *ResponseCache) countHit(ctx context.Context, hash string) {
	c.bg.Go(ctx, "ResponseCache.IncrementHit", func(ctx context.Context) error {
		return c.entries.IncrementHit(ctx, hash)
	})
}

func (c *ResponseCache) warm(ctx context.Context, hash, answer string, expiresAt time.Time) {
	if c.hot == nil {
		return
	}
	ttl := expiresAt.Sub(c.now())
	if ttl <= 0 {
		return
	}
	if err := c.hot.SetJSON(ctx, hotKeyPrefix+hash, hotEntry{Answer: answer, ExpiresAt: expiresAt}, ttl); err != nil {
		c.log.WithError(err).WithField("hash", hash).Warn("hot cache write failed")
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ScoreboardCache mirrors per-session scores in a Redis ZSET so the admin
// API can read standings without touching the primary store. Writes are
// best-effort; the state machine's store remains authoritative.
type ScoreboardCache interface {
	SetScore(ctx context.Context, sessionID, username string, score int) error
	Top(ctx context.Context, sessionID string, limit int) ([]Entry, error)
	RemovePlayer(ctx context.Context, sessionID, username string) error
	Purge(ctx context.Context, sessionID string) error
}

// Entry is a single scoreboard row
type Entry struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

type scoreboardCache struct {
	client *redis.Client
}

// NewScoreboardCache creates a Redis-backed scoreboard mirror
func NewScoreboardCache(client *redis.Client) ScoreboardCache {
	return &scoreboardCache{client: client}
}

func (c *scoreboardCache) key(sessionID string) string {
	return fmt.Sprintf("session:%s:scores", sessionID)
}

func (c *scoreboardCache) SetScore(ctx context.Context, sessionID, username string, score int) error {
	return c.client.ZAdd(ctx, c.key(sessionID), redis.Z{
		Score:  float64(score),
		Member: username,
	}).Err()
}

func (c *scoreboardCache) Top(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, c.key(sessionID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(results))
	for i, z := range results {
		entries[i] = Entry{
			Username: z.Member.(string),
			Score:    int(z.Score),
		}
	}
	return entries, nil
}

func (c *scoreboardCache) RemovePlayer(ctx context.Context, sessionID, username string) error {
	return c.client.ZRem(ctx, c.key(sessionID), username).Err()
}

func (c *scoreboardCache) Purge(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, c.key(sessionID)).Err()
}

// noopScoreboard satisfies ScoreboardCache when Redis is not configured.
type noopScoreboard struct{}

// NewNoopScoreboard returns a scoreboard mirror that discards writes and
// reports no entries, for --store=memory and Redis-less deployments.
func NewNoopScoreboard() ScoreboardCache {
	return noopScoreboard{}
}

func (noopScoreboard) SetScore(context.Context, string, string, int) error { return nil }
func (noopScoreboard) Top(context.Context, string, int) ([]Entry, error)   { return nil, nil }
func (noopScoreboard) RemovePlayer(context.Context, string, string) error  { return nil }
func (noopScoreboard) Purge(context.Context, string) error                 { return nil }

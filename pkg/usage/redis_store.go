package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// counterTTL keeps counters long enough to cover the daily and monthly quota
// windows with slack; older counters can never affect a limit decision.
const counterTTL = 62 * 24 * time.Hour

// RedisStore keeps counters in Redis. INCRBY gives the atomic
// increment-or-insert primitive directly, which makes this the preferred
// store for high-traffic deployments where Postgres row contention on the
// hot daily counter matters.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	if client == nil {
		panic("usage: redis client is required")
	}
	return &RedisStore{client: client}
}

func counterKey(id Identity, gt GenerationType, day time.Time) string {
	return fmt.Sprintf("usage:%s:%s:%s:%s", id.Kind, id.ID, gt, DayKey(day).Format("2006-01-02"))
}

func (s *RedisStore) Today(ctx context.Context, id Identity, gt GenerationType, day time.Time) (int64, error) {
	n, err := s.client.Get(ctx, counterKey(id, gt, day)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, errors.Join(ErrFailedToReadUsage, err)
	}
	return n, nil
}

func (s *RedisStore) MonthToDate(ctx context.Context, id Identity, gt GenerationType, day time.Time) (int64, error) {
	keys := make([]string, 0, 31)
	for d := MonthStart(day); !d.After(DayKey(day)); d = d.AddDate(0, 0, 1) {
		keys = append(keys, counterKey(id, gt, d))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, errors.Join(ErrFailedToReadUsage, err)
	}

	var total int64
	for _, v := range values {
		if v == nil {
			continue
		}
		var n int64
		if _, err := fmt.Sscan(v.(string), &n); err == nil {
			total += n
		}
	}
	return total, nil
}

func (s *RedisStore) Increment(ctx context.Context, id Identity, gt GenerationType, day time.Time, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	key := counterKey(id, gt, day)
	pipe := s.client.TxPipeline()
	incr := pipe.IncrBy(ctx, key, amount)
	pipe.Expire(ctx, key, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Join(ErrFailedToIncrementUsage, err)
	}
	return incr.Val(), nil
}

// MergeSession walks the retention window and moves each session counter with
// GETDEL + INCRBY. GETDEL is atomic per key, so a concurrent or repeated
// merge cannot observe the same counter twice.
func (s *RedisStore) MergeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	session := SessionIdentity(sessionID)
	user := UserIdentity(userID)

	end := DayKey(time.Now())
	start := end.Add(-counterTTL)

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for _, gt := range []GenerationType{GenerationImage, GenerationVideo} {
			n, err := s.client.GetDel(ctx, counterKey(session, gt, d)).Int64()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				return errors.Join(ErrFailedToMergeSession, err)
			}
			if n == 0 {
				continue
			}

			key := counterKey(user, gt, d)
			pipe := s.client.TxPipeline()
			pipe.IncrBy(ctx, key, n)
			pipe.Expire(ctx, key, counterTTL)
			if _, err := pipe.Exec(ctx); err != nil {
				return errors.Join(ErrFailedToMergeSession, err)
			}
		}
	}
	return nil
}

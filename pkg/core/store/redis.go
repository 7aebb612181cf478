package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"finpulse/pkg/models"
)

// RedisStore keeps each user's collections under their own keys. Capped lists
// use LPUSH+LTRIM inside MULTI; the ledger is a hash keyed by date.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	limits Limits
}

var _ HistoryStore = (*RedisStore)(nil)

func NewRedisStore(rdb redis.UniversalClient, prefix string, limits Limits) *RedisStore {
	if prefix == "" {
		prefix = "finpulse"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, limits: limits.normalized()}
}

// NewRedisClient connects and pings, failing fast on a bad address.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

func (s *RedisStore) key(userID, kind string) string {
	return fmt.Sprintf("%s:user:{%s}:%s", s.prefix, userID, kind)
}

func (s *RedisStore) CommitReport(ctx context.Context, userID string, report models.SavedReport) ([]models.SavedReport, error) {
	if err := checkReport(userID, report); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	key := s.key(userID, "reports")
	var list *redis.StringSliceCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, int64(s.limits.Reports-1))
		list = pipe.LRange(ctx, key, 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("commit report: %w", err)
	}
	return decodeList[models.SavedReport](list.Val())
}

func (s *RedisStore) Reports(ctx context.Context, userID string) ([]models.SavedReport, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	vals, err := s.rdb.LRange(ctx, s.key(userID, "reports"), 0, int64(s.limits.Reports-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read reports: %w", err)
	}
	return decodeList[models.SavedReport](vals)
}

func (s *RedisStore) RecordLogin(ctx context.Context, userID string, session models.LoginSession) ([]models.LoginSession, error) {
	if err := checkLogin(userID, session); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal login: %w", err)
	}

	key := s.key(userID, "logins")
	var list *redis.StringSliceCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, int64(s.limits.Logins-1))
		list = pipe.LRange(ctx, key, 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	return decodeList[models.LoginSession](list.Val())
}

func (s *RedisStore) Logins(ctx context.Context, userID string) ([]models.LoginSession, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	vals, err := s.rdb.LRange(ctx, s.key(userID, "logins"), 0, int64(s.limits.Logins-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read logins: %w", err)
	}
	return decodeList[models.LoginSession](vals)
}

func (s *RedisStore) UpsertSalesEntry(ctx context.Context, userID string, entry models.DailySalesEntry) ([]models.DailySalesEntry, error) {
	if err := checkEntry(userID, entry); err != nil {
		return nil, err
	}
	entry.Amount = roundPaise(entry.Amount)
	key := s.key(userID, "sales")
	var all *redis.MapStringStringCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, entry.Date, strconv.FormatFloat(entry.Amount, 'f', -1, 64))
		all = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upsert sales entry: %w", err)
	}
	return decodeLedger(all.Val())
}

func (s *RedisStore) SalesEntries(ctx context.Context, userID string) ([]models.DailySalesEntry, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	vals, err := s.rdb.HGetAll(ctx, s.key(userID, "sales")).Result()
	if err != nil {
		return nil, fmt.Errorf("read sales: %w", err)
	}
	return decodeLedger(vals)
}

// RemoveUser deletes all keys with a single DEL, which Redis applies atomically.
func (s *RedisStore) RemoveUser(ctx context.Context, userID string) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx,
		s.key(userID, "reports"),
		s.key(userID, "logins"),
		s.key(userID, "sales"),
	).Err(); err != nil {
		return fmt.Errorf("remove user %s: %w", userID, err)
	}
	return nil
}

func decodeList[T any](vals []string) ([]T, error) {
	out := make([]T, 0, len(vals))
	for _, v := range vals {
		var item T
		if err := json.Unmarshal([]byte(v), &item); err != nil {
			return nil, fmt.Errorf("decode stored item: %w", err)
		}
		out = append(out, item)
	}
	return out, nil
}

func decodeLedger(vals map[string]string) ([]models.DailySalesEntry, error) {
	out := make([]models.DailySalesEntry, 0, len(vals))
	for date, raw := range vals {
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("decode amount for %s: %w", date, err)
		}
		out = append(out, models.DailySalesEntry{Date: date, Amount: amount})
	}
	sortByDate(out)
	return out, nil
}

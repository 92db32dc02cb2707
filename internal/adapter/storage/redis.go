package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/retry"
	"github.com/redis/go-redis/v9"
)

var _ port.CartStore = (*RedisCartRepository)(nil)

const (
	cartKeyPrefix   = "cart:"
	cartRefPrefix   = "cartref:"
	watchMaxRetries = 5
)

type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
}

func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	const op = "NewRedisClient"

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: redis is unavailable: %w", op, err)
	}
	slog.Info("redis is available", "op", op, "addr", cfg.Addr)
	return rdb, nil
}

type (
	cartRecord struct {
		Items []cartItemRecord `json:"items"`
	}

	cartItemRecord struct {
		PriceID       string `json:"price_id"`
		Quantity      int    `json:"quantity"`
		Available     *bool  `json:"available,omitempty"`
		ProductID     string `json:"product_id,omitempty"`
		ProductName   string `json:"product_name,omitempty"`
		Currency      string `json:"currency,omitempty"`
		UnitAmount    *int64 `json:"unit_amount,omitempty"`
		Interval      string `json:"interval,omitempty"`
		IntervalCount int64  `json:"interval_count,omitempty"`
	}
)

func toCartRecord(items []domain.LineItem) cartRecord {
	rec := cartRecord{Items: make([]cartItemRecord, 0, len(items))}
	for _, it := range items {
		r := cartItemRecord{
			PriceID:     it.ID,
			Quantity:    it.Quantity,
			Available:   it.Available,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Currency:    it.Currency,
			UnitAmount:  it.UnitAmount,
		}
		if it.Recurring != nil {
			r.Interval = it.Recurring.Interval
			r.IntervalCount = it.Recurring.IntervalCount
		}
		rec.Items = append(rec.Items, r)
	}
	return rec
}

func (rec cartRecord) lineItems() []domain.LineItem {
	items := make([]domain.LineItem, 0, len(rec.Items))
	for _, r := range rec.Items {
		it := domain.LineItem{
			ID:          r.PriceID,
			Quantity:    r.Quantity,
			Available:   r.Available,
			ProductID:   r.ProductID,
			ProductName: r.ProductName,
			Currency:    r.Currency,
			UnitAmount:  r.UnitAmount,
		}
		if r.Interval != "" {
			it.Recurring = &domain.Recurring{
				Interval:      r.Interval,
				IntervalCount: r.IntervalCount,
			}
		}
		items = append(items, it)
	}
	return items
}

// RedisCartRepository keeps a cart as one JSON value with a TTL. Reference
// sets map every price and product id to the carts holding it.
type RedisCartRepository struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisCartRepository(rdb redis.UniversalClient, ttl time.Duration) RedisCartRepository {
	return RedisCartRepository{rdb, ttl}
}

func cartKey(cartID string) string {
	return cartKeyPrefix + cartID
}

func refKey(ref string) string {
	return cartRefPrefix + ref
}

func (r RedisCartRepository) LoadCart(
	ctx context.Context, cartID string,
) ([]domain.LineItem, error) {
	const op = "RedisCartRepository.LoadCart"

	rec, err := r.load(ctx, r.rdb, cartID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec.lineItems(), nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r RedisCartRepository) load(
	ctx context.Context, g getter, cartID string,
) (cartRecord, error) {
	b, err := g.Get(ctx, cartKey(cartID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cartRecord{}, nil
		}
		return cartRecord{}, err
	}

	var rec cartRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return cartRecord{}, fmt.Errorf("malformed cart %q: %w", cartID, err)
	}
	return rec, nil
}

func (r RedisCartRepository) SaveCart(
	ctx context.Context, cartID string, items []domain.LineItem,
) error {
	const op = "RedisCartRepository.SaveCart"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if len(items) == 0 {
		if err := r.rdb.Del(ctx, cartKey(cartID)).Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	b, err := json.Marshal(toCartRecord(items))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, cartKey(cartID), b, r.ttl)
		for _, ref := range refs(items) {
			pipe.SAdd(ctx, refKey(ref), cartID)
			if r.ttl > 0 {
				pipe.Expire(ctx, refKey(ref), r.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r RedisCartRepository) DeleteCart(ctx context.Context, cartID string) error {
	const op = "RedisCartRepository.DeleteCart"

	if err := r.rdb.Del(ctx, cartKey(cartID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CartsReferencing returns the reference set of ref. The set may still
// list carts that expired or were deleted.
func (r RedisCartRepository) CartsReferencing(ctx context.Context, ref string) ([]string, error) {
	const op = "RedisCartRepository.CartsReferencing"

	cartIDs, err := r.rdb.SMembers(ctx, refKey(ref)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cartIDs, nil
}

// FlagUnavailable rewrites the cart optimistically and retries when it
// changed underneath. A cart that no longer exists is dropped from the
// reference set of ref.
func (r RedisCartRepository) FlagUnavailable(
	ctx context.Context, cartID, ref string,
) (int, error) {
	const op = "RedisCartRepository.FlagUnavailable"

	retryCfg := retry.RetryConfig{
		MaxAttempts: watchMaxRetries,
		Backoff:     retry.ExponentialBackoff(10 * time.Millisecond),
		ShouldRetry: func(err error) bool { return errors.Is(err, redis.TxFailedErr) },
	}

	n, err := retry.DoWithResult(ctx, retryCfg, func() (int, error) {
		return r.flagCart(ctx, cartID, ref)
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if n < 0 {
		slog.Debug("dropping stale reference", "op", op, "ref", ref, "cartID", cartID)
		if err := r.rdb.SRem(ctx, refKey(ref), cartID).Err(); err != nil {
			slog.Warn("failed to drop stale reference",
				"op", op, "ref", ref, "cartID", cartID, "err", err)
		}
		return 0, nil
	}
	return n, nil
}

// flagCart returns -1 when the cart does not exist.
func (r RedisCartRepository) flagCart(ctx context.Context, cartID, ref string) (int, error) {
	key := cartKey(cartID)
	var flagged int

	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		flagged = 0

		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			flagged = -1
			return nil
		}

		rec, err := r.load(ctx, tx, cartID)
		if err != nil {
			return err
		}

		unavailable := false
		for i := range rec.Items {
			it := &rec.Items[i]
			if it.PriceID != ref && it.ProductID != ref {
				continue
			}
			if it.Available != nil && !*it.Available {
				continue
			}
			it.Available = &unavailable
			flagged++
		}
		if flagged == 0 {
			return nil
		}

		b, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return 0, err
	}
	return flagged, nil
}

func refs(items []domain.LineItem) []string {
	seen := make(map[string]struct{}, len(items)*2)
	out := make([]string, 0, len(items)*2)
	for _, it := range items {
		for _, ref := range []string{it.ID, it.ProductID} {
			if ref == "" {
				continue
			}
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			out = append(out, ref)
		}
	}
	return out
}

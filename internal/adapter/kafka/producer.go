package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/retry"
	"github.com/twmb/franz-go/pkg/kgo"
)

var _ port.CatalogChangeProducer = (*CatalogChangesProducer)(nil)

// A producer is used for composition.
//
// Producing records to kafka broker and closing underlying [kgo.Client].
type producer struct {
	opPrefix string
	cl       ProducerClient
	retry    retry.RetryConfig
}

func (p producer) close() {
	const op = "close"
	log := slog.With("op", makeOp(p.opPrefix, op))
	log.Info("closing producer...")
	p.cl.Close()
	log.Info("producer is closed")
}

func (p producer) produce(
	ctx context.Context, rs ...*kgo.Record,
) error {
	const op = "produce"
	err := retry.Do(ctx, p.retry, func() error {
		return p.cl.ProduceSync(ctx, rs...).FirstErr()
	})
	if err != nil {
		return opErr(err, p.opPrefix, op)
	}
	return nil
}

func produceShouldRetry(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, kgo.ErrClientClosed)
}

// A CatalogChangesProducer publishes [domain.CatalogChange] keyed by the
// price or product id, so changes of one ref stay ordered.
type CatalogChangesProducer struct {
	producer producer
	encoder  Encoder
	opPrefix string
}

func NewCatalogChangesProducer(
	opts ...ProducerOpt,
) (CatalogChangesProducer, error) {
	const op = "NewCatalogChangesProducer"

	if len(opts) != 2 {
		panic(opErr(ErrTooFewOpts, op)) // develop mistake
	}

	var options producerOpts
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return CatalogChangesProducer{}, opErr(err, op)
		}
	}

	opPrefix := "CatalogChangesProducer"
	p := producer{
		opPrefix: opPrefix,
		cl:       options.cl,
		retry: retry.RetryConfig{
			MaxAttempts: 3,
			Backoff:     retry.ExponentialBackoff(200 * time.Millisecond),
			ShouldRetry: produceShouldRetry,
		},
	}

	return CatalogChangesProducer{
		producer: p,
		encoder:  options.encoder,
		opPrefix: opPrefix,
	}, nil
}

func (p CatalogChangesProducer) Close() {
	p.producer.close()
}

func (p CatalogChangesProducer) ProduceCatalogChange(
	ctx context.Context, change domain.CatalogChange,
) error {
	const op = "ProduceCatalogChange"

	if err := ctx.Err(); err != nil {
		return opErr(err, p.opPrefix, op)
	}

	r, err := p.createRecord(change)
	if err != nil {
		return opErr(err, p.opPrefix, op)
	}

	if err := p.producer.produce(ctx, r); err != nil {
		return opErr(err, p.opPrefix, op)
	}

	slog.Debug(
		"catalog change produced",
		"op", makeOp(p.opPrefix, op),
		"ref", change.Ref,
		"available", change.Available,
	)
	return nil
}

func (p CatalogChangesProducer) createRecord(
	v domain.CatalogChange,
) (*kgo.Record, error) {
	const op = "createRecord"

	s := catalogChangeToSchemaV1(v)
	b, err := p.encoder.Encode(s)
	if err != nil {
		return nil, opErr(err, p.opPrefix, op)
	}
	return &kgo.Record{Key: []byte(s.Ref), Value: b}, nil
}

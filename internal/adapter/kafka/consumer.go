package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/schema"
	"github.com/twmb/franz-go/pkg/kgo"
)

var _ port.CatalogChangesConsumer = CatalogChangesConsumer{}

const slowDownDelay = time.Second

////////////////////////////////////////////////////////
///////////////           OPTS            //////////////
////////////////////////////////////////////////////////

type ConsumerOpt func(*consumerOpts) error

func ConsumerClientOpt(
	seedBrokers []string, topic, group string, tlsConfig *tls.Config,
) ConsumerOpt {
	return func(co *consumerOpts) error {
		kopts := []kgo.Opt{
			kgo.SeedBrokers(seedBrokers...),
			kgo.ConsumeTopics(topic),
			kgo.ConsumerGroup(group),
			kgo.DisableAutoCommit(),
		}
		kopts = append(kopts, tlsOpts(tlsConfig)...)

		cl, err := kgo.NewClient(kopts...)
		if err != nil {
			return err
		}
		co.cl = cl
		return nil
	}
}

func ConsumerDecoderOpt(decoder Decoder) ConsumerOpt {
	return func(co *consumerOpts) error {
		if decoder == nil {
			return errors.New("decoder is nil")
		}
		co.decoder = decoder
		return nil
	}
}

func ConsumerApplierOpt(applier port.CatalogChangesApplier) ConsumerOpt {
	return func(co *consumerOpts) error {
		if applier == nil {
			return errors.New("catalog changes applier is nil")
		}
		co.applier = applier
		return nil
	}
}

type consumerOpts struct {
	cl      ConsumerClient
	decoder Decoder
	applier port.CatalogChangesApplier
}

func (co *consumerOpts) apply(opts ...ConsumerOpt) error {
	for _, opt := range opts {
		if err := opt(co); err != nil {
			return err
		}
	}
	if co.cl == nil || co.decoder == nil || co.applier == nil {
		return ErrTooFewOpts
	}
	return nil
}

////////////////////////////////////////////////////////
////////////           CONSUMERS            ////////////
////////////////////////////////////////////////////////

type consumerParent interface {
	processFetches(context.Context, kgo.Fetches) error
}

// A consumer is used for composition.
//
// Fetching records from kafka broker and closing underlying [kgo.Client].
type consumer struct {
	opPrefix      string
	parent        consumerParent
	cl            ConsumerClient
	slowDownTimer *time.Timer
	slowDownDelay time.Duration
}

func (c consumer) run(ctx context.Context, stopFn context.CancelFunc) {
	const op = "run"
	log := slog.With("op", makeOp(c.opPrefix, op))

	log.Info("running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			err := c.consume(ctx)
			if err == nil {
				continue
			}
			if errors.Is(err, context.Canceled) {
				continue
			}
			if errors.Is(err, kgo.ErrClientClosed) {
				log.Error("client closed", "err", err)
				stopFn()
				return
			}
			log.Error("failed to consume", "err", err)
			c.slowDown(ctx)
		}
	}
}

func (c consumer) consume(ctx context.Context) error {
	const op = "consume"

	fetches, err := c.pollFetches(ctx)
	if err != nil {
		return opErr(err, c.opPrefix, op)
	}

	if fetches.Empty() {
		return nil
	}

	err = c.process(ctx, fetches)
	if err != nil {
		return opErr(err, c.opPrefix, op)
	}

	err = c.commit(ctx)
	if err != nil {
		return opErr(err, c.opPrefix, op)
	}
	return nil
}

// process applies the batch until it succeeds or ctx is done. The next
// poll would move past the batch, so a failed batch is never left behind.
func (c consumer) process(ctx context.Context, fetches kgo.Fetches) error {
	const op = "process"
	log := slog.With("op", makeOp(c.opPrefix, op))

	for {
		err := c.parent.processFetches(ctx, fetches)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return opErr(err, c.opPrefix, op)
		}
		log.Error("failed to process fetches, retrying", "err", err)
		c.slowDown(ctx)
	}
}

func (c consumer) pollFetches(ctx context.Context) (kgo.Fetches, error) {
	const op = "pollFetches"

	fetches := c.cl.PollFetches(ctx)
	if err := fetches.Err0(); err != nil {
		return nil, opErr(err, c.opPrefix, op)
	}

	err := c.handleFetchesErrs(fetches)
	if err != nil {
		return nil, opErr(err, c.opPrefix, op)
	}

	return fetches, nil
}

func (c consumer) handleFetchesErrs(fetches kgo.Fetches) error {
	var errsMessages []string
	fetches.EachError(func(t string, p int32, err error) {
		if err != nil {
			errMsg := fmt.Sprintf(
				"topic %q partition %d: %q", t, p, err,
			)
			errsMessages = append(errsMessages, errMsg)
		}
	})

	if len(errsMessages) != 0 {
		return errors.New(strings.Join(errsMessages, "; "))
	}
	return nil
}

func (c consumer) slowDown(ctx context.Context) {
	c.slowDownTimer.Reset(c.slowDownDelay)
	select {
	case <-ctx.Done():
	case <-c.slowDownTimer.C:
	}
}

func (c consumer) commit(ctx context.Context) error {
	const op = "commit"

	err := ctx.Err()
	if err != nil {
		return opErr(err, c.opPrefix, op)
	}

	err = c.cl.CommitUncommittedOffsets(ctx)
	if err != nil {
		return opErr(err, c.opPrefix, op)
	}
	return nil
}

func (c consumer) close() {
	const op = "close"
	log := slog.With("op", makeOp(c.opPrefix, op))

	c.slowDownTimer.Stop()

	log.Info("closing consumer...")
	c.cl.Close()
	log.Info("consumer is closed")
}

// A CatalogChangesConsumer consumes catalog changes
// then sends them to the core service to flag stored cart entries.
type CatalogChangesConsumer struct {
	opPrefix string
	consumer consumer
	applier  port.CatalogChangesApplier
	decoder  Decoder
}

func NewCatalogChangesConsumer(
	opts ...ConsumerOpt,
) (cc CatalogChangesConsumer, err error) {
	const op = "NewCatalogChangesConsumer"

	var options consumerOpts
	if err := options.apply(opts...); err != nil {
		return cc, opErr(err, op)
	}

	opPrefix := "CatalogChangesConsumer"

	cc.opPrefix = opPrefix
	cc.applier = options.applier
	cc.decoder = options.decoder

	timer := time.NewTimer(0)
	<-timer.C

	cc.consumer = consumer{
		opPrefix:      opPrefix,
		parent:        cc,
		cl:            options.cl,
		slowDownTimer: timer,
		slowDownDelay: slowDownDelay,
	}

	return cc, nil
}

func (c CatalogChangesConsumer) Run(ctx context.Context, stopFn context.CancelFunc) {
	c.consumer.run(ctx, stopFn)
}

func (c CatalogChangesConsumer) Close() {
	c.consumer.close()
}

func (c CatalogChangesConsumer) processFetches(
	ctx context.Context, fetches kgo.Fetches,
) error {
	const op = "processFetches"

	values := c.toDomain(fetches)
	if len(values) == 0 {
		return nil
	}

	err := c.applier.ApplyCatalogChanges(ctx, values)
	if err != nil {
		return opErr(err, c.opPrefix, op)
	}
	return nil
}

func (c CatalogChangesConsumer) toDomain(
	fetches kgo.Fetches,
) (vs []domain.CatalogChange) {
	const op = "toDomain"
	log := slog.With("op", makeOp(c.opPrefix, op))

	fetches.EachRecord(func(r *kgo.Record) {
		v, err := c.decodeRecValue(r)
		if err != nil {
			log.Error(
				"failed to decode value",
				"err", opErr(err, c.opPrefix, op),
				"key", string(r.Key),
				"offset", r.Offset,
			)
			return
		}
		vs = append(vs, v)
	})
	return vs
}

func (c CatalogChangesConsumer) decodeRecValue(
	r *kgo.Record,
) (domain.CatalogChange, error) {
	var s schema.CatalogChangeV1
	err := c.decoder.Decode(r.Value, &s)
	if err != nil {
		return domain.CatalogChange{}, err
	}
	return schemaV1ToCatalogChange(s), nil
}

package kafka

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lovoo/goka"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/schema"
)

var _ port.AvailabilityProcessor = (*AvailabilityProcessor)(nil)

// A processor is used for composition.
//
// Running and closing the underlying [goka.Processor]
type processor struct {
	opPrefix string
	gp       *goka.Processor
}

func (p *processor) run(ctx context.Context, stopFn context.CancelFunc) {
	const op = "run"
	log := slog.With("op", makeOp(p.opPrefix, op))

	go p.runProc(ctx, stopFn)

	log.Info("preparing...")
	if p.waitForReady(ctx) {
		log.Info("running")
	}
}

func (p *processor) runProc(ctx context.Context, stopFn context.CancelFunc) {
	const op = "runProc"
	log := slog.With("op", makeOp(p.opPrefix, op))

	defer stopFn()

	err := p.gp.Run(ctx)
	if err != nil {
		log.Error("stopped", "err", err)
		return
	}
	log.Info("stopped")
}

func (p *processor) waitForReady(ctx context.Context) bool {
	const op = "waitForReady"
	log := slog.With("op", makeOp(p.opPrefix, op))

	err := p.gp.WaitForReadyContext(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("fall down while preparing", "err", err)
		}
		return false
	}
	return true
}

func (p *processor) close() {
	const op = "close"
	log := slog.With("op", makeOp(p.opPrefix, op))

	log.Info("closing processor...")
	p.gp.Stop()
	log.Info("processor is closed")
}

// A catalogChangeCodec used for serde [schema.CatalogChangeV1]
type catalogChangeCodec struct {
	serde Serde
}

func newCatalogChangeCodec(s Serde) catalogChangeCodec {
	return catalogChangeCodec{s}
}

func (c catalogChangeCodec) Encode(v any) ([]byte, error) {
	const op = "catalogChangeCodec.Encode"
	if _, ok := v.(schema.CatalogChangeV1); !ok {
		return nil, opErr(ErrInvalidValueType, op)
	}
	return c.serde.Encode(v)
}

func (c catalogChangeCodec) Decode(data []byte) (any, error) {
	const op = "catalogChangeCodec.Decode"
	var s schema.CatalogChangeV1
	err := c.serde.Decode(data, &s)
	if err != nil {
		return nil, opErr(err, op)
	}
	return s, nil
}

// An availabilityCodec used for serde [schema.AvailabilityV1] table values.
// Table values are plain avro without the registry header.
type availabilityCodec struct {
	encode func(v any) ([]byte, error)
	decode func([]byte, any) error
}

func newAvailabilityCodec() availabilityCodec {
	s := schema.AvailabilityV1Avro()
	return availabilityCodec{
		encode: schema.AvroEncodeFn(s),
		decode: schema.AvroDecodeFn(s),
	}
}

func (c availabilityCodec) Encode(v any) ([]byte, error) {
	const op = "availabilityCodec.Encode"
	if _, ok := v.(schema.AvailabilityV1); !ok {
		return nil, opErr(ErrInvalidValueType, op)
	}
	data, err := c.encode(v)
	if err != nil {
		return nil, opErr(err, op)
	}
	return data, nil
}

func (c availabilityCodec) Decode(data []byte) (any, error) {
	const op = "availabilityCodec.Decode"
	var s schema.AvailabilityV1
	if err := c.decode(data, &s); err != nil {
		return nil, opErr(err, op)
	}
	return s, nil
}

// An AvailabilityProcessor folds the catalog changes stream into a group
// table holding the latest availability per price or product id.
type AvailabilityProcessor struct {
	opPrefix string
	proc     processor
}

func NewAvailabilityProc(
	seedBrokers []string,
	inputStream string,
	group string,
	catalogChangeSerde Serde,
) (*AvailabilityProcessor, error) {
	const op = "NewAvailabilityProc"

	p := AvailabilityProcessor{opPrefix: "AvailabilityProcessor"}

	gg := goka.DefineGroup(goka.Group(group),
		goka.Input(
			goka.Stream(inputStream),
			newCatalogChangeCodec(catalogChangeSerde),
			p.processFn,
		),
		goka.Persist(newAvailabilityCodec()),
	)

	gp, err := goka.NewProcessor(seedBrokers, gg, withNonlogProcOpt())
	if err != nil {
		return nil, opErr(err, op)
	}

	p.proc = processor{
		opPrefix: p.opPrefix,
		gp:       gp,
	}

	return &p, nil
}

func (p *AvailabilityProcessor) Run(
	ctx context.Context, stopFn context.CancelFunc,
) {
	p.proc.run(ctx, stopFn)
}

func (p *AvailabilityProcessor) Close() {
	p.proc.close()
}

func (p *AvailabilityProcessor) processFn(ctx goka.Context, msg any) {
	const op = "processFn"
	log := slog.With("op", makeOp(p.opPrefix, op), "ref", ctx.Key())

	change, ok := msg.(schema.CatalogChangeV1)
	if !ok {
		log.Error("unexpected message", "err", ErrInvalidValueType)
		return
	}

	next, ok := nextAvailability(ctx.Value(), change)
	if !ok {
		log.Debug("outdated change skipped", "occurredAt", change.OccurredAt)
		return
	}
	ctx.SetValue(next)
	log.Debug("set availability", "available", next.Available)
}

// nextAvailability returns the table value after applying change. False
// means the stored value is newer than change.
func nextAvailability(
	current any, change schema.CatalogChangeV1,
) (schema.AvailabilityV1, bool) {
	if stored, ok := current.(schema.AvailabilityV1); ok {
		if stored.UpdatedAt.After(change.OccurredAt) {
			return stored, false
		}
	}
	return schema.AvailabilityV1{
		Available: change.Available,
		UpdatedAt: change.OccurredAt,
	}, true
}

package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lovoo/goka"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/schema"
)

var _ port.AvailabilityView = AvailabilityView{}

type tableView interface {
	Get(key string) (any, error)
	Recovered() bool
}

// AvailabilityView reads the availability group table. Refs are unknown
// until the local copy of the table has recovered.
type AvailabilityView struct {
	gv *goka.View
	tv tableView
}

func NewAvailabilityView(
	seedBrokers []string, group string,
) (AvailabilityView, error) {
	const op = "NewAvailabilityView"

	gv, err := goka.NewView(
		seedBrokers,
		goka.GroupTable(goka.Group(group)),
		newAvailabilityCodec(),
	)
	if err != nil {
		return AvailabilityView{}, opErr(err, op)
	}

	return AvailabilityView{gv: gv, tv: gv}, nil
}

func (v AvailabilityView) Run(ctx context.Context, stopFn context.CancelFunc) {
	const op = "AvailabilityView.Run"
	log := slog.With("op", op)

	defer stopFn()

	log.Info("running")
	err := v.gv.Run(ctx)
	if err != nil {
		log.Error("unexpected fail on run", "err", err)
		return
	}
	log.Info("stopped")
}

func (v AvailabilityView) Availability(ref string) (available, known bool, err error) {
	const op = "AvailabilityView.Availability"

	if !v.tv.Recovered() {
		return false, false, nil
	}

	value, err := v.tv.Get(ref)
	if err != nil {
		return false, false, opErr(err, op)
	}

	if value == nil {
		return false, false, nil
	}

	s, ok := value.(schema.AvailabilityV1)
	if !ok {
		return false, false, opErr(
			fmt.Errorf("%w: %T", ErrInvalidValueType, value), op,
		)
	}
	return s.Available, true, nil
}

package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

// avroSerde encodes catalog changes as plain avro, without registry framing.
type avroSerde struct {
	encode func(v any) ([]byte, error)
	decode func([]byte, any) error
}

func newAvroSerde() avroSerde {
	s := schema.CatalogChangeV1Avro()
	return avroSerde{schema.AvroEncodeFn(s), schema.AvroDecodeFn(s)}
}

func (s avroSerde) Encode(v any) ([]byte, error) { return s.encode(v) }

func (s avroSerde) Decode(b []byte, v any) error { return s.decode(b, v) }

type fakeProducerClient struct {
	mu      sync.Mutex
	errs    []error
	records []*kgo.Record
	calls   int
	closed  bool
}

func (c *fakeProducerClient) ProduceSync(
	_ context.Context, rs ...*kgo.Record,
) kgo.ProduceResults {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.calls < len(c.errs) {
		err = c.errs[c.calls]
	}
	c.calls++

	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if err == nil {
			c.records = append(c.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: err})
	}
	return results
}

func (c *fakeProducerClient) Close() { c.closed = true }

type fakeConsumerClient struct {
	fetches   kgo.Fetches
	commitErr error
	commits   int
	closed    bool
}

func (c *fakeConsumerClient) PollFetches(context.Context) kgo.Fetches {
	return c.fetches
}

func (c *fakeConsumerClient) CommitUncommittedOffsets(context.Context) error {
	c.commits++
	return c.commitErr
}

func (c *fakeConsumerClient) Close() { c.closed = true }

type MockApplier struct {
	mock.Mock
}

func (m *MockApplier) ApplyCatalogChanges(
	ctx context.Context, changes []domain.CatalogChange,
) error {
	args := m.Called(ctx, changes)
	return args.Error(0)
}

var occurredAt = time.UnixMilli(1700000000000).UTC()

func newTestProducer(cl ProducerClient) CatalogChangesProducer {
	p, err := NewCatalogChangesProducer(
		func(o *producerOpts) error { o.cl = cl; return nil },
		ProducerEncoderOpt(newAvroSerde()),
	)
	if err != nil {
		panic(err)
	}
	p.producer.retry.Backoff = func(int) time.Duration { return time.Millisecond }
	return p
}

func TestCatalogChangesProducer(t *testing.T) {
	change := domain.CatalogChange{
		Ref:        "price_1",
		Kind:       domain.RefPrice,
		ProductID:  "prod_1",
		Available:  false,
		OccurredAt: occurredAt,
	}

	t.Run("KeyedByRef", func(t *testing.T) {
		cl := new(fakeProducerClient)
		p := newTestProducer(cl)

		require.NoError(t, p.ProduceCatalogChange(t.Context(), change))
		require.Len(t, cl.records, 1)
		assert.Equal(t, "price_1", string(cl.records[0].Key))

		var s schema.CatalogChangeV1
		require.NoError(t, newAvroSerde().Decode(cl.records[0].Value, &s))
		got := schemaV1ToCatalogChange(s)
		assert.Equal(t, change.Ref, got.Ref)
		assert.Equal(t, change.Kind, got.Kind)
		assert.Equal(t, change.ProductID, got.ProductID)
		assert.False(t, got.Available)
		assert.True(t, change.OccurredAt.Equal(got.OccurredAt))
	})

	t.Run("RetriesBrokerError", func(t *testing.T) {
		cl := &fakeProducerClient{errs: []error{errors.New("not leader")}}
		p := newTestProducer(cl)

		require.NoError(t, p.ProduceCatalogChange(t.Context(), change))
		assert.Equal(t, 2, cl.calls)
		assert.Len(t, cl.records, 1)
	})

	t.Run("GivesUp", func(t *testing.T) {
		brokerErr := errors.New("not leader")
		cl := &fakeProducerClient{errs: []error{brokerErr, brokerErr, brokerErr}}
		p := newTestProducer(cl)

		err := p.ProduceCatalogChange(t.Context(), change)
		assert.ErrorIs(t, err, brokerErr)
		assert.Equal(t, 3, cl.calls)
	})

	t.Run("ClientClosed", func(t *testing.T) {
		cl := &fakeProducerClient{errs: []error{kgo.ErrClientClosed}}
		p := newTestProducer(cl)

		err := p.ProduceCatalogChange(t.Context(), change)
		assert.ErrorIs(t, err, kgo.ErrClientClosed)
		assert.Equal(t, 1, cl.calls)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		cl := new(fakeProducerClient)
		p := newTestProducer(cl)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		err := p.ProduceCatalogChange(ctx, change)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, cl.calls)
	})

	t.Run("Close", func(t *testing.T) {
		cl := new(fakeProducerClient)
		newTestProducer(cl).Close()
		assert.True(t, cl.closed)
	})
}

func TestNewCatalogChangesConsumer(t *testing.T) {
	_, err := NewCatalogChangesConsumer(ConsumerDecoderOpt(newAvroSerde()))
	assert.ErrorIs(t, err, ErrTooFewOpts)

	_, err = NewCatalogChangesConsumer(ConsumerApplierOpt(nil))
	assert.Error(t, err)
}

func recordFetches(rs ...*kgo.Record) kgo.Fetches {
	return kgo.Fetches{{
		Topics: []kgo.FetchTopic{{
			Topic: "catalog-changes",
			Partitions: []kgo.FetchPartition{{
				Partition: 0,
				Records:   rs,
			}},
		}},
	}}
}

func encodedRecord(t *testing.T, s schema.CatalogChangeV1) *kgo.Record {
	t.Helper()
	b, err := newAvroSerde().Encode(s)
	require.NoError(t, err)
	return &kgo.Record{Key: []byte(s.Ref), Value: b}
}

func newTestConsumer(
	t *testing.T, cl ConsumerClient, applier *MockApplier,
) CatalogChangesConsumer {
	t.Helper()
	c, err := NewCatalogChangesConsumer(
		func(o *consumerOpts) error { o.cl = cl; return nil },
		ConsumerDecoderOpt(newAvroSerde()),
		ConsumerApplierOpt(applier),
	)
	require.NoError(t, err)
	return c
}

func refs(want ...string) any {
	return mock.MatchedBy(func(changes []domain.CatalogChange) bool {
		if len(changes) != len(want) {
			return false
		}
		for i, c := range changes {
			if c.Ref != want[i] || !c.OccurredAt.Equal(occurredAt) {
				return false
			}
		}
		return true
	})
}

func TestCatalogChangesConsumerConsume(t *testing.T) {
	deleted := schema.CatalogChangeV1{
		Ref: "prod_1", Kind: "product", ProductID: "prod_1", OccurredAt: occurredAt,
	}
	restored := schema.CatalogChangeV1{
		Ref: "price_2", Kind: "price", ProductID: "prod_2", Available: true, OccurredAt: occurredAt,
	}

	t.Run("AppliesAndCommits", func(t *testing.T) {
		cl := &fakeConsumerClient{
			fetches: recordFetches(encodedRecord(t, deleted), encodedRecord(t, restored)),
		}
		applier := new(MockApplier)
		applier.On("ApplyCatalogChanges", mock.Anything, refs("prod_1", "price_2")).Return(nil)

		c := newTestConsumer(t, cl, applier)
		require.NoError(t, c.consumer.consume(t.Context()))
		assert.Equal(t, 1, cl.commits)
		applier.AssertExpectations(t)
	})

	t.Run("SkipsUndecodable", func(t *testing.T) {
		cl := &fakeConsumerClient{
			fetches: recordFetches(
				&kgo.Record{Key: []byte("junk"), Value: []byte{0xff}},
				encodedRecord(t, deleted),
			),
		}
		applier := new(MockApplier)
		applier.On("ApplyCatalogChanges", mock.Anything, refs("prod_1")).Return(nil)

		c := newTestConsumer(t, cl, applier)
		require.NoError(t, c.consumer.consume(t.Context()))
		assert.Equal(t, 1, cl.commits)
		applier.AssertExpectations(t)
	})

	t.Run("RetriesFailedBatch", func(t *testing.T) {
		applyErr := errors.New("store down")
		cl := &fakeConsumerClient{fetches: recordFetches(encodedRecord(t, deleted))}
		applier := new(MockApplier)
		applier.On("ApplyCatalogChanges", mock.Anything, refs("prod_1")).Return(applyErr).Once()
		applier.On("ApplyCatalogChanges", mock.Anything, refs("prod_1")).Return(nil).Once()

		c := newTestConsumer(t, cl, applier)
		c.consumer.slowDownDelay = time.Millisecond
		require.NoError(t, c.consumer.consume(t.Context()))
		assert.Equal(t, 1, cl.commits)
		applier.AssertExpectations(t)
		applier.AssertNumberOfCalls(t, "ApplyCatalogChanges", 2)
	})

	t.Run("ApplyFailsNoCommit", func(t *testing.T) {
		applyErr := errors.New("store down")
		cl := &fakeConsumerClient{fetches: recordFetches(encodedRecord(t, deleted))}
		applier := new(MockApplier)

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		applier.On("ApplyCatalogChanges", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(applyErr)

		c := newTestConsumer(t, cl, applier)
		err := c.consumer.consume(ctx)
		assert.ErrorIs(t, err, applyErr)
		assert.Zero(t, cl.commits)
		applier.AssertNumberOfCalls(t, "ApplyCatalogChanges", 1)
	})

	t.Run("FetchError", func(t *testing.T) {
		fetchErr := errors.New("broker gone")
		cl := &fakeConsumerClient{fetches: kgo.NewErrFetch(fetchErr)}
		applier := new(MockApplier)

		c := newTestConsumer(t, cl, applier)
		err := c.consumer.consume(t.Context())
		assert.ErrorIs(t, err, fetchErr)
		assert.Zero(t, cl.commits)
		applier.AssertNotCalled(t, "ApplyCatalogChanges", mock.Anything, mock.Anything)
	})

	t.Run("Empty", func(t *testing.T) {
		cl := &fakeConsumerClient{fetches: recordFetches()}
		c := newTestConsumer(t, cl, new(MockApplier))
		require.NoError(t, c.consumer.consume(t.Context()))
		assert.Zero(t, cl.commits)
	})

	t.Run("ClientClosedStopsRun", func(t *testing.T) {
		cl := &fakeConsumerClient{fetches: kgo.NewErrFetch(kgo.ErrClientClosed)}
		c := newTestConsumer(t, cl, new(MockApplier))

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		c.Run(ctx, cancel)
		assert.ErrorIs(t, ctx.Err(), context.Canceled)

		c.Close()
		assert.True(t, cl.closed)
	})
}

func TestNextAvailability(t *testing.T) {
	earlier := occurredAt.Add(-time.Minute)
	later := occurredAt.Add(time.Minute)

	tests := []struct {
		name    string
		current any
		change  schema.CatalogChangeV1
		want    schema.AvailabilityV1
		applied bool
	}{
		{
			name:    "Empty",
			current: nil,
			change:  schema.CatalogChangeV1{Available: false, OccurredAt: occurredAt},
			want:    schema.AvailabilityV1{Available: false, UpdatedAt: occurredAt},
			applied: true,
		},
		{
			name:    "Newer",
			current: schema.AvailabilityV1{Available: false, UpdatedAt: earlier},
			change:  schema.CatalogChangeV1{Available: true, OccurredAt: occurredAt},
			want:    schema.AvailabilityV1{Available: true, UpdatedAt: occurredAt},
			applied: true,
		},
		{
			name:    "Outdated",
			current: schema.AvailabilityV1{Available: false, UpdatedAt: later},
			change:  schema.CatalogChangeV1{Available: true, OccurredAt: occurredAt},
			want:    schema.AvailabilityV1{Available: false, UpdatedAt: later},
			applied: false,
		},
		{
			name:    "SameInstant",
			current: schema.AvailabilityV1{Available: true, UpdatedAt: occurredAt},
			change:  schema.CatalogChangeV1{Available: false, OccurredAt: occurredAt},
			want:    schema.AvailabilityV1{Available: false, UpdatedAt: occurredAt},
			applied: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, applied := nextAvailability(tt.current, tt.change)
			assert.Equal(t, tt.applied, applied)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodecs(t *testing.T) {
	t.Run("Availability", func(t *testing.T) {
		c := newAvailabilityCodec()
		v := schema.AvailabilityV1{Available: true, UpdatedAt: occurredAt}

		data, err := c.Encode(v)
		require.NoError(t, err)
		got, err := c.Decode(data)
		require.NoError(t, err)
		assert.True(t, got.(schema.AvailabilityV1).Available)
		assert.True(t, got.(schema.AvailabilityV1).UpdatedAt.Equal(occurredAt))

		_, err = c.Encode(true)
		assert.ErrorIs(t, err, ErrInvalidValueType)
	})

	t.Run("CatalogChange", func(t *testing.T) {
		c := newCatalogChangeCodec(newAvroSerde())
		v := schema.CatalogChangeV1{Ref: "prod_1", Kind: "product", OccurredAt: occurredAt}

		data, err := c.Encode(v)
		require.NoError(t, err)
		got, err := c.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, "prod_1", got.(schema.CatalogChangeV1).Ref)

		_, err = c.Encode(domain.CatalogChange{})
		assert.ErrorIs(t, err, ErrInvalidValueType)

		_, err = c.Decode([]byte{0xff})
		assert.Error(t, err)
	})
}

type fakeTableView struct {
	recovered bool
	values    map[string]any
	err       error
}

func (v fakeTableView) Get(key string) (any, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.values[key], nil
}

func (v fakeTableView) Recovered() bool { return v.recovered }

func TestAvailabilityView(t *testing.T) {
	values := map[string]any{
		"prod_1":  schema.AvailabilityV1{Available: false, UpdatedAt: occurredAt},
		"price_2": schema.AvailabilityV1{Available: true, UpdatedAt: occurredAt},
		"bad":     "oops",
	}

	tests := []struct {
		name      string
		view      fakeTableView
		ref       string
		available bool
		known     bool
		wantErr   bool
	}{
		{"Unavailable", fakeTableView{true, values, nil}, "prod_1", false, true, false},
		{"Available", fakeTableView{true, values, nil}, "price_2", true, true, false},
		{"Unknown", fakeTableView{true, values, nil}, "prod_9", false, false, false},
		{"Recovering", fakeTableView{false, values, nil}, "prod_1", false, false, false},
		{"UnexpectedValue", fakeTableView{true, values, nil}, "bad", false, false, true},
		{"GetFails", fakeTableView{true, nil, errors.New("closed")}, "prod_1", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := AvailabilityView{tv: tt.view}
			available, known, err := v.Availability(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.available, available)
			assert.Equal(t, tt.known, known)
		})
	}
}

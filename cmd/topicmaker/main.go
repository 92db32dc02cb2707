package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lovoo/goka"
	"github.com/niksmo/storefront/config"
	"github.com/niksmo/storefront/internal/adapter"
	"github.com/niksmo/storefront/pkg/sigctx"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	partitions        = 3
	replicationFactor = 3
	deletePolicy      = "delete"
	compactPolicy     = "compact"
)

// catalogChangesRetention keeps a week of changes so a new consumer group
// can replay recent availability.
const catalogChangesRetention = "604800000"

func main() {
	sigCtx, closeApp := sigctx.NotifyContext()
	defer closeApp()

	cfg := config.Load()

	cl := createClient(cfg)
	defer cl.Close()

	availabilityTable := toGroupTable(cfg.Broker.Consumers.AvailabilityGroup)

	printStart(cfg.Broker.Topics.CatalogChanges, availabilityTable)
	defer printComplete(time.Now())

	// stream topics
	err := makeTopics(
		sigCtx, cl, deletePolicy,
		map[string]*string{"retention.ms": ptr(catalogChangesRetention)},
		cfg.Broker.Topics.CatalogChanges,
	)
	if err != nil {
		printFail(err)
		return
	}

	// group table topics
	err = makeTopics(sigCtx, cl, compactPolicy, nil, availabilityTable)
	if err != nil {
		printFail(err)
		return
	}
}

func createClient(cfg config.Config) *kadm.Client {
	opts := []kgo.Opt{kgo.SeedBrokers(cfg.Broker.SeedBrokers...)}

	t := cfg.Broker.TLS
	if t.Enabled() {
		opts = append(opts, kgo.DialTLSConfig(
			adapter.MakeTLSConfig(t.CAFile, t.CertFile, t.KeyFile),
		))
	}

	cl, err := kadm.NewOptClient(opts...)
	if err != nil {
		panic(err) // develop mistake
	}
	return cl
}

func makeTopics(
	ctx context.Context,
	cl *kadm.Client,
	cleanupPolicy string,
	extra map[string]*string,
	topics ...string,
) error {
	config := map[string]*string{
		"cleanup.policy":      ptr(cleanupPolicy),
		"min.insync.replicas": ptr("2"),
	}
	for k, v := range extra {
		config[k] = v
	}

	responses, err := cl.CreateTopics(
		ctx,
		partitions,
		replicationFactor,
		config,
		topics...,
	)
	if err != nil {
		return err
	}

	var errs []error
	for _, res := range responses.Sorted() {
		err := res.Err
		if err != nil {
			if errors.Is(res.Err, kerr.TopicAlreadyExists) {
				fmt.Printf("topic: %q already exists\n", res.Topic)
			} else {
				errs = append(errs, fmt.Errorf("topic %q: %w", res.Topic, err))
			}
			continue
		}
		fmt.Printf("topic: %q successfully created\n", res.Topic)
	}

	return errors.Join(errs...)
}

func ptr(s string) *string {
	return &s
}

func printStart(topics ...string) {
	fmt.Println("initializing topics...")
	for _, topic := range topics {
		fmt.Printf("\t- %q\n", topic)
	}
	fmt.Println()
}

func printComplete(start time.Time) {
	fmt.Printf("\ncomplete in %s\n", time.Since(start))
}

func printFail(err error) {
	fmt.Printf("failed to create topics: \n%s\n", err)
}

func toGroupTable(group string) string {
	return string(goka.GroupTable(goka.Group(group)))
}

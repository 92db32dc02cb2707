package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/niksmo/storefront/config"
	"github.com/niksmo/storefront/internal/adapter"
	"github.com/niksmo/storefront/internal/adapter/commerce"
	"github.com/niksmo/storefront/internal/adapter/httphandler"
	"github.com/niksmo/storefront/internal/adapter/kafka"
	"github.com/niksmo/storefront/internal/adapter/storage"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/internal/core/service"
	"github.com/niksmo/storefront/pkg/schema"
	"github.com/twmb/franz-go/pkg/sr"
)

type serdes struct {
	catalogChange schema.Serde
}

type outbound struct {
	commerce     commerce.Client
	cartStore    port.CartStore
	closeStore   func()
	producer     kafka.CatalogChangesProducer
	availability kafka.AvailabilityView
}

type coreService struct {
	catalog  service.CatalogService
	carts    *service.CartService
	checkout service.CheckoutService
	events   service.EventsService
}

type inbound struct {
	httpServer httphandler.HTTPServer
	consumer   kafka.CatalogChangesConsumer
	processor  *kafka.AvailabilityProcessor
}

type App struct {
	ctx       context.Context
	cfg       config.Config
	tlsConfig *tls.Config
	serdes    serdes
	outbound  outbound
	service   coreService
	inbound   inbound
}

func New(ctx context.Context, cfg config.Config) *App {
	app := &App{ctx: ctx, cfg: cfg}

	app.initLogger()
	app.initTLS()
	app.initSerdes()
	app.initOutboundAdapters()
	app.initCoreService()
	app.initInboundAdapters()

	return app
}

func (app *App) initLogger() {
	opts := &slog.HandlerOptions{Level: app.cfg.LogLevel}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
	slog.SetDefault(logger)
}

func (app *App) initTLS() {
	t := app.cfg.Broker.TLS
	if !t.Enabled() {
		return
	}
	app.tlsConfig = adapter.MakeTLSConfig(t.CAFile, t.CertFile, t.KeyFile)
	kafka.UseTLS(app.tlsConfig)
}

func (app *App) initSerdes() {
	const op = "App.initSerdes"
	urls := app.cfg.Broker.SchemaRegistryURLs

	srClient, err := sr.NewClient(sr.URLs(urls...))
	if err != nil {
		app.fallDown(op, err)
	}

	schemaCreater := schema.NewSchemaCreater(srClient)

	catalogChangeSS := app.cfg.Broker.Topics.CatalogChanges + "-value"
	catalogChangeSerde, err := schema.NewSerdeCatalogChangeV1(
		app.ctx,
		schema.SubjectOpt(catalogChangeSS),
		schema.SchemaIdentifierOpt(schemaCreater),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.serdes.catalogChange = catalogChangeSerde
}

func (app *App) initOutboundAdapters() {
	const op = "App.initOutboundAdapters"

	app.outbound.commerce = commerce.NewClient(commerce.Config{
		SecretKey:         app.cfg.Commerce.SecretKey,
		WebhookSecret:     app.cfg.Commerce.WebhookSecret,
		StorefrontURL:     app.cfg.BaseURL,
		APIURL:            app.cfg.Commerce.APIURL,
		Timeout:           app.cfg.Commerce.Timeout,
		MaxNetworkRetries: app.cfg.Commerce.MaxNetworkRetries,
	})

	app.initCartStore()

	broker := app.cfg.Broker
	producer, err := kafka.NewCatalogChangesProducer(
		kafka.ProducerClientOpt(
			app.ctx, broker.SeedBrokers, broker.Topics.CatalogChanges, app.tlsConfig,
		),
		kafka.ProducerEncoderOpt(app.serdes.catalogChange),
	)
	if err != nil {
		app.fallDown(op, err)
	}
	app.outbound.producer = producer

	view, err := kafka.NewAvailabilityView(
		broker.SeedBrokers, broker.Consumers.AvailabilityGroup,
	)
	if err != nil {
		app.fallDown(op, err)
	}
	app.outbound.availability = view
}

func (app *App) initCartStore() {
	const op = "App.initCartStore"

	switch app.cfg.CartStore {
	case config.CartStoreRedis:
		rdb, err := storage.NewRedisClient(app.ctx, storage.RedisConfig{
			Addr:     app.cfg.Redis.Addr,
			Username: app.cfg.Redis.Username,
			Password: app.cfg.Redis.Password,
			DB:       app.cfg.Redis.DB,
		})
		if err != nil {
			app.fallDown(op, err)
		}
		app.outbound.cartStore = storage.NewRedisCartRepository(rdb, app.cfg.Redis.CartTTL)
		app.outbound.closeStore = func() {
			if err := rdb.Close(); err != nil {
				slog.Error("failed to close redis client", "op", op, "err", err)
			}
		}
	default:
		db, err := storage.NewSQLDB(app.ctx, app.cfg.SQLDB)
		if err != nil {
			app.fallDown(op, err)
		}
		app.outbound.cartStore = storage.NewCartRepository(db)
		app.outbound.closeStore = db.Close
	}
}

func (app *App) initCoreService() {
	out := app.outbound

	catalog := service.NewCatalogService(out.commerce)
	carts := service.NewCartService(
		out.cartStore, catalog, out.commerce, out.availability,
	)

	app.service.catalog = catalog
	app.service.carts = carts
	app.service.checkout = service.NewCheckoutService(carts, out.commerce, out.commerce)
	app.service.events = service.NewEventsService(out.commerce, out.producer, carts)
}

func (app *App) initInboundAdapters() {
	const op = "App.initInboundAdapters"

	mux := http.NewServeMux()
	httphandler.RegisterProducts(mux, app.service.catalog)
	httphandler.RegisterCarts(mux, app.service.carts, app.service.checkout)
	httphandler.RegisterWebhooks(mux, app.service.events)

	handler := httphandler.AllowJSON(mux)
	app.inbound.httpServer = httphandler.NewHTTPServer(
		app.cfg.HTTPServerAddr, handler, app.cfg.HTTPHandlerTimeout,
	)

	broker := app.cfg.Broker
	consumer, err := kafka.NewCatalogChangesConsumer(
		kafka.ConsumerClientOpt(
			broker.SeedBrokers,
			broker.Topics.CatalogChanges,
			broker.Consumers.CartFlaggerGroup,
			app.tlsConfig,
		),
		kafka.ConsumerDecoderOpt(app.serdes.catalogChange),
		kafka.ConsumerApplierOpt(app.service.events),
	)
	if err != nil {
		app.fallDown(op, err)
	}
	app.inbound.consumer = consumer

	processor, err := kafka.NewAvailabilityProc(
		broker.SeedBrokers,
		broker.Topics.CatalogChanges,
		broker.Consumers.AvailabilityGroup,
		app.serdes.catalogChange,
	)
	if err != nil {
		app.fallDown(op, err)
	}
	app.inbound.processor = processor
}

func (app *App) Run(stopFn context.CancelFunc) {
	go app.inbound.processor.Run(app.ctx, stopFn)
	go app.outbound.availability.Run(app.ctx, stopFn)
	go app.inbound.consumer.Run(app.ctx, stopFn)
	go app.inbound.httpServer.Run(stopFn)

	slog.Info("application is running")
}

func (app *App) Close(ctx context.Context) {
	slog.Info("application is closing...")

	app.inbound.httpServer.Close(ctx)
	app.inbound.consumer.Close()
	app.inbound.processor.Close()
	app.outbound.producer.Close()
	app.outbound.closeStore()

	slog.Info("application is closed")
}

func (app *App) fallDown(op string, err error) {
	panic(fmt.Errorf("%s: %w", op, err))
}

// Package assistant wires configuration, connections and engines into the
// runnable modes of the service.
package assistant

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"restaurant-assistant/internal/common/httpx"
	"restaurant-assistant/internal/config"
	"restaurant-assistant/internal/connections/database"
	"restaurant-assistant/internal/connections/rabbitmq"
	"restaurant-assistant/internal/connections/redis"
	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/microservices/conversation"
	"restaurant-assistant/internal/microservices/counter"
	"restaurant-assistant/internal/microservices/dispatcher"
	"restaurant-assistant/internal/microservices/events"
	"restaurant-assistant/internal/microservices/gateway"
	"restaurant-assistant/internal/microservices/menu"
	"restaurant-assistant/internal/microservices/order"
	"restaurant-assistant/internal/microservices/permission"
	"restaurant-assistant/internal/microservices/table"
	"restaurant-assistant/internal/repository"
	"restaurant-assistant/internal/store"
	"restaurant-assistant/internal/store/memory"
)

// App is the assembled API. Close releases every connection Build opened.
type App struct {
	Handler    http.Handler
	Dispatcher *dispatcher.Dispatcher
	Tracker    *conversation.Tracker

	closers []func()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Build connects to the configured backends and assembles the engines.
// Redis is optional: when it cannot be reached the caches are skipped.
func Build(ctx context.Context, cfg *config.Config, lg *zap.Logger) (*App, error) {
	app := &App{}
	loc, err := cfg.Business.Location()
	if err != nil {
		return nil, err
	}

	var (
		st      store.Store
		catalog menu.Catalog
	)
	switch cfg.Store {
	case "memory":
		st = memory.New()
		catalog = menu.NewStaticCatalog()
		lg.Warn("memory_store_in_use")
	default:
		db, err := database.ConnectDB(ctx, cfg.Database, lg)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
		st = repository.NewPostgresStore(database.NewTxRunner(db, cfg.Database.TxRetries))
		catalog = menu.NewPostgresCatalog(db)
	}

	var sessionCache conversation.SessionCache
	if cfg.Redis.Enabled {
		rdb, err := redis.Connect(ctx, cfg.Redis, lg)
		if err != nil {
			lg.Warn("redis_unavailable", zap.Error(err))
		} else {
			app.closers = append(app.closers, func() { _ = rdb.Close() })
			catalog = menu.NewCachedCatalog(catalog, rdb, cfg.Redis.MenuTTL, lg)
			sessionCache = conversation.NewRedisSessionCache(rdb, cfg.Redis.SessionTTL, lg)
		}
	}

	var pub events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		client, err := rabbitmq.Dial(cfg.RabbitMQ)
		if err != nil {
			app.Close()
			return nil, err
		}
		if err := client.DeclareTopology(); err != nil {
			client.Close()
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, client.Close)
		pub = events.NewRabbitPublisher(client, lg)
	}

	perms := permission.NewGateway(cfg.Quota.DailyLimits)
	tables := table.NewEngine(st, pub, lg)
	orders := order.NewEngine(st, counter.NewAllocator(st, loc, lg), tables,
		order.NewPricer(catalog), order.NewTaxPolicy(cfg.Tax), pub, order.Options{
			Location:       loc,
			BillingRelease: domain.TableStatus(strings.ToLower(cfg.Business.BillingReleaseStatus)),
			Currency:       cfg.Business.CurrencySymbol,
		}, lg)
	tracker := conversation.NewTracker(st, sessionCache, loc, lg)

	app.Tracker = tracker
	app.Dispatcher = dispatcher.New(perms, dispatcher.Handlers(dispatcher.Services{
		Orders:    orders,
		Tables:    tables,
		Menu:      catalog,
		Sessions:  tracker,
		Knowledge: dispatcher.NewStaticKnowledge(cfg.KnowledgeBase),
		Perms:     perms,
		Location:  loc,
		Currency:  cfg.Business.CurrencySymbol,
	}), tracker, lg)

	router := gateway.Router(gateway.New(app.Dispatcher, tracker, perms, loc, lg))
	app.Handler = httpx.Recover(lg, httpx.Limit(cfg.HTTP.MaxConcurrent, router))
	return app, nil
}

// RunAPI serves the HTTP gateway until ctx is done.
func RunAPI(ctx context.Context, cfg *config.Config, lg *zap.Logger) error {
	app, err := Build(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer app.Close()
	lg.Info("service_started", zap.String("mode", "api"), zap.String("addr", cfg.HTTP.Addr),
		zap.String("store", cfg.Store), zap.Int("max_concurrent", cfg.HTTP.MaxConcurrent))
	return httpx.New(cfg.HTTP, app.Handler, lg).Run(ctx)
}

// RunSubscriber drains order and table notifications until ctx is done.
func RunSubscriber(ctx context.Context, cfg *config.Config, lg *zap.Logger, prefetch int) error {
	client, err := rabbitmq.Dial(cfg.RabbitMQ)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.DeclareTopology(); err != nil {
		return err
	}
	deliveries, err := client.Consume(rabbitmq.NotificationsQueue, "notification-subscriber", prefetch)
	if err != nil {
		return err
	}
	lg.Info("service_started", zap.String("mode", "notification-subscriber"), zap.Int("prefetch", prefetch))
	return events.NewSubscriber(lg, nil).Run(ctx, deliveries)
}

// Migrate applies the schema and exits.
func Migrate(ctx context.Context, cfg *config.Config, lg *zap.Logger) error {
	if cfg.Store != "postgres" {
		return fmt.Errorf("migrate needs the postgres store, got %q", cfg.Store)
	}
	db, err := database.ConnectDB(ctx, cfg.Database, lg)
	if err != nil {
		return err
	}
	defer db.Close()
	return migrate(ctx, db, lg)
}

func migrate(ctx context.Context, db *sql.DB, lg *zap.Logger) error {
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	lg.Info("schema_migrated", zap.Int("statements", len(database.Schema)))
	return nil
}

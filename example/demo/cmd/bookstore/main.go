// Command bookstore runs the example end to end against a local Postgres:
// it creates the schema, buys and restocks copies of a book, shows a
// rejected purchase, and rebuilds the stock projection from the log.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
	"github.com/eventforge/aggregate-eventstore-go/eventstore/busadapters"
	"github.com/eventforge/aggregate-eventstore-go/eventstore/postgresengine"
	"github.com/eventforge/aggregate-eventstore-go/eventstore/zapadapter"
	"github.com/eventforge/aggregate-eventstore-go/example/bookstore/core"
	"github.com/eventforge/aggregate-eventstore-go/example/bookstore/shell"
	"github.com/eventforge/aggregate-eventstore-go/example/shared/config"
)

func main() {
	zapLogger, loggerErr := zap.NewDevelopment()
	if loggerErr != nil {
		os.Exit(1)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	if err := run(zapLogger); err != nil {
		zapLogger.Fatal("demo failed", zap.Error(err))
	}
}

func run(zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, cfgErr := config.Load()
	if cfgErr != nil {
		return cfgErr
	}

	pool, poolErr := config.NewPGXPool(ctx, cfg.PostgresDSN)
	if poolErr != nil {
		return poolErr
	}
	defer pool.Close()

	codec := shell.NewBookEventCodec()
	projector := shell.NewStockProjector()
	notifier := shell.NewLowStockNotifier(cfg.LowStockThreshold, func(bookID uuid.UUID, leftover int) {
		zapLogger.Warn("book stock is low",
			zap.String("book_id", bookID.String()),
			zap.Int("leftover", leftover))
	})

	options := []postgresengine.Option[core.BookEvent]{
		postgresengine.WithLogger[core.BookEvent](zapadapter.NewLogger(zapLogger)),
		postgresengine.WithTransactionalEventHandlers[core.BookEvent](projector),
		postgresengine.WithEventHandlers[core.BookEvent](notifier),
	}

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			_ = redisClient.Close()
		}()

		redisBus, busErr := busadapters.NewRedisStreamBus("redis-stream", redisClient, cfg.RedisStream, codec)
		if busErr != nil {
			return busErr
		}

		options = append(options, postgresengine.WithEventBuses[core.BookEvent](redisBus))
	}

	store, storeErr := postgresengine.NewEventStoreFromPGXPool(pool, core.AggregateName, codec, options...)
	if storeErr != nil {
		return storeErr
	}

	if schemaErr := store.CreateSchema(ctx); schemaErr != nil {
		return schemaErr
	}

	if _, ddlErr := pool.Exec(ctx, shell.StockTableDDL); ddlErr != nil {
		return ddlErr
	}

	manager := eventstore.NewAggregateManager[core.BookState, core.BookCommand, core.BookEvent](
		core.Book{},
		store,
	)

	// a fresh book starts with the default stock of 10
	state, buyErr := manager.HandleCommand(ctx, uuid.Nil, core.Buy{Quantity: 3})
	if buyErr != nil {
		return buyErr
	}

	bookID := state.ID()
	zapLogger.Info("bought 3 copies",
		zap.String("book_id", bookID.String()),
		zap.Int("leftover", state.State().Leftover))

	if _, err := manager.HandleCommand(ctx, bookID, core.Buy{Quantity: 100}); err != nil {
		if !errors.Is(err, core.ErrNotEnoughCopies) {
			return err
		}

		zapLogger.Info("buying 100 copies was rejected", zap.Error(err))
	}

	state, restockErr := manager.HandleCommand(ctx, bookID, core.Restock{Quantity: 5})
	if restockErr != nil {
		return restockErr
	}

	zapLogger.Info("restocked 5 copies", zap.Int("leftover", state.State().Leftover))

	state, buyAgainErr := manager.HandleCommand(ctx, bookID, core.Buy{Quantity: 10})
	if buyAgainErr != nil {
		return buyAgainErr
	}

	zapLogger.Info("bought 10 copies", zap.Int("leftover", state.State().Leftover))

	rebuilder := postgresengine.NewRebuilder(store)
	if rebuildErr := rebuilder.RebuildAllAtOnce(ctx); rebuildErr != nil {
		return rebuildErr
	}

	zapLogger.Info("stock projection rebuilt from the event log")

	return nil
}

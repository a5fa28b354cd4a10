// custmand 是客户服务的守护进程：
// SQLite 事件存储 + 可选的 NATS/Redis/内存事件传输 + HTTP 接口。
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"custman/customer"
	"custman/eventing/bus"
	sqlstore "custman/eventing/store/sql"
	"custman/httpapi"
	"custman/messaging"
	mtransport "custman/messaging/transport/memory"
	"custman/messaging/transport/natsjetstream"
	"custman/messaging/transport/redisstreams"
	"custman/projection"
	"custman/storage/database"
	basicdb "custman/storage/database/basic"
)

func main() {
	log.SetPrefix("[custmand] ")

	var (
		addr          = flag.String("addr", envOr("CUSTMAND_ADDR", ":8080"), "HTTP 监听地址")
		dsn           = flag.String("dsn", envOr("CUSTMAND_DSN", "custman.db"), "SQLite 数据源")
		transportName = flag.String("transport", envOr("CUSTMAND_TRANSPORT", "memory"), "事件传输: memory | nats | redis")
		natsURL       = flag.String("nats-url", envOr("CUSTMAND_NATS_URL", "nats://127.0.0.1:4222"), "NATS 服务地址")
		redisAddr     = flag.String("redis-addr", envOr("CUSTMAND_REDIS_ADDR", "127.0.0.1:6379"), "Redis 服务地址")
		rebuild       = flag.Bool("rebuild", false, "启动时从事件存储重建读模型")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *addr, *dsn, *transportName, *natsURL, *redisAddr, *rebuild); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, addr, dsn, transportName, natsURL, redisAddr string, rebuild bool) error {
	db, err := basicdb.New(database.Config{Driver: "sqlite", DSN: dsn})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	eventStore := sqlstore.NewSQLEventStore(db, sqlstore.DefaultTableName)
	if err := eventStore.Init(ctx); err != nil {
		return fmt.Errorf("init event store: %w", err)
	}

	readModel := projection.NewReadModel(db, projection.ReadModelConfig{
		CacheSize: 1024,
		CacheTTL:  time.Minute,
	})
	if err := readModel.Init(ctx); err != nil {
		return fmt.Errorf("init read model: %w", err)
	}

	transport, err := newTransport(transportName, natsURL, redisAddr)
	if err != nil {
		return err
	}
	if err := transport.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	defer transport.Close()

	eventBus := bus.NewEventBus(messaging.NewMessageBus(transport))

	projector := projection.NewCustomerProjector(readModel)
	if err := eventBus.SubscribeHandler(ctx, projector); err != nil {
		return fmt.Errorf("subscribe projector: %w", err)
	}
	if rebuild {
		log.Println("rebuilding read model from event store")
		if err := projector.Rebuild(ctx, eventStore); err != nil {
			return fmt.Errorf("rebuild read model: %w", err)
		}
	}

	repo, err := customer.NewRepository(eventStore, eventBus)
	if err != nil {
		return fmt.Errorf("build repository: %w", err)
	}
	service, err := customer.NewService(customer.ServiceOptions{
		Repository:  repo,
		EmailLookup: readModel,
	})
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	mux := http.NewServeMux()
	httpapi.NewHandler(service, readModel).Register(mux)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s (transport=%s, dsn=%s)", addr, transportName, dsn)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newTransport(name, natsURL, redisAddr string) (messaging.Transport, error) {
	switch name {
	case "memory":
		return mtransport.NewMemoryTransport(1024, 4), nil
	case "nats":
		return natsjetstream.NewTransport(natsjetstream.Config{
			URL:    natsURL,
			Stream: "CUSTOMER_EVENTS",
		}), nil
	case "redis":
		return redisstreams.NewTransport(redisstreams.Config{
			Addr:      redisAddr,
			GroupName: "custman",
		})
	default:
		return nil, fmt.Errorf("unknown transport %q", name)
	}
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

package orderapp

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"shopflow/internal/config"
	"shopflow/internal/contracts"
	"shopflow/internal/httpapi"
	"shopflow/internal/messaging"
	"shopflow/internal/order"
	"shopflow/internal/outbox"
	"shopflow/internal/storage"
	"shopflow/internal/trace"
	"shopflow/internal/websocket"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type App struct {
	cfg        config.OrderConfig
	logger     *slog.Logger
	store      *storage.Store
	traceStore *trace.Store
	orderSvc   *order.Service
	wsHub      *websocket.Hub
	publisher  *messaging.RabbitPublisher
	dispatcher *outbox.Dispatcher
	consumer   *messaging.Consumer
	httpSrv    *http.Server
}

func New(ctx context.Context, cfg config.OrderConfig, logger *slog.Logger) (*App, error) {
	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}

	store, err := storage.New(ctx, cfg.DatabaseURL, migrations)
	if err != nil {
		return nil, err
	}

	traceStore := trace.NewStore("order", cfg.TraceCapacity)
	box := outbox.NewPgStore(store.Pool(), "order_outbox")
	wsHub := websocket.NewHub()
	orderSvc := order.NewService(store.Pool(), box, traceStore, wsHub, logger)

	publisher, err := messaging.NewRabbitPublisher(cfg.RabbitURL, cfg.OrdersExchange)
	if err != nil {
		store.Close()
		return nil, err
	}

	consumer, err := messaging.NewRabbitConsumer(cfg.RabbitURL, cfg.PaymentsExchange, cfg.PaymentsQueue, logger)
	if err != nil {
		store.Close()
		publisher.Close()
		return nil, err
	}

	api := httpapi.NewOrderServer(orderSvc, traceStore, logger)
	wsHandler := websocket.NewHandler(wsHub, orderSvc)
	api.HandleFunc("GET /orders/{orderID}/ws", wsHandler.ServeWS)
	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api,
	}

	dispatcher := outbox.NewDispatcher(box, publisher, cfg.OutboxInterval, cfg.OutboxBatch, logger)

	return &App{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		traceStore: traceStore,
		orderSvc:   orderSvc,
		wsHub:      wsHub,
		publisher:  publisher,
		dispatcher: dispatcher,
		consumer:   consumer,
		httpSrv:    httpSrv,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	a.dispatcher.Start(ctx)

	go a.wsHub.Run(ctx)

	handler := messaging.HandleJSON(contracts.EventPaymentCompleted, a.logger,
		func(ctx context.Context, messageID string, evt contracts.PaymentCompletedEvent, traceID string) error {
			return a.orderSvc.ApplyPaymentResult(ctx, messageID, evt, traceID)
		})

	go func() {
		errCh <- a.consumer.Start(ctx, handler)
	}()

	go func() {
		a.logger.Info("order http server listening", "addr", a.cfg.HTTPAddr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownGracePeriod)
	defer cancel()
	_ = a.httpSrv.Shutdown(shutdownCtx)
	a.consumer.Close()
	a.publisher.Close()
	a.store.Close()
}

func Run() error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.LoadOrder()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer app.Close(ctx)

	return app.Run(ctx)
}

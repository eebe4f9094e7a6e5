package paymentapp

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
	"shopflow/internal/outbox"
	"shopflow/internal/payment"
	"shopflow/internal/storage"
	"shopflow/internal/trace"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type App struct {
	cfg        config.PaymentConfig
	logger     *slog.Logger
	store      *storage.Store
	traceStore *trace.Store
	accounts   *payment.AccountService
	processor  *payment.Processor
	publisher  *messaging.RabbitPublisher
	dispatcher *outbox.Dispatcher
	consumer   *messaging.Consumer
	httpSrv    *http.Server
}

func New(ctx context.Context, cfg config.PaymentConfig, logger *slog.Logger) (*App, error) {
	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}

	store, err := storage.New(ctx, cfg.DatabaseURL, migrations)
	if err != nil {
		return nil, err
	}

	traceStore := trace.NewStore("payment", cfg.TraceCapacity)
	box := outbox.NewPgStore(store.Pool(), "payment_outbox")
	accounts := payment.NewAccountService(store.Pool())
	processor := payment.NewProcessor(store.Pool(), box, traceStore, logger)

	publisher, err := messaging.NewRabbitPublisher(cfg.RabbitURL, cfg.PaymentsExchange)
	if err != nil {
		store.Close()
		return nil, err
	}

	consumer, err := messaging.NewRabbitConsumer(cfg.RabbitURL, cfg.OrdersExchange, cfg.OrdersQueue, logger)
	if err != nil {
		store.Close()
		publisher.Close()
		return nil, err
	}

	api := httpapi.NewPaymentServer(accounts, traceStore, logger)
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
		accounts:   accounts,
		processor:  processor,
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

	handler := messaging.HandleJSON(contracts.EventOrderCreated, a.logger,
		func(ctx context.Context, messageID string, evt contracts.OrderCreatedEvent, traceID string) error {
			return a.processor.HandleOrderCreated(ctx, messageID, evt, traceID)
		})

	go func() {
		errCh <- a.consumer.Start(ctx, handler)
	}()

	go func() {
		a.logger.Info("payment http server listening", "addr", a.cfg.HTTPAddr)
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
	cfg := config.LoadPayment()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer app.Close(ctx)

	return app.Run(ctx)
}

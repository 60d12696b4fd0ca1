package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/tasklist/engine/internal/app/decisionengine"
	"github.com/tasklist/engine/internal/platform/config"
	"github.com/tasklist/engine/internal/platform/dbpool"
	"github.com/tasklist/engine/internal/platform/metrics"
	"github.com/tasklist/engine/internal/platform/natsutil"
	"github.com/tasklist/engine/internal/store/eventstore"
	"github.com/tasklist/engine/internal/store/statestore"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	pool, err := dbpool.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	events := eventstore.NewStore(pool)
	if err := waitForPostgres(ctx, pool, events, 30*time.Second); err != nil {
		log.Fatal(err)
	}

	client, err := natsutil.ConnectJetStreamWithRetry(cfg.NATSURL, cfg.ConnectWait)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	publisher := natsutil.JetStreamPublisher{JS: client.JS}
	service := decisionengine.NewService(publisher.Publish, events, statestore.New())

	sub, err := client.JS.QueueSubscribe("app.command.>", "decision-engine", func(msg *nats.Msg) {
		handleCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := service.Handle(handleCtx, msg.Data); err != nil {
			if errors.Is(err, decisionengine.ErrInvalidCommandPayload) {
				log.Printf("discarding invalid command payload: %v", err)
				_ = msg.Term()
				return
			}
			if errors.Is(err, decisionengine.ErrUnsupportedCommandAction) {
				log.Printf("discarding unsupported command action: %v", err)
				_ = msg.Term()
				return
			}
			log.Printf("command processing failed: %v", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}, nats.ManualAck())
	if err != nil {
		log.Fatal(err)
	}

	log.Println("Decision Engine listening on subject:", sub.Subject)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.DefaultHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, mux))
}

func waitForPostgres(ctx context.Context, pool *pgxpool.Pool, store *eventstore.Store, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = pool.Ping(attemptCtx)
		if lastErr == nil {
			lastErr = store.EnsureSchema(attemptCtx)
		}
		cancel()

		if lastErr == nil {
			return nil
		}
		log.Printf("waiting for postgres readiness: %v", lastErr)
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}

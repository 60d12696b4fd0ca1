package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/tasklist/engine/internal/app/viewsink"
	"github.com/tasklist/engine/internal/platform/config"
	"github.com/tasklist/engine/internal/platform/dbpool"
	"github.com/tasklist/engine/internal/platform/metrics"
	"github.com/tasklist/engine/internal/platform/natsutil"
	"github.com/tasklist/engine/internal/store/viewrepo"
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

	views := viewrepo.NewRepository(pool)
	if err := waitForPostgres(ctx, pool, views, 30*time.Second); err != nil {
		log.Fatal(err)
	}

	service, err := viewsink.NewService(views)
	if err != nil {
		log.Fatal(err)
	}

	client, err := natsutil.ConnectJetStreamWithRetry(cfg.NATSURL, cfg.ConnectWait)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	sub, err := client.JS.QueueSubscribe("app.event.>", "view-sink", func(msg *nats.Msg) {
		var eventSeq uint64
		if meta, metaErr := msg.Metadata(); metaErr == nil {
			eventSeq = meta.Sequence.Stream
		}

		foldCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := service.Handle(foldCtx, msg.Data, eventSeq); err != nil {
			if errors.Is(err, viewsink.ErrInvalidEventPayload) {
				log.Printf("discarding invalid event payload: %v", err)
				_ = msg.Term()
				return
			}
			log.Printf("view fold failed: %v", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}, nats.ManualAck())
	if err != nil {
		log.Fatal(err)
	}

	log.Println("View Sink listening on subject:", sub.Subject)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.DefaultHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, mux))
}

func waitForPostgres(ctx context.Context, pool *pgxpool.Pool, repo *viewrepo.Repository, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = pool.Ping(attemptCtx)
		if lastErr == nil {
			lastErr = repo.EnsureSchema(attemptCtx)
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

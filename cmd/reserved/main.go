package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"reservation-engine/engine/reserve"
	"reservation-engine/engine/reserve/application"
	"reservation-engine/engine/reserve/domain"
	"reservation-engine/engine/reserve/infra"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		store  domain.Store
		feed   domain.ExpiryFeed
		ledger domain.Ledger
		queue  domain.AdmissionQueue
		events domain.EventSink
	)

	if cfg.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			log.Fatalf("redis ping error: %v", err)
		}

		redisFeed := infra.NewRedisExpiryFeed(rdb, cfg.redisDB)
		if err := redisFeed.EnableNotifications(ctx); err != nil {
			// redis gerenciado costuma bloquear CONFIG; a flag "Ex" precisa
			// então estar configurada no servidor.
			log.Printf("warning: could not enable keyspace notifications: %v", err)
		}

		store = infra.NewRedisStore(rdb)
		feed = redisFeed
		ledger = infra.NewRedisLedger(rdb)
		queue = infra.NewRedisQueue(rdb, cfg.queueKey)
		events = infra.NewStreamEventSink(rdb, cfg.eventStream)
	} else {
		log.Printf("REDIS_ADDR empty: running with in-memory store (dev only)")
		mem := infra.NewMemoryStore()
		mem.StartJanitor(ctx)
		store = mem
		feed = mem
		ledger = infra.NewMemoryLedger()
		queue = infra.NewMemoryQueue()
	}

	guarded := infra.NewBreaker(store,
		infra.WithFailureThreshold(cfg.breakerFailures),
		infra.WithCooldown(cfg.breakerCooldown),
		infra.WithCallTimeout(cfg.storeTimeout),
		infra.WithStateChange(func(from, to domain.CircuitState) {
			log.Printf("breaker: %s -> %s", from, to)
		}),
	)

	for _, pool := range cfg.pools {
		if err := guarded.InitCounter(ctx, pool.ID, pool.Capacity); err != nil {
			log.Fatalf("init pool %s: %v", pool.ID, err)
		}
	}

	svcOpts := []application.ServiceOption{application.WithTTL(cfg.reservationTTL)}
	if events != nil {
		svcOpts = append(svcOpts, application.WithEventSink(events))
	}
	reservations := application.NewReservationService(guarded, ledger, svcOpts...)
	admission := &application.AdmissionService{Reservations: reservations, Queue: queue}

	reactorOpts := []application.ReactorOption{}
	if events != nil {
		reactorOpts = append(reactorOpts, application.WithReactorEventSink(events))
	}
	reactor := application.NewExpiryReactor(feed, ledger, guarded, reactorOpts...)

	auditor := application.NewAuditService(guarded, ledger, infra.LogAuditSink{}, cfg.pools,
		application.WithAuditEvery(cfg.auditInterval))

	replayer := application.NewReplayService(queue, reservations,
		application.WithReplayEvery(cfg.replayInterval),
		application.WithReplayRate(cfg.replayRPS, cfg.replayBurst))

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           reserve.Handler(reserve.Options{Admission: admission, Reservations: reservations}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return reactor.Run(gctx) })
	g.Go(func() error { return auditor.Run(gctx) })
	g.Go(func() error { return replayer.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		log.Printf("reserved listening on %s", cfg.listenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	log.Printf("pools: %s", describePools(cfg.pools))
	log.Printf("reservation: ttl=%s", cfg.reservationTTL)
	log.Printf("breaker: failures=%d cooldown=%s storeTimeout=%s", cfg.breakerFailures, cfg.breakerCooldown, cfg.storeTimeout)
	log.Printf("audit: every=%s; replay: every=%s rps=%.1f", cfg.auditInterval, cfg.replayInterval, cfg.replayRPS)

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

type config struct {
	listenAddr     string
	redisAddr      string
	redisPassword  string
	redisDB        int
	pools          []domain.Pool
	reservationTTL time.Duration

	breakerFailures int
	breakerCooldown time.Duration
	storeTimeout    time.Duration

	auditInterval  time.Duration
	replayInterval time.Duration
	replayRPS      float64
	replayBurst    int

	queueKey    string
	eventStream string
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.redisAddr = os.Getenv("REDIS_ADDR")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)
	cfg.reservationTTL = getenvDurationDefault("RESERVATION_TTL", 600*time.Second)

	cfg.breakerFailures = getenvIntDefault("BREAKER_FAILURES", 3)
	cfg.breakerCooldown = getenvDurationDefault("BREAKER_COOLDOWN", 5*time.Second)
	cfg.storeTimeout = getenvDurationDefault("STORE_TIMEOUT", 2*time.Second)

	cfg.auditInterval = getenvDurationDefault("AUDIT_INTERVAL", time.Minute)
	cfg.replayInterval = getenvDurationDefault("REPLAY_INTERVAL", 5*time.Second)
	cfg.replayRPS = getenvFloatDefault("REPLAY_RPS", 50)
	cfg.replayBurst = getenvIntDefault("REPLAY_BURST", 10)

	cfg.queueKey = getenvDefault("QUEUE_KEY", "reserve:admission")
	cfg.eventStream = getenvDefault("EVENT_STREAM", "reserve:events")

	pools, err := parsePools(os.Getenv("POOLS"))
	if err != nil {
		return config{}, err
	}
	cfg.pools = pools

	if cfg.reservationTTL <= 0 {
		return config{}, errors.New("RESERVATION_TTL must be > 0")
	}
	if cfg.breakerFailures <= 0 {
		return config{}, errors.New("BREAKER_FAILURES must be > 0")
	}
	if cfg.replayRPS <= 0 {
		return config{}, errors.New("REPLAY_RPS must be > 0")
	}
	return cfg, nil
}

// parsePools lê POOLS no formato "id:capacidade,id:capacidade".
// Ex: POOLS=tenis-ed-limitada:100,caneca:500
func parsePools(raw string) ([]domain.Pool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("POOLS is required (format: id:capacity,id:capacity)")
	}

	var pools []domain.Pool
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, capStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid POOLS entry %q", part)
		}
		capacity, err := strconv.ParseInt(strings.TrimSpace(capStr), 10, 64)
		if err != nil || capacity <= 0 {
			return nil, fmt.Errorf("invalid capacity in POOLS entry %q", part)
		}
		pools = append(pools, domain.Pool{ID: strings.TrimSpace(id), Capacity: capacity})
	}
	if len(pools) == 0 {
		return nil, errors.New("POOLS is required (format: id:capacity,id:capacity)")
	}
	return pools, nil
}

func describePools(pools []domain.Pool) string {
	parts := make([]string, len(pools))
	for i, p := range pools {
		parts[i] = fmt.Sprintf("%s(cap=%d)", p.ID, p.Capacity)
	}
	return strings.Join(parts, " ")
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

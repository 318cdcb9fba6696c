package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"cardarena/internal/api"
	"cardarena/internal/auth"
	"cardarena/internal/game/card"
	"cardarena/internal/network"
	"cardarena/internal/ports"
	"cardarena/internal/services/cluster"
	"cardarena/internal/services/events"
	"cardarena/internal/services/gameroom"
	"cardarena/internal/services/queue"
	"cardarena/internal/session"
	"cardarena/internal/store/memory"
	"cardarena/internal/store/postgres"
	cache "cardarena/internal/store/redis"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket game server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

// stack holds the adapters picked from configuration and how to close them.
type stack struct {
	identity    ports.Identity
	persistence ports.Persistence
	catalog     ports.Catalog
	events      ports.EventPublisher
	provision   network.ProvisionFunc
	health      *cluster.HealthAggregator
	closers     []func() error
}

func (s *stack) close() error {
	var result *multierror.Error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (a *app) buildStack(ctx context.Context) (*stack, error) {
	s := &stack{health: cluster.NewHealthAggregator(3 * time.Second)}
	cfg := a.cfg

	// 1. Identity, persistence and the catalog source.
	if cfg.Postgres.DSN != "" {
		pg, err := postgres.Open(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { pg.Close(); return nil })
		s.identity, s.persistence, s.catalog = pg, pg, pg
		s.health.AddCheck("postgres", pg.Ping)
		if cfg.Auth.AutoProvision {
			s.provision = pg.EnsureUser
		}
		a.log.Info("using postgres store")
	} else {
		mem := memory.New()
		cat, err := card.LoadDefaultCatalog()
		if err != nil {
			return nil, err
		}
		s.identity, s.persistence, s.catalog = mem, mem, cat
		if cfg.Auth.AutoProvision {
			s.provision = func(_ context.Context, name string) (ports.User, error) {
				return mem.EnsureUser(name), nil
			}
		}
		a.log.Warn("postgres.dsn not set, using in-memory store")
	}

	// 2. Catalog cache.
	if cfg.Redis.Addr != "" {
		client, err := cache.Connect(ctx, cfg.Redis.Addr)
		if err != nil {
			return nil, multierror.Append(err, s.close())
		}
		s.closers = append(s.closers, client.Close)
		s.catalog = cache.NewCachedCatalog(client, s.catalog, cfg.Redis.CatalogTTL, a.log.Named("catalog-cache"))
		s.health.AddCheck("redis", func(ctx context.Context) error { return client.Ping(ctx).Err() })
	}

	// 3. Domain events.
	s.events = events.Noop{}
	if cfg.NATS.URL != "" {
		pub, err := events.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, a.log.Named("nats"))
		if err != nil {
			return nil, multierror.Append(err, s.close())
		}
		s.closers = append(s.closers, pub.Close)
		s.events = pub
		s.health.AddCheck("nats", pub.Ping)
	}
	return s, nil
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	log := a.log

	sink, err := cluster.SetupMetrics(cfg.Consul.ServiceName)
	if err != nil {
		return err
	}
	st, err := a.buildStack(ctx)
	if err != nil {
		return err
	}

	// 4. Game services. The hub is the broadcaster for both the engine and the queue.
	hub := network.NewHub(nil, log.Named("hub"))
	sched := gameroom.NewTurnScheduler()
	engine := gameroom.NewEngine(cfg.Match(), gameroom.Deps{
		Registry:    gameroom.NewRegistry(),
		Scheduler:   sched,
		Catalog:     st.catalog,
		Identity:    st.identity,
		Persistence: st.persistence,
		Broadcaster: hub,
		Events:      st.events,
		Logger:      log.Named("engine"),
		Rand:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xa11ce)),
	})
	mm := queue.NewMatchmakingQueue(engine, hub, cfg.Queue.Countdown, log.Named("queue"))
	hub.SetHandler(session.NewGameHandler(engine, mm, hub, log.Named("session")))

	go hub.Run(ctx)
	go mm.Run(ctx)

	// 5. HTTP surface.
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.CookieName)
	mux := http.NewServeMux()
	mux.Handle("/ws", network.NewServer(hub, verifier, st.identity, st.provision, log.Named("ws")))
	mux.HandleFunc("GET /health", st.health.Handler())
	mux.HandleFunc("GET /metrics", cluster.MetricsHandler(sink))
	api.Register(mux, api.Deps{
		Catalog:     st.catalog,
		Identity:    st.identity,
		Persistence: st.persistence,
		Matches:     engine.Registry(),
		Queue:       mm,
		Logger:      log.Named("api"),
	})

	// 6. Service registration.
	if cfg.Consul.Addrs != "" {
		if err := a.register(ctx, st); err != nil {
			return multierror.Append(err, st.close())
		}
	}

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.HTTP.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	var result *multierror.Error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			result = multierror.Append(result, fmt.Errorf("http server: %w", err))
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("http shutdown: %w", err))
	}
	sched.Stop()
	if err := st.close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (a *app) register(ctx context.Context, st *stack) error {
	cfg := a.cfg
	mgr, err := cluster.NewConsulManager(cfg.Consul.Addrs, a.log.Named("consul"))
	if err != nil {
		return err
	}
	_, portStr, err := net.SplitHostPort(cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("http.addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("http.addr port: %w", err)
	}

	reg := cluster.Registration{Name: cfg.Consul.ServiceName, Host: cfg.Consul.AdvertiseHost, Port: port}
	if err := cluster.Register(mgr, reg); err != nil {
		return err
	}
	st.health.AddCheck("consul", mgr.Ping)
	st.closers = append(st.closers, func() error { return cluster.Deregister(mgr, reg) })
	go mgr.Run(ctx)
	return nil
}

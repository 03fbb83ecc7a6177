package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"meeting-scheduler-api/internal/auth"
	"meeting-scheduler-api/internal/config"
	"meeting-scheduler-api/internal/events"
	"meeting-scheduler-api/internal/grpcweb"
	"meeting-scheduler-api/internal/handler"
	"meeting-scheduler-api/internal/middleware"
	"meeting-scheduler-api/internal/obs"
	"meeting-scheduler-api/internal/rpc"
	"meeting-scheduler-api/internal/scheduling"
	"meeting-scheduler-api/internal/store"
)

const (
	serviceName     = "meeting-scheduler-api"
	version         = "0.1.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	app := &cli.App{
		Name:  "server",
		Usage: "Meeting scheduler backend with conflict detection.",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			notifyCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the REST API, the gRPC service and the gRPC-Web bridge.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "memory", Usage: "Use the in-memory store even if DATABASE_URL is set."},
			&cli.BoolFlag{Name: "migrate", Value: true, Usage: "Apply the Postgres schema on start."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			log := obs.NewLogger(cfg.LogLevel)
			slog.SetDefault(log)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTracer, err := obs.InitTracer(ctx, serviceName, version, cfg.Env, cfg.OTLPEndpoint)
			if err != nil {
				return err
			}
			defer func() { _ = shutdownTracer(context.Background()) }()

			st, err := openStore(ctx, cfg, c.Bool("memory"), c.Bool("migrate"), log)
			if err != nil {
				return err
			}
			defer st.Close()

			pub, err := openPublisher(cfg, log)
			if err != nil {
				return err
			}
			defer pub.Close()

			svc := scheduling.New(st, auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
				scheduling.WithPublisher(pub), scheduling.WithLogger(log))
			return serve(ctx, cfg, svc, log)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, svc *scheduling.Service, log *slog.Logger) error {
	rl := middleware.NewRateLimiter(ctx, cfg.AuthRPS, cfg.AuthBurst)

	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		middleware.RateLimit(rl, rpc.PublicMethods...),
		middleware.Auth(svc, rpc.PublicMethods...),
	))
	rpc.RegisterMeetingServer(grpcSrv, rpc.NewServer(svc, log))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	// the bridge dials our own gRPC listener
	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("grpc-web dial: %w", err)
	}
	defer conn.Close()

	api := handler.New(svc, log).Routes(handler.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
		AuthLimiter:    rl,
	})
	mux := http.NewServeMux()
	mux.Handle("/"+rpc.ServiceName+"/", chimw.RealIP(grpcweb.New(conn, log).Handler()))
	mux.Handle("/", api)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 2)
	go func() {
		log.Info("grpc listening", "addr", lis.Addr().String())
		errc <- grpcSrv.Serve(lis)
	}()
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errc:
		log.Error("server stopped", "error", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(sctx)
	grpcSrv.GracefulStop()
	return err
}

func openStore(ctx context.Context, cfg config.Config, memory, migrate bool, log *slog.Logger) (store.Store, error) {
	if memory || cfg.DatabaseURL == "" {
		log.Info("using in-memory store")
		return store.NewMemory(), nil
	}
	pg, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	log.Info("connected to postgres")
	if migrate {
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		log.Info("migration applied")
	}
	return pg, nil
}

func openPublisher(cfg config.Config, log *slog.Logger) (events.Publisher, error) {
	if cfg.RabbitURL == "" {
		return events.Nop{}, nil
	}
	p, err := events.NewAMQPPublisher(cfg.RabbitURL, cfg.EventsExchange)
	if err != nil {
		return nil, err
	}
	log.Info("publishing events", "exchange", cfg.EventsExchange)
	return p, nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the Postgres schema and exit.",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			log := obs.NewLogger(cfg.LogLevel)
			pg, err := store.Connect(c.Context, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pg.Close()
			if err := pg.Migrate(c.Context); err != nil {
				return err
			}
			log.Info("migration applied")
			return nil
		},
	}
}

func notifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "notify",
		Usage: "Consume meeting events and log a notice per affected participant.",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cfg.RabbitURL == "" {
				return errors.New("RABBIT_URL is required")
			}
			log := obs.NewLogger(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cons, err := events.NewConsumer(cfg.RabbitURL, cfg.EventsExchange, cfg.NotifyQueue,
				[]string{events.KeyCreated, events.KeyUpdated, events.KeyDeleted})
			if err != nil {
				return err
			}
			defer cons.Close()

			log.Info("waiting for meeting events", "queue", cfg.NotifyQueue)
			return cons.Run(ctx, events.LogNotifier(log))
		},
	}
}

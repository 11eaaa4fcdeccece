package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/getkin/kin-openapi/routers"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/metinatakli/seat-booking/api"
	"github.com/metinatakli/seat-booking/internal/booking"
	"github.com/metinatakli/seat-booking/internal/catalog"
	"github.com/metinatakli/seat-booking/internal/clock"
	"github.com/metinatakli/seat-booking/internal/domain"
	"github.com/metinatakli/seat-booking/internal/events"
	"github.com/metinatakli/seat-booking/internal/ledger"
	"github.com/metinatakli/seat-booking/internal/repository"
	appvalidator "github.com/metinatakli/seat-booking/internal/validator"
	"github.com/metinatakli/seat-booking/internal/vcs"
	"github.com/metinatakli/seat-booking/migrations"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

var (
	version = vcs.Version()
)

const (
	LedgerMemory = "memory"
	LedgerRedis  = "redis"
)

// BookingService is the booking core as seen by the HTTP handlers.
type BookingService interface {
	RequestBooking(ctx context.Context, req domain.BookingRequest) (*domain.Booking, error)
	CancelBooking(ctx context.Context, bookingID int64) (*domain.Booking, error)
	CancelWaiting(ctx context.Context, bookingID int64) (*domain.Booking, error)
	GetBooking(ctx context.Context, bookingID int64) (*domain.Booking, error)
	ListUserBookings(ctx context.Context, userID int64, pagination domain.Pagination) ([]domain.Booking, *domain.Metadata, error)
	AvailableSeats(ctx context.Context, showID int64, seatType *domain.SeatType) ([]domain.PricedSeat, error)
}

type Application struct {
	config    Config
	logger    *slog.Logger
	db        *pgxpool.Pool
	redis     redis.UniversalClient
	validator *validator.Validate
	bookings  BookingService
	openapi   routers.Router
}

type Config struct {
	Port             int
	Env              string
	DB               DBConfig
	Redis            RedisConfig
	Ledger           string
	HoldTTL          time.Duration
	LockTimeout      time.Duration
	SweepInterval    time.Duration
	CatalogFile      string
	AMQPURL          string
	OtelCollectorUrl string
	LogFile          string
	Migrate          bool
}

type DBConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleTime  time.Duration
}

type RedisConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

// Core is the wired booking engine together with the ledger backing it.
type Core struct {
	Bookings *booking.Orchestrator
	Ledger   SeatLedger
}

// SeatLedger is a seat ledger that can also drop its expired holds.
type SeatLedger interface {
	domain.SeatLedger
	ledger.Sweeper
}

func Run() error {
	// values from .env only seed the flag defaults, real env vars win
	_ = godotenv.Load()

	var cfg Config

	flag.IntVar(&cfg.Port, "port", envInt("PORT", 3000), "server port")
	flag.StringVar(&cfg.Env, "env", envString("ENV", "dev"), "Environment (dev|staging|prod)")

	flag.StringVar(&cfg.DB.DSN, "db-dsn", envString("DB_DSN", ""), "PostgreSQL DSN, empty keeps bookings in memory")
	flag.IntVar(&cfg.DB.MaxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.DurationVar(&cfg.DB.MaxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max idle time for connections")

	flag.StringVar(&cfg.Redis.URL, "redis-url", envString("REDIS_URL", ""), "Redis URL")
	flag.IntVar(&cfg.Redis.MaxOpenConns, "redis-max-open-conns", 25, "Redis max open connections")
	flag.IntVar(&cfg.Redis.MaxIdleConns, "redis-max-idle-conns", 10, "Redis max idle connections")
	flag.DurationVar(&cfg.Redis.MaxIdleTime, "redis-max-idle-time", 2*time.Minute, "Redis max idle time for connections")

	flag.StringVar(&cfg.Ledger, "ledger", envString("LEDGER", LedgerMemory), "Seat ledger backend (memory|redis)")
	flag.DurationVar(&cfg.HoldTTL, "hold-ttl", ledger.DefaultHoldTTL, "How long claimed seats stay held")
	flag.DurationVar(&cfg.LockTimeout, "lock-timeout", ledger.DefaultLockTimeout, "How long a claim waits for contended seats")
	flag.DurationVar(&cfg.SweepInterval, "sweep-interval", 30*time.Second, "Interval of the expired hold sweeper")
	flag.StringVar(&cfg.CatalogFile, "catalog-file", envString("CATALOG_FILE", ""), "JSON catalog of halls and shows, used without a database")

	flag.StringVar(&cfg.AMQPURL, "amqp-url", envString("AMQP_URL", ""), "RabbitMQ URL for booking events")
	flag.StringVar(&cfg.OtelCollectorUrl, "otel-collector-url", envString("OTEL_COLLECTOR_URL", ""), "OpenTelemetry collector endpoint")
	flag.StringVar(&cfg.LogFile, "log-file", envString("LOG_FILE", ""), "Also write JSON logs to this rotated file")
	flag.BoolVar(&cfg.Migrate, "migrate", false, "Apply database migrations before starting")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	logger, closeLog := newLogger(cfg)
	defer closeLog()

	shutdownTelemetry, err := InitTelemetry(cfg, logger)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	var db *pgxpool.Pool
	if cfg.DB.DSN != "" {
		if cfg.Migrate {
			if err := migrations.Up(cfg.DB.DSN); err != nil {
				return err
			}
			logger.Info("database migrations applied")
		}

		db, err = NewDatabasePool(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	var redisClient redis.UniversalClient
	if cfg.Redis.URL != "" {
		client, err := NewRedisClient(cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		redisClient = client
	}

	var publisher domain.EventPublisher
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, logger)
		if err != nil {
			return err
		}
		defer amqpPublisher.Close()

		publisher = amqpPublisher
	}

	core, err := NewCore(cfg, logger, db, redisClient, publisher)
	if err != nil {
		return err
	}

	app, err := NewApp(cfg, logger, db, redisClient, core.Bookings)
	if err != nil {
		return err
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go ledger.RunSweeper(ctx, core.Ledger, cfg.SweepInterval, logger)

	return app.run()
}

func NewApp(
	cfg Config,
	logger *slog.Logger,
	db *pgxpool.Pool,
	redisClient redis.UniversalClient,
	bookings BookingService) (*Application, error) {

	spec, err := api.LoadSpec(context.Background())
	if err != nil {
		return nil, err
	}

	router, err := newOpenAPIRouter(spec)
	if err != nil {
		return nil, err
	}

	return &Application{
		config:    cfg,
		logger:    logger,
		db:        db,
		redis:     redisClient,
		validator: appvalidator.NewValidator(),
		bookings:  bookings,
		openapi:   router,
	}, nil
}

// NewCore wires the catalog, repositories, seat ledger and orchestrator.
// Without a database everything lives in memory and the catalog comes from
// cfg.CatalogFile.
func NewCore(
	cfg Config,
	logger *slog.Logger,
	db *pgxpool.Pool,
	redisClient redis.UniversalClient,
	publisher domain.EventPublisher) (*Core, error) {

	clk := clock.NewSystem()

	var (
		cat      domain.Catalog
		bookings interface {
			domain.BookingRepository
			domain.OccupancySource
		}
		waitlist domain.WaitlistRepository
	)

	if db != nil {
		cat = repository.NewPostgresCatalogRepository(db)
		bookings = repository.NewPostgresBookingRepository(db)
		waitlist = repository.NewPostgresWaitlistRepository(db)
	} else {
		memCatalog := catalog.NewMemory()
		if cfg.CatalogFile != "" {
			loaded, err := catalog.LoadFile(cfg.CatalogFile)
			if err != nil {
				return nil, fmt.Errorf("load catalog: %w", err)
			}
			memCatalog = loaded
		}

		cat = memCatalog
		bookings = repository.NewMemoryBookingRepository(clk)
		waitlist = repository.NewMemoryWaitlistRepository()
	}

	ledgerOpts := []ledger.Option{
		ledger.WithHoldTTL(cfg.HoldTTL),
		ledger.WithLockTimeout(cfg.LockTimeout),
		ledger.WithOccupancySource(bookings),
	}

	var seatLedger SeatLedger
	switch cfg.Ledger {
	case LedgerMemory, "":
		seatLedger = ledger.NewMemoryLedger(cat, clk, logger, ledgerOpts...)
	case LedgerRedis:
		if redisClient == nil {
			return nil, errors.New("redis ledger requires -redis-url")
		}
		seatLedger = ledger.NewRedisLedger(redisClient, cat, clk, logger, ledgerOpts...)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger)
	}

	opts := []booking.Option{booking.WithClock(clk)}
	if publisher != nil {
		opts = append(opts, booking.WithPublisher(publisher))
		seatLedger.Subscribe(events.CapacityListener(publisher, clk, logger))
	}

	orchestrator, err := booking.NewOrchestrator(cat, seatLedger, bookings, waitlist, logger, opts...)
	if err != nil {
		return nil, err
	}

	return &Core{Bookings: orchestrator, Ledger: seatLedger}, nil
}

func NewRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.URL,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxOpenConns,
		ConnMaxIdleTime: cfg.Redis.MaxIdleTime,
	})

	if err := errors.Join(redisotel.InstrumentTracing(rdb), redisotel.InstrumentMetrics(rdb)); err != nil {
		rdb.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := rdb.Ping(ctx).Err()
	if err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}

func NewDatabasePool(cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.DB.MaxIdleTime
	config.MaxConns = int32(cfg.DB.MaxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *Application) run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.Port),
		Handler:      app.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		shutdownError <- srv.Shutdown(ctx)
	}()

	app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env, "ledger", app.config.Ledger)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}

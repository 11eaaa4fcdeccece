package integration_test

import (
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-booking/internal/app"
	"github.com/redis/go-redis/v9"
)

type TestApp struct {
	App   *app.Application
	Core  *app.Core
	DB    *pgxpool.Pool
	Redis *redis.Client
}

func newTestApp(cfg app.Config, db *pgxpool.Pool, redisClient *redis.Client) (*TestApp, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	core, err := app.NewCore(cfg, logger, db, redisClient, nil)
	if err != nil {
		return nil, err
	}

	application, err := app.NewApp(cfg, logger, db, redisClient, core.Bookings)
	if err != nil {
		return nil, err
	}

	return &TestApp{
		App:   application,
		Core:  core,
		DB:    db,
		Redis: redisClient,
	}, nil
}

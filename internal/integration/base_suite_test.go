package integration_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-booking/internal/app"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
)

const (
	dbName         = "seat_booking"
	dbUser         = "test_user"
	dbPassword     = "test_password"
	dbImageName    = "postgres:17-alpine"
	cacheImageName = "redis:7"
)

type BaseSuite struct {
	suite.Suite
	app            *TestApp
	cfg            app.Config
	db             *pgxpool.Pool
	redis          *redis.Client
	dbContainer    *PostgresContainer
	cacheContainer *RedisContainer
}

func (s *BaseSuite) SetupSuite() {
	ctx := context.Background()

	postgresContainer, err := startPostgres(ctx)
	if err != nil {
		s.T().Skipf("failed to start container: %s", err)
	}
	s.dbContainer = postgresContainer

	redisContainer, err := startRedis(ctx)
	if err != nil {
		_ = testcontainers.TerminateContainer(postgresContainer.Container)
		s.T().Skipf("failed to start container: %s", err)
	}
	s.cacheContainer = redisContainer

	s.cfg = app.Config{
		Port:   3000,
		Env:    "test",
		Ledger: app.LedgerRedis,
		DB: app.DBConfig{
			DSN:          postgresContainer.ConnectionString,
			MaxOpenConns: 25,
			MaxIdleTime:  2 * time.Minute,
		},
		Redis: app.RedisConfig{
			URL:          redisContainer.Addr,
			MaxOpenConns: 10,
			MaxIdleConns: 10,
			MaxIdleTime:  2 * time.Minute,
		},
		HoldTTL:     time.Minute,
		LockTimeout: 2 * time.Second,
	}

	s.db, err = app.NewDatabasePool(s.cfg)
	s.Require().NoError(err)

	s.redis, err = app.NewRedisClient(s.cfg)
	s.Require().NoError(err)
}

// SetupTest starts every test from the seeded catalog, no bookings and an
// empty seat ledger.
func (s *BaseSuite) SetupTest() {
	executeSQLFile(s.T(), s.db, "testdata/reset.sql")
	executeSQLFile(s.T(), s.db, "testdata/catalog_up.sql")
	s.Require().NoError(s.redis.FlushDB(context.Background()).Err())

	testApp, err := newTestApp(s.cfg, s.db, s.redis)
	s.Require().NoError(err)

	s.app = testApp
}

func (s *BaseSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}

	if s.dbContainer != nil {
		if err := testcontainers.TerminateContainer(s.dbContainer.Container); err != nil {
			s.T().Logf("failed to terminate container: %s", err)
		}
	}
	if s.cacheContainer != nil {
		if err := testcontainers.TerminateContainer(s.cacheContainer.Container); err != nil {
			s.T().Logf("failed to terminate container: %s", err)
		}
	}
}

type Scenario struct {
	Name             string
	Method           string
	URL              string
	Body             io.Reader
	Headers          map[string]string
	ExpectedStatus   int
	ExpectedResponse string
	BeforeTestFunc   func(t testing.TB, app *TestApp)
	AfterTestFunc    func(t testing.TB, app *TestApp, res *http.Response)
}

func (s Scenario) Run(t *testing.T, testApp *TestApp) {
	t.Run(s.Name, func(t *testing.T) {
		req, err := prepareRequest(s.Method, s.URL, s.Body, s.Headers)
		require.NoError(t, err)

		if s.BeforeTestFunc != nil {
			s.BeforeTestFunc(t, testApp)
		}

		rec := httptest.NewRecorder()
		testApp.App.Routes().ServeHTTP(rec, req)

		res := rec.Result()
		defer res.Body.Close()

		assert.Equal(t, s.ExpectedStatus, res.StatusCode)

		if s.ExpectedResponse != "" {
			compareResponse(t, res.Body, s.ExpectedResponse)
		}

		if s.AfterTestFunc != nil {
			s.AfterTestFunc(t, testApp, res)
		}
	})
}

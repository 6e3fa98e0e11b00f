package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"lingualign/internal/config"
)

type IntegrationSuite struct {
	T        *testing.T
	DB       *sql.DB
	Weaviate *weaviate.Client
	NSQ      *nsq.Producer

	pgHost       string
	pgPort       int
	weaviateHost string
	nsqdHost     string
	nsqdHTTP     string

	// Containers
	pgContainer       *postgres.PostgresContainer
	weaviateContainer testcontainers.Container
	nsqContainer      testcontainers.Container
}

func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	return &IntegrationSuite{T: t}
}

func (s *IntegrationSuite) Setup() {
	ctx := context.Background()

	// 1. Postgres
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("lingualign_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(s.T, err)
	s.pgContainer = pgContainer

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T, err)

	s.DB, err = sql.Open("postgres", connStr)
	require.NoError(s.T, err)

	s.pgHost, err = pgContainer.Host(ctx)
	require.NoError(s.T, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(s.T, err)
	s.pgPort, err = strconv.Atoi(pgPort.Port())
	require.NoError(s.T, err)

	// Run Migrations
	m, err := migrate.New(MigrationPath(), connStr)
	require.NoError(s.T, err)
	require.NoError(s.T, m.Up())

	// 2. Weaviate
	req := testcontainers.ContainerRequest{
		Image:        "semitechnologies/weaviate:latest",
		ExposedPorts: []string{"8080/tcp", "50051/tcp"},
		Env: map[string]string{
			"AUTHENTICATION_ANONYMOUS_ACCESS_ENABLED": "true",
			"DEFAULT_VECTORIZER_MODULE":               "none",
			"PERSISTENCE_DATA_PATH":                   "/var/lib/weaviate",
		},
		WaitingFor: wait.ForHTTP("/v1/meta").WithPort("8080/tcp").WithStartupTimeout(60 * time.Second),
	}
	weaviateC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T, err)
	s.weaviateContainer = weaviateC

	host, err := weaviateC.Host(ctx)
	require.NoError(s.T, err)
	port, err := weaviateC.MappedPort(ctx, "8080")
	require.NoError(s.T, err)
	s.weaviateHost = fmt.Sprintf("%s:%s", host, port.Port())

	s.Weaviate, err = weaviate.NewClient(weaviate.Config{
		Host:   s.weaviateHost,
		Scheme: "http",
	})
	require.NoError(s.T, err)

	// 3. NSQ
	nsqReq := testcontainers.ContainerRequest{
		Image:        "nsqio/nsq:v1.3.0",
		ExposedPorts: []string{"4150/tcp", "4151/tcp"},
		Cmd:          []string{"/nsqd", "--broadcast-address=localhost"},
		WaitingFor:   wait.ForLog("TCP: listening on").WithStartupTimeout(60 * time.Second),
	}
	nsqC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: nsqReq,
		Started:          true,
	})
	require.NoError(s.T, err)
	s.nsqContainer = nsqC

	nsqHost, err := nsqC.Host(ctx)
	require.NoError(s.T, err)
	nsqPort, err := nsqC.MappedPort(ctx, "4150")
	require.NoError(s.T, err)
	s.nsqdHost = fmt.Sprintf("%s:%s", nsqHost, nsqPort.Port())

	nsqHTTPPort, err := nsqC.MappedPort(ctx, "4151")
	require.NoError(s.T, err)
	s.nsqdHTTP = fmt.Sprintf("%s:%s", nsqHost, nsqHTTPPort.Port())

	s.NSQ, err = nsq.NewProducer(s.nsqdHost, nsq.NewConfig())
	require.NoError(s.T, err)
}

// GetAppConfig returns a Config pointing at the running containers, with
// the engine defaults a unit-sized test run wants.
func (s *IntegrationSuite) GetAppConfig() *config.Config {
	return &config.Config{
		DBHost: s.pgHost,
		DBPort: s.pgPort,
		DBUser: "test",
		DBPass: "test",
		DBName: "lingualign_test",

		WeaviateHost:   s.weaviateHost,
		WeaviateScheme: "http",

		NSQDHost: s.nsqdHost,
		NSQDHTTP: s.nsqdHTTP,

		ServerPort:    0,
		MigrationPath: MigrationPath(),

		SimilarityThreshold:   0.35,
		MaxEmbeddingBatchSize: 50,
		MaxConcurrentRequests: 3,
		MinContentLength:      1,
		MaxContentLength:      8000,
		EmbedTimeoutSeconds:   60,
		EmbedRetryAttempts:    3,

		ExportUnmatchedAsPlaceholder: true,
		PlaceholderText:              "[UNMATCHED]",
		ReviewCandidates:             3,

		BootstrapRetryAttempts:     5,
		BootstrapRetryDelaySeconds: 1,
	}
}

// MigrationPath resolves the migrations directory relative to this file, so
// integration tests work regardless of the package they run from.
func MigrationPath() string {
	_, b, _, _ := runtime.Caller(0)
	basepath := filepath.Dir(b)
	return "file://" + strings.ReplaceAll(filepath.Join(basepath, "..", "..", "migrations"), "\\", "/")
}

func (s *IntegrationSuite) Teardown() {
	ctx := context.Background()
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(ctx)
	}
	if s.weaviateContainer != nil {
		_ = s.weaviateContainer.Terminate(ctx)
	}
	if s.nsqContainer != nil {
		_ = s.nsqContainer.Terminate(ctx)
	}
}

package provisioner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/allaboutapps/integresql-client-go/pkg/client"
	"github.com/allaboutapps/integresql-client-go/pkg/db"
	"github.com/allaboutapps/integresql-client-go/pkg/fingerprint"
	"github.com/allaboutapps/integresql-client-go/pkg/readiness"
	"github.com/allaboutapps/integresql-client-go/pkg/util"
	"github.com/lib/pq"
)

const (
	driverPostgres = "postgres"

	// pqCodeInvalidCatalogName is reported while a freshly created database is not visible yet.
	pqCodeInvalidCatalogName = "3D000"
)

type PostgresConfig struct {
	Client client.ClientConfig

	// Override replaces the connection settings reported by the pooling service.
	Override db.ConnectionOverride
	// AdditionalParams are merged into every connection string, e.g. {"sslmode": "require"}.
	AdditionalParams map[string]string

	// UseMD5Hash passes the MD5 digest of fingerprints to the pooling service instead of the raw fingerprint.
	UseMD5Hash bool
	// DropDatabaseOnRemove makes Remove request a recreation of the test database. Otherwise Remove is a no-op
	// and the pooling service recycles the database on its own.
	DropDatabaseOnRemove bool

	Readiness readiness.Config
	// Dial probes connectionString during readiness polling, defaults to opening a lib/pq connection and pinging it.
	Dial func(ctx context.Context, connectionString string) error
}

func DefaultPostgresConfigFromEnv() PostgresConfig {
	return PostgresConfig{
		Client: client.DefaultClientConfigFromEnv(),
		Override: db.ConnectionOverride{
			Host:     util.GetEnv("INTEGRESQL_CLIENT_PGHOST", ""),
			Port:     util.GetEnvAsInt("INTEGRESQL_CLIENT_PGPORT", 0),
			Username: util.GetEnv("INTEGRESQL_CLIENT_PGUSER", ""),
			Password: util.GetEnv("INTEGRESQL_CLIENT_PGPASSWORD", ""),
		},
		UseMD5Hash:           util.GetEnvAsBool("INTEGRESQL_CLIENT_USE_MD5_HASH", true),
		DropDatabaseOnRemove: util.GetEnvAsBool("INTEGRESQL_CLIENT_DROP_ON_REMOVE", false),
		Readiness:            readiness.DefaultConfigFromEnv(),
	}
}

// PostgresBackend provisions PostgreSQL test databases through the IntegreSQL pooling service.
type PostgresBackend struct {
	config PostgresConfig
	client *client.Client
}

func NewPostgres(config PostgresConfig) (*PostgresBackend, error) {
	c, err := client.New(config.Client)
	if err != nil {
		return nil, err
	}

	if config.Dial == nil {
		config.Dial = pingPostgres
	}

	return &PostgresBackend{config: config, client: c}, nil
}

func DefaultPostgresFromEnv() (*PostgresBackend, error) {
	return NewPostgres(DefaultPostgresConfigFromEnv())
}

func (b *PostgresBackend) Name() string {
	return "postgres"
}

func (b *PostgresBackend) DriverName() string {
	return driverPostgres
}

// Client returns the protocol client talking to the pooling service.
func (b *PostgresBackend) Client() *client.Client {
	return b.client
}

func (b *PostgresBackend) NormalizeFingerprint(fp string) (string, error) {
	return fingerprint.Normalize(fp, b.config.UseMD5Hash, fingerprint.RawLimitPostgres)
}

func (b *PostgresBackend) BuildTemplate(ctx context.Context, hash string, init InitFunc) error {
	log := util.LogFromContext(ctx).With().Str("hash", hash).Logger()

	template, owned, err := b.client.InitializeTemplate(ctx, hash)
	if err != nil {
		return err
	}

	if !owned {
		log.Debug().Msg("Template is initialized by another client, skipping seed")
		return nil
	}

	if err := init(ctx, b.ConnectionString(b.AdaptConfig(template.Config))); err != nil {
		b.discard(ctx, hash, err)
		return err
	}

	if err := b.client.FinalizeTemplate(ctx, hash); err != nil {
		b.discard(ctx, hash, err)
		return err
	}

	log.Debug().Msg("Template finalized")

	return nil
}

func (b *PostgresBackend) AcquireInstance(ctx context.Context, hash string) (db.TestDatabase, error) {
	return b.client.GetTestDatabase(ctx, hash)
}

func (b *PostgresBackend) AdaptConfig(config db.DatabaseConfig) db.DatabaseConfig {
	return config.WithOverride(b.config.Override).WithParams(b.config.AdditionalParams)
}

func (b *PostgresBackend) ConnectionString(config db.DatabaseConfig) string {
	return config.ConnectionString()
}

func (b *PostgresBackend) WaitUntilReady(ctx context.Context, connectionString string) error {
	poller := readiness.Poller{
		Config: b.config.Readiness,
		Dial: func(ctx context.Context) error {
			return b.config.Dial(ctx, connectionString)
		},
		Retryable: isDatabaseMissing,
	}

	return poller.Poll(ctx)
}

func (b *PostgresBackend) Release(ctx context.Context, test db.TestDatabase) error {
	return b.client.ReturnTestDatabase(ctx, test.TemplateHash, test.ID)
}

func (b *PostgresBackend) Remove(ctx context.Context, test db.TestDatabase) error {
	if !b.config.DropDatabaseOnRemove {
		return nil
	}

	return b.client.RecreateTestDatabase(ctx, test.TemplateHash, test.ID)
}

// discard gives up the template after a failed build. The build error is what the caller sees.
func (b *PostgresBackend) discard(ctx context.Context, hash string, cause error) {
	log := util.LogFromContext(ctx)
	log.Warn().Err(cause).Str("hash", hash).Msg("Template build failed, discarding template")

	if err := b.client.DiscardTemplate(ctx, hash); err != nil {
		log.Error().Err(err).Str("hash", hash).Msg("Failed to discard template")
	}
}

func pingPostgres(ctx context.Context, connectionString string) error {
	connector, err := pq.NewConnector(connectionString)
	if err != nil {
		return fmt.Errorf("invalid connection string: %w", err)
	}

	sqlDB := sql.OpenDB(connector)
	defer sqlDB.Close()

	return sqlDB.PingContext(ctx)
}

// isDatabaseMissing reports whether err means the database does not exist (yet).
func isDatabaseMissing(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqCodeInvalidCatalogName
	}

	return false
}

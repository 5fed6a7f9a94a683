package fakepool

import (
	"time"

	"github.com/allaboutapps/integresql-client-go/pkg/db"
	"github.com/allaboutapps/integresql-client-go/pkg/util"
)

type PoolConfig struct {
	// Connection details reported for all template and test databases.
	DatabaseConfig db.DatabaseConfig

	DatabasePrefix          string
	TemplateDatabasePrefix  string
	TestDatabasePrefix      string
	TestDatabaseMaxPoolSize int           // 0 means unlimited
	TemplateFinalizeTimeout time.Duration // Time to wait for a template to transition into the 'finalized' state
}

func DefaultPoolConfigFromEnv() PoolConfig {
	return PoolConfig{
		DatabaseConfig: db.DatabaseConfig{
			Host:     util.GetEnv("INTEGRESQL_FAKE_PGHOST", "127.0.0.1"),
			Port:     util.GetEnvAsInt("INTEGRESQL_FAKE_PGPORT", 5432),
			Username: util.GetEnv("INTEGRESQL_FAKE_PGUSER", "postgres"),
			Password: util.GetEnv("INTEGRESQL_FAKE_PGPASSWORD", ""),
		},

		DatabasePrefix: util.GetEnv("INTEGRESQL_DB_PREFIX", "integresql"),

		// DatabasePrefix_TemplateDatabasePrefix_HASH
		TemplateDatabasePrefix: util.GetEnv("INTEGRESQL_TEMPLATE_DB_PREFIX", "template"),

		// DatabasePrefix_TestDatabasePrefix_HASH_ID
		TestDatabasePrefix: util.GetEnv("INTEGRESQL_TEST_DB_PREFIX", "test"),

		TestDatabaseMaxPoolSize: util.GetEnvAsInt("INTEGRESQL_TEST_MAX_POOL_SIZE", 0),
		TemplateFinalizeTimeout: util.GetEnvAsDuration("INTEGRESQL_TEMPLATE_FINALIZE_TIMEOUT_MS", 60*time.Second),
	}
}

package database

import (
	"strings"
	"testing"
	"time"

	"github.com/synaptica-ai/clinical-insights/pkg/common/config"
)

func TestPostgresDSN(t *testing.T) {
	cfg := &config.Config{
		PostgresHost:     "db",
		PostgresPort:     "5433",
		PostgresUser:     "clinical",
		PostgresPassword: "secret",
		PostgresDB:       "insights",
		PostgresSSLMode:  "require",
	}
	dsn := PostgresDSN(cfg)
	for _, part := range []string{"host=db", "port=5433", "dbname=insights", "sslmode=require"} {
		if !strings.Contains(dsn, part) {
			t.Fatalf("dsn %q missing %q", dsn, part)
		}
	}
}

func TestRedisOptions(t *testing.T) {
	opts := RedisOptions(&config.Config{RedisHost: "cache", RedisPort: "6380", RedisDB: 2, RedisTimeout: time.Second})
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.ReadTimeout != time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
}

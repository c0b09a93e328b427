package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 60*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 6, cfg.Shop.PageSize)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("CACHE_TTL", "2m")
	t.Setenv("SHOP_PAGE_SIZE", "12")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("DB_LOG_LEVEL", "silent")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 12, cfg.Shop.PageSize)
	assert.Equal(t, 2525, cfg.Mail.Port)
	assert.Equal(t, logger.Silent, cfg.DB.LogLevel)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("CACHE_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 60*time.Second, cfg.Cache.TTL)
}

func TestLoad_RejectsNonPositivePageSize(t *testing.T) {
	t.Setenv("SHOP_PAGE_SIZE", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "SHOP_PAGE_SIZE")
}

func TestGetDSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "shop", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=shop sslmode=disable", c.GetDSN())
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "")
	t.Setenv("DEFAULT_RECEIPT_TYPE", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "https://backend-vethope-production.up.railway.app/api", cfg.Backend.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "Boleta", cfg.Business.DefaultReceiptType)
	assert.Equal(t, "S/.", cfg.Receipt.Currency)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "http://localhost:9000/api/")
	t.Setenv("BACKEND_TIMEOUT_SECONDS", "3")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SESSION_TTL_MINUTES", "30")
	t.Setenv("DEFAULT_RECEIPT_TYPE", "Factura")

	cfg := Load()

	assert.Equal(t, "http://localhost:9000/api", cfg.Backend.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Minute, cfg.Business.SessionTTL)
	assert.Equal(t, "Factura", cfg.Business.DefaultReceiptType)
}

func TestGetEnvInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	assert.Equal(t, 0, getEnvInt("REDIS_DB", 0))
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownerHex = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("VISITLEDGER_OWNER", ownerHex)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, ownerHex, cfg.Owner.Hex())
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
	assert.Equal(t, "ipfs://collection/{id}.json", cfg.Collection.URITemplate)
	assert.Equal(t, 9, cfg.Collection.Size)
	assert.Equal(t, "https://ipfs.io/ipfs/", cfg.Collection.Gateway)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadHeaderTimeout)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 45*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, 2*time.Minute, cfg.HTTP.IdleTimeout)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("VISITLEDGER_OWNER", ownerHex)
	t.Setenv("VISITLEDGER_ADDR", ":9090")
	t.Setenv("VISITLEDGER_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("VISITLEDGER_REDIS_DIAL_TIMEOUT", "250ms")
	t.Setenv("VISITLEDGER_HTTP_WRITE_TIMEOUT", "90s")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.DialTimeout)
	assert.Equal(t, 90*time.Second, cfg.HTTP.WriteTimeout)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing owner",
			env:  map[string]string{},
			want: "VISITLEDGER_OWNER is required",
		},
		{
			name: "malformed owner",
			env:  map[string]string{"VISITLEDGER_OWNER": "0x1234"},
			want: "VISITLEDGER_OWNER",
		},
		{
			name: "zero owner",
			env:  map[string]string{"VISITLEDGER_OWNER": "0x0000000000000000000000000000000000000000"},
			want: "zero address",
		},
		{
			name: "default signing key in production",
			env:  map[string]string{"VISITLEDGER_OWNER": ownerHex, "VISITLEDGER_ENV": "production"},
			want: "VISITLEDGER_JWT_SIGNING_KEY",
		},
		{
			name: "zero read timeout",
			env:  map[string]string{"VISITLEDGER_OWNER": ownerHex, "VISITLEDGER_HTTP_READ_TIMEOUT": "0s"},
			want: "VISITLEDGER_HTTP_READ_TIMEOUT must be positive",
		},
		{
			name: "unparseable duration",
			env:  map[string]string{"VISITLEDGER_OWNER": ownerHex, "VISITLEDGER_JWT_TTL": "soon"},
			want: "parse env",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("VISITLEDGER_OWNER", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

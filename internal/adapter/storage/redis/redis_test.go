package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"digital-wallet/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	s := miniredis.RunT(t)
	host := s.Host()
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)

	client, err := NewClient(context.Background(),
		config.RedisConfig{Host: host, Port: port},
		config.SettlementConfig{ClaimTimeout: time.Second},
		zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, time.Second, client.Options().ReadTimeout)

	hc := NewHealthCheck(client)
	assert.Equal(t, "redis", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))
}

func TestNewClient_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	host := s.Host()
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)
	s.Close()

	_, err = NewClient(context.Background(),
		config.RedisConfig{Host: host, Port: port},
		config.SettlementConfig{},
		zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pinging redis")
}

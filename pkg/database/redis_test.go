package database

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient_Connects(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := NewRedisClient(context.Background(), RedisConfig{
		Host:        mr.Host(),
		Port:        port,
		PoolSize:    2,
		DialTimeout: time.Second,
	})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "otp:cooldown:u1", "1", time.Minute).Err())
	assert.True(t, mr.Exists("otp:cooldown:u1"))
}

func TestNewRedisClient_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	mr.Close()

	_, err = NewRedisClient(context.Background(), RedisConfig{
		Host:        mr.Host(),
		Port:        port,
		DialTimeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis at")
}

func TestRedisConfig_IPv6Addr(t *testing.T) {
	assert.Equal(t, "[::1]:6379", RedisConfig{Host: "::1", Port: 6379}.Addr())
}

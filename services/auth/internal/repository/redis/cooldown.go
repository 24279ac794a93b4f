package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const otpCooldownPrefix = "auth:otp:cooldown:"

// OTPCooldown limits how often an OTP can be requested for one phone number.
type OTPCooldown struct {
	client redis.Cmdable
	window time.Duration
}

// NewOTPCooldown creates a Redis-backed cooldown with the given window.
func NewOTPCooldown(client redis.Cmdable, window time.Duration) *OTPCooldown {
	return &OTPCooldown{client: client, window: window}
}

// Acquire claims the cooldown slot of phone. It returns false while an
// earlier claim is still inside the window.
func (c *OTPCooldown) Acquire(ctx context.Context, phone string) (bool, error) {
	ok, err := c.client.SetNX(ctx, otpCooldownPrefix+phone, time.Now().Unix(), c.window).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx otp cooldown: %w", err)
	}
	return ok, nil
}

// Release drops the cooldown of phone so that a failed send can be retried.
func (c *OTPCooldown) Release(ctx context.Context, phone string) error {
	if err := c.client.Del(ctx, otpCooldownPrefix+phone).Err(); err != nil {
		return fmt.Errorf("redis del otp cooldown: %w", err)
	}
	return nil
}

package utils

import (
	"context"
	"testing"
	"time"
)

func TestRedisConfig_Defaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if c.DialTimeout != 3*time.Second {
		t.Fatalf("DialTimeout = %v", c.DialTimeout)
	}
	if c.PoolSize != 20 {
		t.Fatalf("PoolSize = %d", c.PoolSize)
	}
	if c.PingTimeout != 2*time.Second {
		t.Fatalf("PingTimeout = %v", c.PingTimeout)
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

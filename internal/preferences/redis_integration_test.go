//go:build integration

package preferences

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"beacon/internal/testinfra"
)

func TestRedisStore(t *testing.T) {
	infra := testinfra.SetupWithOptions(t, false, false, true)

	prefix := "test:prefs:" + uuid.NewString() + ":"
	exerciseStore(t, NewRedisStore(infra.RedisClient, prefix, testDefaults()))

	t.Cleanup(func() {
		keys, _ := infra.RedisClient.Keys(context.Background(), prefix+"*").Result()
		if len(keys) > 0 {
			infra.RedisClient.Del(context.Background(), keys...)
		}
	})
}

package workflow

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/medequip/equipment_backend/config"
	"github.com/medequip/equipment_backend/draft"
	"github.com/medequip/equipment_backend/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	name, port := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(name) })

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:" + port})
	require.NoError(t, client.Ping(context.Background()).Err())
	config.SetRedisClient(client)
	t.Cleanup(func() {
		config.SetRedisClient(nil)
		_ = client.Close()
	})
	return client
}

func TestRedisStore_RoundTripAndExpiry(t *testing.T) {
	client := connectTestRedis(t)
	ctx := context.Background()

	store := NewRedisStore("ktv.hoa", time.Minute)
	_, found, err := store.Get(ctx, "draft_42")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "draft_42", `[{"id":-1}]`))
	value, found, err := store.Get(ctx, "draft_42")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"id":-1}]`, value)

	ttl, err := client.TTL(ctx, "Draft:ktv.hoa:draft_42").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	// another user's namespace is separate
	_, found, err = NewRedisStore("ktv.lan", time.Minute).Get(ctx, "draft_42")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Remove(ctx, "draft_42"))
	_, found, err = store.Get(ctx, "draft_42")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDraftSessions_SaveHonoursRedisLock(t *testing.T) {
	client := connectTestRedis(t)
	ctx := context.Background()

	caller := newFakeCaller()
	caller.responses[fnMaintenanceTaskList] = planTasksJSON
	sessions, err := NewRedisDraftSessions(config.AppConfig{DraftSessionSize: 4, DraftCacheTTL: time.Hour}, NewMaintenanceBackend(caller))
	require.NoError(t, err)

	engine := sessions.Engine("ktv.hoa", 42)
	_, err = engine.Fetch(ctx, "42")
	require.NoError(t, err)
	_, err = engine.Add(ctx, models.MaintenanceTask{LoaiCongViec: models.WorkInspection, Thang2: true})
	require.NoError(t, err)

	held, err := redislock.New(client).Obtain(ctx, "lock:draft:ktv.hoa:42", time.Minute, nil)
	require.NoError(t, err)

	_, err = sessions.Save(ctx, "ktv.hoa", 42)
	assert.ErrorIs(t, err, ErrSaveInProgress)
	assert.Equal(t, draft.StateDirty, engine.State())

	require.NoError(t, held.Release(ctx))
	result, err := sessions.Save(ctx, "ktv.hoa", 42)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)

	exists, err := client.Exists(ctx, "Draft:ktv.hoa:draft_42").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("equipment-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "redis-cli", "ping"); err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// "127.0.0.1:49154\n"
	m := regexp.MustCompile(`:(\d+)`).FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	b, err := exec.Command("docker", args...).CombinedOutput()
	return string(b), err
}

package redis

import (
	"context"
	"sync"
	"testing"

	"ms-coaching/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestConversationLockIntegration runs against a real Redis container.
func TestConversationLockIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})
	defer client.Close()

	locks := NewRedis(client, logger.NewLogger())

	// First caller takes the lock
	locked, err := locks.LockConversation(ctx, "booking1", "client1")
	require.NoError(t, err)
	assert.True(t, locked)

	// Second caller is refused while the lock is held
	locked, err = locks.LockConversation(ctx, "booking1", "mentor1")
	require.NoError(t, err)
	assert.False(t, locked)

	// A non-owner release is a no-op
	require.NoError(t, locks.UnlockConversation(ctx, "booking1", "mentor1"))
	locked, err = locks.LockConversation(ctx, "booking1", "mentor1")
	require.NoError(t, err)
	assert.False(t, locked)

	// Owner release frees the lock
	require.NoError(t, locks.UnlockConversation(ctx, "booking1", "client1"))
	locked, err = locks.LockConversation(ctx, "booking1", "mentor1")
	require.NoError(t, err)
	assert.True(t, locked)

	// Locks for different bookings do not interfere
	locked, err = locks.LockConversation(ctx, "booking2", "client1")
	require.NoError(t, err)
	assert.True(t, locked)
}

// TestConversationLockSingleWinner fires concurrent acquisitions for the
// same booking and asserts exactly one succeeds.
func TestConversationLockSingleWinner(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})
	defer client.Close()

	locks := NewRedis(client, logger.NewLogger())

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			locked, err := locks.LockConversation(ctx, "contested-booking", "caller")
			if err == nil && locked {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 1, winners, "Exactly one concurrent caller should take the lock")
}

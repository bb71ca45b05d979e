package testutil

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Container test configuration constants
const (
	containerStartupTimeout   = 60 * time.Second
	containerTerminateTimeout = 5 * time.Second
	containerMemoryLimit      = 256 * 1024 * 1024 // 256MB
	pingRetries               = 5
	pingRetryDelay            = 500 * time.Millisecond
)

// sharedContainer is a container started once per test binary.
type sharedContainer struct {
	once      sync.Once
	container testcontainers.Container
	addr      string
	err       error
}

var (
	sharedRedis = &sharedContainer{}
	sharedMongo = &sharedContainer{}
)

// SkipIfShort skips tests that need Docker when running with -short.
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
}

// get starts the container on first use and returns its host:port address.
func (c *sharedContainer) get(req testcontainers.ContainerRequest, port string) (string, error) {
	c.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), containerStartupTimeout)
		defer cancel()

		c.container, c.addr, c.err = startContainer(ctx, req, port)
	})
	return c.addr, c.err
}

func (c *sharedContainer) terminate() {
	if c.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), containerTerminateTimeout)
	defer cancel()
	_ = c.container.Terminate(ctx)
}

func startContainer(
	ctx context.Context,
	req testcontainers.ContainerRequest,
	port string,
) (testcontainers.Container, string, error) {
	req.HostConfigModifier = func(hc *container.HostConfig) {
		hc.Memory = containerMemoryLimit
		hc.MemorySwap = containerMemoryLimit
	}

	cont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to start %s container: %w", req.Image, err)
	}

	host, err := cont.Host(ctx)
	if err != nil {
		_ = cont.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get container host: %w", err)
	}

	mapped, err := cont.MappedPort(ctx, nat.Port(port))
	if err != nil {
		_ = cont.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get container port: %w", err)
	}

	return cont, net.JoinHostPort(host, mapped.Port()), nil
}

func redisRequest() testcontainers.ContainerRequest {
	return testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Ready to accept connections").WithStartupTimeout(containerStartupTimeout),
			wait.ForListeningPort("6379/tcp").WithStartupTimeout(containerStartupTimeout),
		),
	}
}

func mongoRequest() testcontainers.ContainerRequest {
	return testcontainers.ContainerRequest{
		Image:        "mongo:8",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(containerStartupTimeout),
	}
}

// retryPing calls ping until it succeeds or the retries are used up.
func retryPing(ping func(ctx context.Context) error) error {
	var err error
	for i := range pingRetries {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = ping(ctx)
		cancel()
		if err == nil {
			return nil
		}
		if i < pingRetries-1 {
			time.Sleep(pingRetryDelay)
		}
	}
	return fmt.Errorf("ping failed after %d retries: %w", pingRetries, err)
}

// CleanupContainers terminates the shared containers. Call it from TestMain.
func CleanupContainers() {
	sharedRedis.terminate()
	sharedMongo.terminate()
}

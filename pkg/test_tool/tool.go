package testtool

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

// Endpoint mapped address of a started container
type Endpoint struct {
	Host string
	Port string
}

// Addr host:port
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, e.Port)
}

// PortNumber port as int, for DSN builders that take one
func (e Endpoint) PortNumber() int {
	p, _ := strconv.Atoi(e.Port)
	return p
}

// StartContainer 啟動測試容器並在測試結束時關閉, 回傳第一個 exposed port 的對外位址
func StartContainer(ctx context.Context, t testing.TB, req testcontainers.ContainerRequest) Endpoint {
	t.Helper()
	require.NotEmpty(t, req.ExposedPorts, "container %s exposes no port", req.Image)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start %s", req.Image)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate %s: %v", req.Image, err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	natPort, err := nat.NewPort("tcp", strings.TrimSuffix(req.ExposedPorts[0], "/tcp"))
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, natPort)
	require.NoError(t, err)

	return Endpoint{Host: host, Port: port.Port()}
}

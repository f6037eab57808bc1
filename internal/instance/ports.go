package instance

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	dockerpkg "github.com/dyluth/multitab/internal/docker"
)

// Host ports handed out to dev Redis containers, one per scope.
const (
	firstRedisPort = 6379
	lastRedisPort  = 6478
)

// ContainerLister is the part of the Docker client used to discover containers.
type ContainerLister interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
}

// FindNextAvailablePort returns the lowest port in 6379-6478 that no multitab
// Redis container claims and that can be bound on this host.
func FindNextAvailablePort(ctx context.Context, cli ContainerLister) (int, error) {
	return findPort(ctx, cli, isPortBindable)
}

func findPort(ctx context.Context, cli ContainerLister, bindable func(int) bool) (int, error) {
	filter := filters.NewArgs()
	filter.Add("label", fmt.Sprintf("%s=true", dockerpkg.LabelProject))
	filter.Add("label", fmt.Sprintf("%s=%s", dockerpkg.LabelComponent, dockerpkg.ComponentRedis))

	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filter,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query Docker containers: %w", err)
	}

	claimed := claimedPorts(containers)
	for port := firstRedisPort; port <= lastRedisPort; port++ {
		if !claimed[port] && bindable(port) {
			return port, nil
		}
	}

	return 0, fmt.Errorf("no available Redis ports (range %d-%d exhausted)", firstRedisPort, lastRedisPort)
}

// claimedPorts collects the ports recorded in the containers' port labels.
// Stopped containers keep their claim.
func claimedPorts(containers []types.Container) map[int]bool {
	ports := make(map[int]bool, len(containers))
	for _, c := range containers {
		if port, ok := redisPort(c); ok {
			ports[port] = true
		}
	}
	return ports
}

func redisPort(c types.Container) (int, bool) {
	port, err := strconv.Atoi(c.Labels[dockerpkg.LabelRedisPort])
	if err != nil {
		return 0, false
	}
	return port, true
}

func isPortBindable(port int) bool {
	listener, err := net.Listen("tcp", net.JoinHostPort("localhost", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

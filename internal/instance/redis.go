package instance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	dockerpkg "github.com/dyluth/multitab/internal/docker"
)

// DefaultRedisImage is the image started by StartRedis when none is given.
const DefaultRedisImage = "redis:7-alpine"

// ErrRedisExists is returned by StartRedis when the scope already has a container.
var ErrRedisExists = errors.New("redis container already exists for this scope")

// RedisInfo describes the dev Redis container of a scope
type RedisInfo struct {
	Scope     string `json:"scope"`
	Container string `json:"container"`
	Port      int    `json:"port"`
	URL       string `json:"url"`
	Status    Status `json:"status"`
}

func scopeFilter(scope string) filters.Args {
	filter := filters.NewArgs()
	filter.Add("label", fmt.Sprintf("%s=true", dockerpkg.LabelProject))
	filter.Add("label", fmt.Sprintf("%s=%s", dockerpkg.LabelScope, scope))
	filter.Add("label", fmt.Sprintf("%s=%s", dockerpkg.LabelComponent, dockerpkg.ComponentRedis))
	return filter
}

// FindRedis reports the scope's Redis container. It returns nil, nil when
// there is none.
func FindRedis(ctx context.Context, cli ContainerLister, scope string) (*RedisInfo, error) {
	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: scopeFilter(scope),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	if len(containers) == 0 {
		return nil, nil
	}

	info := &RedisInfo{
		Scope:     scope,
		Container: dockerpkg.RedisContainerName(scope),
		Status:    DetermineStatus(containers),
	}
	if port, ok := redisPort(containers[0]); ok {
		info.Port = port
		info.URL = GetRedisURL(port)
	}
	return info, nil
}

// StartRedis creates and starts a Redis container for scope on the next free
// host port. The image is pulled when missing.
func StartRedis(ctx context.Context, cli *client.Client, scope, image string) (*RedisInfo, error) {
	if image == "" {
		image = DefaultRedisImage
	}

	existing, err := FindRedis(ctx, cli, scope)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, ErrRedisExists
	}

	if err := ensureImage(ctx, cli, image); err != nil {
		return nil, err
	}

	port, err := FindNextAvailablePort(ctx, cli)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate Redis port: %w", err)
	}

	name := dockerpkg.RedisContainerName(scope)
	labels := dockerpkg.BuildLabels(scope, dockerpkg.GenerateRunID(), dockerpkg.ComponentRedis)
	labels[dockerpkg.LabelRedisPort] = strconv.Itoa(port)

	resp, err := cli.ContainerCreate(ctx, &container.Config{
		Image:  image,
		Labels: labels,
		ExposedPorts: nat.PortSet{
			"6379/tcp": struct{}{},
		},
	}, &container.HostConfig{
		PortBindings: nat.PortMap{
			"6379/tcp": []nat.PortBinding{
				{
					HostIP:   "0.0.0.0",
					HostPort: strconv.Itoa(port),
				},
			},
		},
	}, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis container: %w", err)
	}

	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start Redis container: %w", err)
	}

	return &RedisInfo{
		Scope:     scope,
		Container: name,
		Port:      port,
		URL:       GetRedisURL(port),
		Status:    StatusRunning,
	}, nil
}

func ensureImage(ctx context.Context, cli *client.Client, image string) error {
	if _, _, err := cli.ImageInspectWithRaw(ctx, image); err == nil {
		return nil
	} else if !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to inspect image %s: %w", image, err)
	}

	rc, err := cli.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", image, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", image, err)
	}
	return nil
}

// StopRedis stops and removes every Redis container of scope and returns
// how many were removed.
func StopRedis(ctx context.Context, cli *client.Client, scope string) (int, error) {
	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: scopeFilter(scope),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list containers: %w", err)
	}

	// 10s graceful timeout
	timeout := 10
	removed := 0
	for _, c := range containers {
		// Ignore stop errors: the container might already be stopped
		_ = cli.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout})
		if err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", c.ID, err)
		}
		removed++
	}
	return removed, nil
}

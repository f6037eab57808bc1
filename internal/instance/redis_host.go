package instance

import (
	"fmt"
	"os"
)

// GetRedisHost returns the hostname under which published container ports
// are reachable: "host.docker.internal" when running inside Docker,
// "localhost" otherwise.
func GetRedisHost() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "host.docker.internal"
	}
	return "localhost"
}

// GetRedisURL constructs the full Redis URL for a published port.
func GetRedisURL(port int) string {
	return fmt.Sprintf("redis://%s:%d", GetRedisHost(), port)
}

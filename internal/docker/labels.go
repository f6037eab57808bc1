package docker

import (
	"fmt"

	"github.com/google/uuid"
)

// Label keys used for multitab resources
const (
	LabelProject   = "multitab.project"
	LabelScope     = "multitab.scope"
	LabelRunID     = "multitab.run_id"
	LabelComponent = "multitab.component"
	LabelRedisPort = "multitab.redis.port"
)

// ComponentRedis is the component label of dev Redis containers.
const ComponentRedis = "redis"

// BuildLabels creates the standard label set for a scope's resources.
// component may be empty.
func BuildLabels(scope, runID, component string) map[string]string {
	labels := map[string]string{
		LabelProject: "true",
		LabelScope:   scope,
		LabelRunID:   runID,
	}

	if component != "" {
		labels[LabelComponent] = component
	}

	return labels
}

// GenerateRunID creates a new UUID for a container run.
// Each invocation of `multitab redis up` gets a unique run ID.
func GenerateRunID() string {
	return uuid.New().String()
}

// RedisContainerName returns the Redis container name for a scope
func RedisContainerName(scope string) string {
	return fmt.Sprintf("multitab-redis-%s", scope)
}

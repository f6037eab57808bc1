package docker

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBuildLabels(t *testing.T) {
	labels := BuildLabels("shop", "test-run-123", ComponentRedis)

	assert.Equal(t, "true", labels[LabelProject])
	assert.Equal(t, "shop", labels[LabelScope])
	assert.Equal(t, "test-run-123", labels[LabelRunID])
	assert.Equal(t, "redis", labels[LabelComponent])
	assert.Len(t, labels, 4)
}

func TestBuildLabels_NoComponent(t *testing.T) {
	labels := BuildLabels("dev", "test-run-456", "")

	assert.Equal(t, "true", labels[LabelProject])
	assert.Equal(t, "dev", labels[LabelScope])
	assert.NotContains(t, labels, LabelComponent)
	assert.Len(t, labels, 3)
}

func TestGenerateRunID(t *testing.T) {
	runID1 := GenerateRunID()
	runID2 := GenerateRunID()

	_, err1 := uuid.Parse(runID1)
	assert.NoError(t, err1)

	_, err2 := uuid.Parse(runID2)
	assert.NoError(t, err2)

	assert.NotEqual(t, runID1, runID2)
}

func TestRedisContainerName(t *testing.T) {
	testCases := []struct {
		scope    string
		expected string
	}{
		{"default", "multitab-redis-default"},
		{"shop", "multitab-redis-shop"},
		{"team_a-1", "multitab-redis-team_a-1"},
	}

	for _, tc := range testCases {
		result := RedisContainerName(tc.scope)
		assert.Equal(t, tc.expected, result)
	}
}

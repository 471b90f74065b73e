package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key    string
		ns, id string
		ok     bool
	}{
		{"embeddings:doc-1", "embeddings", "doc-1", true},
		{"agents:a:b", "agents", "a:b", true},
		{":id", "", "id", true},
		{"plain", "", "plain", false},
	}
	for _, tt := range tests {
		ns, id, ok := SplitKey(tt.key)
		assert.Equal(t, tt.ns, ns, tt.key)
		assert.Equal(t, tt.id, id, tt.key)
		assert.Equal(t, tt.ok, ok, tt.key)
	}
}

func TestJoinKey(t *testing.T) {
	k := JoinKey("retries", "task-7")
	assert.Equal(t, "retries:task-7", k)
	ns, id, ok := SplitKey(k)
	assert.True(t, ok)
	assert.Equal(t, "retries", ns)
	assert.Equal(t, "task-7", id)
}

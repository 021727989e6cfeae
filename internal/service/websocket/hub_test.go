package websocket

import (
	"path/filepath"
	"testing"

	"safetyvision/internal/config"
	"safetyvision/internal/logger"

	"github.com/stretchr/testify/assert"
)

func TestBroadcast_DropsWhenQueueFull(t *testing.T) {
	l := logger.NewLogger(&config.Config{LogDirectory: filepath.Join(t.TempDir(), "logs")})
	defer l.Close()
	hub := NewHubService(l)

	for i := 0; i < broadcastBuffer; i++ {
		assert.True(t, hub.Broadcast([]byte("event")))
	}
	assert.False(t, hub.Broadcast([]byte("overflow")))
	assert.Zero(t, hub.GetClientCount())
}

package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzaxusl0a/APRS-notify/internal/command"
)

func TestRegisterAll(t *testing.T) {
	RegisterAll()
	RegisterAll()

	assert.Equal(t, []string{
		"help", "notify", "poll", "serve", "sessions", "sms-processor", "status", "version", "watchdog",
	}, command.Names())

	for alias, target := range map[string]string{"notify": "poll", "sms-processor": "serve"} {
		h, ok := command.Get(alias)
		require.True(t, ok, alias)
		dep, ok := h.(command.Deprecatable)
		require.True(t, ok, alias)
		assert.Equal(t, target, dep.NewName())
	}
}

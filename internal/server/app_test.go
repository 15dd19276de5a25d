package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echofyteam/echofy-auth/internal/server/config"
)

func TestNewApp_RejectsInvalidConfig(t *testing.T) {
	c := &config.Config{}
	c.LoadDefaults()
	c.RefreshSecret = c.AccessSecret

	app, err := NewApp(context.Background(), c)

	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "config")
}

func TestNewApp_RejectsUnknownLogFormat(t *testing.T) {
	c := &config.Config{}
	c.LoadDefaults()
	c.LogFormat = "xml"

	_, err := NewApp(context.Background(), c)

	assert.ErrorContains(t, err, "unknown log format")
}

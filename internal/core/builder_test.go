package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rconrelay/config"
	"rconrelay/internal/transport"
	"rconrelay/util"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Password = "secret"
	cfg.WebPassword = "opensesame"
	return cfg
}

func TestBuild_PlainTCP(t *testing.T) {
	r, err := Build(testConfig(), util.NewLogger(0))
	require.NoError(t, err)

	assert.IsType(t, &transport.TCPDialer{}, r.Dialer)
	assert.NotNil(t, r.Client)
	assert.NotNil(t, r.Web)
	assert.Equal(t, config.DefaultListenPort, r.ListenPort)
}

func TestBuild_Tunnel(t *testing.T) {
	cfg := testConfig()
	cfg.TunnelSpec = "ops@bastion:2222"
	require.NoError(t, cfg.ApplyTunnelSpec())

	r, err := Build(cfg, util.NewLogger(0))
	require.NoError(t, err)
	assert.IsType(t, &transport.SSHDialer{}, r.Dialer)
	assert.NoError(t, r.Dialer.Close())
}

func TestBuild_BadWebHash(t *testing.T) {
	cfg := testConfig()
	cfg.WebPassword = ""
	cfg.WebPasswordHash = "plainly-not-bcrypt"

	_, err := Build(cfg, util.NewLogger(0))
	assert.Error(t, err)
}

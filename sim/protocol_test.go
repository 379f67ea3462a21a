package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterProtocol_NewProtocolUsesAlgorithm(t *testing.T) {
	RegisterProtocol("registry-test", func(cfg Config) (Protocol, error) {
		return &stubProtocol{busy: BusyPolicy(cfg.BusyPolicy)}, nil
	})
	t.Cleanup(func() { delete(protocols, "registry-test") })

	cfg := testConfig(1)
	cfg.Algorithm = "registry-test"
	p, err := NewProtocol(cfg)

	require.NoError(t, err)
	assert.Equal(t, BusyDrop, p.BusyPolicy())
	assert.Contains(t, RegisteredProtocols(), "registry-test")
	assert.Panics(t, func() {
		RegisterProtocol("registry-test", func(Config) (Protocol, error) { return nil, nil })
	})
}

func TestNewProtocol_UnknownAlgorithm(t *testing.T) {
	cfg := testConfig(1)
	cfg.Algorithm = "federated-nothing"

	_, err := NewProtocol(cfg)

	assert.ErrorContains(t, err, "unknown algorithm")
}

func TestIsValidBusyPolicy(t *testing.T) {
	assert.True(t, IsValidBusyPolicy("drop"))
	assert.True(t, IsValidBusyPolicy("queue"))
	assert.False(t, IsValidBusyPolicy(""))
	assert.False(t, IsValidBusyPolicy("retry"))
}

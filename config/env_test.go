package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOrDefault(t *testing.T) {
	const key = "ROLLUPCLIENT_TEST_STRING"
	_ = os.Unsetenv(key)
	assert.Equal(t, "fallback", EnvOrDefault(key, "fallback"))
	_ = os.Setenv(key, "value")
	defer os.Unsetenv(key)
	assert.Equal(t, "value", EnvOrDefault(key, "fallback"))
}

func TestEnvOrDefaultInt(t *testing.T) {
	const key = "ROLLUPCLIENT_TEST_INT"
	_ = os.Unsetenv(key)
	assert.Equal(t, 10, EnvOrDefaultInt(key, 10))
	_ = os.Setenv(key, "5")
	defer os.Unsetenv(key)
	assert.Equal(t, 5, EnvOrDefaultInt(key, 10))
	_ = os.Setenv(key, "bad")
	assert.Equal(t, 10, EnvOrDefaultInt(key, 10), "fallback on bad input")
}

func TestEnvOrDefaultUint32(t *testing.T) {
	const key = "ROLLUPCLIENT_TEST_UINT32"
	_ = os.Unsetenv(key)
	assert.Equal(t, uint32(256), EnvOrDefaultUint32(key, 256))
	_ = os.Setenv(key, "8")
	defer os.Unsetenv(key)
	assert.Equal(t, uint32(8), EnvOrDefaultUint32(key, 256))
}

func TestEnvOrDefaultBool(t *testing.T) {
	const key = "ROLLUPCLIENT_TEST_BOOL"
	_ = os.Unsetenv(key)
	assert.Equal(t, false, EnvOrDefaultBool(key, false))
	_ = os.Setenv(key, "true")
	defer os.Unsetenv(key)
	assert.Equal(t, true, EnvOrDefaultBool(key, false))
}

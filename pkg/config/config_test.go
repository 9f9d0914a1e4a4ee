package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMatchesInstalledDefaults(t *testing.T) {
	// Default and the viper getters must agree, so callers can detect an
	// overridden value without repeating the literal default.
	assert.Equal(t, Default(ChunkSize), GetString(ChunkSize))
	assert.Equal(t, Default(MaxAttempts), GetInt(MaxAttempts))
	assert.Equal(t, Default(RetryDelay), GetString(RetryDelay))

	assert.Nil(t, Default(Token))
}

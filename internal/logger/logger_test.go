package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestInitSetsGlobalLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	Init("debug")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	InitWithFormat("WARN", "console")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	Init("chatty")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

package log

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		level       string
		want        zerolog.Level
	}{
		{name: "development default", environment: "development", want: zerolog.DebugLevel},
		{name: "production default", environment: "production", want: zerolog.InfoLevel},
		{name: "explicit level wins", environment: "production", level: "WARN", want: zerolog.WarnLevel},
		{name: "unknown level falls back", environment: "production", level: "verbose", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.environment, tt.level))
		})
	}
}

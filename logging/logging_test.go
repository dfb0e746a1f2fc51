package logging

import (
	"testing"

	"github.com/peterldowns/testy/check"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		enabled zapcore.Level
		wantErr bool
	}{
		{name: "defaults to info", cfg: Config{}, enabled: zapcore.InfoLevel},
		{name: "debug", cfg: Config{Level: "debug"}, enabled: zapcore.DebugLevel},
		{name: "development warn", cfg: Config{Level: "warn", Development: true}, enabled: zapcore.WarnLevel},
		{name: "unknown level", cfg: Config{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			if tt.wantErr {
				check.NotNil(t, err)
				check.True(t, log == nil)
				return
			}
			check.Nil(t, err)
			check.True(t, log.Core().Enabled(tt.enabled))
			check.False(t, log.Core().Enabled(tt.enabled-1))
		})
	}
}

package logging

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevFlags, prevLevel := log.Writer(), log.Flags(), CurrentLevel()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		SetLevel(prevLevel)
	})

	SetLevel(LevelWarn)
	Debugf("debug line")
	Infof("info line")
	Warnf("warn line")
	Errorf("error line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "warn line")
	assert.Contains(t, out, "error line")
}

func TestInitFromEnv(t *testing.T) {
	prev := CurrentLevel()
	t.Cleanup(func() { SetLevel(prev) })

	t.Setenv("LOG_LEVEL", "debug")
	InitFromEnv()
	assert.Equal(t, LevelDebug, CurrentLevel())
}

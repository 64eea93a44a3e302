package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qaops/migratrack/internal/config"
	trackerrs "github.com/qaops/migratrack/internal/errors"
	"github.com/qaops/migratrack/internal/events"
)

func assembleConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Version:  "1.0",
		Projects: []string{"PAY"},
		Sources: config.SourcesConfig{
			Primary:   config.SourceConfig{BaseURL: "http://primary.test"},
			Secondary: config.SourceConfig{BaseURL: "http://secondary.test"},
		},
		Snapshots: config.SnapshotsConfig{Directory: t.TempDir()},
		History:   config.HistoryConfig{Path: ":memory:"},
	}
}

func TestAssembleBuildsRunner(t *testing.T) {
	asm, err := Assemble(context.Background(), assembleConfig(t), nil)
	require.NoError(t, err)
	defer asm.Close()

	require.NotNil(t, asm.Runner)
	require.NotNil(t, asm.History)
	require.IsType(t, events.NoopPublisher{}, asm.Events)
}

func TestAssembleHistoryDisabled(t *testing.T) {
	cfg := assembleConfig(t)
	disabled := false
	cfg.History.Enabled = &disabled

	asm, err := Assemble(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer asm.Close()

	require.Nil(t, asm.History)
	require.Nil(t, asm.Runner.history)
}

func TestAssembleNilConfig(t *testing.T) {
	_, err := Assemble(context.Background(), nil, nil)
	require.Error(t, err)
	require.True(t, trackerrs.IsCategory(err, trackerrs.CategoryConfig))
}

func TestAssembleRequiresBaseURL(t *testing.T) {
	cfg := assembleConfig(t)
	cfg.Sources.Secondary.BaseURL = ""

	_, err := Assemble(context.Background(), cfg, nil)
	require.Error(t, err)
	require.True(t, trackerrs.IsCategory(err, trackerrs.CategoryConfig))
}

func TestAssembleBrokerUnavailable(t *testing.T) {
	cfg := assembleConfig(t)
	cfg.Events = config.EventsConfig{Enabled: true, URL: "nats://127.0.0.1:1"}

	asm, err := Assemble(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer asm.Close()

	// Publishing degrades to the noop publisher instead of failing assembly.
	require.IsType(t, events.NoopPublisher{}, asm.Events)
}

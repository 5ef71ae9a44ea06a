package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/websift/websift/internal/progress"
)

func TestLogSinkWritesStructuredFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	id := uuid.New()
	batch := []progress.Event{
		{RunID: progress.UUIDToBytes(id), TS: time.Now().UTC(),
			Stage: progress.StageFetchDone, Site: "a.example",
			URL: "https://a.example/page", Bytes: 512, Outcome: "success", Dur: time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, id.String(), fields["run_id"])
	require.Equal(t, "FETCH_DONE", fields["stage"])
	require.Equal(t, "a.example", fields["site"])
	require.Equal(t, "success", fields["outcome"])
}

func TestLogSinkNilLogger(t *testing.T) {
	t.Parallel()

	sink := NewLogSink(nil)
	require.NoError(t, sink.Consume(context.Background(), nil))
	require.NoError(t, sink.Close(context.Background()))
}

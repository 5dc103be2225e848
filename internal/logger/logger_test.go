package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"beacon/pkg/logging"
)

func TestContextFieldsAreAppended(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core))
	log.(*SugaredLogger).SetServiceName("notify-service")

	ctx := logging.WithNotificationID(context.Background(), "n-1")
	ctx = logging.WithStage(ctx, "decryption")
	log.InfowCtx(ctx, "stage finished", "duration_ms", 3)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "n-1", fields["notification_id"])
	assert.Equal(t, "decryption", fields["stage"])
	assert.Equal(t, "notify-service", fields["service_name"])
	assert.EqualValues(t, 3, fields["duration_ms"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestParseLevelRejectsFatalLevels(t *testing.T) {
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("panic"))
}

func TestNewConsoleLogger(t *testing.T) {
	log, err := New("debug", "console")
	require.NoError(t, err)
	log.DebugwCtx(context.Background(), "hello")
}

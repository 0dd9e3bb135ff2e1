package logger

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroasura/neuroasura/internal/config"
)

func TestTestLogger_SharedRecord(t *testing.T) {
	root := NewTestLogger()
	boom := errors.New("boom")

	Component(root, "router").WithError(boom).WithField(FieldUserID, int64(7)).Warn("Secondary ", "failed")
	root.Info("plain")

	require.Equal(t, 2, root.CountEntries())

	entry, ok := root.Entry("warn", "Secondary failed")
	require.True(t, ok)
	assert.Equal(t, Fields{
		FieldComponent: "router",
		FieldUserID:    int64(7),
		"error":        boom,
	}, entry.Fields)

	plain, ok := root.Entry("info", "plain")
	require.True(t, ok)
	assert.Empty(t, plain.Fields)

	root.Clear()
	assert.Zero(t, root.CountEntries())
	assert.False(t, root.HasEntry("info", "plain"))
}

func TestNewFormatter(t *testing.T) {
	assert.IsType(t, &logrus.JSONFormatter{}, newFormatter(config.LogFormatJSON))
	assert.IsType(t, &logrus.TextFormatter{}, newFormatter(config.LogFormatText))
	assert.IsType(t, &logrus.TextFormatter{}, newFormatter(""))
}

func TestNewLogrusLogger_Level(t *testing.T) {
	l := NewLogrusLogger(&config.LoggingConfig{LogLevel: "DEBUG"}).(*logrusLogger)
	assert.Equal(t, logrus.DebugLevel, l.entry.(*logrus.Logger).GetLevel())

	l = NewLogrusLogger(&config.LoggingConfig{LogLevel: "loud"}).(*logrusLogger)
	assert.Equal(t, logrus.InfoLevel, l.entry.(*logrus.Logger).GetLevel())
}

package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestZapAdapter_FieldsAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	log.WithFields(map[string]interface{}{"requestId": "r-1"}).
		Info("webhook received", map[string]interface{}{"eventType": "conversation.toolcall"})
	log.WithError(errors.New("boom")).Error("dispatch failed", nil)
	log.Warn("lookup failed", map[string]interface{}{"cause": errors.New("no rows")})

	entries := logs.All()
	assert.Len(t, entries, 3)

	first := entries[0].ContextMap()
	assert.Equal(t, "r-1", first["requestId"])
	assert.Equal(t, "conversation.toolcall", first["eventType"])

	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.Equal(t, "no rows", entries[2].ContextMap()["cause"])
}

func TestNewNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	assert.NotPanics(t, func() {
		log.Debug("ignored", nil)
		log.WithFields(nil).Info("ignored", map[string]interface{}{})
	})
}

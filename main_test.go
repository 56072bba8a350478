package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-fulfillment/config"
	"checkout-fulfillment/webhook"
)

func TestNewLoggerLevel(t *testing.T) {
	l := newLogger(config.LogConfig{Level: "warn", Format: "json"})
	assert.False(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, l.Enabled(context.Background(), slog.LevelWarn))

	l = newLogger(config.LogConfig{Level: "bogus"})
	assert.True(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, l.Enabled(context.Background(), slog.LevelDebug))
}

func TestSignCommandOutputVerifies(t *testing.T) {
	t.Setenv("STRIPE_ENDPOINT_SECRET", "whsec_cli")
	payload := `{"id":"evt_cli","object":"event","type":"customer.created","api_version":"2023-10-16","data":{"object":{"id":"cus_1","object":"customer"}}}`

	cmd := signCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(payload))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	line := strings.TrimSpace(out.String())
	prefix := webhook.SignatureHeader + ": "
	require.True(t, strings.HasPrefix(line, prefix), line)

	ev, err := webhook.NewVerifier("whsec_cli").Parse([]byte(payload), strings.TrimPrefix(line, prefix))
	require.NoError(t, err)
	assert.Equal(t, "evt_cli", ev.ID)
	assert.Equal(t, webhook.KindUnknown, ev.Kind)
}

func TestSignCommandRequiresSecret(t *testing.T) {
	t.Setenv("STRIPE_ENDPOINT_SECRET", "")
	t.Setenv("CHECKOUT_STRIPE_ENDPOINT_SECRET", "")

	cmd := signCmd()
	cmd.SetIn(strings.NewReader("{}"))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}

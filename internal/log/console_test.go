package log

import (
	"bytes"
	"testing"

	"github.com/chainguard-dev/clog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	var buf bytes.Buffer
	ctx, err := Setup(t.Context(), &buf, Options{Level: "info", Format: "logfmt"})
	require.NoError(t, err)

	Info(ctx, "adding name tag", "resource", "ami-123", "name", "MyWebServer")
	Debug(ctx, "hidden at info level")

	out := buf.String()
	assert.Contains(t, out, "adding name tag")
	assert.Contains(t, out, "resource=ami-123")
	assert.Contains(t, out, "name=MyWebServer")
	assert.NotContains(t, out, "hidden at info level")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	ctx, err := Setup(t.Context(), &buf, Options{Level: "debug", Format: "logfmt"})
	require.NoError(t, err)

	ctx = With(ctx, "run_id", "abc")
	clog.FromContext(ctx).Debug("polling")
	assert.Contains(t, buf.String(), "run_id=abc")
}

func TestNewConsoleHandlerRejectsBadOptions(t *testing.T) {
	_, err := NewConsoleHandler(&bytes.Buffer{}, Options{Level: "loud"})
	assert.Error(t, err)

	_, err = NewConsoleHandler(&bytes.Buffer{}, Options{Format: "xml"})
	assert.Error(t, err)
}

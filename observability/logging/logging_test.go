package logging

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWritesRotatingFile(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	path := filepath.Join(t.TempDir(), "ledger.log")
	logger, closer := SetupWithOptions(Options{Service: "reflectctl", Env: "test", Level: "debug", File: path})
	logger.Debug("swap leg failed", slog.String("stage", "dividend"), MaskField("secret", "hunter2"))
	require.NoError(t, closer.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())

	var line map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "swap leg failed", line["message"])
	require.Equal(t, "reflectctl", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "dividend", line["stage"])
	require.Equal(t, RedactedValue, line["secret"])
	require.Contains(t, line, "timestamp")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelWarn, ParseLevel(" WARNING "))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, "dividend", MaskField("Stage", "dividend").Value.String())
	require.Equal(t, RedactedValue, MaskField("webhookSecret", "s3cr3t").Value.String())
	require.Equal(t, "", MaskField("webhookSecret", "").Value.String())
	require.Contains(t, RedactionAllowlist(), "account")
}

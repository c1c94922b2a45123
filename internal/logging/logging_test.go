// v0
// internal/logging/logging_test.go
package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToConsoleAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "buildingrl.log")
	var console bytes.Buffer

	logger, file, err := New(&console, path, slog.LevelInfo)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	logger.With(slog.String("component", "test")).Info("episode_done", slog.Int("episode", 3))
	logger.Debug("hidden")
	if err := file.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, out := range []string{console.String(), string(data)} {
		if !strings.Contains(out, "msg=episode_done") || !strings.Contains(out, "component=test") || !strings.Contains(out, "episode=3") {
			t.Fatalf("unexpected log output %q", out)
		}
		if strings.Contains(out, "hidden") {
			t.Fatalf("debug record leaked: %q", out)
		}
	}
}

func TestTeeRespectsPerHandlerLevel(t *testing.T) {
	var info, warn bytes.Buffer
	logger := slog.New(Tee(
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	))
	logger.WithGroup("g").Info("only_info")
	if !strings.Contains(info.String(), "only_info") {
		t.Fatalf("info handler missed record")
	}
	if warn.Len() != 0 {
		t.Fatalf("warn handler should be empty, got %q", warn.String())
	}
}

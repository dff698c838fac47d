package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"optionchain-board/config"

	"github.com/sirupsen/logrus"
)

func TestNewAppliesLevelAndFormat(t *testing.T) {
	log, err := New(&config.Config{LogLevel: "DEBUG", LogFormat: "json"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %s, want debug", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter, got %T", log.Formatter)
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	log, err := New(&config.Config{LogLevel: "chatty", LogFormat: "text"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %s, want info", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.TextFormatter); !ok {
		t.Fatalf("expected text formatter, got %T", log.Formatter)
	}
}

func TestNewWritesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chain.log")
	log, err := New(&config.Config{
		LogLevel:     "info",
		LogFormat:    "json",
		LogFile:      path,
		LogMaxSizeMB: 1,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	log.WithField("component", "test").Info("hello chain")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello chain") {
		t.Fatalf("log file missing entry: %s", data)
	}
}

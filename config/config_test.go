package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/drummonds/purpleify/transform"
)

func TestGetEnvInt(t *testing.T) {
	t.Setenv("PURPLEIFY_TEST_INT", "42")
	if got := getEnvInt("PURPLEIFY_TEST_INT", 1); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}

	t.Setenv("PURPLEIFY_TEST_INT", "lots")
	if got := getEnvInt("PURPLEIFY_TEST_INT", 1); got != 1 {
		t.Errorf("Expected default for invalid value, got %d", got)
	}
}

func TestLoadRendererConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("RENDERER", "")
		t.Setenv("DEFAULT_QUALITY", "")
		t.Setenv("DEFAULT_BACKGROUND", "")

		cfg := loadRendererConfig(logger)
		if cfg.Renderer != "pdfium" {
			t.Errorf("Expected pdfium renderer, got %q", cfg.Renderer)
		}
		if cfg.DefaultQuality != transform.QualityNormal {
			t.Errorf("Expected normal quality, got %v", cfg.DefaultQuality)
		}
		if cfg.DefaultBackground != transform.DefaultBackgroundColor {
			t.Errorf("Expected default background, got %v", cfg.DefaultBackground)
		}
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("RENDERER", "FITZ")
		t.Setenv("DEFAULT_QUALITY", "high")
		t.Setenv("DEFAULT_BACKGROUND", "#102030")

		cfg := loadRendererConfig(logger)
		if cfg.Renderer != "fitz" {
			t.Errorf("Expected fitz renderer, got %q", cfg.Renderer)
		}
		if cfg.DefaultQuality != transform.QualityHigh {
			t.Errorf("Expected high quality, got %v", cfg.DefaultQuality)
		}
		if cfg.DefaultBackground != (transform.Color{R: 0x10, G: 0x20, B: 0x30}) {
			t.Errorf("Unexpected background %v", cfg.DefaultBackground)
		}
	})

	t.Run("Invalid values fall back", func(t *testing.T) {
		t.Setenv("DEFAULT_QUALITY", "ultra")
		t.Setenv("DEFAULT_BACKGROUND", "mauve")

		cfg := loadRendererConfig(logger)
		if cfg.DefaultQuality != transform.QualityNormal || cfg.DefaultBackground != transform.DefaultBackgroundColor {
			t.Errorf("Expected defaults, got %+v", cfg)
		}
	})
}

func TestSetupLoggingToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	t.Setenv("LOG_LEVEL", "info")

	logger := setupLogging("file", logPath)
	logger.Info("hello from the test")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Log file not created: %v", err)
	}
	if len(data) == 0 {
		t.Error("Expected log output in file")
	}
}

func TestSetupPortNeverLogsToStdout(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOG_OUTPUT", "stdout")

	cfg, logger := SetupPort()
	if cfg.LogOutput != "stderr" {
		t.Errorf("Expected stderr log output, got %q", cfg.LogOutput)
	}
	if logger == nil || Logger != logger {
		t.Error("SetupPort should install the global logger")
	}
}

func TestSetupPortLogFileDefault(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("LOG_OUTPUT", "file")
	t.Setenv("LOG_FILE", "")

	cfg, logger := SetupPort()
	if cfg.LogFile != "purpleify-port.log" {
		t.Errorf("Expected purpleify-port.log, got %q", cfg.LogFile)
	}
	logger.Info("hello from the port")

	if _, err := os.Stat(filepath.Join(dir, "purpleify-port.log")); err != nil {
		t.Errorf("Port log file not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "purpleify.log")); !os.IsNotExist(err) {
		t.Error("Port should not log to the server's file")
	}
}

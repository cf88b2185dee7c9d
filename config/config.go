package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/drummonds/purpleify/transform"
	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerConfig contains all of the server settings
type ServerConfig struct {
	ListenAddrIP     string
	ListenAddrPort   string
	DatabaseType     string
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string `json:"-"`
	DatabaseDbname   string
	DatabaseSslmode  string
	RendererConfig
	MaxUploadMB            int
	JobRetentionHours      int
	CleanupIntervalMinutes int
}

// RendererConfig holds the settings shared by every binary that renders
type RendererConfig struct {
	Renderer          string
	DefaultQuality    transform.Quality
	DefaultBackground transform.Color
}

// PortConfig contains the settings of the IPC port binary
type PortConfig struct {
	RendererConfig
	LogOutput string
	LogFile   string
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// loadEnvFiles loads .env files (silently ignore if they don't exist)
func loadEnvFiles(extra ...string) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")
	for _, name := range extra {
		_ = godotenv.Load(name)
	}
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	serverConfigLive := ServerConfig{}

	loadEnvFiles()

	logFile := getEnv("LOG_FILE", "purpleify.log")
	logger := setupLogging(getEnv("LOG_OUTPUT", "file"), logFile)
	Logger = logger

	// Server configuration
	serverConfigLive.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	serverConfigLive.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Database configuration
	serverConfigLive.DatabaseType = getEnv("DATABASE_TYPE", "sqlite")
	serverConfigLive.DatabaseHost = getEnv("DATABASE_HOST", "localhost")
	serverConfigLive.DatabasePort = getEnv("DATABASE_PORT", "5432")
	serverConfigLive.DatabaseUser = getEnv("DATABASE_USER", "purpleify")
	serverConfigLive.DatabasePassword = getEnv("DATABASE_PASSWORD", "")
	serverConfigLive.DatabaseDbname = getEnv("DATABASE_NAME", "purpleify.sqlite")
	serverConfigLive.DatabaseSslmode = getEnv("DATABASE_SSLMODE", "")

	logger.Info("Database configuration loaded", "type", serverConfigLive.DatabaseType)

	serverConfigLive.RendererConfig = loadRendererConfig(logger)

	// Limits and housekeeping
	serverConfigLive.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", 64)
	serverConfigLive.JobRetentionHours = getEnvInt("JOB_RETENTION_HOURS", 72)
	serverConfigLive.CleanupIntervalMinutes = getEnvInt("CLEANUP_INTERVAL_MINUTES", 60)
	if serverConfigLive.CleanupIntervalMinutes < 1 {
		logger.Warn("CLEANUP_INTERVAL_MINUTES must be positive, using 60", "value", serverConfigLive.CleanupIntervalMinutes)
		serverConfigLive.CleanupIntervalMinutes = 60
	}

	fmt.Println("\n========================================")
	fmt.Println("   purpleify - PDF background recolouring")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", serverConfigLive.ListenAddrIP, serverConfigLive.ListenAddrPort)
	if serverConfigLive.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}
	fmt.Printf("Detailed logs: %s\n", logFile)
	fmt.Println("Initializing...")

	logger.Info("About to setup database", "type", serverConfigLive.DatabaseType)

	return serverConfigLive, logger
}

// SetupPort loads configuration for the IPC port. Stdout carries frames, so
// logs only ever go to stderr or a file.
func SetupPort() (PortConfig, *slog.Logger) {
	loadEnvFiles("port.env")

	portConfig := PortConfig{
		LogOutput: getEnv("LOG_OUTPUT", "stderr"),
		LogFile:   getEnv("LOG_FILE", "purpleify-port.log"),
	}
	if portConfig.LogOutput == "stdout" {
		portConfig.LogOutput = "stderr"
	}

	logger := setupLogging(portConfig.LogOutput, portConfig.LogFile)
	Logger = logger

	portConfig.RendererConfig = loadRendererConfig(logger)
	logger.Info("Port configuration loaded", "renderer", portConfig.Renderer, "logOutput", portConfig.LogOutput)

	return portConfig, logger
}

// SetupCLI loads configuration for the command line tool, logging to stderr
func SetupCLI() (RendererConfig, *slog.Logger) {
	loadEnvFiles()

	logger := setupLogging(getEnv("LOG_OUTPUT", "stderr"), getEnv("LOG_FILE", "purpleify.log"))
	Logger = logger

	return loadRendererConfig(logger), logger
}

// loadRendererConfig reads RENDERER, DEFAULT_QUALITY and DEFAULT_BACKGROUND,
// falling back to the defaults on invalid values
func loadRendererConfig(logger *slog.Logger) RendererConfig {
	rendererConfig := RendererConfig{
		Renderer:          strings.ToLower(getEnv("RENDERER", "pdfium")),
		DefaultQuality:    transform.QualityNormal,
		DefaultBackground: transform.DefaultBackgroundColor,
	}

	if value := getEnv("DEFAULT_QUALITY", ""); value != "" {
		quality, err := transform.ParseQuality(value)
		if err != nil {
			logger.Warn("Invalid DEFAULT_QUALITY, using normal", "value", value, "error", err)
		} else {
			rendererConfig.DefaultQuality = quality
		}
	}

	if value := getEnv("DEFAULT_BACKGROUND", ""); value != "" {
		background, err := transform.ParseHexColor(value)
		if err != nil {
			logger.Warn("Invalid DEFAULT_BACKGROUND, using the default purple", "value", value, "error", err)
		} else {
			rendererConfig.DefaultBackground = background
		}
	}

	logger.Debug("Renderer configuration loaded", "renderer", rendererConfig.Renderer,
		"quality", rendererConfig.DefaultQuality, "background", rendererConfig.DefaultBackground)
	return rendererConfig
}

// setupLogging configures the application logger. logFile is only used when
// logOutput is neither stdout nor stderr.
func setupLogging(logOutput, logFile string) *slog.Logger {
	logLevel := getEnv("LOG_LEVEL", "debug")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelDebug
	}

	handlerOptions := &slog.HandlerOptions{Level: level}

	var logWriter io.Writer

	switch logOutput {
	case "stdout":
		logWriter = os.Stdout
	case "stderr":
		logWriter = os.Stderr
	default:
		logPath, err := filepath.Abs(filepath.ToSlash(logFile))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating log file path: %v\n", err)
			logWriter = os.Stderr
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
				logWriter = os.Stderr
			} else {
				logWriter = logFile
				fmt.Fprintln(os.Stderr, "Logging to file: ", logPath)
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}

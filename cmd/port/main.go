// Command port serves transformation requests framed on stdin and answers on
// stdout, so a host application can drive it as a child process.
package main

import (
	"bufio"
	"log/slog"
	"os"

	config "github.com/drummonds/purpleify/config"
	"github.com/drummonds/purpleify/engine/pdfrenderer"
	"github.com/drummonds/purpleify/port"
	"github.com/drummonds/purpleify/transform"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	config.Logger = Logger
	port.Logger = Logger
	pdfrenderer.Logger = Logger
	transform.Logger = Logger
}

func main() {
	portConfig, logger := config.SetupPort()
	injectGlobals(logger)

	renderer, err := pdfrenderer.NewRenderer(portConfig.Renderer)
	if err != nil {
		Logger.Error("Failed to start renderer", "renderer", portConfig.Renderer, "error", err)
		os.Exit(1)
	}
	defer renderer.Close()

	// stdout carries frames only, logs go elsewhere
	out := bufio.NewWriter(os.Stdout)
	server := port.NewServer(bufio.NewReader(os.Stdin), out, renderer)

	Logger.Info("Port ready", "renderer", portConfig.Renderer)
	if err := server.Serve(); err != nil {
		Logger.Error("Port stopped", "error", err)
		renderer.Close()
		os.Exit(1)
	}
}

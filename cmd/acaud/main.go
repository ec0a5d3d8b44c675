// ABOUTME: Entry point for the ACAU streaming daemon
// ABOUTME: Parses configuration and runs one sender or receiver endpoint
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/acau-audio/acau-go/internal/app"
	"github.com/acau-audio/acau-go/internal/config"
	"github.com/acau-audio/acau-go/internal/engine"
)

func main() {
	cfg, err := config.FromArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Set up logging. The TUI owns the terminal, so logs go to the file
	// only in that case.
	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if cfg.UseTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	if cfg.ListDevices {
		listDevices()
		return
	}

	log.Printf("Starting acaud in %s mode (stream port %d, api port %d)",
		cfg.Mode, cfg.Port, cfg.APIPort)
	if cfg.Verbose {
		log.Printf("Config: %+v", cfg)
	}

	node := app.New(cfg)
	if err := node.Start(); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if cfg.UseTUI {
		go func() {
			<-sigChan
			node.Stop()
			os.Exit(0)
		}()

		if err := node.RunTUI(); err != nil {
			log.Printf("TUI error: %v", err)
		}
		node.Stop()
		return
	}

	log.Printf("Press Ctrl-C to stop")
	sig := <-sigChan
	log.Printf("Received %v signal, shutting down gracefully...", sig)
	node.Stop()
}

func listDevices() {
	eng := engine.New(config.Default().StreamConfig())
	if err := eng.Initialize(); err != nil {
		log.Fatalf("Failed to initialize audio: %v", err)
	}
	defer eng.Terminate()

	devices, err := engine.ListDevices()
	if err != nil {
		log.Fatalf("Failed to list devices: %v", err)
	}

	fmt.Println("Audio Devices:")
	for _, d := range devices {
		fmt.Printf("  - %s (%s) in:%d out:%d @ %.0f Hz\n",
			d.Name, d.HostAPI, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
	}
}

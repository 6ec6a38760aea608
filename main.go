// ABOUTME: Entry point for the beatmix player
// ABOUTME: Parses CLI flags, loads settings and runs the player application
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/beatmix/beatmix/internal/app"
	"github.com/beatmix/beatmix/internal/config"
	"github.com/beatmix/beatmix/internal/version"
)

var (
	configPath = flag.String("config", defaultConfigPath(), "Settings file (YAML)")
	port       = flag.Int("port", 0, "Remote control port (default from settings, -1 disables)")
	name       = flag.String("name", "", "Player name for remote control and mDNS")
	noMDNS     = flag.Bool("no-mdns", false, "Do not advertise via mDNS")
	mod        = flag.String("mod", "", "Play mod: none, dt, nc, ht, dc")
	autoPlay   = flag.Bool("autoplay", true, "Start playback after loading")
	headless   = flag.Bool("headless", false, "Play without an audio device")
	logFile    = flag.String("log-file", "beatmix.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "beatmix.yaml"
	}
	return filepath.Join(dir, "beatmix", "config.yaml")
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <beatmap.osu | folder | audio file>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVer {
		fmt.Println(version.String())
		return
	}

	useTUI := !*noTUI
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	settings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	applyFlags(&settings)

	refs, err := app.ExpandRefs(flag.Args())
	if err != nil {
		log.Fatalf("Invalid playlist: %v", err)
	}

	remoteAddr := ""
	if settings.Remote.Port >= 0 {
		remoteAddr = fmt.Sprintf(":%d", settings.Remote.Port)
	}

	a := app.New(app.Config{
		Settings:   settings,
		Refs:       refs,
		RemoteAddr: remoteAddr,
		UseTUI:     useTUI,
	})
	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Printf("TUI error: %v", err)
	}

	log.Printf("Shutting down")
	a.Stop()
}

// applyFlags overrides settings with explicitly set flags
func applyFlags(s *config.Settings) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			s.Remote.Port = *port
		case "name":
			s.Remote.Name = *name
		case "no-mdns":
			s.Remote.MDNS = !*noMDNS
		case "mod":
			s.Play.Mod = *mod
		case "autoplay":
			s.Play.AutoPlay = *autoPlay
		case "headless":
			s.Output.Headless = *headless
		}
	})
}

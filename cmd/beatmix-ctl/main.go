// ABOUTME: Command-line remote control for a running beatmix player
// ABOUTME: Finds the player via mDNS or -server and sends one command
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/beatmix/beatmix/internal/discovery"
	"github.com/beatmix/beatmix/internal/remote"
)

var (
	serverAddr = flag.String("server", "", "Player address host:port (skip mDNS)")
	timeout    = flag.Duration("timeout", 3*time.Second, "Discovery and reply timeout")
	keepPitch  = flag.Bool("keep-pitch", true, "rate: keep pitch while changing speed")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `usage: %s [flags] <command> [args]

commands:
  play | pause | stop | replay | next | previous
  seek <seconds | m:ss>
  rate <factor>
  mod <none|dt|nc|ht|dc>
  volume <main|music|hitsound|sample> <0..1>
  balance <-1..1>
  load <path>
  state
  watch
  discover
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	log.SetFlags(0)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if args[0] == "discover" {
		for _, p := range discovery.Discover(*timeout) {
			fmt.Printf("%s\t%s%s\n", p.Name, p.Addr(), p.Path)
		}
		return
	}

	cmd, err := parseCommand(args)
	if err != nil {
		log.Fatalf("%v", err)
	}

	addr := *serverAddr
	if addr == "" {
		players := discovery.Discover(*timeout)
		if len(players) == 0 {
			log.Fatalf("No player found via mDNS; use -server")
		}
		addr = players[0].Addr()
	}

	c := remote.NewClient(remote.ClientConfig{
		ServerAddr: addr,
		ClientID:   uuid.NewString(),
		Name:       "beatmix-ctl",
	})
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	err = c.Connect(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer c.Close()

	// The session opens with a snapshot
	initial := <-c.States

	switch args[0] {
	case "watch":
		printState(initial)
		watch(c)
		return
	case "state":
		printState(initial)
		return
	}

	if err := c.Send(cmd); err != nil {
		log.Fatalf("Send failed: %v", err)
	}
	// A trailing state request acknowledges everything before it
	if err := c.Send(remote.Command{Command: remote.CommandState}); err != nil {
		log.Fatalf("Send failed: %v", err)
	}

	select {
	case e := <-c.Errors:
		log.Fatalf("%s failed: %s", e.Command, e.Message)
	case s := <-c.States:
		printState(s)
	case <-time.After(*timeout):
		log.Fatalf("No reply from player")
	}
}

// parseCommand turns CLI words into a remote command
func parseCommand(args []string) (remote.Command, error) {
	cmd := remote.Command{Command: args[0]}
	need := func(n int) error {
		if len(args) < n+1 {
			return fmt.Errorf("%s needs %d argument(s)", args[0], n)
		}
		return nil
	}

	switch args[0] {
	case "play", "pause", "stop", "replay", "next", "previous", "state", "watch":
		if args[0] == "watch" {
			cmd.Command = remote.CommandState
		}
	case "seek":
		if err := need(1); err != nil {
			return cmd, err
		}
		d, err := parsePosition(args[1])
		if err != nil {
			return cmd, err
		}
		cmd.PositionMs = d.Milliseconds()
	case "rate":
		if err := need(1); err != nil {
			return cmd, err
		}
		r, err := strconv.ParseFloat(args[1], 64)
		if err != nil || r <= 0 {
			return cmd, fmt.Errorf("invalid rate %q", args[1])
		}
		cmd.Rate = r
		cmd.UseTempo = *keepPitch
	case "mod":
		if err := need(1); err != nil {
			return cmd, err
		}
		cmd.Mod = args[1]
	case "volume":
		if err := need(2); err != nil {
			return cmd, err
		}
		v, err := strconv.ParseFloat(args[2], 32)
		if err != nil {
			return cmd, fmt.Errorf("invalid volume %q", args[2])
		}
		cmd.Kind = args[1]
		cmd.Value = float32(v)
	case "balance":
		if err := need(1); err != nil {
			return cmd, err
		}
		v, err := strconv.ParseFloat(args[1], 32)
		if err != nil {
			return cmd, fmt.Errorf("invalid balance %q", args[1])
		}
		cmd.Value = float32(v)
	case "load":
		if err := need(1); err != nil {
			return cmd, err
		}
		cmd.Ref = args[1]
		cmd.AutoPlay = true
	default:
		return cmd, fmt.Errorf("unknown command %q", args[0])
	}
	return cmd, nil
}

// parsePosition accepts seconds ("83.5") or m:ss ("1:23")
func parsePosition(s string) (time.Duration, error) {
	if m, sec, ok := strings.Cut(s, ":"); ok {
		mins, err1 := strconv.Atoi(m)
		secs, err2 := strconv.ParseFloat(sec, 64)
		if err1 != nil || err2 != nil || mins < 0 || secs < 0 {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		return time.Duration(mins)*time.Minute + time.Duration(secs*float64(time.Second)), nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func printState(s remote.PlayerState) {
	title := s.Title
	if title == "" {
		title = "(nothing loaded)"
	}
	fmt.Printf("%s\n  %s %s / %s  %.2fx mod:%s  vol:%.0f%%\n",
		title, s.Status,
		fmtMs(s.PositionMs), fmtMs(s.DurationMs),
		s.Rate, s.Mod, s.MainVolume*100)
}

func fmtMs(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// watch prints events until the player goes away
func watch(c *remote.Client) {
	for {
		select {
		case <-c.Done():
			return
		case e := <-c.Events:
			switch {
			case e.Error != "":
				fmt.Printf("%s: %s\n", e.Event, e.Error)
			case e.Event == "position_updated":
				fmt.Printf("\r%s / %s", fmtMs(e.PositionMs), fmtMs(e.DurationMs))
			default:
				fmt.Printf("\n%s %s%s\n", e.Event, e.Status, e.Title)
			}
		}
	}
}

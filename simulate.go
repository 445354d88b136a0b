package main

import (
	"bytes"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/luki/smoker/internal/ws"
)

// runSimulate feeds a running backend with synthetic device events:
// temperatures that drift toward a target cook profile, plus occasional
// zero and malformed frames the way flaky firmware produces them.
func runSimulate(args []string) {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8812", "backend base URL")
	interval := fs.Duration("interval", time.Second, "time between frames")
	glitch := fs.Float64("glitch", 0.05, "probability of a zero or malformed frame")
	start := fs.Bool("start", true, "mark a smoke as live before feeding")
	fs.Parse(args)

	if *start {
		if err := startSmoke(*url); err != nil {
			fmt.Fprintf(os.Stderr, "Start smoke: %v\n", err)
			os.Exit(1)
		}
	}

	addr := deviceWSURL(*url)
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Dial %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	// Discard broadcasts so the read side does not back up.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("Feeding %s every %s (Ctrl+C to stop)\n", addr, *interval)

	sim := newCook()
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-sigCh:
			fmt.Printf("\nStopped after %d frames\n", sent)
			return

		case <-ticker.C:
			frame := ws.Frame{Channel: ws.ChannelEvents, Data: sim.nextEvent(*glitch)}
			if err := conn.WriteJSON(frame); err != nil {
				fmt.Fprintf(os.Stderr, "Write: %v\n", err)
				return
			}
			sent++
			if sent%60 == 0 {
				fmt.Printf("  %d frames, chamber %.1f\n", sent, sim.chamber)
			}
		}
	}
}

func deviceWSURL(base string) string {
	base = strings.TrimRight(base, "/")
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/ws"
}

func startSmoke(base string) error {
	body, _ := json.Marshal(map[string]any{"smoking": true})
	req, err := http.NewRequest(http.MethodPut, base+"/api/state", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// cook models a slow ramp: the chamber climbs to a setpoint and wobbles
// around it, the meat probes trail behind and stall partway up.
type cook struct {
	chamber float64
	probes  [3]float64
	target  float64
}

func newCook() *cook {
	return &cook{
		chamber: 70,
		probes:  [3]float64{45, 45, 45},
		target:  225 + rand.Float64()*50,
	}
}

func (c *cook) step() {
	c.chamber += (c.target - c.chamber) * 0.03
	c.chamber += rand.Float64()*4 - 2

	for i := range c.probes {
		stall := 150.0 + float64(i)*10
		lead := c.chamber * 0.8
		if c.probes[i] > stall {
			lead = c.chamber * 0.9
		}
		c.probes[i] += (lead - c.probes[i]) * 0.01
		c.probes[i] += rand.Float64() - 0.5
	}
}

func (c *cook) nextEvent(glitch float64) string {
	c.step()

	r := rand.Float64()
	switch {
	case r < glitch/2:
		return `{"probeTemp1":"0","probeTemp2":"0","probeTemp3":"0","chamberTemp":"0"}`
	case r < glitch:
		return "garbled frame"
	}

	payload, _ := json.Marshal(map[string]string{
		"chamberTemp": fmt.Sprintf("%.1f", c.chamber),
		"probeTemp1":  fmt.Sprintf("%.1f", c.probes[0]),
		"probeTemp2":  fmt.Sprintf("%.1f", c.probes[1]),
		"probeTemp3":  fmt.Sprintf("%.1f", c.probes[2]),
		"date":        time.Now().UTC().Format(time.RFC3339),
	})
	return string(payload)
}

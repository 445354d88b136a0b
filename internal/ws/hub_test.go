package ws

import (
	"context"
	"testing"
	"time"
)

type recordingHandler struct {
	frames []Frame
}

func (r *recordingHandler) OnFrame(channel, data string) {
	r.frames = append(r.frames, Frame{Channel: channel, Data: data})
}

func runHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h, cancel
}

func addClient(t *testing.T, h *Hub) *Client {
	t.Helper()
	c := &Client{hub: h, send: make(chan Frame, 4)}
	h.register <- c
	waitFor(t, func() bool { return h.ClientCount() > 0 })
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestBroadcastReachesAllClients(t *testing.T) {
	h, _ := runHub(t)
	a := addClient(t, h)
	b := addClient(t, h)
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	raw := `{"chamberTemp":"225","date":"2026-08-30T12:00:00Z"}`
	h.Broadcast(ChannelEvents, raw)

	for _, c := range []*Client{a, b} {
		select {
		case frame := <-c.send:
			if frame.Channel != ChannelEvents {
				t.Errorf("channel: got %q, want %q", frame.Channel, ChannelEvents)
			}
			if frame.Data != raw {
				t.Errorf("payload altered in transit: %q", frame.Data)
			}
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestStalledClientIsDropped(t *testing.T) {
	h, _ := runHub(t)
	c := &Client{hub: h, send: make(chan Frame)} // no buffer, never read
	h.register <- c
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.Broadcast(ChannelEvents, "frame")
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestInboundFrameReachesHandler(t *testing.T) {
	h := NewHub()
	rec := &recordingHandler{}
	h.SetHandler(rec)

	h.onFrame(Frame{Channel: ChannelSmokeUpdate, Data: "smoke-1"})

	if len(rec.frames) != 1 {
		t.Fatalf("frames: got %d, want 1", len(rec.frames))
	}
	if rec.frames[0].Channel != ChannelSmokeUpdate || rec.frames[0].Data != "smoke-1" {
		t.Errorf("frame: got %+v", rec.frames[0])
	}
}

func TestStoppedHubReleasesDepartingClients(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	c := &Client{hub: h, send: make(chan Frame, 4)}
	h.register <- c
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	cancel()
	<-stopped

	// A read pump tearing down after the run loop exited must not hang
	// on the unregister handshake.
	released := make(chan struct{})
	go func() {
		h.detach(c)
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("detach blocked after hub stop")
	}

	if h.attach(&Client{hub: h, send: make(chan Frame, 1)}) {
		t.Error("attach after stop must report false")
	}
}

func TestShutdownClosesClients(t *testing.T) {
	h, cancel := runHub(t)
	c := addClient(t, h)

	cancel()
	waitFor(t, func() bool {
		select {
		case _, ok := <-c.send:
			return !ok
		default:
			return false
		}
	})
}

package messaging

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/secretsanta/giftdraw/internal/testutil"
)

func newTestClient(t *testing.T, url string) *NATSClient {
	t.Helper()
	cfg := DefaultNATSConfig()
	cfg.URL = url
	cfg.Name = "giftdraw-test"
	c, err := NewNATSClient(cfg)
	if err != nil {
		t.Fatalf("NewNATSClient: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestRequestReachesMailerQueue(t *testing.T) {
	url := testutil.StartNATS(t)
	mailer := newTestClient(t, url)
	server := newTestClient(t, url)

	if err := mailer.SubscribeNotifyEmail(func(data []byte) []byte {
		return append([]byte("ack:"), data...)
	}); err != nil {
		t.Fatalf("SubscribeNotifyEmail: %v", err)
	}
	if err := mailer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := server.Request(ctx, SubjectNotifyEmail, []byte("hello"))
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if string(reply) != "ack:hello" {
		t.Errorf("reply = %q, want %q", reply, "ack:hello")
	}
}

func TestRequestWithoutResponder(t *testing.T) {
	url := testutil.StartNATS(t)
	c := newTestClient(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if _, err := c.Request(ctx, SubjectNotifyEmail, []byte("x")); err == nil {
		t.Fatal("expected error when no mailer is listening")
	}
}

func TestRevealSubscriptionsAreKeyedByConnection(t *testing.T) {
	url := testutil.StartNATS(t)
	c := newTestClient(t, url)

	gotA := make(chan []byte, 1)
	gotB := make(chan []byte, 1)

	if err := c.SubscribeReveal("tok1", "conn-a", func(data []byte) { gotA <- data }); err != nil {
		t.Fatalf("SubscribeReveal a: %v", err)
	}
	if err := c.SubscribeReveal("tok1", "conn-b", func(data []byte) { gotB <- data }); err != nil {
		t.Fatalf("SubscribeReveal b: %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if err := c.PublishReveal("tok1", []byte("reveal")); err != nil {
		t.Fatalf("PublishReveal: %v", err)
	}

	for name, ch := range map[string]chan []byte{"conn-a": gotA, "conn-b": gotB} {
		select {
		case data := <-ch:
			if !bytes.Equal(data, []byte("reveal")) {
				t.Errorf("%s got %q", name, data)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s did not receive the reveal", name)
		}
	}

	if err := c.UnsubscribeReveal("conn-a"); err != nil {
		t.Fatalf("UnsubscribeReveal: %v", err)
	}
	if err := c.UnsubscribeReveal("conn-a"); err == nil {
		t.Error("second UnsubscribeReveal should fail")
	}
}

func TestSubscribeRevealReplacesPreviousWatch(t *testing.T) {
	url := testutil.StartNATS(t)
	c := newTestClient(t, url)

	got := make(chan string, 4)
	if err := c.SubscribeReveal("tok1", "conn", func(data []byte) { got <- "tok1" }); err != nil {
		t.Fatalf("SubscribeReveal tok1: %v", err)
	}
	if err := c.SubscribeReveal("tok2", "conn", func(data []byte) { got <- "tok2" }); err != nil {
		t.Fatalf("SubscribeReveal tok2: %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if err := c.PublishReveal("tok1", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := c.PublishReveal("tok2", []byte("y")); err != nil {
		t.Fatal(err)
	}

	select {
	case who := <-got:
		if who != "tok2" {
			t.Errorf("received reveal for %s, want tok2 only", who)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reveal received")
	}

	select {
	case who := <-got:
		t.Errorf("unexpected extra reveal for %s", who)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDrawCompleted(t *testing.T) {
	url := testutil.StartNATS(t)
	c := newTestClient(t, url)

	got := make(chan []byte, 1)
	if err := c.SubscribeDrawCompleted(func(data []byte) { got <- data }); err != nil {
		t.Fatalf("SubscribeDrawCompleted: %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := c.PublishDrawCompleted([]byte(`{"draw_id":"d1"}`)); err != nil {
		t.Fatal(err)
	}

	select {
	case data := <-got:
		if string(data) != `{"draw_id":"d1"}` {
			t.Errorf("got %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("draw.completed not delivered")
	}
}

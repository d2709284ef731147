package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/secretsanta/giftdraw/internal/notify"
)

func relayed(t *testing.T, n notify.Notification) []byte {
	t.Helper()
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestMailboxCollectsCodesOfOneDraw(t *testing.T) {
	inbox := newMailbox(8)
	ctx := context.Background()

	for _, n := range []notify.Notification{
		{DrawID: "old", RevealToken: "t-old"},
		{DrawID: "d1", RevealToken: "t1"},
		{DrawID: "d1"},
		{DrawID: "d1", RevealToken: "t2"},
	} {
		reply := notify.HandleRelay(ctx, inbox, relayed(t, n))
		if !strings.Contains(string(reply), `"ok":true`) {
			t.Fatalf("reply = %s", reply)
		}
	}

	got := inbox.Collect(ctx, "d1", 2)
	if len(got) != 2 || got[0] != "t1" || got[1] != "t2" {
		t.Errorf("Collect = %v, want [t1 t2]", got)
	}
}

func TestMailboxCollectStopsAtDeadline(t *testing.T) {
	inbox := newMailbox(1)
	_ = inbox.Send(context.Background(), notify.Notification{DrawID: "d1", RevealToken: "t1"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if got := inbox.Collect(ctx, "d1", 3); len(got) != 1 {
		t.Errorf("Collect = %v, want one code", got)
	}
}

func TestMailboxSendHonorsContext(t *testing.T) {
	inbox := newMailbox(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reply := notify.HandleRelay(ctx, inbox, relayed(t, notify.Notification{DrawID: "d1"}))
	if !strings.Contains(string(reply), `"ok":false`) {
		t.Errorf("reply = %s, want a failure when nobody collects", reply)
	}
}

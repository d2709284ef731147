package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/secretsanta/giftdraw/internal/loadstats"
	"github.com/secretsanta/giftdraw/internal/messaging"
	"github.com/secretsanta/giftdraw/internal/notify"
)

// revealOptions holds flags for the reveal command.
type revealOptions struct {
	*rootOptions
	WSURL   string
	NATSURL string
	Rounds  int
	Size    int
	Timeout time.Duration
}

func newRevealCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &revealOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reveal",
		Short: "Redeem reveal codes over WebSocket and measure reveal latency",
		Long: `For every round, submit the draw of a fresh group, pick up the reveal
code of every giver from the notify.email relay and watch each code on the
reveal server until its assignment arrives.

The draw server must run with NOTIFY_MODE=nats and Redis or NATS reveals
enabled. Stop the mailer while the test runs: drawload joins the "mailers"
queue group and answers every relayed notification itself.

Example:
  drawload reveal --ws ws://localhost:8080/ws --nats nats://localhost:4222 --rounds 20 --size 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReveal(opts)
		},
	}

	cmd.Flags().StringVar(&opts.WSURL, "ws", "ws://localhost:8080/ws", "reveal WebSocket URL")
	cmd.Flags().StringVar(&opts.NATSURL, "nats", "nats://localhost:4222", "NATS URL the draw server relays notifications to")
	cmd.Flags().IntVar(&opts.Rounds, "rounds", 10, "number of draws")
	cmd.Flags().IntVar(&opts.Size, "size", 8, "participants per group")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "time to wait for codes and assignments per round")

	return cmd
}

// mailbox is a notify.Sender that keeps relayed notifications for the
// running round instead of emailing them.
type mailbox struct {
	ch chan notify.Notification
}

func newMailbox(size int) *mailbox {
	return &mailbox{ch: make(chan notify.Notification, size)}
}

// Send implements notify.Sender.
func (m *mailbox) Send(ctx context.Context, n notify.Notification) error {
	select {
	case m.ch <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Collect returns up to want reveal codes of drawID. Notifications of other
// draws are dropped.
func (m *mailbox) Collect(ctx context.Context, drawID string, want int) []string {
	tokens := make([]string, 0, want)
	for len(tokens) < want {
		select {
		case n := <-m.ch:
			if n.DrawID == drawID && n.RevealToken != "" {
				tokens = append(tokens, n.RevealToken)
			}
		case <-ctx.Done():
			return tokens
		}
	}
	return tokens
}

func runReveal(opts *revealOptions) error {
	if opts.Size < 2 || opts.Rounds < 1 {
		return fmt.Errorf("size must be at least 2 and rounds positive")
	}

	fmt.Printf("Reveal test: %d rounds of %d participants (draw=%s, ws=%s, nats=%s)\n",
		opts.Rounds, opts.Size, opts.DrawURL, opts.WSURL, opts.NATSURL)

	cfg := messaging.DefaultNATSConfig()
	cfg.URL = opts.NATSURL
	cfg.Name = "drawload"
	nc, err := messaging.NewNATSClient(cfg)
	if err != nil {
		return err
	}
	defer nc.Close()

	inbox := newMailbox(4 * opts.Size)
	if err := nc.SubscribeNotifyEmail(func(data []byte) []byte {
		ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		defer cancel()
		return notify.HandleRelay(ctx, inbox, data)
	}); err != nil {
		return err
	}
	if err := nc.Flush(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := loadstats.NewCollector()
	client := &http.Client{Timeout: opts.Timeout}
	runID := time.Now().UnixNano()
	rng := rand.New(rand.NewPCG(uint64(runID), 0))

	for round := 0; round < opts.Rounds && ctx.Err() == nil; round++ {
		group := newGroup(rng, fmt.Sprintf("reveal-%d-%d", runID, round), opts.Size, 0)
		roundCtx, cancel := context.WithTimeout(ctx, opts.Timeout)

		sentAt := time.Now()
		status, drawID, elapsed, err := postDraw(roundCtx, client, opts.DrawURL, group)
		if err != nil {
			collector.AddError()
		} else {
			collector.AddDraw(status, elapsed)
		}
		if err != nil || status != http.StatusOK {
			fmt.Printf("  round %d: draw failed (status=%d err=%v)\n", round+1, status, err)
			cancel()
			continue
		}

		tokens := inbox.Collect(roundCtx, drawID, len(group.Participants))
		for range len(group.Participants) - len(tokens) {
			collector.AddError()
		}

		// Reveals are already stored, so each watch is answered by replay.
		var wg sync.WaitGroup
		for _, token := range tokens {
			w, err := dialWatcher(roundCtx, opts.WSURL, token)
			if err != nil {
				collector.AddError()
				continue
			}
			collector.AddConnect()

			wg.Add(1)
			go func(w *watcher) {
				defer wg.Done()
				defer w.Close()
				if err := w.WaitWatching(roundCtx); err != nil {
					collector.AddError()
					return
				}
				at, err := w.WaitAssigned(roundCtx)
				if err != nil {
					collector.AddError()
					return
				}
				collector.AddReveal(at.Sub(sentAt))
			}(w)
		}
		wg.Wait()
		fmt.Printf("  round %d: draw %s revealed %d of %d codes\n", round+1, drawID, len(tokens), len(group.Participants))
		cancel()
	}

	collector.Report(os.Stdout)
	return nil
}

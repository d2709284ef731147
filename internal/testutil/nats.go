// Package testutil provides in-process infrastructure for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// StartNATS starts an in-process NATS server on a random port and returns its
// client URL. The server is shut down when the test completes.
func StartNATS(t *testing.T) string {
	t.Helper()

	opts := &server.Options{
		Host:  "127.0.0.1",
		Port:  -1,
		NoLog: true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("create nats server: %v", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("nats server not ready within timeout")
	}

	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	return ns.ClientURL()
}

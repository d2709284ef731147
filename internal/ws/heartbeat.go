package ws

import (
	"log"
	"time"
)

// HeartbeatConfig controls how idle watchers are checked. Watchers often sit
// silent for minutes waiting for a draw, so liveness comes from pongs rather
// than application messages.
type HeartbeatConfig struct {
	Interval time.Duration // time between sweeps
	Grace    time.Duration // extra time a connection gets to answer a ping
}

// DefaultHeartbeatConfig pings every 30s and drops connections silent for 40s.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval: 30 * time.Second,
		Grace:    10 * time.Second,
	}
}

// sweepResult counts what one sweep did.
type sweepResult struct {
	pinged  int
	expired int
	failed  int
}

// StartHeartbeat sweeps the server's connections every Interval until the
// server shuts down.
func StartHeartbeat(server *Server, config HeartbeatConfig) {
	go func() {
		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-server.done:
				return
			case now := <-ticker.C:
				res := server.sweep(now, config.Interval+config.Grace)
				if res.expired > 0 || res.failed > 0 {
					log.Printf("[ws] heartbeat pinged=%d expired=%d ping_failed=%d",
						res.pinged, res.expired, res.failed)
				}
			}
		}
	}()
}

// sweep removes connections with no frame (a pong included) since
// now-maxSilence and pings the rest.
func (s *Server) sweep(now time.Time, maxSilence time.Duration) sweepResult {
	var res sweepResult
	for _, c := range s.conns.All() {
		if silent := now.Sub(c.LastPing); silent > maxSilence {
			log.Printf("[ws] dropping silent conn=%s after %s", c.ID, silent.Round(time.Second))
			s.RemoveConnection(c)
			res.expired++
			continue
		}

		if err := c.WritePing(); err != nil {
			log.Printf("[ws] ping failed conn=%s: %v", c.ID, err)
			s.RemoveConnection(c)
			res.failed++
			continue
		}
		res.pinged++
	}
	return res
}

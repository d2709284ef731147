package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/secretsanta/giftdraw/internal/protocol"
)

// newGroup generates a draw request with size participants. density is the
// fraction of all unordered pairs that get a restriction. prefix keeps ids
// unique across groups.
func newGroup(rng *rand.Rand, prefix string, size int, density float64) protocol.DrawRequest {
	req := protocol.DrawRequest{
		Participants: make([]protocol.Participant, size),
		Budget:       "$20",
		ExchangeDate: "2026-12-24",
		Message:      "Load test draw",
	}
	for i := range req.Participants {
		req.Participants[i] = protocol.Participant{
			ID:    protocol.ID(fmt.Sprintf("%s-%d", prefix, i)),
			Name:  fmt.Sprintf("Guest %d", i),
			Email: fmt.Sprintf("guest%d@example.test", i),
		}
	}

	var pairs []protocol.Restriction
	for i := 0; i < size; i++ {
		for j := i + 1; j < size; j++ {
			pairs = append(pairs, protocol.Restriction{
				Person1: req.Participants[i].ID,
				Person2: req.Participants[j].ID,
			})
		}
	}
	rng.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })

	n := int(density * float64(len(pairs)))
	if n > len(pairs) {
		n = len(pairs)
	}
	req.Restrictions = pairs[:max(n, 0)]
	return req
}

// postDraw sends req and returns the status code and decoded draw id.
func postDraw(ctx context.Context, client *http.Client, url string, req protocol.DrawRequest) (int, string, time.Duration, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, "", 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, "", 0, err
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)

	var out struct {
		DrawID string `json:"drawId"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out.DrawID, elapsed, nil
}

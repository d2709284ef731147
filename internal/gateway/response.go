package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/secretsanta/giftdraw/internal/draw"
	"github.com/secretsanta/giftdraw/internal/moderation"
	"github.com/secretsanta/giftdraw/internal/notify"
	"github.com/secretsanta/giftdraw/internal/protocol"
)

// decodeBody decodes a single JSON object of at most MaxBodyBytes into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes: %w", MaxBodyBytes, err)
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// screenedFields lists the caller-supplied text that ends up in emails. The
// budget and the exchange date are free-form amounts and dates, so they only
// get the checks that apply to details.
func screenedFields(participants []draw.Participant, event notify.Event) []moderation.Field {
	fields := make([]moderation.Field, 0, len(participants)+3)
	for i, p := range participants {
		fields = append(fields, moderation.Field{Name: fmt.Sprintf("participants[%d].name", i), Text: p.Name})
	}
	return append(fields,
		moderation.Field{Name: "message", Text: event.Message},
		moderation.Field{Name: "budget", Text: event.Budget, Kind: moderation.Detail},
		moderation.Field{Name: "exchangeDate", Text: event.ExchangeDate, Kind: moderation.Detail},
	)
}

// validationMessage turns a validation error into the client-facing message.
func validationMessage(err error) string {
	var ve *draw.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	if ve.Field == "" || ve.Field == "participants" {
		return ve.Reason
	}
	return ve.Field + ": " + ve.Reason
}

// retryAfterSeconds formats d for a Retry-After header, rounding up.
func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, protocol.ErrorResponse{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[gateway] write response: %v", err)
	}
}

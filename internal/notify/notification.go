// Package notify delivers draw results to givers. Every giver gets one
// notification naming their receiver along with the event details supplied
// by the organizer. Delivery failures never undo a draw; they are collected
// and reported as a DeliveryError next to the successful assignment.
package notify

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/google/uuid"

	"github.com/secretsanta/giftdraw/internal/draw"
)

// Event is the organizer-supplied metadata passed through to every
// notification. It is never inspected by the draw engine.
type Event struct {
	Budget       string `json:"budget,omitempty"`
	ExchangeDate string `json:"exchange_date,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Notification is everything a giver needs to learn their assignment. Only
// the giver's contact details and the receiver's name leave the draw.
//
// RevealToken is the only key to the giver's assignment on the reveal
// channel. It is random per assignment and travels only inside the email, so
// knowing a participant id is not enough to see who they draw.
type Notification struct {
	DrawID       string `json:"draw_id"`
	GiverID      string `json:"giver_id"`
	GiverName    string `json:"giver_name"`
	GiverEmail   string `json:"giver_email"`
	ReceiverName string `json:"receiver_name"`
	RevealToken  string `json:"reveal_token"`
	Event        Event  `json:"event"`
}

// NewNotification builds the notification for one assignment with a fresh
// reveal token.
func NewNotification(drawID string, a draw.Assignment, event Event) Notification {
	return Notification{
		DrawID:       drawID,
		GiverID:      a.Giver.ID,
		GiverName:    a.Giver.Name,
		GiverEmail:   a.Giver.Email,
		ReceiverName: a.Receiver.Name,
		RevealToken:  uuid.NewString(),
		Event:        event,
	}
}

// Subject is the subject line of every assignment email.
const Subject = "🎁 Your Secret Santa has been assigned!"

const notSpecified = "Not specified"

// Message is a composed notification ready for a transport.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

var textBody = texttemplate.Must(texttemplate.New("text").Parse(`Hi {{.GiverName}},

The Secret Santa draw is done!

You are giving a gift to: {{.ReceiverName}}

Event details:
- Exchange date: {{or .Event.ExchangeDate "` + notSpecified + `"}}
- Suggested budget: {{or .Event.Budget "` + notSpecified + `"}}
{{with .Event.Message}}
Additional message:
{{.}}
{{end}}{{with .RevealToken}}
Your reveal code: {{.}}
{{end}}
Have fun finding the perfect gift!
`))

var htmlBody = htmltemplate.Must(htmltemplate.New("html").Funcs(htmltemplate.FuncMap{
	"lines": func(s string) []string { return strings.Split(s, "\n") },
}).Parse(`<p>Hi {{.GiverName}},</p>
<p>The Secret Santa draw is done!</p>
<p>You are giving a gift to: <strong>{{.ReceiverName}}</strong></p>
<p>Event details:</p>
<ul>
<li><strong>Exchange date:</strong> {{or .Event.ExchangeDate "` + notSpecified + `"}}</li>
<li><strong>Suggested budget:</strong> {{or .Event.Budget "` + notSpecified + `"}}</li>
</ul>
{{with .Event.Message}}<p><strong>Additional message:</strong><br>
{{range $i, $line := lines .}}{{if $i}}<br>
{{end}}{{$line}}{{end}}</p>
{{end}}{{with .RevealToken}}<p>Your reveal code: <code>{{.}}</code></p>
{{end}}<p>Have fun finding the perfect gift!</p>
`))

// Compose renders the email for n. User-supplied text is escaped in the HTML
// part.
func Compose(n Notification) (Message, error) {
	var text, html bytes.Buffer
	if err := textBody.Execute(&text, n); err != nil {
		return Message{}, err
	}
	if err := htmlBody.Execute(&html, n); err != nil {
		return Message{}, err
	}
	return Message{Subject: Subject, Text: text.String(), HTML: html.String()}, nil
}

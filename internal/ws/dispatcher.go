package ws

import (
	"log"
	"time"

	"github.com/secretsanta/giftdraw/internal/protocol"
)

// MessageHandler handles one parsed client message. msg is the concrete
// struct returned by protocol.ParseClientMessage (protocol.WatchMsg, ...).
type MessageHandler func(conn *Connection, msg interface{})

// MessageDispatcher routes incoming messages to handlers by type. Ping is
// answered internally; malformed and unsupported messages get an error
// reply.
type MessageDispatcher struct {
	handlers map[string]MessageHandler
}

// NewMessageDispatcher creates an empty MessageDispatcher.
func NewMessageDispatcher() *MessageDispatcher {
	return &MessageDispatcher{handlers: make(map[string]MessageHandler)}
}

// Register associates a handler with a message type, replacing any earlier
// one.
func (d *MessageDispatcher) Register(msgType string, handler MessageHandler) {
	d.handlers[msgType] = handler
}

// Dispatch is the Server's onMessage callback.
func (d *MessageDispatcher) Dispatch(conn *Connection, data []byte) {
	msgType, msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		log.Printf("[ws] dispatch parse error conn=%s type=%q: %v", conn.ID, msgType, err)
		sendError(conn, "parse_error", "invalid message format")
		return
	}

	if msgType == protocol.TypePing {
		sendPong(conn)
		return
	}

	handler, ok := d.handlers[msgType]
	if !ok {
		log.Printf("[ws] unsupported message type=%q conn=%s", msgType, conn.ID)
		sendError(conn, "unsupported_type", "unsupported message type")
		return
	}

	handler(conn, msg)
}

// sendError writes an error message to conn. Failures are logged only.
func sendError(conn *Connection, code string, message string) {
	data, err := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
		Code:    code,
		Message: message,
	})
	if err != nil {
		log.Printf("[ws] failed to build error message conn=%s: %v", conn.ID, err)
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		log.Printf("[ws] failed to send error message conn=%s: %v", conn.ID, err)
	}
}

func sendPong(conn *Connection) {
	conn.LastPing = time.Now()

	data, err := protocol.NewServerMessage(protocol.TypePong, protocol.PongMsg{})
	if err != nil {
		log.Printf("[ws] failed to build pong message conn=%s: %v", conn.ID, err)
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		log.Printf("[ws] failed to send pong message conn=%s: %v", conn.ID, err)
	}
}

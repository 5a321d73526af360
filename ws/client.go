package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
	"github.com/quickchat-app/quickchat/chat"
	"github.com/quickchat-app/quickchat/globals"
	"github.com/quickchat-app/quickchat/types"
)

const (
	maxMessageSize  = 8192
	pongWait        = 2 * time.Minute
	pingPeriod      = time.Minute
	writeWait       = 10 * time.Second
	sendChannelSize = 256
)

// Client is a middleman between one websocket connection and the coordinator.
type Client struct {
	// Connection id, the key of the session registry.
	Id string

	hub   *Hub
	coord *chat.Coordinator

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte
}

func NewClient(hub *Hub, coord *chat.Coordinator, conn *websocket.Conn) *Client {
	return &Client{
		Id:    uuid.NewString(),
		hub:   hub,
		coord: coord,
		conn:  conn,
		send:  make(chan []byte, sendChannelSize),
	}
}

// ReadLoop pumps messages from the websocket connection to the coordinator.
//
// The application runs ReadLoop in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadLoop() {
	defer func() {
		c.hub.Remove(c)
		c.coord.Disconnect(c.Id)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				globals.AppLogger.Info("ws closed unexpected", "conn", c.Id, "error", err)
			}
			return
		}

		env := types.WireMessage{}
		if err := json.Unmarshal(raw, &env); err != nil {
			globals.AppLogger.Warn("could not unmarshal ws message", "conn", c.Id, "error", err)
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env types.WireMessage) {
	switch env.Event {
	case types.EventJoinRoom:
		p := types.JoinRoomPayload{}
		if err := decodePayload(env.Data, &p); err != nil {
			globals.AppLogger.Warn("could not decode join payload", "conn", c.Id, "error", err)
			return
		}
		c.coord.Join(c.Id, p.RoomCode, p.Username)

	case types.EventSendMessage:
		p := types.SendMessagePayload{}
		if err := decodePayload(env.Data, &p); err != nil {
			globals.AppLogger.Warn("could not decode message payload", "conn", c.Id, "error", err)
			return
		}
		c.coord.SendMessage(c.Id, p)

	case types.EventEditMessage:
		p := types.EditMessagePayload{}
		if err := decodePayload(env.Data, &p); err != nil {
			globals.AppLogger.Warn("could not decode edit payload", "conn", c.Id, "error", err)
			return
		}
		c.coord.EditMessage(c.Id, p)

	case types.EventDeleteMessage:
		p := types.DeleteMessagePayload{}
		if err := decodePayload(env.Data, &p); err != nil {
			globals.AppLogger.Warn("could not decode delete payload", "conn", c.Id, "error", err)
			return
		}
		c.coord.DeleteMessage(c.Id, p)

	case types.EventToggleReaction:
		p := types.ToggleReactionPayload{}
		if err := decodePayload(env.Data, &p); err != nil {
			globals.AppLogger.Warn("could not decode reaction payload", "conn", c.Id, "error", err)
			return
		}
		c.coord.ToggleReaction(c.Id, p)

	case types.EventTypingStart:
		c.coord.StartTyping(c.Id)

	case types.EventTypingStop:
		c.coord.StopTyping(c.Id)

	default:
		globals.AppLogger.Debug("unknown event", "conn", c.Id, "event", env.Event)
	}
}

// decodePayload weak-decodes the raw JSON payload into the event struct, so
// clients may send numbers as strings and vice versa.
func decodePayload(data json.RawMessage, out interface{}) error {
	m := make(map[string]interface{})
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
	}
	return mapstructure.WeakDecode(m, out)
}

// WriteLoop pumps messages from the hub to the websocket connection.
//
// A goroutine running WriteLoop is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

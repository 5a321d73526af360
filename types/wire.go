package types

import "encoding/json"

// Inbound event names (connection -> coordinator).
const (
	EventJoinRoom       = "join-room"
	EventSendMessage    = "send-message"
	EventEditMessage    = "edit-message"
	EventDeleteMessage  = "delete-message"
	EventToggleReaction = "toggle-reaction"
	EventTypingStart    = "typing-start"
	EventTypingStop     = "typing-stop"
)

// Outbound event names (coordinator -> one or many connections).
const (
	EventJoinSuccess     = "join-success"
	EventJoinError       = "join-error"
	EventNewMessage      = "new-message"
	EventMessageEdited   = "message-edited"
	EventMessageDeleted  = "message-deleted"
	EventReactionUpdated = "reaction-updated"
	EventUserJoined      = "user-joined"
	EventUserLeft        = "user-left"
	EventUsersUpdate     = "users-update"
	EventTypingUpdate    = "typing-update"
	EventMessageError    = "message-error"
	EventEditError       = "edit-error"
	EventDeleteError     = "delete-error"
)

// JSON-serialized WireMessage is what is actually sent via the Websocket connection
type WireMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewWireMessage marshals payload into the envelope for event.
func NewWireMessage(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WireMessage{Event: event, Data: data})
}

// The different payloads transferred from the client to here.

type JoinRoomPayload struct {
	RoomCode string `json:"roomCode" mapstructure:"roomCode"`
	Username string `json:"username" mapstructure:"username"`
}

type SendMessagePayload struct {
	Message   string `json:"message" mapstructure:"message"`
	Kind      string `json:"type" mapstructure:"type"`
	MediaUrl  string `json:"mediaUrl" mapstructure:"mediaUrl"`
	MediaName string `json:"mediaName" mapstructure:"mediaName"`
	MediaSize int64  `json:"mediaSize" mapstructure:"mediaSize"`
	ReplyTo   string `json:"replyTo" mapstructure:"replyTo"`
}

type EditMessagePayload struct {
	MessageId  string `json:"messageId" mapstructure:"messageId"`
	NewMessage string `json:"newMessage" mapstructure:"newMessage"`
}

type DeleteMessagePayload struct {
	MessageId string `json:"messageId" mapstructure:"messageId"`
}

type ToggleReactionPayload struct {
	MessageId string `json:"messageId" mapstructure:"messageId"`
	Reaction  string `json:"reaction" mapstructure:"reaction"`
}

// Outgoing payloads.

type JoinSuccessPayload struct {
	Room     *Room      `json:"room"`
	Messages []*Message `json:"messages"`
}

// UserRef is one entry of the presence list.
type UserRef struct {
	Username string `json:"username"`
}

type ReactionUpdatedPayload struct {
	MessageId string    `json:"messageId"`
	Reactions Reactions `json:"reactions"`
}

type TypingUpdatePayload struct {
	TypingUsers []string `json:"typingUsers"`
}

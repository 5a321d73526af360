package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const (
	KindText  = "text"
	KindImage = "image"
	KindVideo = "video"
	KindFile  = "file"
)

// DeletedBody is the redaction marker sent in place of a deleted message's
// body. The stored body is retained, only the wire copy is redacted.
const DeletedBody = "[message deleted]"

// ValidKind reports whether kind is one of the known message kinds.
func ValidKind(kind string) bool {
	switch kind {
	case KindText, KindImage, KindVideo, KindFile:
		return true
	}
	return false
}

// ReplyRef is a denormalized pointer to the message being replied to.
// Stored as a JSON column, same pattern as Reactions.
type ReplyRef struct {
	MessageId  string `json:"messageId,omitempty"`
	SenderName string `json:"senderName,omitempty"`
	Snippet    string `json:"snippet,omitempty"`
}

// Value return json value, implement driver.Valuer interface
func (r ReplyRef) Value() (driver.Value, error) {
	ba, err := json.Marshal(r)
	return string(ba), err
}

// Scan scan value into Jsonb, implements sql.Scanner interface
func (r *ReplyRef) Scan(val interface{}) error {
	if val == nil {
		return nil
	}
	var ba []byte
	switch v := val.(type) {
	case []byte:
		ba = v
	case string:
		ba = []byte(v)
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", val))
	}
	return json.Unmarshal(ba, r)
}

// GormDataType gorm common data type
func (r ReplyRef) GormDataType() string {
	return "replyref"
}

// GormDBDataType gorm db data type
func (ReplyRef) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "sqlite":
		return "JSON"
	case "mysql":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}

// Message is one chat message. Messages are created on send and mutated in
// place by edit, delete and react, they are never hard-deleted.
type Message struct {
	Id           string     `json:"_id" gorm:"primaryKey"`
	RoomCode     string     `json:"roomCode" gorm:"index"`
	Sender       string     `json:"sender"`
	Body         string     `json:"message"`
	Kind         string     `json:"type"`
	MediaUrl     string     `json:"mediaUrl,omitempty"`
	MediaName    string     `json:"mediaName,omitempty"`
	MediaSize    int64      `json:"mediaSize,omitempty"`
	Reactions    Reactions  `json:"reactions"`
	Edited       bool       `json:"edited"`
	EditedAt     *time.Time `json:"editedAt,omitempty"`
	OriginalBody string     `json:"originalMessage,omitempty"`
	Deleted      bool       `json:"deleted" gorm:"index"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
	ReplyTo      *ReplyRef  `json:"replyTo,omitempty"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"index"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// CreateId sets the message id to a hash over the identifying fields,
// including the creation timestamp in nanoseconds.
func (m *Message) CreateId() error {
	h, err := hashstructure.Hash(struct {
		RoomCode string
		Sender   string
		Body     string
		Nanos    int64
	}{m.RoomCode, m.Sender, m.Body, m.CreatedAt.UnixNano()}, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	m.Id = fmt.Sprintf("%016x", h)
	return nil
}

// Sanitized returns a copy safe to put on the wire: a deleted message's body
// (and its preserved original) is replaced by the redaction marker.
func (m Message) Sanitized() *Message {
	if m.Deleted {
		m.Body = DeletedBody
		m.OriginalBody = ""
	}
	if m.Reactions == nil {
		m.Reactions = Reactions{}
	}
	return &m
}

// IsMedia reports whether the message carries an uploaded media reference.
func (m *Message) IsMedia() bool {
	return m.Kind != KindText
}

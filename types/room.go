package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// RoomMember is one entry of a room's membership list. The list is reconciled
// on join and disconnect, it only ever reflects currently-recognized
// connections and is not a historical log.
type RoomMember struct {
	Id           string    `json:"id"`
	Username     string    `json:"username"`
	JoinedAt     time.Time `json:"joinedAt"`
	ConnectionId string    `json:"socketId,omitempty"`
}

// MemberList is stored as a JSON column, same pattern as Reactions.
type MemberList []RoomMember

// RoomSettings are the per-room feature toggles.
type RoomSettings struct {
	AllowFileUploads bool `json:"allowFileUploads"`
	AllowReactions   bool `json:"allowReactions"`
	AllowEditing     bool `json:"allowEditing"`
}

// DefaultRoomSettings enables everything, matching a freshly created room.
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		AllowFileUploads: true,
		AllowReactions:   true,
		AllowEditing:     true,
	}
}

// Room is a named, coded channel grouping messages and members. The six-digit
// code is the stable identity and is immutable once assigned.
type Room struct {
	Code      string       `json:"code" gorm:"primaryKey"`
	Name      string       `json:"name"`
	Creator   string       `json:"creator"`
	Members   MemberList   `json:"users"`
	Active    bool         `json:"isActive"`
	MaxUsers  int          `json:"maxUsers"`
	Settings  RoomSettings `json:"settings" gorm:"embedded;embeddedPrefix:settings_"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Member returns the member record for username, or nil.
func (r *Room) Member(username string) *RoomMember {
	for i := range r.Members {
		if r.Members[i].Username == username {
			return &r.Members[i]
		}
	}
	return nil
}

// Value return json value, implement driver.Valuer interface
func (m MemberList) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	ba, err := json.Marshal(m)
	return string(ba), err
}

// Scan scan value into Jsonb, implements sql.Scanner interface
func (m *MemberList) Scan(val interface{}) error {
	if val == nil {
		*m = MemberList{}
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
	t := []RoomMember{}
	err := json.Unmarshal(ba, &t)
	*m = MemberList(t)
	return err
}

// GormDataType gorm common data type
func (m MemberList) GormDataType() string {
	return "memberlist"
}

// GormDBDataType gorm db data type
func (MemberList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
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

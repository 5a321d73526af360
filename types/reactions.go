package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Reactions maps an emoji to the usernames that reacted with it, in the order
// the reactions arrived. An emoji whose last reaction is removed is dropped
// from the map entirely, it is never kept with an empty user list.
// Implements driver.Valuer / sql.Scanner so it can be stored as a JSON column.
type Reactions map[string][]string

// Toggle adds username under emoji if it is not present, removes it otherwise.
// Returns true if the username was added.
func (r *Reactions) Toggle(emoji, username string) bool {
	if *r == nil {
		*r = make(Reactions)
	}
	users := (*r)[emoji]
	for i, u := range users {
		if u == username {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(*r, emoji)
			} else {
				(*r)[emoji] = users
			}
			return false
		}
	}
	(*r)[emoji] = append(users, username)
	return true
}

// Value return json value, implement driver.Valuer interface
func (r Reactions) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	ba, err := r.MarshalJSON()
	return string(ba), err
}

// Scan scan value into Jsonb, implements sql.Scanner interface
func (r *Reactions) Scan(val interface{}) error {
	if val == nil {
		*r = Reactions{}
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
	t := map[string][]string{}
	err := json.Unmarshal(ba, &t)
	*r = Reactions(t)
	return err
}

// MarshalJSON renders a nil map as an empty object instead of null, clients
// always see a reactions object.
func (r Reactions) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	t := (map[string][]string)(r)
	return json.Marshal(t)
}

// UnmarshalJSON to deserialize []byte
func (r *Reactions) UnmarshalJSON(b []byte) error {
	t := map[string][]string{}
	err := json.Unmarshal(b, &t)
	*r = Reactions(t)
	return err
}

// GormDataType gorm common data type
func (r Reactions) GormDataType() string {
	return "reactions"
}

// GormDBDataType gorm db data type
func (Reactions) GormDBDataType(db *gorm.DB, field *schema.Field) string {
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

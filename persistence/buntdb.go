package persistence

import (
	"encoding/json"

	"github.com/quickchat-app/quickchat/globals"
	"github.com/quickchat-app/quickchat/types"
	"github.com/tidwall/buntdb"
)

// BuntStore is the default embedded document store. Rooms and messages are
// kept as JSON documents under "room:<code>" and "message:<id>" keys, with a
// JSON index on the message creation timestamp.
type BuntStore struct {
	db *buntdb.DB
}

func NewBuntStore(dsn string) (Store, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := buntdb.Open(dsn)
	if err != nil {
		return nil, err
	}
	err = db.CreateIndex("messages_created", "message:*", buntdb.IndexJSON("createdAt"))
	if err != nil && err != buntdb.ErrIndexExists {
		db.Close()
		return nil, err
	}
	return &BuntStore{db: db}, nil
}

func (p *BuntStore) CreateRoom(room *types.Room) error {
	r, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(roomKey(room.Code)); err == nil {
			return ErrRoomExists
		}
		_, _, err := tx.Set(roomKey(room.Code), string(r), nil)
		return err
	})
}

func (p *BuntStore) StoreRoom(room types.Room) error {
	r, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(roomKey(room.Code), string(r), nil)
		return err
	})
}

func (p *BuntStore) FindRoomByCode(code string) (*types.Room, error) {
	room := &types.Room{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		r, err := tx.Get(roomKey(code))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(r), room)
	})
	if err == buntdb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (p *BuntStore) FindActiveRoomByCode(code string) (*types.Room, error) {
	room, err := p.FindRoomByCode(code)
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, ErrNotFound
	}
	return room, nil
}

func (p *BuntStore) AppendRoomMember(code string, member types.RoomMember) error {
	return p.updateRoom(code, func(room *types.Room) {
		room.Members = append(room.Members, member)
	})
}

func (p *BuntStore) UpdateMemberConnection(code, username, connectionId string) error {
	return p.updateRoom(code, func(room *types.Room) {
		if m := room.Member(username); m != nil {
			m.ConnectionId = connectionId
		}
	})
}

func (p *BuntStore) updateRoom(code string, mutate func(*types.Room)) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		r, err := tx.Get(roomKey(code))
		if err == buntdb.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		room := &types.Room{}
		if err := json.Unmarshal([]byte(r), room); err != nil {
			return err
		}
		mutate(room)
		u, err := json.Marshal(room)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(roomKey(code), string(u), nil)
		return err
	})
}

func (p *BuntStore) Rooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("room:*", func(key, val string) bool {
			room := &types.Room{}
			if err := json.Unmarshal([]byte(val), room); err == nil {
				rooms = append(rooms, room)
			} else {
				globals.AppLogger.Error("could not unmarshal room", "key", key, "error", err)
			}
			return true
		})
	})
	return rooms, err
}

func (p *BuntStore) CreateMessage(msg *types.Message) error {
	m, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(messageKey(msg.Id), string(m), nil)
		return err
	})
}

func (p *BuntStore) FindRecentMessages(roomCode string, limit int) ([]*types.Message, error) {
	messages := make([]*types.Message, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.Descend("messages_created", func(key, val string) bool {
			msg := &types.Message{}
			if err := json.Unmarshal([]byte(val), msg); err != nil {
				globals.AppLogger.Error("could not unmarshal message", "key", key, "error", err)
				return true
			}
			if msg.RoomCode != roomCode {
				return true
			}
			messages = append(messages, msg)
			return limit <= 0 || len(messages) < limit
		})
	})
	return messages, err
}

func (p *BuntStore) FindMessageById(id string) (*types.Message, error) {
	msg := &types.Message{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		m, err := tx.Get(messageKey(id))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(m), msg)
	})
	if err == buntdb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (p *BuntStore) UpdateMessage(msg *types.Message) error {
	m, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(messageKey(msg.Id)); err == buntdb.ErrNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		_, _, err := tx.Set(messageKey(msg.Id), string(m), nil)
		return err
	})
}

func (p *BuntStore) RoomStats(roomCode string) (*RoomStats, error) {
	stats := &RoomStats{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("message:*", func(key, val string) bool {
			msg := &types.Message{}
			if err := json.Unmarshal([]byte(val), msg); err != nil {
				return true
			}
			if msg.RoomCode != roomCode {
				return true
			}
			stats.TotalMessages++
			if msg.Deleted {
				stats.DeletedMessages++
			}
			if msg.Edited {
				stats.EditedMessages++
			}
			if msg.IsMedia() {
				stats.MediaMessages++
			}
			return true
		})
	})
	return stats, err
}

func (p *BuntStore) Close() error {
	return p.db.Close()
}

func roomKey(code string) string  { return "room:" + code }
func messageKey(id string) string { return "message:" + id }

package persistence

import (
	"errors"
	"fmt"

	"github.com/quickchat-app/quickchat/config"
	"github.com/quickchat-app/quickchat/types"
)

var (
	// ErrNotFound is returned when a room or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRoomExists is returned by CreateRoom on a room code collision.
	ErrRoomExists = errors.New("room code already exists")
)

// RoomStats are aggregate message counts for one room.
type RoomStats struct {
	TotalMessages   int64 `json:"totalMessages"`
	DeletedMessages int64 `json:"deletedMessages"`
	EditedMessages  int64 `json:"editedMessages"`
	MediaMessages   int64 `json:"mediaMessages"`
}

// Store is the durable document store consumed by the coordinator and the
// HTTP boundary. Implementations provide read-your-writes consistency within
// a single operation but no cross-operation transactions.
type Store interface {
	CreateRoom(room *types.Room) error
	StoreRoom(room types.Room) error
	FindRoomByCode(code string) (*types.Room, error)
	FindActiveRoomByCode(code string) (*types.Room, error)
	AppendRoomMember(code string, member types.RoomMember) error
	UpdateMemberConnection(code, username, connectionId string) error
	Rooms() ([]*types.Room, error)
	CreateMessage(msg *types.Message) error
	// FindRecentMessages returns up to limit messages of the room,
	// newest first.
	FindRecentMessages(roomCode string, limit int) ([]*types.Message, error)
	FindMessageById(id string) (*types.Message, error)
	UpdateMessage(msg *types.Message) error
	RoomStats(roomCode string) (*RoomStats, error)
	Close() error
}

// NewStore creates the store configured in cfg.
func NewStore(cfg *config.Config) (Store, error) {
	switch cfg.PersistenceConfig.Type {
	case "", "buntdb":
		return NewBuntStore(cfg.PersistenceConfig.DSN)
	case "sqlite", "postgres":
		return NewGormStore(cfg)
	default:
		return nil, fmt.Errorf("unknown persistence type %q", cfg.PersistenceConfig.Type)
	}
}

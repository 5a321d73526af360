package persistence

import (
	"errors"
	"fmt"

	"github.com/quickchat-app/quickchat/config"
	"github.com/quickchat-app/quickchat/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the relational Store implementation (sqlite or postgres).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(cfg *config.Config) (Store, error) {
	db, err := setupGormDB(cfg)
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func setupGormDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, fmt.Errorf("no DSN configured")
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, fmt.Errorf("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	db.Migrator().AutoMigrate(&types.Room{}, &types.Message{})
	return db, nil
}

func (p *GormStore) CreateRoom(room *types.Room) error {
	var count int64
	if err := p.db.Model(&types.Room{}).Where("code = ?", room.Code).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrRoomExists
	}
	return p.db.Create(room).Error
}

func (p *GormStore) StoreRoom(room types.Room) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&room).Error
}

func (p *GormStore) FindRoomByCode(code string) (*types.Room, error) {
	room := &types.Room{}
	err := p.db.First(room, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (p *GormStore) FindActiveRoomByCode(code string) (*types.Room, error) {
	room, err := p.FindRoomByCode(code)
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, ErrNotFound
	}
	return room, nil
}

func (p *GormStore) AppendRoomMember(code string, member types.RoomMember) error {
	return p.updateRoom(code, func(room *types.Room) {
		room.Members = append(room.Members, member)
	})
}

func (p *GormStore) UpdateMemberConnection(code, username, connectionId string) error {
	return p.updateRoom(code, func(room *types.Room) {
		if m := room.Member(username); m != nil {
			m.ConnectionId = connectionId
		}
	})
}

func (p *GormStore) updateRoom(code string, mutate func(*types.Room)) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		room := &types.Room{}
		err := tx.First(room, "code = ?", code).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		mutate(room)
		return tx.Model(room).Update("members", room.Members).Error
	})
}

func (p *GormStore) Rooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.Find(&rooms).Error
	return rooms, err
}

func (p *GormStore) CreateMessage(msg *types.Message) error {
	return p.db.Create(msg).Error
}

func (p *GormStore) FindRecentMessages(roomCode string, limit int) ([]*types.Message, error) {
	messages := make([]*types.Message, 0)
	q := p.db.Where("room_code = ?", roomCode).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (p *GormStore) FindMessageById(id string) (*types.Message, error) {
	msg := &types.Message{}
	err := p.db.First(msg, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (p *GormStore) UpdateMessage(msg *types.Message) error {
	res := p.db.Model(&types.Message{}).Where("id = ?", msg.Id).Select("*").Updates(msg)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *GormStore) RoomStats(roomCode string) (*RoomStats, error) {
	stats := &RoomStats{}
	base := p.db.Model(&types.Message{}).Where("room_code = ?", roomCode)
	if err := base.Session(&gorm.Session{}).Count(&stats.TotalMessages).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("deleted = ?", true).Count(&stats.DeletedMessages).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("edited = ?", true).Count(&stats.EditedMessages).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("kind <> ?", types.KindText).Count(&stats.MediaMessages).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

func (p *GormStore) Close() error {
	return nil
}

package persistence

import (
	"fmt"
	"testing"
	"time"

	"github.com/quickchat-app/quickchat/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuntStore(t *testing.T) Store {
	t.Helper()
	store, err := NewBuntStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRoom(code string) *types.Room {
	now := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	return &types.Room{
		Code:      code,
		Name:      "alice's Room",
		Creator:   "alice",
		Members:   types.MemberList{},
		Active:    true,
		MaxUsers:  50,
		Settings:  types.DefaultRoomSettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestBuntRoomLifecycle(t *testing.T) {
	store := newBuntStore(t)

	require.NoError(t, store.CreateRoom(testRoom("482913")))
	assert.ErrorIs(t, store.CreateRoom(testRoom("482913")), ErrRoomExists)

	room, err := store.FindRoomByCode("482913")
	require.NoError(t, err)
	assert.Equal(t, "alice's Room", room.Name)
	assert.True(t, room.Settings.AllowReactions)

	_, err = store.FindRoomByCode("000000")
	assert.ErrorIs(t, err, ErrNotFound)

	room.Active = false
	require.NoError(t, store.StoreRoom(*room))
	_, err = store.FindActiveRoomByCode("482913")
	assert.ErrorIs(t, err, ErrNotFound, "an inactive room is invisible to join")
	_, err = store.FindRoomByCode("482913")
	assert.NoError(t, err, "but still loadable directly")
}

func TestBuntRoomMembers(t *testing.T) {
	store := newBuntStore(t)
	require.NoError(t, store.CreateRoom(testRoom("482913")))

	member := types.RoomMember{
		Id:           "m-1",
		Username:     "bob",
		JoinedAt:     time.Date(2021, 3, 1, 9, 5, 0, 0, time.UTC),
		ConnectionId: "conn-a",
	}
	require.NoError(t, store.AppendRoomMember("482913", member))
	require.NoError(t, store.UpdateMemberConnection("482913", "bob", "conn-b"))

	room, err := store.FindRoomByCode("482913")
	require.NoError(t, err)
	require.Len(t, room.Members, 1)
	assert.Equal(t, "bob", room.Members[0].Username)
	assert.Equal(t, "conn-b", room.Members[0].ConnectionId)

	assert.ErrorIs(t, store.AppendRoomMember("000000", member), ErrNotFound)
}

func TestBuntRecentMessages(t *testing.T) {
	store := newBuntStore(t)

	base := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		msg := &types.Message{
			Id:        fmt.Sprintf("msg-%d", i),
			RoomCode:  "482913",
			Sender:    "alice",
			Body:      fmt.Sprintf("message %d", i),
			Kind:      types.KindText,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.CreateMessage(msg))
	}
	// a message in another room must not leak into the result
	require.NoError(t, store.CreateMessage(&types.Message{
		Id:        "other-room",
		RoomCode:  "111111",
		Sender:    "carol",
		Body:      "elsewhere",
		Kind:      types.KindText,
		CreatedAt: base.Add(10 * time.Second),
	}))

	recent, err := store.FindRecentMessages("482913", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "message 4", recent[0].Body, "newest first")
	assert.Equal(t, "message 2", recent[2].Body)

	all, err := store.FindRecentMessages("482913", 50)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := store.FindRecentMessages("999999", 50)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBuntMessageUpdate(t *testing.T) {
	store := newBuntStore(t)

	msg := &types.Message{
		Id:        "msg-1",
		RoomCode:  "482913",
		Sender:    "alice",
		Body:      "hello",
		Kind:      types.KindText,
		Reactions: types.Reactions{},
		CreatedAt: time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateMessage(msg))

	msg.Body = "hello again"
	msg.Edited = true
	require.NoError(t, store.UpdateMessage(msg))

	stored, err := store.FindMessageById("msg-1")
	require.NoError(t, err)
	assert.Equal(t, "hello again", stored.Body)
	assert.True(t, stored.Edited)

	_, err = store.FindMessageById("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.UpdateMessage(&types.Message{Id: "missing"}), ErrNotFound)
}

func TestBuntRoomStats(t *testing.T) {
	store := newBuntStore(t)

	base := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	seed := []*types.Message{
		{Id: "s-1", RoomCode: "482913", Kind: types.KindText, Body: "a", CreatedAt: base},
		{Id: "s-2", RoomCode: "482913", Kind: types.KindText, Body: "b", Edited: true, CreatedAt: base.Add(time.Second)},
		{Id: "s-3", RoomCode: "482913", Kind: types.KindImage, MediaUrl: "/uploads/x.png", CreatedAt: base.Add(2 * time.Second)},
		{Id: "s-4", RoomCode: "482913", Kind: types.KindText, Body: "c", Deleted: true, CreatedAt: base.Add(3 * time.Second)},
		{Id: "s-5", RoomCode: "111111", Kind: types.KindText, Body: "elsewhere", CreatedAt: base.Add(4 * time.Second)},
	}
	for _, msg := range seed {
		require.NoError(t, store.CreateMessage(msg))
	}

	stats, err := store.RoomStats("482913")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalMessages)
	assert.Equal(t, int64(1), stats.DeletedMessages)
	assert.Equal(t, int64(1), stats.EditedMessages)
	assert.Equal(t, int64(1), stats.MediaMessages)
}

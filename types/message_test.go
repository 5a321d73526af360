package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateId(t *testing.T) {
	base := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	m1 := &Message{RoomCode: "482913", Sender: "alice", Body: "hi", CreatedAt: base}
	m2 := &Message{RoomCode: "482913", Sender: "alice", Body: "hi", CreatedAt: base.Add(time.Nanosecond)}

	require.NoError(t, m1.CreateId())
	require.NoError(t, m2.CreateId())

	assert.Len(t, m1.Id, 16)
	assert.NotEqual(t, m1.Id, m2.Id, "same content at a different instant gets a different id")

	m3 := &Message{RoomCode: "482913", Sender: "alice", Body: "hi", CreatedAt: base}
	require.NoError(t, m3.CreateId())
	assert.Equal(t, m1.Id, m3.Id, "the id is deterministic")
}

func TestSanitized(t *testing.T) {
	now := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	msg := Message{
		Id:           "msg-1",
		RoomCode:     "482913",
		Sender:       "alice",
		Body:         "secret",
		OriginalBody: "earlier secret",
		Kind:         KindText,
		Deleted:      true,
		DeletedAt:    &now,
	}

	wire := msg.Sanitized()
	assert.Equal(t, DeletedBody, wire.Body)
	assert.Empty(t, wire.OriginalBody)
	assert.True(t, wire.Deleted)
	assert.NotNil(t, wire.Reactions)

	// the receiver is untouched
	assert.Equal(t, "secret", msg.Body)
	assert.Equal(t, "earlier secret", msg.OriginalBody)

	live := Message{Id: "msg-2", Body: "hello", Kind: KindText}
	assert.Equal(t, "hello", live.Sanitized().Body)
}

func TestValidKind(t *testing.T) {
	for _, kind := range []string{KindText, KindImage, KindVideo, KindFile} {
		assert.True(t, ValidKind(kind), kind)
	}
	assert.False(t, ValidKind(""))
	assert.False(t, ValidKind("sticker"))
}

func TestNewWireMessage(t *testing.T) {
	ba, err := NewWireMessage(EventUserJoined, UserRef{Username: "alice"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"user-joined","data":{"username":"alice"}}`, string(ba))
}

func TestMessageWireShape(t *testing.T) {
	msg := Message{
		Id:       "msg-1",
		RoomCode: "482913",
		Sender:   "alice",
		Body:     "hi",
		Kind:     KindText,
	}
	ba, err := json.Marshal(msg)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(ba, &m))
	assert.Equal(t, "msg-1", m["_id"])
	assert.Equal(t, "hi", m["message"])
	assert.Equal(t, "text", m["type"])
	assert.Equal(t, map[string]interface{}{}, m["reactions"], "a nil reactions map serializes as an object")
	_, hasOriginal := m["originalMessage"]
	assert.False(t, hasOriginal, "the original body is omitted until an edit sets it")
}

func TestRoomMember(t *testing.T) {
	room := &Room{
		Code: "482913",
		Members: MemberList{
			{Id: "m-1", Username: "alice"},
			{Id: "m-2", Username: "bob"},
		},
	}

	member := room.Member("bob")
	require.NotNil(t, member)
	member.ConnectionId = "conn-b"
	assert.Equal(t, "conn-b", room.Members[1].ConnectionId, "Member returns a live reference")

	assert.Nil(t, room.Member("carol"))
}

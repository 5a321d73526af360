package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/quickchat-app/quickchat/config"
	"github.com/quickchat-app/quickchat/persistence"
	"github.com/quickchat-app/quickchat/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, persistence.Store) {
	t.Helper()
	store, err := persistence.NewBuntStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{}
	cfg.RoomConfig.MaxUsers = 50
	cfg.UploadsConfig.Dir = t.TempDir()
	cfg.UploadsConfig.MaxBytes = 1 << 20
	cfg.UploadsConfig.AllowedTypes = []string{"image/png", "video/mp4"}
	return NewHandler(store, cfg), store
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	return body
}

func TestCreateRoom(t *testing.T) {
	h, store := newTestHandler(t)
	h.randCode = func() string { return "482913" }

	req := httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader(`{"username":" alice "}`))
	res := httptest.NewRecorder()
	h.CreateRoom(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "482913", decodeBody(t, res)["roomCode"])

	room, err := store.FindActiveRoomByCode("482913")
	require.NoError(t, err)
	assert.Equal(t, "alice's Room", room.Name)
	assert.Equal(t, "alice", room.Creator)
	assert.Equal(t, 50, room.MaxUsers)
	assert.Equal(t, types.DefaultRoomSettings(), room.Settings)
	assert.Empty(t, room.Members)
}

func TestCreateRoomRequiresUsername(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, body := range []string{`{}`, `{"username":"   "}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader(body))
		res := httptest.NewRecorder()
		h.CreateRoom(res, req)

		assert.Equal(t, http.StatusBadRequest, res.Code, body)
		assert.Equal(t, "Username is required", decodeBody(t, res)["error"])
	}
}

func TestCreateRoomRetriesOnCollision(t *testing.T) {
	h, store := newTestHandler(t)
	require.NoError(t, store.CreateRoom(&types.Room{Code: "111111", Active: true}))

	codes := []string{"111111", "222222"}
	h.randCode = func() string {
		code := codes[0]
		if len(codes) > 1 {
			codes = codes[1:]
		}
		return code
	}

	req := httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader(`{"username":"bob"}`))
	res := httptest.NewRecorder()
	h.CreateRoom(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "222222", decodeBody(t, res)["roomCode"])
}

func TestGetRoom(t *testing.T) {
	h, store := newTestHandler(t)
	require.NoError(t, store.CreateRoom(&types.Room{
		Code:     "482913",
		Name:     "alice's Room",
		Active:   true,
		Members:  types.MemberList{},
		Settings: types.DefaultRoomSettings(),
	}))
	require.NoError(t, store.CreateRoom(&types.Room{Code: "999999", Active: false}))

	router := mux.NewRouter()
	router.HandleFunc("/api/rooms/{code:[0-9]{6}}", h.GetRoom).Methods(http.MethodGet)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/rooms/482913", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "alice's Room", decodeBody(t, res)["name"])

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/rooms/000000", nil))
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Room not found", decodeBody(t, res)["error"])

	// a deactivated room is indistinguishable from a missing one
	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/rooms/999999", nil))
	assert.Equal(t, http.StatusNotFound, res.Code)
}

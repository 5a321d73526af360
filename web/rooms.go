package web

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/quickchat-app/quickchat/config"
	"github.com/quickchat-app/quickchat/globals"
	"github.com/quickchat-app/quickchat/persistence"
	"github.com/quickchat-app/quickchat/types"
)

const createRoomAttempts = 5

// Handler serves the HTTP boundary: room creation/lookup and file uploads.
type Handler struct {
	Store persistence.Store
	Cfg   *config.Config

	randCode func() string
}

func NewHandler(store persistence.Store, cfg *config.Config) *Handler {
	return &Handler{
		Store:    store,
		Cfg:      cfg,
		randCode: randomRoomCode,
	}
}

// randomRoomCode returns a random six-digit code, 100000-999999.
func randomRoomCode() string {
	return strconv.Itoa(100000 + rand.Intn(900000))
}

// CreateRoom handles POST /api/rooms. The new room gets a random six-digit
// code, retried a few times on collision.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}

	for i := 0; i < createRoomAttempts; i++ {
		now := time.Now()
		room := &types.Room{
			Code:      h.randCode(),
			Name:      username + "'s Room",
			Creator:   username,
			Members:   types.MemberList{},
			Active:    true,
			MaxUsers:  h.Cfg.RoomConfig.MaxUsers,
			Settings:  types.DefaultRoomSettings(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := h.Store.CreateRoom(room)
		if err == persistence.ErrRoomExists {
			continue
		}
		if err != nil {
			globals.AppLogger.Error("could not create room", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to create room")
			return
		}
		globals.AppLogger.Info("room created", "code", room.Code, "creator", username)
		writeJSON(w, http.StatusOK, map[string]string{"roomCode": room.Code})
		return
	}
	writeError(w, http.StatusInternalServerError, "Failed to create room")
}

// GetRoom handles GET /api/rooms/{code}.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	room, err := h.Store.FindActiveRoomByCode(code)
	if err == persistence.ErrNotFound {
		writeError(w, http.StatusNotFound, "Room not found")
		return
	}
	if err != nil {
		globals.AppLogger.Error("could not get room", "code", code, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get room")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

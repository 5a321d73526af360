package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quickchat-app/quickchat/globals"
	"github.com/quickchat-app/quickchat/persistence"
	"github.com/quickchat-app/quickchat/types"
	"github.com/robfig/cron/v3"
)

const replySnippetLen = 100

// Broadcaster is the room fan-out capability the coordinator consumes.
// Delivery to a connection that is no longer reachable is a silent no-op.
type Broadcaster interface {
	ToConn(connId string, event string, payload interface{})
	ToRoom(roomCode string, event string, payload interface{})
	ToRoomExcept(roomCode, exceptConn string, event string, payload interface{})
}

// Options tune the coordinator's policy knobs. Zero values fall back to the
// defaults below.
type Options struct {
	HistoryLimit  int
	EditWindow    time.Duration
	TypingExpiry  time.Duration
	TypingSweep   string // cron spec
	MaxMessageLen int
}

func (o Options) withDefaults() Options {
	if o.HistoryLimit == 0 {
		o.HistoryLimit = 50
	}
	if o.EditWindow == 0 {
		o.EditWindow = 5 * time.Minute
	}
	if o.TypingExpiry == 0 {
		o.TypingExpiry = 10 * time.Second
	}
	if o.TypingSweep == "" {
		o.TypingSweep = "@every 5s"
	}
	if o.MaxMessageLen == 0 {
		o.MaxMessageLen = 2000
	}
	return o
}

// Coordinator is the room/session/event coordination layer. Each inbound
// event is handled by one method; a method validates against the registry and
// the store, applies the store mutation and fans the resulting state out.
//
// The registry and typing tracker are exclusively owned here. Handlers for
// different connections may interleave at store round-trips, so all registry
// and tracker mutations are idempotent adds/removes; concurrent
// read-modify-write on the same message row is last-write-wins by design.
type Coordinator struct {
	registry *Registry
	typing   *TypingTracker
	store    persistence.Store
	bcast    Broadcaster
	opts     Options

	cronRunner *cron.Cron
	now        func() time.Time
}

func NewCoordinator(registry *Registry, typing *TypingTracker, store persistence.Store, bcast Broadcaster, opts Options) *Coordinator {
	return &Coordinator{
		registry: registry,
		typing:   typing,
		store:    store,
		bcast:    bcast,
		opts:     opts.withDefaults(),
		now:      time.Now,
	}
}

// Run starts the periodic typing-expiry sweep. Expired entries are dropped
// and the affected rooms get a fresh typing-update.
func (c *Coordinator) Run() {
	c.cronRunner = cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.cronRunner.AddFunc(c.opts.TypingSweep, func() {
		for roomCode, set := range c.typing.Sweep() {
			c.bcast.ToRoom(roomCode, types.EventTypingUpdate, types.TypingUpdatePayload{TypingUsers: set})
		}
	})
	if err != nil {
		panic(err)
	}
	c.cronRunner.Start()
}

func (c *Coordinator) Stop() {
	if c.cronRunner != nil {
		c.cronRunner.Stop()
	}
}

// Join binds the connection to the room, reconciles the persisted member
// list, replays recent history to the joining connection and announces the
// join to the rest of the room. A connection that was joined elsewhere
// implicitly leaves that room first.
func (c *Coordinator) Join(connId, roomCode, username string) error {
	username = strings.TrimSpace(username)
	if roomCode == "" || username == "" {
		c.bcast.ToConn(connId, types.EventJoinError, ErrInvalidJoin.Error())
		return ErrInvalidJoin
	}

	room, err := c.store.FindActiveRoomByCode(roomCode)
	if err == persistence.ErrNotFound {
		c.bcast.ToConn(connId, types.EventJoinError, "Room not found")
		return ErrRoomNotFound
	}
	if err != nil {
		globals.AppLogger.Error("could not load room", "room", roomCode, "error", err)
		c.bcast.ToConn(connId, types.EventJoinError, "Failed to join room")
		return err
	}

	if room.MaxUsers > 0 {
		present := c.registry.ListByRoom(roomCode)
		if len(present) >= room.MaxUsers && !contains(present, username) {
			c.bcast.ToConn(connId, types.EventJoinError, "Room is full")
			return ErrRoomFull
		}
	}

	// implicit leave of the previous room
	if prev, ok := c.registry.Lookup(connId); ok && prev.RoomCode != roomCode {
		c.registry.Unbind(connId)
		c.afterLeave(connId, prev)
	}

	c.registry.Bind(connId, username, roomCode)

	// membership is by username, a rejoin only updates the current connection
	if member := room.Member(username); member != nil {
		err = c.store.UpdateMemberConnection(roomCode, username, connId)
		if err == nil {
			member.ConnectionId = connId
		}
	} else {
		newMember := types.RoomMember{
			Id:           uuid.NewString(),
			Username:     username,
			JoinedAt:     c.now(),
			ConnectionId: connId,
		}
		err = c.store.AppendRoomMember(roomCode, newMember)
		if err == nil {
			room.Members = append(room.Members, newMember)
		}
	}
	if err != nil {
		globals.AppLogger.Error("could not update room members", "room", roomCode, "error", err)
		c.registry.Unbind(connId)
		c.bcast.ToConn(connId, types.EventJoinError, "Failed to join room")
		return err
	}

	recent, err := c.store.FindRecentMessages(roomCode, c.opts.HistoryLimit)
	if err != nil {
		globals.AppLogger.Error("could not load recent messages", "room", roomCode, "error", err)
		c.registry.Unbind(connId)
		c.bcast.ToConn(connId, types.EventJoinError, "Failed to join room")
		return err
	}
	// newest-first from the store, oldest-first for display
	history := make([]*types.Message, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		history = append(history, recent[i].Sanitized())
	}

	c.bcast.ToConn(connId, types.EventJoinSuccess, types.JoinSuccessPayload{Room: room, Messages: history})
	c.bcast.ToRoomExcept(roomCode, connId, types.EventUserJoined, types.UserRef{Username: username})
	c.bcast.ToRoom(roomCode, types.EventUsersUpdate, c.presence(roomCode))
	return nil
}

// Leave removes the connection's binding and announces the departure.
func (c *Coordinator) Leave(connId string) {
	c.Disconnect(connId)
}

// Disconnect is the implicit leave on a closed connection. A connection with
// no binding is a no-op, not an error.
func (c *Coordinator) Disconnect(connId string) {
	sess, ok := c.registry.Unbind(connId)
	if !ok {
		return
	}
	c.afterLeave(connId, sess)
}

func (c *Coordinator) afterLeave(connId string, sess Session) {
	if set, had := c.typing.Clear(sess.RoomCode, sess.Username); had {
		c.bcast.ToRoomExcept(sess.RoomCode, connId, types.EventTypingUpdate, types.TypingUpdatePayload{TypingUsers: set})
	}
	c.bcast.ToRoomExcept(sess.RoomCode, connId, types.EventUserLeft, types.UserRef{Username: sess.Username})
	c.bcast.ToRoom(sess.RoomCode, types.EventUsersUpdate, c.presence(sess.RoomCode))
}

// SendMessage persists a new message for the connection's room and broadcasts
// it to everyone there, including the sender. Clients render only from this
// broadcast.
func (c *Coordinator) SendMessage(connId string, p types.SendMessagePayload) error {
	sess, ok := c.registry.Lookup(connId)
	if !ok {
		c.bcast.ToConn(connId, types.EventMessageError, "User not authenticated")
		return ErrUnauthenticated
	}

	kind := p.Kind
	if kind == "" {
		kind = types.KindText
	}
	if !types.ValidKind(kind) {
		c.bcast.ToConn(connId, types.EventMessageError, ErrInvalidKind.Error())
		return ErrInvalidKind
	}

	body := strings.TrimSpace(p.Message)
	if kind == types.KindText && body == "" {
		c.bcast.ToConn(connId, types.EventMessageError, "Message cannot be empty")
		return ErrEmptyMessage
	}
	if len([]rune(body)) > c.opts.MaxMessageLen {
		c.bcast.ToConn(connId, types.EventMessageError, "Message too long")
		return ErrMessageTooLong
	}

	if kind != types.KindText {
		room, err := c.store.FindActiveRoomByCode(sess.RoomCode)
		if err != nil {
			globals.AppLogger.Error("could not load room", "room", sess.RoomCode, "error", err)
			c.bcast.ToConn(connId, types.EventMessageError, "Failed to send message")
			return err
		}
		if !room.Settings.AllowFileUploads {
			c.bcast.ToConn(connId, types.EventMessageError, ErrUploadsDisabled.Error())
			return ErrUploadsDisabled
		}
	}

	now := c.now()
	msg := &types.Message{
		RoomCode:  sess.RoomCode,
		Sender:    sess.Username,
		Body:      body,
		Kind:      kind,
		MediaUrl:  p.MediaUrl,
		MediaName: p.MediaName,
		MediaSize: p.MediaSize,
		Reactions: types.Reactions{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.ReplyTo != "" {
		// best effort, a vanished target just drops the reference
		if target, err := c.store.FindMessageById(p.ReplyTo); err == nil && target.RoomCode == sess.RoomCode {
			msg.ReplyTo = &types.ReplyRef{
				MessageId:  target.Id,
				SenderName: target.Sender,
				Snippet:    snippet(target.Sanitized().Body),
			}
		}
	}
	if err := msg.CreateId(); err != nil {
		globals.AppLogger.Error("could not hash message", "error", err)
		c.bcast.ToConn(connId, types.EventMessageError, "Failed to send message")
		return err
	}
	if err := c.store.CreateMessage(msg); err != nil {
		globals.AppLogger.Error("could not persist message", "error", err)
		c.bcast.ToConn(connId, types.EventMessageError, "Failed to send message")
		return err
	}

	c.bcast.ToRoom(sess.RoomCode, types.EventNewMessage, msg.Sanitized())
	return nil
}

// EditMessage replaces the body of one of the caller's own messages. The
// pre-edit body is preserved on the first edit only. Edits are rejected once
// the message is older than the edit window, unless it has already been
// edited at least once.
func (c *Coordinator) EditMessage(connId string, p types.EditMessagePayload) error {
	sess, ok := c.registry.Lookup(connId)
	if !ok {
		c.bcast.ToConn(connId, types.EventEditError, "User not authenticated")
		return ErrUnauthenticated
	}

	body := strings.TrimSpace(p.NewMessage)
	if body == "" {
		c.bcast.ToConn(connId, types.EventEditError, "Message cannot be empty")
		return ErrEmptyMessage
	}
	if len([]rune(body)) > c.opts.MaxMessageLen {
		c.bcast.ToConn(connId, types.EventEditError, "Message too long")
		return ErrMessageTooLong
	}

	msg, err := c.authorizeMutation(connId, sess, p.MessageId, types.EventEditError)
	if err != nil {
		return err
	}

	room, err := c.store.FindActiveRoomByCode(sess.RoomCode)
	if err != nil {
		globals.AppLogger.Error("could not load room", "room", sess.RoomCode, "error", err)
		c.bcast.ToConn(connId, types.EventEditError, "Failed to edit message")
		return err
	}
	if !room.Settings.AllowEditing {
		c.bcast.ToConn(connId, types.EventEditError, ErrEditingDisabled.Error())
		return ErrEditingDisabled
	}

	// an already-edited message stays editable regardless of age
	if !msg.Edited && c.now().Sub(msg.CreatedAt) > c.opts.EditWindow {
		c.bcast.ToConn(connId, types.EventEditError, "Message too old to edit")
		return ErrEditWindowExpired
	}

	if msg.OriginalBody == "" {
		msg.OriginalBody = msg.Body
	}
	now := c.now()
	msg.Body = body
	msg.Edited = true
	msg.EditedAt = &now
	msg.UpdatedAt = now
	if err := c.store.UpdateMessage(msg); err != nil {
		globals.AppLogger.Error("could not persist edit", "message", msg.Id, "error", err)
		c.bcast.ToConn(connId, types.EventEditError, "Failed to edit message")
		return err
	}

	c.bcast.ToRoom(sess.RoomCode, types.EventMessageEdited, msg.Sanitized())
	return nil
}

// DeleteMessage soft-deletes one of the caller's own messages. The row is
// retained; consumers render the redaction marker in place of the body.
func (c *Coordinator) DeleteMessage(connId string, p types.DeleteMessagePayload) error {
	sess, ok := c.registry.Lookup(connId)
	if !ok {
		c.bcast.ToConn(connId, types.EventDeleteError, "User not authenticated")
		return ErrUnauthenticated
	}

	msg, err := c.authorizeMutation(connId, sess, p.MessageId, types.EventDeleteError)
	if err != nil {
		return err
	}

	now := c.now()
	msg.Deleted = true
	msg.DeletedAt = &now
	msg.UpdatedAt = now
	if err := c.store.UpdateMessage(msg); err != nil {
		globals.AppLogger.Error("could not persist delete", "message", msg.Id, "error", err)
		c.bcast.ToConn(connId, types.EventDeleteError, "Failed to delete message")
		return err
	}

	c.bcast.ToRoom(sess.RoomCode, types.EventMessageDeleted, msg.Sanitized())
	return nil
}

// authorizeMutation loads the message and checks ownership. Existence and
// authorization failures are reported as one merged error so callers cannot
// probe for other users' message ids.
func (c *Coordinator) authorizeMutation(connId string, sess Session, messageId, errEvent string) (*types.Message, error) {
	msg, err := c.store.FindMessageById(messageId)
	if err != nil && err != persistence.ErrNotFound {
		globals.AppLogger.Error("could not load message", "message", messageId, "error", err)
		c.bcast.ToConn(connId, errEvent, "Something went wrong")
		return nil, err
	}
	if err == persistence.ErrNotFound || msg.Sender != sess.Username || msg.RoomCode != sess.RoomCode || msg.Deleted {
		c.bcast.ToConn(connId, errEvent, "Message not found or not authorized")
		return nil, ErrNotFoundOrUnauthorized
	}
	return msg, nil
}

// ToggleReaction adds or removes the caller's reaction under the given emoji
// and broadcasts the full reaction map. Reactions are best-effort: a missing
// or deleted target is a silent no-op.
func (c *Coordinator) ToggleReaction(connId string, p types.ToggleReactionPayload) error {
	sess, ok := c.registry.Lookup(connId)
	if !ok {
		return ErrUnauthenticated
	}

	msg, err := c.store.FindMessageById(p.MessageId)
	if err != nil || msg.Deleted || msg.RoomCode != sess.RoomCode {
		return nil
	}

	room, err := c.store.FindActiveRoomByCode(sess.RoomCode)
	if err != nil || !room.Settings.AllowReactions {
		return nil
	}

	msg.Reactions.Toggle(p.Reaction, sess.Username)
	msg.UpdatedAt = c.now()
	if err := c.store.UpdateMessage(msg); err != nil {
		globals.AppLogger.Error("could not persist reaction", "message", msg.Id, "error", err)
		return nil
	}

	c.bcast.ToRoom(sess.RoomCode, types.EventReactionUpdated, types.ReactionUpdatedPayload{
		MessageId: msg.Id,
		Reactions: msg.Reactions,
	})
	return nil
}

// StartTyping flags the caller as typing and notifies the rest of the room.
// The sender never receives its own typing echo.
func (c *Coordinator) StartTyping(connId string) {
	sess, ok := c.registry.Lookup(connId)
	if !ok {
		return
	}
	set := c.typing.Mark(sess.RoomCode, sess.Username)
	c.bcast.ToRoomExcept(sess.RoomCode, connId, types.EventTypingUpdate, types.TypingUpdatePayload{TypingUsers: set})
}

// StopTyping clears the caller's typing flag.
func (c *Coordinator) StopTyping(connId string) {
	sess, ok := c.registry.Lookup(connId)
	if !ok {
		return
	}
	if set, had := c.typing.Clear(sess.RoomCode, sess.Username); had {
		c.bcast.ToRoomExcept(sess.RoomCode, connId, types.EventTypingUpdate, types.TypingUpdatePayload{TypingUsers: set})
	}
}

func (c *Coordinator) presence(roomCode string) []types.UserRef {
	usernames := c.registry.ListByRoom(roomCode)
	users := make([]types.UserRef, 0, len(usernames))
	for _, name := range usernames {
		users = append(users, types.UserRef{Username: name})
	}
	return users
}

func snippet(body string) string {
	runes := []rune(body)
	if len(runes) <= replySnippetLen {
		return body
	}
	return string(runes[:replySnippetLen])
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

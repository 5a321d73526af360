package chat

import "errors"

// Validation errors surfaced to the originating connection only. The merged
// not-found/not-authorized error deliberately does not reveal whether a
// message id exists.
var (
	ErrInvalidJoin            = errors.New("room code and username are required")
	ErrRoomNotFound           = errors.New("room not found")
	ErrRoomFull               = errors.New("room is full")
	ErrUnauthenticated        = errors.New("user not authenticated")
	ErrEmptyMessage           = errors.New("message cannot be empty")
	ErrMessageTooLong         = errors.New("message too long")
	ErrInvalidKind            = errors.New("invalid message type")
	ErrNotFoundOrUnauthorized = errors.New("message not found or not authorized")
	ErrEditWindowExpired      = errors.New("message too old to edit")
	ErrUploadsDisabled        = errors.New("file uploads are disabled in this room")
	ErrEditingDisabled        = errors.New("editing is disabled in this room")
)

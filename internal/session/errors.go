package session

import "errors"

// ErrChatNotFound indicates the chat id does not exist.
var ErrChatNotFound = errors.New("chat not found")

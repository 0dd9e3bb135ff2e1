package dialog

import (
	"errors"
	"time"
)

var ErrDialogNotFound = errors.New("dialog not found")

// Model identifies one of the two configured backends.
type Model string

const (
	ModelPrimary   Model = "PRIMARY"
	ModelSecondary Model = "SECONDARY"
)

func (m Model) Valid() bool {
	return m == ModelPrimary || m == ModelSecondary
}

func (m Model) String() string {
	return string(m)
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
	Model     Model
}

// Dialog is a point-in-time copy. Mutate dialogs only through Store.
type Dialog struct {
	UserID       int64
	ID           string
	Messages     []Message
	CreatedAt    time.Time
	LastActivity time.Time
	CurrentModel Model
}

type Summary struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	MessageCount int
	Model        Model
}

// Package identity holds who the local user is: a stable opaque session id
// plus a mutable display name.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const DefaultMaxNameLength = 20

var ErrInvalidName = errors.New("invalid display name")

type Identity struct {
	SessionID   uuid.UUID `json:"sessionId"`
	DisplayName string    `json:"displayName"`
}

// New returns an identity with a freshly generated session id.
func New(displayName string) Identity {
	return Identity{SessionID: uuid.New(), DisplayName: displayName}
}

// Key is the presence key peers use for this identity.
func (i Identity) Key() string {
	return i.SessionID.String()
}

// NormalizeName trims name and checks it is between 1 and maxLen runes.
func NormalizeName(name string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxNameLength
	}
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if n > maxLen {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxLen)
	}
	return name, nil
}

// Store persists the display name across restarts. Session ids are never
// reused between processes.
type Store interface {
	LoadName() (string, bool, error)
	SaveName(name string) error
	Close() error
}

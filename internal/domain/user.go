// Package domain contains entities without transport or lifecycle logic.
package domain

import (
	"sort"
	"strings"
)

type UserID string

// Account is the read-only view of a member resolved from the account
// service: display fields, premium flag and the configured partner.
type Account struct {
	ID      UserID `json:"id"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar,omitempty"`
	Premium bool   `json:"premium"`
	Partner UserID `json:"partner"`
}

// Paired reports whether the account has a partner configured.
// Unpaired accounts are never admitted to a room.
func (a Account) Paired() bool {
	return a.Partner != ""
}

type RoomID string

// PairRoomID derives the room key for two paired identities. The ids are
// sorted so both participants resolve to the same room regardless of
// which side connects first.
func PairRoomID(a, b UserID) RoomID {
	pair := []string{string(a), string(b)}
	sort.Strings(pair)
	return RoomID(strings.Join(pair, "_"))
}

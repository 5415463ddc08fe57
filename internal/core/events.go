package core

import (
	"encoding/json"

	"github.com/sarim-aliii/duet/internal/domain"
)

// Server-to-client event envelopes. Every frame carries a "type" tag so
// clients can switch on it the same way the server switches on inbound
// frames.

type RoomJoinedEvent struct {
	Type       string            `json:"type"`
	RoomID     domain.RoomID     `json:"roomId"`
	State      *domain.RoomState `json:"state"`
	SessionID  SessionID         `json:"connectionId"`
	PartnerSID SessionID         `json:"partnerConnectionId,omitempty"`
}

func NewRoomJoined(id domain.RoomID, state *domain.RoomState, sid, partner SessionID) RoomJoinedEvent {
	return RoomJoinedEvent{Type: "room-joined", RoomID: id, State: state, SessionID: sid, PartnerSID: partner}
}

type PartnerPresenceEvent struct {
	Type      string    `json:"type"`
	SessionID SessionID `json:"connectionId"`
}

func NewPartnerOnline(sid SessionID) PartnerPresenceEvent {
	return PartnerPresenceEvent{Type: "partner-online", SessionID: sid}
}

func NewPartnerOffline(sid SessionID) PartnerPresenceEvent {
	return PartnerPresenceEvent{Type: "partner-offline", SessionID: sid}
}

type StateUpdateEvent struct {
	Type  string            `json:"type"`
	State *domain.RoomState `json:"state"`
}

func NewStateUpdate(state *domain.RoomState) StateUpdateEvent {
	return StateUpdateEvent{Type: "stateUpdate", State: state}
}

type NewMessageEvent struct {
	Type    string             `json:"type"`
	Message domain.ChatMessage `json:"message"`
}

func NewMessage(m domain.ChatMessage) NewMessageEvent {
	return NewMessageEvent{Type: "newMessage", Message: m}
}

type NewJournalEntryEvent struct {
	Type  string              `json:"type"`
	Entry domain.JournalEntry `json:"entry"`
}

func NewJournalEntry(e domain.JournalEntry) NewJournalEntryEvent {
	return NewJournalEntryEvent{Type: "newJournalEntry", Entry: e}
}

type PartnerTypingEvent struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"identity,omitempty"`
}

func NewPartnerTyping(id domain.UserID) PartnerTypingEvent {
	return PartnerTypingEvent{Type: "partnerTyping", UserID: id}
}

type PartnerBufferingEvent struct {
	Type        string `json:"type"`
	IsBuffering bool   `json:"isBuffering"`
}

func NewPartnerBuffering(b bool) PartnerBufferingEvent {
	return PartnerBufferingEvent{Type: "partnerBuffering", IsBuffering: b}
}

// NotificationKind distinguishes policy outcomes from technical
// failures in user-facing notices.
type NotificationKind string

const (
	NoticeInfo  NotificationKind = "info"
	NoticeGated NotificationKind = "gated"
	NoticeError NotificationKind = "error"
)

type NotificationEvent struct {
	Type    string           `json:"type"`
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
}

func NewNotification(kind NotificationKind, msg string) NotificationEvent {
	return NotificationEvent{Type: "notification", Kind: kind, Message: msg}
}

// SignalEvent relays an opaque WebRTC payload between the two
// connections, tagged with the sender.
type SignalEvent struct {
	Type    string          `json:"type"`
	Sender  SessionID       `json:"sender"`
	Payload json.RawMessage `json:"payload"`
}

func NewSignal(sender SessionID, payload json.RawMessage) SignalEvent {
	return SignalEvent{Type: "signal", Sender: sender, Payload: payload}
}

type PongEvent struct {
	Type string `json:"type"`
}

func NewPong() PongEvent {
	return PongEvent{Type: "pong"}
}

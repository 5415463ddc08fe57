package domain

import "time"

type SourceKind string

const (
	SourceNone    SourceKind = ""
	SourceYouTube SourceKind = "youtube"
	SourceURL     SourceKind = "url"
	SourceFile    SourceKind = "file"
	SourceScreen  SourceKind = "screen"
)

// VideoSource describes the shared media. An empty Kind means no media
// is loaded.
type VideoSource struct {
	Kind SourceKind `json:"kind"`
	Src  string     `json:"src,omitempty"`
}

func (v VideoSource) Loaded() bool {
	return v.Kind != SourceNone
}

// PlaybackState is a measurement, not a live clock: CurrentTime is only
// accurate at LastUpdate. The real position while playing is always
// CurrentTime + elapsed*Rate.
type PlaybackState struct {
	IsPlaying   bool    `json:"isPlaying"`
	CurrentTime float64 `json:"currentTime"`
	Rate        float64 `json:"playbackRate"`
	LastUpdate  int64   `json:"lastUpdateTimestamp"` // unix millis, server clock
}

// PositionAt derives the playback position at the given instant.
func (p PlaybackState) PositionAt(now time.Time) float64 {
	if !p.IsPlaying {
		return p.CurrentTime
	}
	elapsed := float64(now.UnixMilli()-p.LastUpdate) / 1000
	return p.CurrentTime + elapsed*p.Rate
}

type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageImage  MessageKind = "image"
	MessageAudio  MessageKind = "audio"
	MessageSystem MessageKind = "system"
)

type ChatMessage struct {
	ID           string      `json:"id"`
	SenderID     UserID      `json:"senderId"`
	SenderName   string      `json:"senderName,omitempty"`
	SenderAvatar string      `json:"senderAvatar,omitempty"`
	Kind         MessageKind `json:"type"`
	Content      string      `json:"content"`
	Image        string      `json:"image,omitempty"`
	Timestamp    int64       `json:"timestamp"` // unix millis, server clock
}

type JournalEntry struct {
	ID        string    `json:"id"`
	RoomID    RoomID    `json:"roomId"`
	AuthorID  UserID    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AmbientSound struct {
	Track     string  `json:"track,omitempty"`
	IsPlaying bool    `json:"isPlaying"`
	Volume    float64 `json:"volume"`
}

type UIState struct {
	SidebarVisible bool `json:"isSidebarVisible"`
}

// RoomState is the single shared session between the two halves of a
// room. It is owned by the store and mutated only by the dispatcher and
// the sync broadcaster.
type RoomState struct {
	VideoSource     VideoSource    `json:"videoSource"`
	Playback        PlaybackState  `json:"playbackState"`
	Messages        []ChatMessage  `json:"messages"`
	JournalEntries  []JournalEntry `json:"journalEntries"`
	AmbientSound    AmbientSound   `json:"ambientSound"`
	UI              UIState        `json:"uiState"`
	IsScreenSharing bool           `json:"isScreenSharing"`
	TypingUser      UserID         `json:"typingUser,omitempty"`
	IsPremium       bool           `json:"isPremium"`
	CreatedAt       int64          `json:"createdAt"` // unix millis
}

// DefaultRoomState is the state of a freshly created room: no media,
// paused at zero, empty history.
func DefaultRoomState(now time.Time) *RoomState {
	return &RoomState{
		VideoSource: VideoSource{Kind: SourceNone},
		Playback: PlaybackState{
			IsPlaying:   false,
			CurrentTime: 0,
			Rate:        1,
			LastUpdate:  now.UnixMilli(),
		},
		Messages:       []ChatMessage{},
		JournalEntries: []JournalEntry{},
		AmbientSound:   AmbientSound{Volume: 0.5},
		UI:             UIState{SidebarVisible: true},
		CreatedAt:      now.UnixMilli(),
	}
}

// AppendMessage appends to the rolling chat window, evicting the oldest
// entries beyond cap. Full history lives in the durable log, not here.
func (s *RoomState) AppendMessage(m ChatMessage, cap int) {
	s.Messages = append(s.Messages, m)
	if cap > 0 && len(s.Messages) > cap {
		s.Messages = s.Messages[len(s.Messages)-cap:]
	}
}

// Age reports how long the room has existed at the given instant.
func (s *RoomState) Age(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-s.CreatedAt) * time.Millisecond
}

package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownAction marks an action tag outside the closed set. The
// dispatcher logs and drops these without touching state.
var ErrUnknownAction = errors.New("unknown client action")

// Action is the closed set of client-originated room mutations. Adding
// a variant means adding a case to the dispatcher switch; there is no
// silent default path.
type Action interface {
	isAction()
}

// UpdatePlaybackState merges the non-nil fields into the playback
// state. Timestamps are always re-stamped server-side.
type UpdatePlaybackState struct {
	IsPlaying   *bool    `json:"isPlaying,omitempty"`
	CurrentTime *float64 `json:"currentTime,omitempty"`
	Rate        *float64 `json:"playbackRate,omitempty"`
}

type UpdatePlaybackTime struct {
	CurrentTime float64 `json:"currentTime"`
}

type UpdateVideoSource struct {
	Source VideoSource
}

type SendMessage struct {
	Content string      `json:"content"`
	Kind    MessageKind `json:"type,omitempty"`
	Image   string      `json:"image,omitempty"`
}

type SetTyping struct {
	IsTyping bool `json:"isTyping"`
}

type UpdateUIState struct {
	SidebarVisible *bool `json:"isSidebarVisible,omitempty"`
}

type SetAmbientSound struct {
	Track     *string  `json:"track,omitempty"`
	IsPlaying *bool    `json:"isPlaying,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`
}

type CreateJournalEntry struct {
	Content string `json:"content"`
}

type CheckPremiumStatus struct{}

func (UpdatePlaybackState) isAction() {}
func (UpdatePlaybackTime) isAction()  {}
func (UpdateVideoSource) isAction()   {}
func (SendMessage) isAction()         {}
func (SetTyping) isAction()           {}
func (UpdateUIState) isAction()       {}
func (SetAmbientSound) isAction()     {}
func (CreateJournalEntry) isAction()  {}
func (CheckPremiumStatus) isAction()  {}

// DecodeAction parses a {type, payload} envelope into a concrete
// variant. Unknown tags return ErrUnknownAction; a malformed payload
// never yields a partially applied action.
func DecodeAction(data []byte) (Action, error) {
	var env struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode action envelope: %w", err)
	}

	decode := func(v any) error {
		if len(env.Payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Payload, v); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return nil
	}

	switch env.Type {
	case "UPDATE_PLAYBACK_STATE":
		var a UpdatePlaybackState
		return a, decode(&a)
	case "UPDATE_PLAYBACK_TIME":
		var a UpdatePlaybackTime
		return a, decode(&a)
	case "UPDATE_VIDEO_SOURCE":
		var a UpdateVideoSource
		return a, decode(&a.Source)
	case "SEND_MESSAGE":
		var a SendMessage
		return a, decode(&a)
	case "SET_TYPING":
		var a SetTyping
		return a, decode(&a)
	case "UPDATE_UI_STATE":
		var a UpdateUIState
		return a, decode(&a)
	case "SET_AMBIENT_SOUND":
		var a SetAmbientSound
		return a, decode(&a)
	case "CREATE_JOURNAL_ENTRY":
		var a CreateJournalEntry
		return a, decode(&a)
	case "CHECK_PREMIUM_STATUS":
		return CheckPremiumStatus{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Type)
	}
}

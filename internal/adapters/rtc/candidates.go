// Package rtc holds the WebRTC edge logic. The server only relays
// SDP/ICE payloads; what must be right at each edge is the candidate
// ordering rule implemented here, shared by native clients and tests.
package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// DescriptionApplier is the slice of *webrtc.PeerConnection the gate
// needs; narrowed for testability.
type DescriptionApplier interface {
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
}

var _ DescriptionApplier = (*webrtc.PeerConnection)(nil)

// CandidateGate enforces the rule that ICE candidates arriving before
// the remote description are buffered, never applied early or dropped,
// and flushed in arrival order once the description lands.
type CandidateGate struct {
	mu        sync.Mutex
	applier   DescriptionApplier
	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

func NewCandidateGate(applier DescriptionApplier) *CandidateGate {
	return &CandidateGate{applier: applier}
}

// SetRemoteDescription applies the description, then flushes every
// buffered candidate in the order it arrived.
func (g *CandidateGate) SetRemoteDescription(desc webrtc.SessionDescription) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.applier.SetRemoteDescription(desc); err != nil {
		return err
	}
	g.remoteSet = true

	for _, ci := range g.pending {
		if err := g.applier.AddICECandidate(ci); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Msg("flush buffered candidate")
		}
	}
	g.pending = nil
	return nil
}

// AddCandidate applies the candidate if a remote description exists,
// otherwise buffers it.
func (g *CandidateGate) AddCandidate(ci webrtc.ICECandidateInit) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.remoteSet {
		g.pending = append(g.pending, ci)
		return nil
	}
	return g.applier.AddICECandidate(ci)
}

// Pending reports how many candidates are waiting for the remote
// description.
func (g *CandidateGate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// DefaultConfig is the peer connection configuration paired clients
// start from.
func DefaultConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

package app

import (
	"context"
	"testing"
)

func playingRoom(t *testing.T, h *harness) (*fakeConn, *fakeConn) {
	t.Helper()
	a := h.join(t, "s-alice", "alice")
	b := h.join(t, "s-bob", "bob")
	h.action(t, "s-alice", "UPDATE_VIDEO_SOURCE", `{"kind":"youtube","src":"abc123"}`)
	h.action(t, "s-alice", "UPDATE_PLAYBACK_STATE", `{"isPlaying":true}`)
	a.reset()
	b.reset()
	return a, b
}

func TestBufferingPausesPlayingRoom(t *testing.T) {
	h := newHarness(t)
	a, b := playingRoom(t, h)

	h.engine.ReportBuffering(context.Background(), "s-bob", true)

	st := h.state(t, pairedRoom)
	if st.Playback.IsPlaying {
		t.Fatal("any buffering connection must force pause")
	}
	if len(a.eventsOfType(t, "stateUpdate")) == 0 || len(b.eventsOfType(t, "stateUpdate")) == 0 {
		t.Error("pause must broadcast to everyone")
	}
	if len(a.eventsOfType(t, "partnerBuffering")) != 1 {
		t.Error("partner should hear the stall report")
	}
}

func TestResumeWaitsForAllClear(t *testing.T) {
	h := newHarness(t)
	playingRoom(t, h)

	h.engine.ReportBuffering(context.Background(), "s-alice", true)
	h.engine.ReportBuffering(context.Background(), "s-bob", true)

	h.engine.ReportBuffering(context.Background(), "s-alice", false)
	if h.state(t, pairedRoom).Playback.IsPlaying {
		t.Fatal("must not resume while the other side is still stalled")
	}

	h.engine.ReportBuffering(context.Background(), "s-bob", false)
	if !h.state(t, pairedRoom).Playback.IsPlaying {
		t.Fatal("should resume once every live connection is ready")
	}
}

func TestClearNeverResumesUserPause(t *testing.T) {
	h := newHarness(t)
	playingRoom(t, h)

	h.engine.ReportBuffering(context.Background(), "s-bob", true)
	// alice pauses on purpose while bob is stalled
	h.action(t, "s-alice", "UPDATE_PLAYBACK_STATE", `{"isPlaying":false}`)

	h.engine.ReportBuffering(context.Background(), "s-bob", false)
	if h.state(t, pairedRoom).Playback.IsPlaying {
		t.Fatal("clearing a stall must not override an explicit pause")
	}
}

func TestBufferingClearAloneDoesNotResume(t *testing.T) {
	h := newHarness(t)
	h.join(t, "s-alice", "alice")
	h.join(t, "s-bob", "bob")
	// room is paused and was never auto-paused
	h.engine.ReportBuffering(context.Background(), "s-bob", true)
	h.engine.ReportBuffering(context.Background(), "s-bob", false)
	if h.state(t, pairedRoom).Playback.IsPlaying {
		t.Fatal("a clear with no pending auto-resume must not start playback")
	}
}

func TestPlaybackActionClearsStall(t *testing.T) {
	h := newHarness(t)
	a, _ := playingRoom(t, h)

	h.engine.ReportBuffering(context.Background(), "s-bob", true)
	a.reset()

	// fresh playback data from bob proves the stall resolved
	h.action(t, "s-bob", "UPDATE_PLAYBACK_TIME", `{"currentTime":12}`)

	if h.engine.reg.anyBuffering(pairedRoom, "") {
		t.Error("playback action should clear the sender's stall flag")
	}
	events := a.eventsOfType(t, "partnerBuffering")
	if len(events) != 1 || events[0]["isBuffering"] != false {
		t.Error("partner should hear the stall cleared")
	}
}

func TestPlayRequestDeferredWhileStalled(t *testing.T) {
	h := newHarness(t)
	h.join(t, "s-alice", "alice")
	h.join(t, "s-bob", "bob")
	h.engine.ReportBuffering(context.Background(), "s-bob", true)

	h.action(t, "s-alice", "UPDATE_PLAYBACK_STATE", `{"isPlaying":true}`)
	if h.state(t, pairedRoom).Playback.IsPlaying {
		t.Fatal("play must not start while the partner is stalled")
	}

	// once bob is ready, the deferred play resumes
	h.engine.ReportBuffering(context.Background(), "s-bob", false)
	if !h.state(t, pairedRoom).Playback.IsPlaying {
		t.Fatal("deferred play should start when the stall clears")
	}
}

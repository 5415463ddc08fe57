package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/sarim-aliii/duet/internal/core"
)

// RelaySignal forwards an opaque WebRTC payload (SDP or ICE) to the
// target connection verbatim, tagged with the sender. The relay holds
// no negotiation state; buffering of early candidates is the receiving
// edge's job.
func (e *Engine) RelaySignal(sid core.SessionID, raw []byte) {
	target := gjson.GetBytes(raw, "target").String()
	payload := gjson.GetBytes(raw, "payload").Raw
	if target == "" || payload == "" {
		log.Warn().Str("module", "app.relay").Str("sid", string(sid)).Msg("malformed signal envelope")
		return
	}

	conn, ok := e.reg.conn(core.SessionID(target))
	if !ok {
		log.Debug().Str("module", "app.relay").Str("sid", string(sid)).Str("target", target).Msg("signal target not connected")
		return
	}

	b, err := json.Marshal(core.NewSignal(sid, json.RawMessage(payload)))
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("marshal signal")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Str("target", target).Msg("signal dropped")
	}
}

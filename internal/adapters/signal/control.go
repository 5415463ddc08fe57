package signal

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/sarim-aliii/duet/internal/core"
)

// handleFrame routes one inbound frame by its type tag. The frame
// itself stays raw; each handler decodes only what it needs.
func (ctl *Controller) handleFrame(ctx context.Context, sid core.SessionID, c *wsConn, data []byte) {
	switch gjson.GetBytes(data, "type").String() {
	case "clientAction":
		ctl.Engine.HandleAction(ctx, sid, []byte(gjson.GetBytes(data, "action").Raw))
	case "reportBuffering":
		ctl.Engine.ReportBuffering(ctx, sid, gjson.GetBytes(data, "isBuffering").Bool())
	case "signal":
		ctl.Engine.RelaySignal(sid, data)
	case "ping":
		ctl.sendJSON(c, core.NewPong())
	default:
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("type", gjson.GetBytes(data, "type").String()).Msg("unknown frame")
	}
}

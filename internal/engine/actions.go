package engine

import (
	"fmt"
	"log/slog"

	"github.com/a-essam23/go-place/pkg/chat"
	"github.com/a-essam23/go-place/pkg/grid"
	"github.com/a-essam23/go-place/pkg/pipeline"
	"github.com/tidwall/gjson"
)

// handleCanvasUpdate accepts a single {x,y,color} or {updates:[...]}.
// Malformed entries inside a batch are skipped; the rest still apply.
func handleCanvasUpdate(pctx *pipeline.Cargo) error {
	r, err := parsePayload(pctx.Payload)
	if err != nil {
		return err
	}

	if updates := r.Get("updates"); updates.Exists() {
		if !updates.IsArray() {
			return fmt.Errorf("%w: 'updates' must be an array", ErrMalformed)
		}
		var cells []grid.Cell
		skipped := 0
		updates.ForEach(func(_, v gjson.Result) bool {
			c, err := cellFrom(v)
			if err != nil {
				skipped++
				return true
			}
			cells = append(cells, c)
			return true
		})
		applied := pctx.State.Grid.ApplyBatch(cells)
		if skipped > 0 {
			pctx.Logger.Warn("Skipped malformed cells in batch", slog.Int("skipped", skipped), slog.Int("applied", applied))
		}
		pctx.Logger.Debug("Applied canvas batch", slog.Int("applied", applied), slog.Int("received", len(cells)))
		return nil
	}

	c, err := cellFrom(r)
	if err != nil {
		return err
	}
	if !pctx.State.Grid.ApplyUpdate(c) {
		pctx.Logger.Debug("Ignoring out-of-range cell", slog.Int("x", c.X), slog.Int("y", c.Y))
	}
	return nil
}

func handleChat(pctx *pipeline.Cargo) error {
	r, err := parsePayload(pctx.Payload)
	if err != nil {
		return err
	}
	sender, err := requireString(r, "sender")
	if err != nil {
		return err
	}
	content, err := requireString(r, "content")
	if err != nil {
		return err
	}
	ts := pctx.Now.UnixMilli()
	if v := field(r, "timestampMs", "timestamp"); v.Exists() {
		ts, err = requireTimestamp(r, "timestampMs", "timestamp")
		if err != nil {
			return err
		}
	}

	kept := pctx.State.Chat.Append(chat.Message{Sender: sender, Content: content, TimestampMs: ts})
	if !kept {
		pctx.Logger.Debug("Dropped duplicate chat message", slog.String("sender", sender))
	}
	return nil
}

// handlePresence keys entries by sessionId when the peer sends one, and by
// display name otherwise. Own echoes are stored like any other peer.
func handlePresence(pctx *pipeline.Cargo) error {
	r, err := parsePayload(pctx.Payload)
	if err != nil {
		return err
	}
	name, err := requireString(r, "identity", "username")
	if err != nil {
		return err
	}
	x, err := requireNumber(r, "x")
	if err != nil {
		return err
	}
	y, err := requireNumber(r, "y")
	if err != nil {
		return err
	}
	key := optionalString(r, "sessionId")
	if key == "" {
		key = name
	}
	pctx.State.Presence.Upsert(key, name, x, y, pctx.Now)
	return nil
}

// handlePresenceRemoval accepts {sessionId}, {identity} or a bare string.
func handlePresenceRemoval(pctx *pipeline.Cargo) error {
	r, err := parsePayload(pctx.Payload)
	if err != nil {
		return err
	}
	if r.Type == gjson.String {
		if r.Str == "" {
			return fmt.Errorf("%w: empty identity", ErrMalformed)
		}
		pctx.State.Presence.RemoveByName(r.Str)
		return nil
	}
	if key := optionalString(r, "sessionId"); key != "" {
		pctx.State.Presence.Remove(key)
		return nil
	}
	name, err := requireString(r, "identity", "username")
	if err != nil {
		return err
	}
	pctx.State.Presence.RemoveByName(name)
	return nil
}

package terminal

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/arcweave/phantom/internal/logger"
)

// TickHz is the render pump's fixed tick rate (spec §4.5).
const TickHz = 60

// Sink receives events from a single session's render pump. It is called
// synchronously on the pump goroutine, so a sink that blocks delays the
// next tick; the pump neither coalesces nor drops frames for a slow sink.
type Sink func(Event)

// Pump drives one session's render loop at 60 Hz until the session exits
// or ctx is canceled. Grounded on the teacher's per-egg goroutine in
// internal/egg/server.go, generalized from a single replay-buffer writer
// to a typed-event tick loop with idle suppression.
//
// Pacing uses a token-bucket limiter (golang.org/x/time/rate) sized to
// exactly one token per tick period rather than a bare time.Ticker — the
// same primitive the teacher uses for relay bandwidth shaping
// (internal/relay/bandwidth.go), repurposed here to pace frame emission.
func Pump(ctx context.Context, sess *Session, sink Sink) {
	limiter := rate.NewLimiter(rate.Every(time.Second/TickHz), 1)
	log := logger.With("session_id", sess.ID)

	var lastTitle string
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		exited, err := sess.ReadAndAdvance()
		if exited {
			var exitCode *int
			if ce, ok := err.(interface{ ExitCode() int }); ok {
				if code := ce.ExitCode(); code >= 0 {
					exitCode = &code
				}
			}
			log.Info("session exited", "code", exitCode)
			sink(Event{SessionID: sess.ID, Kind: EventExited, ExitCode: exitCode})
			return
		}

		// Checked every tick regardless of DrainFrame's result: a title-only
		// change must surface on its own, with no accompanying frame (spec
		// §4.5), so it can't be gated behind idle suppression or FullFrame.
		if title := sess.Title(); title != lastTitle {
			lastTitle = title
			select {
			case <-ctx.Done():
				return
			default:
				sink(Event{SessionID: sess.ID, Kind: EventTitleChanged, Title: title})
			}
		}

		ev, ok := sess.DrainFrame()
		if !ok {
			continue // idle suppression: nothing changed this tick
		}

		select {
		case <-ctx.Done():
			return
		default:
			sink(ev)
		}
	}
}

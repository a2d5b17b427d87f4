package gemini

import (
	"github.com/naveo-ai/naveo-voice/pkg/audio"
	"github.com/naveo-ai/naveo-voice/pkg/provider/live"
)

// eventsFrom translates one parsed server message into zero or more events,
// preserving the order of the parts within the message. It is a pure function
// of the message: no transport, no state. Tool calls are not events — the
// receive loop dispatches those to the registered handler.
func eventsFrom(msg *serverMessage) []live.Event {
	var events []live.Event

	if msg.SetupComplete != nil {
		events = append(events, live.Event{Kind: live.KindOpened})
	}

	if msg.Error != nil {
		reason := msg.Error.Message
		if reason == "" {
			reason = "unknown server error"
		}
		events = append(events, live.Event{Kind: live.KindClosed, Reason: reason})
	}

	sc := msg.ServerContent
	if sc == nil {
		return events
	}

	// Audio and inline text of the model turn, in part order. The payload
	// stays base64-encoded; decoding to PCM is the consumer's concern.
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				events = append(events, live.Event{
					Kind:  live.KindAudio,
					Audio: audio.EncodedChunk{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data},
				})
			}
			if p.Text != "" {
				events = append(events, live.Event{Kind: live.KindTranscriptOut, Text: p.Text})
			}
		}
	}

	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		events = append(events, live.Event{Kind: live.KindTranscriptIn, Text: sc.InputTranscription.Text})
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		events = append(events, live.Event{Kind: live.KindTranscriptOut, Text: sc.OutputTranscription.Text})
	}

	// Interrupted before turnComplete: a barge-in flush must land before the
	// consumer finalizes the turn.
	if sc.Interrupted {
		events = append(events, live.Event{Kind: live.KindInterrupted})
	}
	if sc.TurnComplete {
		events = append(events, live.Event{Kind: live.KindTurnComplete})
	}

	return events
}

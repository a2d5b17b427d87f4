package gemini

import (
	"encoding/json"
	"testing"

	"github.com/naveo-ai/naveo-voice/pkg/provider/live"
)

func decodeMsg(t *testing.T, raw string) *serverMessage {
	t.Helper()
	var msg serverMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &msg
}

func kinds(events []live.Event) []live.EventKind {
	out := make([]live.EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestEventsFrom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []live.EventKind
	}{
		{
			name: "setup complete",
			raw:  `{"setupComplete": {}}`,
			want: []live.EventKind{live.KindOpened},
		},
		{
			name: "audio part",
			raw:  `{"serverContent": {"modelTurn": {"parts": [{"inlineData": {"mimeType": "audio/pcm;rate=24000", "data": "AAAA"}}]}}}`,
			want: []live.EventKind{live.KindAudio},
		},
		{
			name: "audio then text keeps part order",
			raw:  `{"serverContent": {"modelTurn": {"parts": [{"inlineData": {"mimeType": "audio/pcm;rate=24000", "data": "AAAA"}}, {"text": "hello"}]}}}`,
			want: []live.EventKind{live.KindAudio, live.KindTranscriptOut},
		},
		{
			name: "input transcription",
			raw:  `{"serverContent": {"inputTranscription": {"text": "book me a flight"}}}`,
			want: []live.EventKind{live.KindTranscriptIn},
		},
		{
			name: "output transcription",
			raw:  `{"serverContent": {"outputTranscription": {"text": "Sure, "}}}`,
			want: []live.EventKind{live.KindTranscriptOut},
		},
		{
			name: "empty transcription suppressed",
			raw:  `{"serverContent": {"inputTranscription": {"text": ""}}}`,
			want: nil,
		},
		{
			name: "turn complete",
			raw:  `{"serverContent": {"turnComplete": true}}`,
			want: []live.EventKind{live.KindTurnComplete},
		},
		{
			name: "interrupted precedes turn complete",
			raw:  `{"serverContent": {"interrupted": true, "turnComplete": true}}`,
			want: []live.EventKind{live.KindInterrupted, live.KindTurnComplete},
		},
		{
			name: "server error",
			raw:  `{"error": {"code": 8, "message": "quota exceeded"}}`,
			want: []live.EventKind{live.KindClosed},
		},
		{
			name: "tool call alone yields no events",
			raw:  `{"toolCall": {"functionCalls": [{"id": "1", "name": "send_to_chat", "args": {"query": "x"}}]}}`,
			want: nil,
		},
		{
			name: "empty inline data dropped",
			raw:  `{"serverContent": {"modelTurn": {"parts": [{"inlineData": {"mimeType": "audio/pcm;rate=24000", "data": ""}}]}}}`,
			want: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := eventsFrom(decodeMsg(t, tc.raw))
			if len(got) != len(tc.want) {
				t.Fatalf("got %d events %v, want %d %v", len(got), kinds(got), len(tc.want), tc.want)
			}
			for i := range got {
				if got[i].Kind != tc.want[i] {
					t.Errorf("event %d kind = %v, want %v", i, got[i].Kind, tc.want[i])
				}
			}
		})
	}
}

func TestEventsFromCarriesPayloads(t *testing.T) {
	t.Parallel()

	msg := decodeMsg(t, `{"serverContent": {"modelTurn": {"parts": [{"inlineData": {"mimeType": "audio/pcm;rate=24000", "data": "UENN"}}]}, "outputTranscription": {"text": "Paris it is."}}}`)
	events := eventsFrom(msg)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Audio.MIMEType != "audio/pcm;rate=24000" || events[0].Audio.Data != "UENN" {
		t.Errorf("audio event = %+v", events[0].Audio)
	}
	if events[1].Text != "Paris it is." {
		t.Errorf("transcript text = %q", events[1].Text)
	}
}

func TestEventsFromErrorReason(t *testing.T) {
	t.Parallel()

	events := eventsFrom(decodeMsg(t, `{"error": {"code": 13}}`))
	if len(events) != 1 || events[0].Kind != live.KindClosed {
		t.Fatalf("events = %v", kinds(events))
	}
	if events[0].Reason == "" {
		t.Error("closed event should carry a non-empty reason")
	}
}

// Package voice runs the session state machine at the centre of the duplex
// pipeline.
//
// The [Controller] owns one conversation at a time: it acquires the
// microphone, establishes the provider session, pumps inbound events into
// playback and the transcript log, and answers the model's send_to_chat tool
// calls via the chat backend. Session establishment is promise-gated — audio
// captured while the connection is still in flight is queued and replayed in
// order once the session resolves.
package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/naveo-ai/naveo-voice/internal/capture"
	"github.com/naveo-ai/naveo-voice/internal/chat"
	"github.com/naveo-ai/naveo-voice/internal/observe"
	"github.com/naveo-ai/naveo-voice/internal/playback"
	"github.com/naveo-ai/naveo-voice/internal/transcript"
	"github.com/naveo-ai/naveo-voice/pkg/audio"
	"github.com/naveo-ai/naveo-voice/pkg/provider/live"
)

// ErrSessionActive is returned by Start while a session is connecting or open.
var ErrSessionActive = errors.New("voice: session already active")

// ChatSender forwards one message to the chat backend. *chat.Client is the
// production implementation.
type ChatSender interface {
	Send(ctx context.Context, sessionID, message string) (*chat.Response, error)
}

// sendToChatTool is the single function declaration offered to the model:
// spoken travel requests are forwarded to the chat backend as text.
var sendToChatTool = live.FunctionDeclaration{
	Name:        "send_to_chat",
	Description: "Forward the user's travel request to the chat interface, which searches flights, hotels and routes and builds travel plans.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The user's travel request, phrased as a chat message.",
			},
		},
		"required": []any{"query"},
	},
}

// Config holds the conversational parameters of a session.
type Config struct {
	// Voice is the prebuilt voice name for synthesised replies.
	Voice string

	// SystemInstruction is the assistant persona prompt.
	SystemInstruction string
}

// Snapshot is the observable session state published to the UI.
type Snapshot struct {
	State      State              `json:"state"`
	Status     string             `json:"status"`
	Error      string             `json:"error,omitempty"`
	Recording  bool               `json:"recording"`
	PartialYou string             `json:"partial_you"`
	PartialAI  string             `json:"partial_ai"`
	Log        []transcript.Entry `json:"log"`
}

// Controller is the session state machine. All exported methods are safe for
// concurrent use.
type Controller struct {
	provider live.Provider
	chat     ChatSender
	sched    *playback.Scheduler
	acc      *transcript.Accumulator
	cap      *capture.Pipeline
	metrics  *observe.Metrics
	cfg      Config

	mu         sync.Mutex
	state      State
	status     string
	lastErr    string
	generation int
	sessionID  string
	future     *sessionFuture
	onChange   func(Snapshot)
}

// New wires a controller over the given provider, chat backend, capture
// device and playback sink.
func New(provider live.Provider, chatSender ChatSender, device audio.CaptureDevice, sink audio.Playback, metrics *observe.Metrics, cfg Config) *Controller {
	c := &Controller{
		provider: provider,
		chat:     chatSender,
		sched:    playback.NewScheduler(sink),
		acc:      transcript.New(),
		metrics:  metrics,
		cfg:      cfg,
		state:    StateUninitialized,
	}
	c.cap = capture.New(device, c.sendChunk, c.setStatus)
	return c
}

// OnChange registers the snapshot callback, invoked after every observable
// change. Passing nil clears it. The callback must not call back into the
// controller synchronously.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Start begins a conversation: acquires the microphone, then connects the
// provider session asynchronously. Audio captured before the session
// resolves is queued in order. Returns [ErrSessionActive] while a session is
// connecting or open, and the capture error when the microphone cannot be
// acquired (state goes to Failed, no connection is attempted).
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.generation++
	gen := c.generation
	c.sessionID = uuid.NewString()
	c.future = newSessionFuture()
	fut := c.future
	c.state = StateConnecting
	c.status = "Connecting..."
	c.lastErr = ""
	c.mu.Unlock()

	c.metrics.RecordStateChange(ctx, StateConnecting.String())
	c.notify()

	if err := c.cap.Start(ctx); err != nil {
		fut.fail(err)
		c.transition(gen, StateFailed, fmt.Sprintf("Error: %v", err), err.Error())
		return err
	}

	go c.connect(ctx, gen, fut)
	return nil
}

// connect establishes the provider session and resolves the future. Runs in
// its own goroutine; everything it touches is generation-guarded.
func (c *Controller) connect(ctx context.Context, gen int, fut *sessionFuture) {
	sess, err := c.provider.Connect(ctx, live.SessionConfig{
		Voice:               c.cfg.Voice,
		SystemInstruction:   c.cfg.SystemInstruction,
		Tools:               []live.FunctionDeclaration{sendToChatTool},
		InputTranscription:  true,
		OutputTranscription: true,
	})
	if err != nil {
		fut.fail(err)
		c.cap.Stop()
		c.transition(gen, StateFailed, fmt.Sprintf("Error: %v", err), err.Error())
		return
	}

	if !c.isCurrent(gen) {
		// A Stop or Reset won the race; this session belongs to a dead
		// generation and must not leak.
		fut.fail(errors.New("superseded"))
		sess.Close()
		return
	}

	sess.OnToolCall(func(call live.ToolCall) {
		go c.handleToolCall(ctx, gen, sess, call)
	})

	fut.resolve(sess)
	c.metrics.ActiveSessions.Add(ctx, 1)

	go c.pump(ctx, gen, sess)
}

// pump translates inbound session events into pipeline actions. Events from
// a superseded generation are discarded and the stale session is closed.
func (c *Controller) pump(ctx context.Context, gen int, sess live.SessionHandle) {
	defer c.metrics.ActiveSessions.Add(ctx, -1)

	for ev := range sess.Events() {
		if !c.isCurrent(gen) {
			sess.Close()
			for range sess.Events() {
			}
			return
		}

		switch ev.Kind {
		case live.KindOpened:
			c.transition(gen, StateOpen, "Connected - Ready to talk!", "")

		case live.KindAudio:
			c.metrics.ChunksReceived.Add(ctx, 1)
			f, err := audio.Decode(ev.Audio.Data, audio.PlaybackRate, 1)
			if err != nil {
				// Never fatal: drop the chunk, keep the conversation going.
				c.metrics.DecodeDrops.Add(ctx, 1)
				slog.Warn("dropping undecodable audio chunk", "err", err)
				continue
			}
			c.sched.Enqueue(f)
			c.metrics.PlaybackScheduled.Add(ctx, 1)

		case live.KindTranscriptIn:
			c.acc.AppendYou(ev.Text)
			c.notify()

		case live.KindTranscriptOut:
			c.acc.AppendAI(ev.Text)
			c.notify()

		case live.KindTurnComplete:
			c.acc.FinalizeTurn()
			c.notify()

		case live.KindInterrupted:
			c.sched.Interrupt()
			c.metrics.Interrupts.Add(ctx, 1)

		case live.KindClosed:
			reason := ev.Reason
			if reason == "" {
				reason = "connection closed"
			}
			c.transition(gen, StateClosed, "Disconnected: "+reason, "")
		}
	}

	// Channel closed without a terminal event reaching us.
	c.mu.Lock()
	stillOpen := c.generation == gen && (c.state == StateOpen || c.state == StateConnecting)
	c.mu.Unlock()
	if stillOpen {
		c.transition(gen, StateClosed, "Disconnected", "")
	}
}

// handleToolCall answers one send_to_chat invocation. Runs in its own
// goroutine; the chat round-trip must not block the receive loop.
func (c *Controller) handleToolCall(ctx context.Context, gen int, sess live.SessionHandle, call live.ToolCall) {
	if call.Name != sendToChatTool.Name {
		c.metrics.RecordToolCall(ctx, call.Name, "unsupported")
		_ = sess.SendToolResponse(call.ID, call.Name, map[string]any{
			"error": fmt.Sprintf("unknown tool %q", call.Name),
		})
		return
	}

	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Args), &args); err != nil || args.Query == "" {
		c.metrics.RecordToolCall(ctx, call.Name, "bad_args")
		_ = sess.SendToolResponse(call.ID, call.Name, map[string]any{
			"error": "missing query argument",
		})
		return
	}

	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()

	start := time.Now()
	resp, err := c.chat.Send(ctx, sessionID, args.Query)
	if err != nil {
		c.metrics.RecordChatRequest(ctx, "error", time.Since(start).Seconds())
		c.metrics.RecordToolCall(ctx, call.Name, "error")
		slog.Warn("chat backend call failed", "err", err, "query", args.Query)
		_ = sess.SendToolResponse(call.ID, call.Name, map[string]any{
			"error": "chat backend unavailable",
		})
		return
	}

	c.metrics.RecordChatRequest(ctx, "ok", time.Since(start).Seconds())
	c.metrics.RecordToolCall(ctx, call.Name, "ok")
	if !c.isCurrent(gen) {
		return
	}
	_ = sess.SendToolResponse(call.ID, call.Name, map[string]any{
		"result": resp.Text,
	})
}

// sendChunk is the capture pipeline's send path: every encoded microphone
// chunk goes through the current session future.
func (c *Controller) sendChunk(chunk audio.EncodedChunk) error {
	c.mu.Lock()
	fut := c.future
	c.mu.Unlock()
	if fut == nil {
		return errors.New("voice: no session")
	}
	c.metrics.FramesSent.Add(context.Background(), 1)
	return fut.Send(chunk)
}

// Stop ends the conversation: releases the microphone, closes the session
// (queued if it has not resolved yet), and flushes playback. Idempotent.
func (c *Controller) Stop() {
	c.cap.Stop()

	c.mu.Lock()
	fut := c.future
	c.future = nil
	alreadyIdle := c.state == StateUninitialized || c.state == StateClosed
	c.generation++
	if !alreadyIdle {
		c.state = StateClosed
		c.status = "Disconnected"
	}
	c.mu.Unlock()

	if fut != nil {
		_ = fut.Close()
	}
	c.sched.Interrupt()

	if !alreadyIdle {
		c.metrics.RecordStateChange(context.Background(), StateClosed.String())
		c.notify()
	}
}

// Reset starts the conversation over: the current session is closed
// fire-and-forget, utterances and the conversation log are wiped, and a
// fresh session is established immediately without waiting for another
// start command. The generation bump invalidates any session still in
// flight.
func (c *Controller) Reset(ctx context.Context) {
	c.cap.Stop()

	c.mu.Lock()
	fut := c.future
	c.future = nil
	c.generation++
	c.state = StateUninitialized
	c.status = ""
	c.lastErr = ""
	c.mu.Unlock()

	if fut != nil {
		_ = fut.Close()
	}
	c.sched.Interrupt()
	c.acc.Reset()

	// The state is uninitialized at this point, so Start cannot refuse; its
	// only failure mode is microphone acquisition, which it reports through
	// the Failed state itself.
	if err := c.Start(ctx); err != nil {
		slog.Warn("reconnect after reset failed", "err", err)
	}
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		State:     c.state,
		Status:    c.status,
		Error:     c.lastErr,
		Recording: c.cap.Recording(),
	}
	c.mu.Unlock()

	snap.PartialYou, snap.PartialAI = c.acc.Partial()
	snap.Log = c.acc.Log()
	return snap
}

// PlaybackUnits exposes the live playback unit count.
func (c *Controller) PlaybackUnits() int {
	return c.sched.UnitCount()
}

// transition applies a state change if gen is still the live generation.
func (c *Controller) transition(gen int, state State, status, errMsg string) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.status = status
	c.lastErr = errMsg
	c.mu.Unlock()

	c.metrics.RecordStateChange(context.Background(), state.String())
	c.notify()
}

func (c *Controller) isCurrent(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.generation
}

// setStatus publishes a capture status line without changing state.
func (c *Controller) setStatus(status string) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(c.Snapshot())
	}
}

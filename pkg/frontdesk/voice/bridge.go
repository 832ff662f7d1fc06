// bridge.go relays audio and tool-call events between one telephony
// media-stream socket and one realtime completion socket. Each live call
// owns one Bridge; bridges share no mutable state.
package voice

import (
	"context"
	"log/slog"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/receptionist"
)

// bridgeState is the per-call lifecycle: connecting → streaming → closed.
type bridgeState int

const (
	stateConnecting bridgeState = iota
	stateStreaming
	stateClosed
)

// Bridge relays between the two sockets of one call. Two reader
// goroutines feed two channels consumed by a single event loop, so
// translation order is explicit and per-direction frame order is
// preserved — no buffering, no reordering.
type Bridge struct {
	telephony Conn
	realtime  Conn
	exec      *receptionist.ToolExecutor
	cfg       *receptionist.Config
	logger    *slog.Logger

	state     bridgeState
	streamSid string
	callSid   string
	caller    string
}

// NewBridge creates a bridge over an accepted telephony socket and a
// dialed realtime socket.
func NewBridge(telephony, realtime Conn, exec *receptionist.ToolExecutor, cfg *receptionist.Config, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		telephony: telephony,
		realtime:  realtime,
		exec:      exec,
		cfg:       cfg,
		logger:    logger.With("component", "voice-bridge"),
	}
}

// Run configures the realtime session, requests the greeting, then relays
// events until either socket closes or ctx is cancelled. Closing either
// side tears down the other; no media is relayed after close.
func (b *Bridge) Run(ctx context.Context) {
	defer b.close()

	if err := b.realtime.WriteJSON(buildSessionUpdate(b.cfg, b.exec.Definitions())); err != nil {
		b.logger.Error("realtime session configuration failed", "error", err)
		return
	}
	// Greet the caller immediately; the caller should never hear silence.
	if err := b.realtime.WriteJSON(responseCreate{Type: "response.create"}); err != nil {
		b.logger.Error("greeting request failed", "error", err)
		return
	}

	telephonyCh := make(chan *StreamEvent)
	realtimeCh := make(chan *RealtimeEvent)

	// done releases any reader parked on a channel send once Run returns;
	// closing the sockets alone cannot unblock a reader that has already
	// decoded an event.
	done := make(chan struct{})
	defer close(done)

	go readLoop(b.telephony, telephonyCh, done)
	go readLoop(b.realtime, realtimeCh, done)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-telephonyCh:
			if !ok {
				b.logger.Info("telephony socket closed", "call_sid", b.callSid)
				return
			}
			if done := b.handleTelephony(ctx, ev); done {
				return
			}

		case ev, ok := <-realtimeCh:
			if !ok {
				b.logger.Info("realtime socket closed", "call_sid", b.callSid)
				return
			}
			b.handleRealtime(ctx, ev)
		}
	}
}

// readLoop decodes events from a socket into a channel until read error
// or done closes, then closes the channel. Socket closure ends the read;
// done covers the window where an event was decoded but the event loop
// already exited and will never receive it.
func readLoop[T any](conn Conn, out chan<- *T, done <-chan struct{}) {
	defer close(out)
	for {
		ev := new(T)
		if err := conn.ReadJSON(ev); err != nil {
			return
		}
		select {
		case out <- ev:
		case <-done:
			return
		}
	}
}

// handleTelephony translates one telephony event. Returns true when the
// call is over.
func (b *Bridge) handleTelephony(ctx context.Context, ev *StreamEvent) bool {
	switch ev.Event {
	case "connected":
		// Protocol preamble; nothing to record yet.

	case "start":
		if ev.Start != nil {
			b.streamSid = ev.Start.StreamSid
			b.callSid = ev.Start.CallSid
			b.caller = ev.Start.CustomParameters["from"]
		}
		b.state = stateStreaming
		b.logger.Info("media stream started",
			"stream_sid", b.streamSid, "call_sid", b.callSid)

	case "media":
		if ev.Media == nil || b.state != stateStreaming {
			return false
		}
		if err := b.realtime.WriteJSON(audioAppend{
			Type:  "input_audio_buffer.append",
			Audio: ev.Media.Payload,
		}); err != nil {
			b.logger.Error("audio forward failed", "error", err)
			return true
		}

	case "stop":
		b.logger.Info("media stream stopped", "call_sid", b.callSid)
		return true
	}
	return false
}

// handleRealtime translates one completion-service event.
func (b *Bridge) handleRealtime(ctx context.Context, ev *RealtimeEvent) {
	switch ev.Type {
	case "response.audio.delta":
		if b.state != stateStreaming || b.streamSid == "" {
			return
		}
		if err := b.telephony.WriteJSON(outboundMedia{
			Event:     "media",
			StreamSid: b.streamSid,
			Media:     outboundChunk{Payload: ev.Delta},
		}); err != nil {
			b.logger.Error("audio relay failed", "error", err)
		}

	case "response.function_call_arguments.done":
		b.dispatchTool(ctx, ev)

	case "response.audio_transcript.done":
		b.logger.Debug("assistant said", "transcript", ev.Transcript)

	case "conversation.item.input_audio_transcription.completed":
		b.logger.Debug("caller said", "transcript", ev.Transcript)

	case "error":
		// The call continues degraded; never crash the bridge.
		msg := ""
		if ev.Error != nil {
			msg = ev.Error.Message
		}
		b.logger.Error("realtime error event", "call_sid", b.callSid, "message", msg)
	}
}

// dispatchTool executes a completed tool call, pushes the result back as
// a function output item and asks the model to continue.
func (b *Bridge) dispatchTool(ctx context.Context, ev *RealtimeEvent) {
	ctx = receptionist.ContextWithCall(ctx, receptionist.CallInfo{
		Channel:     "voice",
		CallerPhone: b.caller,
		CallID:      b.callSid,
	})

	result := b.exec.Execute(ctx, receptionist.ToolCall{
		ID:   ev.CallID,
		Type: "function",
		Function: receptionist.FunctionCall{
			Name:      ev.Name,
			Arguments: ev.Arguments,
		},
	})

	if err := b.realtime.WriteJSON(itemCreate{
		Type: "conversation.item.create",
		Item: conversationItem{
			Type:   "function_call_output",
			CallID: ev.CallID,
			Output: result.Content,
		},
	}); err != nil {
		b.logger.Error("tool output push failed", "tool", ev.Name, "error", err)
		return
	}
	if err := b.realtime.WriteJSON(responseCreate{Type: "response.create"}); err != nil {
		b.logger.Error("continuation request failed", "error", err)
	}
}

// close tears down both sockets and marks the bridge closed.
func (b *Bridge) close() {
	b.state = stateClosed
	b.telephony.Close()
	b.realtime.Close()
	b.logger.Info("bridge closed", "call_sid", b.callSid)
}

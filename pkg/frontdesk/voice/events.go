// Package voice implements the realtime bridge between a telephony
// media-stream socket and the completion service's realtime socket.
// events.go defines both wire protocols.
package voice

import "encoding/json"

// ---------- Telephony media-stream protocol ----------

// StreamEvent is an inbound event on the telephony media-stream socket.
type StreamEvent struct {
	// Event is "connected", "start", "media", "stop" or "mark".
	Event     string       `json:"event"`
	StreamSid string       `json:"streamSid,omitempty"`
	Start     *StreamStart `json:"start,omitempty"`
	Media     *StreamMedia `json:"media,omitempty"`
}

// StreamStart carries the stream identity needed to address outbound
// audio frames back to the call.
type StreamStart struct {
	StreamSid  string `json:"streamSid"`
	AccountSid string `json:"accountSid"`
	CallSid    string `json:"callSid"`

	// CustomParameters are set by the voice webhook's TwiML; the bridge
	// reads the caller number from "from".
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// StreamMedia carries one base64-encoded audio frame.
type StreamMedia struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// outboundMedia is the media envelope echoed back to the telephony
// socket, tagged with the stream identifier.
type outboundMedia struct {
	Event     string         `json:"event"`
	StreamSid string         `json:"streamSid"`
	Media     outboundChunk  `json:"media"`
}

type outboundChunk struct {
	Payload string `json:"payload"`
}

// ---------- Realtime completion-service protocol ----------

// RealtimeEvent is an inbound event on the completion-service socket.
// One struct covers all event types; unused fields stay empty.
type RealtimeEvent struct {
	Type string `json:"type"`

	// Delta carries base64 audio for response.audio.delta events.
	Delta string `json:"delta,omitempty"`

	// Transcript is set on *audio_transcript.done and
	// input_audio_transcription.completed events.
	Transcript string `json:"transcript,omitempty"`

	// Name, Arguments and CallID describe a completed tool call
	// (response.function_call_arguments.done).
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	CallID    string `json:"call_id,omitempty"`

	// Error is set on error events.
	Error *RealtimeError `json:"error,omitempty"`
}

// RealtimeError describes an error event from the completion service.
type RealtimeError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// sessionUpdate configures the realtime session: voice, codecs,
// instructions, tool manifest and turn detection.
type sessionUpdate struct {
	Type    string          `json:"type"`
	Session realtimeSession `json:"session"`
}

type realtimeSession struct {
	Voice                   string              `json:"voice,omitempty"`
	Instructions            string              `json:"instructions,omitempty"`
	InputAudioFormat        string              `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string              `json:"output_audio_format,omitempty"`
	Temperature             float64             `json:"temperature,omitempty"`
	TurnDetection           *turnDetection      `json:"turn_detection,omitempty"`
	InputAudioTranscription *audioTranscription `json:"input_audio_transcription,omitempty"`
	Tools                   []realtimeTool      `json:"tools,omitempty"`
	Modalities              []string            `json:"modalities,omitempty"`
}

type turnDetection struct {
	Type string `json:"type"`
}

type audioTranscription struct {
	Model string `json:"model"`
}

// realtimeTool is the flat tool format of the realtime protocol
// (unlike chat completions, not nested under "function").
type realtimeTool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// responseCreate asks the model to produce (or continue) a response.
type responseCreate struct {
	Type string `json:"type"`
}

// audioAppend forwards one inbound audio frame to the model.
type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// itemCreate pushes a conversation item; the bridge uses it for tool
// outputs (type function_call_output).
type itemCreate struct {
	Type string           `json:"type"`
	Item conversationItem `json:"item"`
}

type conversationItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id,omitempty"`
	Output string `json:"output,omitempty"`
}

// realtime.go dials the completion service's realtime websocket and
// builds the session configuration message.
package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/receptionist"
)

// Conn is a JSON-message websocket, satisfied by *websocket.Conn and by
// test fakes. Both bridge sockets use this shape.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// DialRealtime opens the realtime completion socket for one call.
func DialRealtime(ctx context.Context, cfg *receptionist.Config) (Conn, error) {
	if cfg.API.APIKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}

	base := cfg.API.RealtimeURL
	if base == "" {
		base = "wss://api.openai.com/v1/realtime"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing realtime URL: %w", err)
	}
	q := u.Query()
	q.Set("model", cfg.RealtimeModel)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.API.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime dial failed: %w", err)
	}
	return conn, nil
}

// buildSessionUpdate assembles the session.update message: voice, g711
// audio both ways, system instructions, tool manifest and server VAD.
func buildSessionUpdate(cfg *receptionist.Config, tools []receptionist.ToolDefinition) sessionUpdate {
	rtTools := make([]realtimeTool, 0, len(tools))
	for _, t := range tools {
		rtTools = append(rtTools, realtimeTool{
			Type:        "function",
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  json.RawMessage(t.Function.Parameters),
		})
	}

	return sessionUpdate{
		Type: "session.update",
		Session: realtimeSession{
			Voice:             cfg.Voice,
			Instructions:      cfg.Instructions,
			InputAudioFormat:  "g711_ulaw",
			OutputAudioFormat: "g711_ulaw",
			Temperature:       0.8,
			Modalities:        []string{"text", "audio"},
			TurnDetection:     &turnDetection{Type: "server_vad"},
			InputAudioTranscription: &audioTranscription{
				Model: "whisper-1",
			},
			Tools: rtTools,
		},
	}
}

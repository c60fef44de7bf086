package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"pingpal/backend/internal/models"
	"pingpal/backend/internal/presence"
	"pingpal/backend/internal/registry"
	"pingpal/backend/internal/relationship"

	"github.com/gorilla/websocket"
)

// Handlers receives decoded events from the stream. Nil fields are skipped.
type Handlers struct {
	OnPresence       func(presence.PresencePayload)
	OnMessage        func(models.Message)
	OnInviteReceived func(relationship.InviteView)
	OnInviteAccepted func(relationship.DecisionPayload)
	OnInviteDeclined func(relationship.DecisionPayload)
}

// Stream is a live websocket connection to the server's event feed.
type Stream struct {
	conn *websocket.Conn
}

// Connect dials the event stream using the client's access token. The caller
// owns the returned Stream and must Close it.
func (c *Client) Connect(ctx context.Context) (*Stream, error) {
	wsURL := strings.TrimSuffix(c.baseURL, "/api/v1")
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL += "/ws?token=" + url.QueryEscape(c.Token)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	return &Stream{conn: conn}, nil
}

// Listen reads events until the connection drops or ctx is cancelled, and
// dispatches each one to the matching handler. Unknown event types are
// ignored so old clients survive new server versions.
func (s *Stream) Listen(ctx context.Context, h Handlers) error {
	go func() {
		<-ctx.Done()
		s.conn.SetReadDeadline(time.Now())
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var envelope struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			continue
		}

		switch envelope.Type {
		case registry.EventPresenceUpdated:
			if h.OnPresence != nil {
				var p presence.PresencePayload
				if json.Unmarshal(envelope.Payload, &p) == nil {
					h.OnPresence(p)
				}
			}
		case registry.EventMessageReceived:
			if h.OnMessage != nil {
				var m models.Message
				if json.Unmarshal(envelope.Payload, &m) == nil {
					h.OnMessage(m)
				}
			}
		case registry.EventInviteReceived:
			if h.OnInviteReceived != nil {
				var inv relationship.InviteView
				if json.Unmarshal(envelope.Payload, &inv) == nil {
					h.OnInviteReceived(inv)
				}
			}
		case registry.EventInviteAccepted:
			if h.OnInviteAccepted != nil {
				var d relationship.DecisionPayload
				if json.Unmarshal(envelope.Payload, &d) == nil {
					h.OnInviteAccepted(d)
				}
			}
		case registry.EventInviteDeclined:
			if h.OnInviteDeclined != nil {
				var d relationship.DecisionPayload
				if json.Unmarshal(envelope.Payload, &d) == nil {
					h.OnInviteDeclined(d)
				}
			}
		}
	}
}

// Close tears down the websocket connection.
func (s *Stream) Close() error {
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}

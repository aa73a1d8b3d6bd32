package relay

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/websocket"
)

func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	conn, err := upgrade(w, r)
	if err != nil {
		h.log.Debug().Err(err).Msg("relay: websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Calls on one connection are served strictly one at a time.
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug().Err(err).Msg("relay: websocket read ended")
			}
			return
		}
		var frame Frame
		if err := json.Unmarshal(payload, &frame); err != nil || frame.Type != FrameChat {
			if werr := writeFrame(conn, Frame{Type: FrameError, Code: CodeMalformed, Message: msgInternal}); werr != nil {
				return
			}
			continue
		}
		if err := h.serveWSCall(r, conn, ChatRequest{Messages: frame.Messages, Model: frame.Model}); err != nil {
			h.log.Debug().Err(err).Msg("relay: websocket write failed")
			return
		}
	}
}

// serveWSCall relays one call. Every call ends with exactly one done or error
// frame. The returned error is a transport failure only.
func (h *Handler) serveWSCall(r *http.Request, conn *websocket.Conn, req ChatRequest) error {
	stream, err := h.relay.Open(r.Context(), req)
	if err != nil {
		h.log.Warn().Err(err).Msg("relay: websocket call failed before first chunk")
		return writeFrame(conn, errorFrame(err))
	}
	defer stream.Close()

	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			return writeFrame(conn, Frame{Type: FrameDone, Usage: stream.Usage()})
		}
		if err != nil {
			h.log.Warn().Err(err).Int("chunks", stream.Chunks()).Msg("relay: websocket stream failed mid-response")
			return writeFrame(conn, errorFrame(err))
		}
		if err := writeFrame(conn, Frame{Type: FrameChunk, Text: chunk}); err != nil {
			return err
		}
	}
}

func errorFrame(err error) Frame {
	code := Code(err)
	msg := msgInternal
	if code == CodeTimeout {
		msg = msgRequestTimeout
	}
	return Frame{Type: FrameError, Code: code, Message: msg}
}

func upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return upgrader.Upgrade(w, r, nil)
}

func writeFrame(conn *websocket.Conn, f Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

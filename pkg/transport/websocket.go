package transport

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/archmcp/mcpd/pkg/logging"
	"github.com/archmcp/mcpd/pkg/protocol"
)

// upgrader permits any origin, for permissive cross-origin access from
// local tooling.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket runs a per-connection message loop: each text frame is
// parsed as an envelope and routed through the same dispatcher the HTTP
// adapter uses. The connection's closure is independent of any in-flight
// operation it triggered.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.ErrorField(err))
		return
	}
	defer conn.Close()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		req, err := protocol.DecodeRequest(data)
		if err != nil {
			s.writeWSError(conn, err)
			continue
		}

		resp := s.dispatcher.Dispatch(r.Context(), s.session, req)
		if resp == nil {
			continue
		}
		if err := s.writeWS(conn, resp); err != nil {
			return
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, resp *protocol.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) writeWSError(conn *websocket.Conn, decodeErr error) {
	resp := protocol.NewErrorResponse(nil, -32700, "Parse error", decodeErr.Error())
	_ = s.writeWS(conn, resp)
}

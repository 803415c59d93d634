package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/vanit/vanit/pkg/broadcast"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server pushes a route's event stream to websocket clients. Each connection
// gets its own hub subscription, so events arrive in publish order.
type Server struct {
	hub *broadcast.Hub
}

func NewServer(hub *broadcast.Hub) *Server {
	return &Server{hub: hub}
}

func (s *Server) Listen(listen string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleConnection)

	log.Info().Str("listen", listen).Msg("Starting websocket event server")

	return http.ListenAndServe(listen, mux)
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	routeName := r.URL.Query().Get("route")
	if routeName == "" {
		http.Error(w, "route query parameter is required", http.StatusBadRequest)
		return
	}

	connection, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}

	subscriber := s.hub.Subscribe(routeName)

	// Clients never send anything meaningful; the read pump only notices
	// disconnects. Unsubscribing closes the event channel and ends the
	// write loop.
	go func() {
		defer s.hub.Unsubscribe(subscriber)
		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for event := range subscriber.Events() {
		if err := connection.WriteJSON(event); err != nil {
			break
		}
	}

	s.hub.Unsubscribe(subscriber)
	connection.Close()
}

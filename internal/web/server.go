package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prompted365/hive/internal/config"
	"github.com/prompted365/hive/internal/coord"
	"github.com/prompted365/hive/internal/event"
	"github.com/prompted365/hive/internal/store"
)

type Server struct {
	coord     *coord.Coordinator
	store     *store.Store
	bus       *event.Bus
	hub       *Hub
	cfg       config.WebConfig
	version   string
	startedAt time.Time
}

func NewServer(c *coord.Coordinator, s *store.Store, bus *event.Bus, cfg config.WebConfig, version string) *Server {
	return &Server{
		coord:     c,
		store:     s,
		bus:       bus,
		hub:       NewHub(),
		cfg:       cfg,
		version:   version,
		startedAt: time.Now(),
	}
}

func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	// Forward coordination events to connected websocket clients.
	s.subscribeEvents()

	mux := http.NewServeMux()

	s.registerAPI(mux)

	mux.HandleFunc("/api/ws", s.handleWebSocket)

	handler := s.withMiddleware(mux)
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	server := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	slog.Info("web server listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) subscribeEvents() {
	if s.bus == nil {
		return
	}
	for _, pattern := range []string{"agent:*", "swarm:*", "task:*"} {
		s.bus.Subscribe(pattern, func(ev event.Event) {
			s.hub.Broadcast(Event{Type: ev.Type, Payload: ev.Data})
		})
	}
}

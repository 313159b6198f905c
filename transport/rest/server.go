package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rocketscienceinc/ultimatettt-backend/internal/entity"
)

type gameManager interface {
	CreateRoom(ctx context.Context, displayName, connectionID string) entity.Snapshot
	JoinRoom(ctx context.Context, roomID, displayName, connectionID string) (entity.Snapshot, error)
	RejoinRoom(ctx context.Context, roomID string, playerNumber int, displayName, connectionID string) (entity.Snapshot, error)
	GetRoom(ctx context.Context, roomID string) (entity.Snapshot, error)
	MakeMove(ctx context.Context, roomID string, playerNumber int, move entity.Move) (entity.Snapshot, error)
	RestartGame(ctx context.Context, roomID string) (int, error)
}

// Server is the polling binding of the room protocol: one POST endpoint
// dispatching on an action field, the way the original client polls.
// Peer notifications are discovered on the next get-room poll.
type Server struct {
	logger  *slog.Logger
	manager gameManager
	metrics http.Handler
}

func New(logger *slog.Logger, manager gameManager, metricsHandler http.Handler) *Server {
	return &Server{
		logger:  logger.With("component", "rest"),
		manager: manager,
		metrics: metricsHandler,
	}
}

// Start - serves until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", that.pingHandler)
	mux.HandleFunc("/api/rooms", that.roomsHandler)
	if that.metrics != nil {
		mux.Handle("/metrics", that.metrics)
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down http server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) pingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

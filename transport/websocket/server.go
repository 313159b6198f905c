package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/ultimatettt-backend/internal/entity"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/metrics"
)

type gameManager interface {
	CreateRoom(ctx context.Context, displayName, connectionID string) entity.Snapshot
	JoinRoom(ctx context.Context, roomID, displayName, connectionID string) (entity.Snapshot, error)
	RejoinRoom(ctx context.Context, roomID string, playerNumber int, displayName, connectionID string) (entity.Snapshot, error)
	MakeMove(ctx context.Context, roomID string, playerNumber int, move entity.Move) (entity.Snapshot, error)
	RestartGame(ctx context.Context, roomID string) (int, error)
	Disconnect(ctx context.Context, roomID string, playerNumber int) error
	GetOrCreateSession(ctx context.Context, sessionID, displayName string) (*entity.Session, error)
}

type seatKey struct {
	roomID       string
	playerNumber int
}

// connection is one upgraded client. Writes are serialized per
// connection; gorilla allows only one concurrent writer.
type connection struct {
	id string
	ws *websocket.Conn

	writeMu sync.Mutex

	roomID       string
	playerNumber int
}

// Server is the push binding of the room protocol. It implements
// usecase.Notifier: peer events are delivered on the opponent's open
// connection instead of waiting for a poll.
type Server struct {
	logger  *slog.Logger
	manager gameManager
	metrics *metrics.Metrics

	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*connection
	seats map[seatKey]string

	handlers map[string]func(ctx context.Context, conn *connection, payload *Payload) error
}

func New(logger *slog.Logger, manager gameManager, m *metrics.Metrics) *Server {
	server := &Server{
		logger:  logger.With("component", "websocket"),
		manager: manager,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[string]*connection),
		seats: make(map[seatKey]string),
	}

	server.handlers = map[string]func(context.Context, *connection, *Payload) error{
		actionConnect:     server.handleConnect,
		actionCreateRoom:  server.handleCreateRoom,
		actionJoinRoom:    server.handleJoinRoom,
		actionRejoinRoom:  server.handleRejoinRoom,
		actionMakeMove:    server.handleMakeMove,
		actionRestartGame: server.handleRestartGame,
	}

	return server
}

// Start - starts the WebSocket server and serves until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 0, // websocket connections are long-lived
		IdleTimeout: 0,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down websocket server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Handler - the upgrade endpoint, exported for tests.
func (that *Server) Handler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})
}

func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	ws, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	conn := &connection{
		id: uuid.NewString(),
		ws: ws,
	}

	that.mu.Lock()
	that.conns[conn.id] = conn
	that.mu.Unlock()

	that.metrics.ConnectedClients.Inc()
	log.Info("websocket connection established", "connectionID", conn.id)

	defer that.closeConnection(ctx, conn)

	that.readLoop(ctx, conn)
}

func (that *Server) readLoop(ctx context.Context, conn *connection) {
	log := that.logger.With("method", "readLoop", "connectionID", conn.id)

	for {
		var message Message
		if err := conn.ws.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error("error reading message", "error", err)
			}
			return
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			that.sendError(conn, "", "unknown action")
			continue
		}

		var payload Payload
		if len(message.Payload) > 0 {
			if err := json.Unmarshal(message.Payload, &payload); err != nil {
				log.Error("failed to unmarshal payload", "error", err)
				that.sendError(conn, "", "invalid payload")
				continue
			}
		}

		if err := handler(ctx, conn, &payload); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// closeConnection - drops the connection and, if it held a seat, starts
// the disconnect grace path. The seat binding is kept so a rejoin can
// reclaim it.
func (that *Server) closeConnection(ctx context.Context, conn *connection) {
	_ = conn.ws.Close()
	that.metrics.ConnectedClients.Dec()

	that.mu.Lock()
	delete(that.conns, conn.id)

	roomID, playerNumber := conn.roomID, conn.playerNumber
	if roomID != "" {
		key := seatKey{roomID: roomID, playerNumber: playerNumber}
		if that.seats[key] == conn.id {
			delete(that.seats, key)
		}
	}
	that.mu.Unlock()

	if roomID == "" {
		return
	}

	if err := that.manager.Disconnect(ctx, roomID, playerNumber); err != nil {
		that.logger.Error("failed to mark disconnect", "roomID", roomID, "playerNumber", playerNumber, "error", err)
	}

	that.logger.Info("player disconnected", "roomID", roomID, "playerNumber", playerNumber)
}

// bindSeat - associates the connection with a room seat for routing.
func (that *Server) bindSeat(conn *connection, roomID string, playerNumber int) {
	that.mu.Lock()
	defer that.mu.Unlock()

	conn.roomID = roomID
	conn.playerNumber = playerNumber
	that.seats[seatKey{roomID: roomID, playerNumber: playerNumber}] = conn.id
}

// NotifyPlayer - implements usecase.Notifier. Events for seats without
// a live connection are dropped; the client catches up on rejoin.
func (that *Server) NotifyPlayer(roomID string, playerNumber int, event string, payload any) {
	that.mu.RLock()
	connID, ok := that.seats[seatKey{roomID: roomID, playerNumber: playerNumber}]
	conn := that.conns[connID]
	that.mu.RUnlock()

	if !ok || conn == nil {
		return
	}

	if err := that.send(conn, event, payload); err != nil {
		that.logger.Error("failed to push event", "roomID", roomID, "playerNumber", playerNumber, "event", event, "error", err)
	}
}

func (that *Server) send(conn *connection, action string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	conn.writeMu.Lock()
	defer conn.writeMu.Unlock()

	if err = conn.ws.WriteJSON(Message{Action: action, Payload: body}); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *Server) sendError(conn *connection, kind, message string) {
	if err := that.send(conn, eventError, Payload{Error: message, Kind: kind}); err != nil {
		that.logger.Error("failed to send error response", "error", err)
	}
}

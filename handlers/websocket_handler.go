package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Dosada05/pong-tournaments/middleware"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/realtime"
	"github.com/Dosada05/pong-tournaments/rooms"
	"github.com/Dosada05/pong-tournaments/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin проверяется CORS-политикой на уровне роутера.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Режимы подключения к турниру.
const (
	modeJoin      = "join"
	modeReconnect = "reconnect"
	modeSpectate  = "spectate"
)

var errUnknownMode = errors.New("unknown connection mode")

// RoomHost is the part of the rooms registry the websocket handler needs.
type RoomHost interface {
	Acquire(id int) (*rooms.Room, error)
}

// WebSocketHandler binds websocket connections to game rooms and tournaments
// and routes their inbound messages.
type WebSocketHandler struct {
	rooms             RoomHost
	tournamentService services.TournamentService
	hub               *realtime.Hub
	logger            *slog.Logger
}

func NewWebSocketHandler(rh RoomHost, ts services.TournamentService, hub *realtime.Hub, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		rooms:             rh,
		tournamentService: ts,
		hub:               hub,
		logger:            logger.With(slog.String("component", "websocket")),
	}
}

func (h *WebSocketHandler) upgrade(w http.ResponseWriter, r *http.Request, channel string) (*realtime.Client, bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту HTTP-ошибкой.
		h.logger.Warn("failed to upgrade connection", slog.String("channel", channel), slog.Any("error", err))
		return nil, false
	}
	client := realtime.NewClient(conn, h.logger)
	h.hub.Register(client, channel)
	go client.WritePump()
	return client, true
}

// reject sends one error frame and closes the connection.
func (h *WebSocketHandler) reject(client *realtime.Client, err error) {
	_ = client.Send(models.NewError(mapServiceErrorToMessage(h.logger, err)))
	client.Close()
	h.hub.Unregister(client)
}

func decodeInbound(data []byte) (models.InboundMessage, error) {
	var msg models.InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	if msg.Type == "" {
		return msg, errors.New("message type is required")
	}
	return msg, nil
}

// ServeGameWs обрабатывает /ws/games/{gameID}?reconnect=true
func (h *WebSocketHandler) ServeGameWs(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.GetIdentityFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	gameID, err := strconv.Atoi(chi.URLParam(r, "gameID"))
	if err != nil || gameID <= 0 {
		badRequestResponse(w, r, errors.New("invalid gameID"))
		return
	}
	reconnect := r.URL.Query().Get("reconnect") == "true"

	client, ok := h.upgrade(w, r, "game:"+strconv.Itoa(gameID))
	if !ok {
		return
	}
	logger := h.logger.With(slog.Int("game_id", gameID), slog.String("player_id", identity.ID))

	room, err := h.rooms.Acquire(gameID)
	if err != nil {
		h.reject(client, err)
		return
	}
	side, err := room.Attach(identity.ID, client)
	if err != nil {
		logger.Info("game connection rejected", slog.Any("error", err))
		h.reject(client, err)
		return
	}
	_ = client.Send(models.Encode(models.ConnectedMessage{
		Type:      models.MsgConnected,
		PlayerID:  identity.ID,
		GameID:    gameID,
		Side:      side,
		Reconnect: reconnect,
	}))
	logger.Info("game connection established", slog.Int("side", side), slog.Bool("reconnect", reconnect))

	client.ReadPump(func(data []byte) {
		msg, err := decodeInbound(data)
		if err != nil {
			_ = client.Send(models.NewError("invalid message format"))
			return
		}
		if msg.Type == models.MsgPing {
			_ = client.Send(models.NewSimple(models.MsgPong))
			return
		}
		if err := room.HandleMessage(identity.ID, msg); err != nil {
			_ = client.Send(models.NewError(mapServiceErrorToMessage(logger, err)))
		}
	}, func() {
		room.Detach(identity.ID, client)
		h.hub.Unregister(client)
		logger.Info("game connection closed")
	})
}

// ServeTournamentWs обрабатывает /ws/tournaments/{tournamentID}?mode=join|reconnect|spectate
func (h *WebSocketHandler) ServeTournamentWs(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.GetIdentityFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	tournamentID := chi.URLParam(r, "tournamentID")
	if tournamentID == "" {
		badRequestResponse(w, r, errors.New("missing tournamentID"))
		return
	}
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = modeJoin
	}

	client, ok := h.upgrade(w, r, "tournament:"+tournamentID)
	if !ok {
		return
	}
	logger := h.logger.With(
		slog.String("tournament_id", tournamentID),
		slog.String("player_id", identity.ID),
		slog.String("mode", mode))

	var snapshot *models.TournamentSnapshot
	switch mode {
	case modeJoin:
		snapshot, err = h.tournamentService.Join(tournamentID, models.Player{
			ID:          identity.ID,
			DisplayName: identity.DisplayName,
			Avatar:      identity.Avatar,
			Skill:       identity.Skill,
		}, client)
	case modeReconnect:
		snapshot, err = h.tournamentService.Reconnect(tournamentID, identity.ID, client)
	case modeSpectate:
		snapshot, err = h.tournamentService.Spectate(tournamentID, identity.ID, client)
	default:
		err = errUnknownMode
	}
	if err != nil {
		logger.Info("tournament connection rejected", slog.Any("error", err))
		if errors.Is(err, errUnknownMode) {
			_ = client.Send(models.NewError(err.Error()))
			client.Close()
			h.hub.Unregister(client)
			return
		}
		h.reject(client, err)
		return
	}

	_ = client.Send(models.Encode(models.ConnectedMessage{
		Type:         models.MsgConnected,
		PlayerID:     identity.ID,
		TournamentID: tournamentID,
		Reconnect:    mode == modeReconnect,
		Spectator:    mode == modeSpectate,
	}))
	_ = client.Send(models.Encode(models.SnapshotMessage{Type: models.MsgTournamentState, Snapshot: snapshot}))
	logger.Info("tournament connection established")

	if mode == modeSpectate {
		client.ReadPump(func(data []byte) {
			if msg, err := decodeInbound(data); err == nil && msg.Type == models.MsgPing {
				_ = client.Send(models.NewSimple(models.MsgPong))
				return
			}
			_ = client.Send(models.NewError("spectators can only send ping"))
		}, func() {
			h.tournamentService.RemoveSpectator(tournamentID, identity.ID)
			h.hub.Unregister(client)
		})
		return
	}

	client.ReadPump(func(data []byte) {
		h.handleTournamentMessage(client, logger, tournamentID, identity.ID, data)
	}, func() {
		h.tournamentService.Disconnect(tournamentID, identity.ID, client)
		h.hub.Unregister(client)
		logger.Info("tournament connection closed")
	})
}

func (h *WebSocketHandler) handleTournamentMessage(client *realtime.Client, logger *slog.Logger, tournamentID, playerID string, data []byte) {
	msg, err := decodeInbound(data)
	if err != nil {
		_ = client.Send(models.NewError("invalid message format"))
		return
	}

	switch msg.Type {
	case models.MsgPlayerReady:
		err = h.tournamentService.SetReady(tournamentID, playerID)
	case models.MsgTournamentStart:
		err = h.tournamentService.Start(tournamentID, playerID)
	case models.MsgMatchReady:
		var assignment *services.MatchAssignment
		assignment, err = h.tournamentService.RequestMatch(tournamentID, playerID)
		if err == nil {
			if assignment.Assignment != nil {
				_ = client.Send(models.Encode(assignment.Assignment))
			} else {
				_ = client.Send(models.NewSimple(assignment.Status))
			}
		}
	case models.MsgChat:
		err = h.tournamentService.Chat(tournamentID, playerID, msg.Text)
	case models.MsgTournamentLeave:
		if err = h.tournamentService.Leave(tournamentID, playerID); err == nil {
			logger.Info("player left tournament on request")
			client.Close()
		}
	case models.MsgPing:
		_ = client.Send(models.NewSimple(models.MsgPong))
	default:
		_ = client.Send(models.NewError("unknown message type: " + msg.Type))
		return
	}

	if err != nil {
		_ = client.Send(models.NewError(mapServiceErrorToMessage(logger, err)))
	}
}

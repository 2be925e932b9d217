package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/airbridge/modules/broadcast"
	"github.com/example/airbridge/modules/collab"
	"github.com/example/airbridge/modules/files"
)

// setupRoutes sets up all HTTP and WebSocket routes.
func (m *APIModule) setupRoutes() {
	m.app.Get("/health", m.healthHandler)
	m.app.Post("/upload", m.uploadHandler)

	// WebSocket upgrade middleware
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handleWebSocket))

	// Static assets, including the uploads directory under /uploads.
	m.app.Static("/", "./public")
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":  "api",
			"clients": m.hub.ClientCount(),
		},
	})
}

// handleWebSocket owns one client connection: it registers the connection
// with the coordinator and the hub, then reads request frames until the
// connection drops.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	connID := uuid.New().String()
	ctx := context.Background()

	if _, err := m.collab.RegisterConn(ctx, connID); err != nil {
		m.logger.Error("Failed to register connection", "connID", connID, "error", err)
		c.Close()
		return
	}

	client := broadcast.NewClient(connID, c)
	m.hub.Register(client)

	defer func() {
		m.hub.Unregister(client)
		if err := m.collab.Disconnect(context.Background(), connID); err != nil {
			m.logger.Error("Failed to disconnect", "connID", connID, "error", err)
		}
		m.logger.Info("WebSocket disconnected", "connID", connID)
	}()

	if err := client.Send(connectConfirmedFrame{Type: "connect_confirmed", ID: connID}); err != nil {
		m.logger.Error("Failed to confirm connection", "connID", connID, "error", err)
		return
	}
	m.logger.Info("WebSocket connected", "connID", connID)

	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Error("WebSocket error", "connID", connID, "error", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msgBytes, &req); err != nil {
			m.sendError(client, "error", "Invalid message format")
			continue
		}

		m.handleRequest(ctx, client, connID, req)
	}
}

// handleRequest dispatches one request frame and writes exactly one ack.
func (m *APIModule) handleRequest(ctx context.Context, client *broadcast.Client, connID string, req wsRequest) {
	switch req.Type {
	case "create-room":
		m.handleCreateRoom(ctx, client, connID, req)
	case "join-room":
		m.handleJoinRoom(ctx, client, connID, req)
	case "sync-text":
		m.ackResult(client, req.Type, m.collab.SyncText(ctx, connID, req.Text))
	case "chat-message":
		m.ackResult(client, req.Type, m.collab.PostMessage(ctx, connID, req.Text, req.Timestamp))
	case "set-username":
		m.ackResult(client, req.Type, m.collab.SetUsername(ctx, connID, req.Username))
	case "file-share":
		m.handleFileShare(ctx, client, connID, req)
	default:
		m.sendError(client, "error", "Unknown message type: "+req.Type)
	}
}

func (m *APIModule) handleCreateRoom(ctx context.Context, client *broadcast.Client, connID string, req wsRequest) {
	snapshot, err := m.collab.CreateRoom(ctx, connID)
	if err != nil {
		m.sendError(client, req.Type, err.Error())
		return
	}
	m.hub.JoinRoom(connID, snapshot.RoomID)
	// The coordinator's count broadcast can fan out before the hub join
	// lands; deliver it directly so the creator always sees it. A duplicate
	// frame carries the same count and is harmless.
	m.sendFrame(client, userCountFrame{Type: "user-count", Count: 1})
	m.sendFrame(client, roomStateAck{
		Type:     req.Type,
		OK:       true,
		RoomID:   snapshot.RoomID,
		Text:     snapshot.Text,
		Messages: snapshot.Messages,
	})
}

func (m *APIModule) handleJoinRoom(ctx context.Context, client *broadcast.Client, connID string, req wsRequest) {
	// Validate up front so a malformed ID never disturbs hub membership.
	if err := collab.ValidateRoomID(req.RoomID); err != nil {
		m.sendError(client, req.Type, err.Error())
		return
	}

	// Move hub membership before the coordinator fans out join events so
	// this client observes its own user-count update.
	m.hub.JoinRoom(connID, req.RoomID)

	snapshot, err := m.collab.JoinRoom(ctx, connID, req.RoomID)
	if err != nil {
		// The coordinator has already removed this connection from its
		// previous room, so hub membership follows suit.
		if errors.Is(err, collab.ErrRoomNotFound) || errors.Is(err, collab.ErrRoomFull) {
			m.hub.LeaveRoom(connID)
		}
		m.sendError(client, req.Type, err.Error())
		return
	}
	m.sendFrame(client, roomStateAck{
		Type:     req.Type,
		OK:       true,
		RoomID:   req.RoomID,
		Text:     snapshot.Text,
		Messages: snapshot.Messages,
	})
}

func (m *APIModule) handleFileShare(ctx context.Context, client *broadcast.Client, connID string, req wsRequest) {
	if req.File == nil {
		m.sendError(client, req.Type, "Invalid file format")
		return
	}
	m.ackResult(client, req.Type, m.collab.ShareFile(ctx, connID, *req.File))
}

// ackResult answers a no-payload request with a success or error ack.
func (m *APIModule) ackResult(client *broadcast.Client, reqType string, err error) {
	if err != nil {
		m.sendError(client, reqType, err.Error())
		return
	}
	m.sendFrame(client, simpleAck{Type: reqType, OK: true})
}

func (m *APIModule) sendError(client *broadcast.Client, reqType, message string) {
	m.sendFrame(client, errorAck{Type: reqType, Error: message})
}

// sendFrame writes one frame to a client. Delivery failures are logged and
// swallowed; the read loop notices a dead connection on its own.
func (m *APIModule) sendFrame(client *broadcast.Client, payload any) {
	if err := client.Send(payload); err != nil {
		m.logger.Error("Failed to deliver frame", "connID", client.ID, "error", err)
	}
}

// uploadHandler handles POST /upload multipart requests.
func (m *APIModule) uploadHandler(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: files.ErrNoFile.Error(),
		})
	}

	if fileHeader.Size > files.MaxFileSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(ErrorResponse{
			Error: files.ErrFileTooLarge.Error(),
		})
	}

	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "Failed to read file data",
		})
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, files.MaxFileSize+1))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "Failed to read file data",
		})
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	stored, err := m.files.SaveFile(c.Context(), fileHeader.Filename, data, contentType)
	if err != nil {
		switch {
		case errors.Is(err, files.ErrNoFile):
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		case errors.Is(err, files.ErrFileTooLarge):
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(ErrorResponse{Error: err.Error()})
		case errors.Is(err, files.ErrTypeNotAllowed):
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		default:
			m.logger.Error("Upload failed", "filename", fileHeader.Filename, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
				Error: "Failed to store file",
			})
		}
	}

	return c.JSON(UploadResponse{
		Success:      true,
		Filename:     stored.Filename,
		OriginalName: stored.OriginalName,
		Size:         stored.Size,
		MimeType:     stored.MimeType,
	})
}

package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/sitefit/server/internal/auth"
	"github.com/sitefit/server/internal/cache"
	"github.com/sitefit/server/internal/config"
	"github.com/sitefit/server/internal/database"
	"github.com/sitefit/server/internal/edit"
	"github.com/sitefit/server/internal/geo"
	"github.com/sitefit/server/internal/implant"
	"github.com/sitefit/server/internal/performance"
	"github.com/sitefit/server/internal/ruleset"
)

const (
	// Supported WebSocket protocol versions
	ProtocolVersion1 = "sitefit-v1"

	// Default ping interval (30 seconds)
	defaultPingInterval = 30 * time.Second

	// Pong wait timeout (60 seconds)
	pongWait = 60 * time.Second

	// Write timeout (10 seconds)
	writeTimeout = 10 * time.Second
)

// WebSocketConnection represents an active WebSocket connection.
// sessions tracks the edit sessions opened on this connection so they
// can be torn down when the client disconnects; it is only touched from
// the connection's readPump goroutine.
type WebSocketConnection struct {
	conn     *websocket.Conn
	userID   int64
	username string
	role     string
	version  string
	send     chan []byte
	hub      *WebSocketHub
	sessions map[string]bool
}

// WebSocketHub manages all active WebSocket connections
type WebSocketHub struct {
	connections map[*WebSocketConnection]bool
	broadcast   chan []byte
	register    chan *WebSocketConnection
	unregister  chan *WebSocketConnection
	mu          sync.RWMutex
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// WebSocketError represents an error message sent over WebSocket
type WebSocketError struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		connections: make(map[*WebSocketConnection]bool),
		broadcast:   make(chan []byte, 256),
		register:    make(chan *WebSocketConnection),
		unregister:  make(chan *WebSocketConnection),
	}
}

// Run starts the hub's main loop
func (h *WebSocketHub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = true
			h.mu.Unlock()
			log.Printf("WebSocket connection registered: user_id=%d, version=%s", conn.userID, conn.version)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				close(conn.send)
			}
			h.mu.Unlock()
			log.Printf("WebSocket connection unregistered: user_id=%d", conn.userID)

		case message := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.connections {
				select {
				case conn.send <- message:
				default:
					close(conn.send)
					delete(h.connections, conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends a message to all connected clients. Used by the admin
// surface to tell open editors that cached rulesets were invalidated.
func (h *WebSocketHub) Broadcast(message []byte) {
	h.broadcast <- message
}

// WebSocketHandlers handles WebSocket connections
type WebSocketHandlers struct {
	hub         *WebSocketHub
	db          *sql.DB
	config      *config.Config
	jwtService  *auth.JWTService
	parcels     *database.ParcelStorage
	zoning      *database.ZoningStorage
	rulesets    *cache.RulesetCache
	editManager *edit.Manager
	profiler    *performance.Profiler
	upgrader    websocket.Upgrader
}

// NewWebSocketHandlers creates a new WebSocket handlers instance
func NewWebSocketHandlers(db *sql.DB, cfg *config.Config, rulesets *cache.RulesetCache, profiler *performance.Profiler) *WebSocketHandlers {
	jwtService := auth.NewJWTService(cfg)

	// Get allowed origins from config or use defaults
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}

	return &WebSocketHandlers{
		hub:         NewWebSocketHub(),
		db:          db,
		config:      cfg,
		jwtService:  jwtService,
		parcels:     database.NewParcelStorage(db),
		zoning:      database.NewZoningStorage(db),
		rulesets:    rulesets,
		editManager: edit.NewManager(),
		profiler:    profiler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				for _, allowed := range allowedOrigins {
					if origin == allowed {
						return true
					}
				}
				return false
			},
		},
	}
}

// HandleWebSocket handles WebSocket connection upgrades
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate the connection
	token, err := h.extractToken(r)
	if err != nil {
		log.Printf("WebSocket authentication failed: %v", err)
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	// Validate token
	claims, err := h.jwtService.ValidateAccessToken(token)
	if err != nil {
		log.Printf("WebSocket token validation failed: %v", err)
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	// Negotiate protocol version
	requestedVersions := r.Header.Get("Sec-WebSocket-Protocol")
	selectedVersion := h.negotiateVersion(requestedVersions)
	if selectedVersion == "" {
		log.Printf("WebSocket version negotiation failed: requested=%s", requestedVersions)
		http.Error(w, "Unsupported protocol version", http.StatusBadRequest)
		return
	}

	// Set the selected protocol version in response headers
	responseHeaders := http.Header{}
	responseHeaders.Set("Sec-WebSocket-Protocol", selectedVersion)

	// Upgrade connection
	conn, err := h.upgrader.Upgrade(w, r, responseHeaders)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	// Create connection object
	wsConn := &WebSocketConnection{
		conn:     conn,
		userID:   claims.UserID,
		username: claims.Username,
		role:     claims.Role,
		version:  selectedVersion,
		send:     make(chan []byte, 256),
		hub:      h.hub,
		sessions: make(map[string]bool),
	}

	// Register connection
	h.hub.register <- wsConn

	// Start connection handlers
	go wsConn.writePump()
	go wsConn.readPump(h)
}

// extractToken extracts JWT token from request (query param or header)
func (h *WebSocketHandlers) extractToken(r *http.Request) (string, error) {
	// Try query parameter first (common for WebSocket)
	token := r.URL.Query().Get("token")
	if token != "" {
		return token, nil
	}

	// Try Authorization header
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1], nil
		}
	}

	return "", fmt.Errorf("missing authentication token")
}

// negotiateVersion selects the highest supported protocol version
func (h *WebSocketHandlers) negotiateVersion(requested string) string {
	if requested == "" {
		// Default to v1 if no version specified
		return ProtocolVersion1
	}

	// Parse requested versions (comma-separated)
	requestedVersions := strings.Split(requested, ",")
	for i := range requestedVersions {
		requestedVersions[i] = strings.TrimSpace(requestedVersions[i])
	}

	// Supported versions in order (highest first)
	supportedVersions := []string{ProtocolVersion1}

	// Find highest mutually supported version
	for _, supported := range supportedVersions {
		for _, requested := range requestedVersions {
			if requested == supported {
				return supported
			}
		}
	}

	return ""
}

// readPump handles incoming messages from the WebSocket connection
func (c *WebSocketConnection) readPump(handlers *WebSocketHandlers) {
	defer func() {
		// Disconnecting tears down every edit session opened here.
		for id := range c.sessions {
			handlers.editManager.EndSession(id)
		}
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			log.Printf("Failed to close connection: %v", err)
		}
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Failed to set read deadline in pong handler: %v", err)
			return err
		}
		return nil
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		// Parse message
		var msg WebSocketMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			c.sendError("invalid_message", "Invalid message format", "InvalidMessageFormat")
			continue
		}

		// Handle message based on type
		handlers.handleMessage(c, &msg)
	}
}

// writePump handles outgoing messages to the WebSocket connection
func (c *WebSocketConnection) writePump() {
	ticker := time.NewTicker(defaultPingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			log.Printf("Failed to close connection: %v", err)
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Printf("Failed to set write deadline: %v", err)
				return
			}
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					log.Printf("Failed to write close message: %v", err)
				}
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(message); err != nil {
				if closeErr := w.Close(); closeErr != nil {
					log.Printf("Failed to close writer after write error: %v", closeErr)
				}
				return
			}

			// Send queued messages
			n := len(c.send)
			for i := 0; i < n; i++ {
				if _, err := w.Write([]byte{'\n'}); err != nil {
					if closeErr := w.Close(); closeErr != nil {
						log.Printf("Failed to close writer after write error: %v", closeErr)
					}
					return
				}
				if _, err := w.Write(<-c.send); err != nil {
					if closeErr := w.Close(); closeErr != nil {
						log.Printf("Failed to close writer after write error: %v", closeErr)
					}
					return
				}
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Printf("Failed to set write deadline for ping: %v", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendError sends an error message to the client
func (c *WebSocketConnection) sendError(id, errorMsg, code string) {
	errorResp := WebSocketError{
		Type:    "error",
		ID:      id,
		Error:   errorMsg,
		Message: errorMsg,
		Code:    code,
	}

	messageBytes, err := json.Marshal(errorResp)
	if err != nil {
		log.Printf("Failed to marshal error message: %v", err)
		return
	}

	select {
	case c.send <- messageBytes:
	default:
		log.Printf("Failed to send error message: channel full")
	}
}

// sendMessage marshals and queues a typed payload on the connection.
func (c *WebSocketConnection) sendMessage(msgType, id string, payload interface{}) {
	response := WebSocketMessage{
		Type: msgType,
		ID:   id,
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("Failed to marshal %s payload: %v", msgType, err)
			return
		}
		response.Data = data
	}

	responseBytes, err := json.Marshal(response)
	if err != nil {
		log.Printf("Failed to marshal %s response: %v", msgType, err)
		return
	}

	select {
	case c.send <- responseBytes:
	default:
		log.Printf("Failed to send %s: channel full", msgType)
	}
}

// handleMessage routes messages to appropriate handlers
func (h *WebSocketHandlers) handleMessage(conn *WebSocketConnection, msg *WebSocketMessage) {
	switch msg.Type {
	case "ping":
		h.handlePing(conn, msg)
	case "edit_start":
		h.handleEditStart(conn, msg)
	case "pointer_down":
		h.handlePointerDown(conn, msg)
	case "pointer_move":
		h.handlePointerMove(conn, msg)
	case "pointer_up":
		h.handlePointerUp(conn, msg)
	case "edit_end":
		h.handleEditEnd(conn, msg)
	default:
		conn.sendError(msg.ID, "Unknown message type", "UnknownMessageType")
	}
}

// handlePing responds to ping messages
func (h *WebSocketHandlers) handlePing(conn *WebSocketConnection, msg *WebSocketMessage) {
	conn.sendMessage("pong", msg.ID, nil)
}

// EditStartData is the payload for an edit_start message. The footprint
// is the polygon to edit, typically the one returned by the feasibility
// pipeline. When it is absent a fresh footprint is auto-placed inside
// the parcel's envelope from the placement parameters.
type EditStartData struct {
	ParcelID     string          `json:"parcel_id"`
	Jurisdiction string          `json:"jurisdiction"`
	Footprint    json.RawMessage `json:"footprint,omitempty"`

	FootprintAreaM2 float64 `json:"footprint_area_m2,omitempty"`
	Shape           string  `json:"shape,omitempty"`
	OrientationDeg  float64 `json:"orientation_deg,omitempty"`
}

// editFrame is the per-frame state sent back to the client: the
// committed footprint after envelope gating. A rejected frame simply
// re-sends the last committed polygon.
type editFrame struct {
	SessionID string          `json:"session_id"`
	Footprint json.RawMessage `json:"footprint"`
	AreaM2    float64         `json:"area_m2"`
	Mode      string          `json:"mode"`
}

// handleEditStart opens an interactive edit session on a parcel.
func (h *WebSocketHandlers) handleEditStart(conn *WebSocketConnection, msg *WebSocketMessage) {
	var req EditStartData
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		conn.sendError(msg.ID, "Invalid edit_start payload", "InvalidMessageFormat")
		return
	}
	if req.ParcelID == "" || req.Jurisdiction == "" {
		conn.sendError(msg.ID, "parcel_id and jurisdiction are required", "InvalidMessageFormat")
		return
	}

	parcel, err := h.parcels.GetParcel(req.Jurisdiction, req.ParcelID)
	if err != nil {
		log.Printf("Failed to read parcel mirror for edit session: %v", err)
		conn.sendError(msg.ID, "Failed to load parcel", "InternalError")
		return
	}
	if parcel == nil {
		// Editing presumes a prior feasibility run that mirrored the
		// parcel; a cold cache is a client ordering bug.
		conn.sendError(msg.ID, "Parcel is not mirrored; run the feasibility pipeline first", "ParcelNotMirrored")
		return
	}

	env := h.resolveEnvelope(req.Jurisdiction, req.ParcelID, parcel)

	footprint, err := h.initialFootprint(&req, env)
	if err != nil {
		conn.sendError(msg.ID, err.Error(), "InvalidMessageFormat")
		return
	}

	session, err := h.editManager.StartSession(conn.userID, env, footprint)
	if err != nil {
		conn.sendError(msg.ID, err.Error(), "InvalidEditRequest")
		return
	}
	conn.sessions[session.ID] = true

	payload := struct {
		SessionID string          `json:"session_id"`
		Footprint json.RawMessage `json:"footprint"`
		Envelope  json.RawMessage `json:"envelope,omitempty"`
	}{SessionID: session.ID}

	if payload.Footprint, err = marshalPolygon(session.Committed); err != nil {
		log.Printf("Failed to encode footprint: %v", err)
		conn.sendError(msg.ID, "Failed to encode footprint", "InternalError")
		return
	}
	if env != nil {
		if payload.Envelope, err = marshalPolygon(env.Polygon); err != nil {
			log.Printf("Failed to encode envelope: %v", err)
			conn.sendError(msg.ID, "Failed to encode envelope", "InternalError")
			return
		}
	}

	conn.sendMessage("edit_started", msg.ID, payload)
}

// resolveEnvelope computes the buildable envelope for an edit session.
// Failures degrade to a nil envelope (unconstrained editing) rather than
// blocking the session; the validation gate still reports the truth.
func (h *WebSocketHandlers) resolveEnvelope(jurisdiction, parcelID string, parcel *database.Parcel) *implant.Envelope {
	ctx := context.Background()

	rs, err := h.rulesets.Get(ctx, jurisdiction, parcelID)
	if err != nil {
		log.Printf("Warning: ruleset cache read failed for %s/%s: %v", jurisdiction, parcelID, err)
	}
	if rs == nil {
		row, err := h.zoning.GetZoningRow(jurisdiction, parcelID)
		if err != nil || row == nil {
			if err != nil {
				log.Printf("Warning: zoning lookup failed for %s/%s: %v", jurisdiction, parcelID, err)
			}
			return nil
		}
		resolved := ruleset.Resolve(row.Raw)
		rs = &resolved
		if err := h.rulesets.Set(ctx, jurisdiction, parcelID, resolved); err != nil {
			log.Printf("Warning: ruleset cache write failed for %s/%s: %v", jurisdiction, parcelID, err)
		}
	}

	return implant.ComputeEnvelope(parcel.Geometry, *rs)
}

// initialFootprint decodes the client footprint or auto-places one.
func (h *WebSocketHandlers) initialFootprint(req *EditStartData, env *implant.Envelope) (orb.Polygon, error) {
	if len(req.Footprint) > 0 {
		geom, err := geojson.UnmarshalGeometry(req.Footprint)
		if err != nil {
			return nil, fmt.Errorf("invalid footprint geometry")
		}
		poly, ok := geom.Geometry().(orb.Polygon)
		if !ok {
			return nil, fmt.Errorf("footprint must be a Polygon")
		}
		return poly, nil
	}

	if req.FootprintAreaM2 <= 0 {
		return nil, fmt.Errorf("footprint or footprint_area_m2 is required")
	}
	shape := implant.Shape(req.Shape)
	if shape == "" {
		shape = implant.ShapeSquare
	}

	op := h.profiler.Start(performance.OpPlacement)
	fp := implant.Place(env, req.FootprintAreaM2, shape, req.OrientationDeg)
	op.End()
	if fp == nil {
		return nil, fmt.Errorf("no buildable envelope to place a footprint in")
	}
	return fp.Polygon, nil
}

// PointerData is the payload for pointer_down, pointer_move and
// pointer_up messages. Pointer is [lon, lat] in the map's coordinates.
type PointerData struct {
	SessionID string     `json:"session_id"`
	Target    string     `json:"target,omitempty"`
	Pointer   [2]float64 `json:"pointer"`
}

func (h *WebSocketHandlers) editSession(conn *WebSocketConnection, msg *WebSocketMessage, data *PointerData) *edit.Session {
	if err := json.Unmarshal(msg.Data, data); err != nil {
		conn.sendError(msg.ID, "Invalid pointer payload", "InvalidMessageFormat")
		return nil
	}

	session, err := h.editManager.GetSession(conn.userID, data.SessionID)
	if err != nil {
		conn.sendError(msg.ID, err.Error(), "InvalidEditRequest")
		return nil
	}
	return session
}

// handlePointerDown begins a gesture on the session footprint.
func (h *WebSocketHandlers) handlePointerDown(conn *WebSocketConnection, msg *WebSocketMessage) {
	var data PointerData
	session := h.editSession(conn, msg, &data)
	if session == nil {
		return
	}

	started := session.PointerDown(edit.Target(data.Target), orb.Point{data.Pointer[0], data.Pointer[1]})
	conn.sendMessage("pointer_ack", msg.ID, map[string]interface{}{
		"session_id": data.SessionID,
		"active":     started,
		"mode":       string(session.Mode()),
	})
}

// handlePointerMove applies one gesture frame and replies with the
// committed footprint. Out-of-envelope frames are dropped silently on
// the session; the reply carries whatever is committed.
func (h *WebSocketHandlers) handlePointerMove(conn *WebSocketConnection, msg *WebSocketMessage) {
	var data PointerData
	session := h.editSession(conn, msg, &data)
	if session == nil {
		return
	}

	op := h.profiler.Start(performance.OpGestureApply)
	committed := session.PointerMove(orb.Point{data.Pointer[0], data.Pointer[1]})
	op.End()

	raw, err := marshalPolygon(committed)
	if err != nil {
		log.Printf("Failed to encode committed footprint: %v", err)
		conn.sendError(msg.ID, "Failed to encode footprint", "InternalError")
		return
	}

	conn.sendMessage("edit_frame", msg.ID, editFrame{
		SessionID: data.SessionID,
		Footprint: raw,
		AreaM2:    geo.AreaM2(committed),
		Mode:      string(session.Mode()),
	})
}

// handlePointerUp ends the active gesture.
func (h *WebSocketHandlers) handlePointerUp(conn *WebSocketConnection, msg *WebSocketMessage) {
	var data PointerData
	session := h.editSession(conn, msg, &data)
	if session == nil {
		return
	}

	session.PointerUp()

	raw, err := marshalPolygon(session.Committed)
	if err != nil {
		log.Printf("Failed to encode committed footprint: %v", err)
		conn.sendError(msg.ID, "Failed to encode footprint", "InternalError")
		return
	}

	conn.sendMessage("gesture_end", msg.ID, editFrame{
		SessionID: data.SessionID,
		Footprint: raw,
		AreaM2:    geo.AreaM2(session.Committed),
		Mode:      string(edit.ModeNone),
	})
}

// EditEndData is the payload for an edit_end message.
type EditEndData struct {
	SessionID string `json:"session_id"`
}

// handleEditEnd closes an edit session.
func (h *WebSocketHandlers) handleEditEnd(conn *WebSocketConnection, msg *WebSocketMessage) {
	var data EditEndData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		conn.sendError(msg.ID, "Invalid edit_end payload", "InvalidMessageFormat")
		return
	}

	session, err := h.editManager.GetSession(conn.userID, data.SessionID)
	if err != nil {
		conn.sendError(msg.ID, err.Error(), "InvalidEditRequest")
		return
	}

	raw, err := marshalPolygon(session.Committed)
	if err != nil {
		log.Printf("Failed to encode committed footprint: %v", err)
		conn.sendError(msg.ID, "Failed to encode footprint", "InternalError")
		return
	}

	h.editManager.EndSession(data.SessionID)
	delete(conn.sessions, data.SessionID)

	conn.sendMessage("edit_ended", msg.ID, editFrame{
		SessionID: data.SessionID,
		Footprint: raw,
		AreaM2:    geo.AreaM2(session.Committed),
		Mode:      string(edit.ModeNone),
	})
}

func marshalPolygon(p orb.Polygon) (json.RawMessage, error) {
	return geojson.NewGeometry(p).MarshalJSON()
}

// GetHub returns the WebSocket hub (for use in other packages)
func (h *WebSocketHandlers) GetHub() *WebSocketHub {
	return h.hub
}

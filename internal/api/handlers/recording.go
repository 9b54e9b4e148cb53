package handlers

import (
	"log"
	"net/http"

	"loginflow/backend/internal/models"
	"loginflow/backend/pkg/database"
	"loginflow/backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func StartRecording(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required,url"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	sessionID := uuid.New().String()

	if err := recorders.Start(sessionID, req.URL); err != nil {
		response.InternalServerError(c, "failed to start recording: "+err.Error())
		return
	}

	response.SuccessWithMessage(c, "recording started", gin.H{
		"session_id": sessionID,
	})
}

// StopRecording tears down the session without saving anything.
func StopRecording(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if _, _, err := recorders.Finish(req.SessionID); err != nil {
		response.NotFound(c, "recording session not found")
		return
	}
	recorders.Cleanup(req.SessionID)

	response.SuccessWithMessage(c, "recording discarded", nil)
}

func GetRecordingStatus(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.BadRequest(c, "session_id is required")
		return
	}

	snap, err := recorders.Status(sessionID)
	if err != nil {
		response.NotFound(c, "recording session not found")
		return
	}

	response.Success(c, gin.H{
		"is_recording": snap.IsRecording,
		"domain":       snap.Domain,
		"count":        snap.Count,
		"actions":      snap.Actions,
	})
}

// SaveRecording stops the session and persists its actions as the login
// sequence for the target site's hostname.
func SaveRecording(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "not logged in")
		return
	}

	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actions, rec, err := recorders.Finish(req.SessionID)
	if err != nil {
		response.NotFound(c, "recording session not found")
		return
	}
	defer recorders.Cleanup(req.SessionID)

	if len(actions) == 0 {
		response.BadRequest(c, "no actions were recorded")
		return
	}

	record, err := sites.Save(rec.TargetURL(), actions, userID.(uint))
	if err != nil {
		response.InternalServerError(c, "failed to save login sequence: "+err.Error())
		return
	}

	log.Printf("Saved login sequence for %s with %d actions", record.Hostname, len(actions))
	response.SuccessWithMessage(c, "login sequence saved", record)
}

// GetSessionMirror reads the persisted copy of a session's actions. It
// answers even after a crash took the live recorder down, which is the
// mirror's reason to exist.
func GetSessionMirror(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.BadRequest(c, "session_id is required")
		return
	}

	var mirror models.SessionMirror
	err := database.DB.Where("session_id = ?", sessionID).First(&mirror).Error
	if err != nil {
		response.NotFound(c, "no mirror for this session")
		return
	}

	actions, err := mirror.GetActions()
	if err != nil {
		response.InternalServerError(c, "mirror data is corrupt")
		return
	}

	response.Success(c, gin.H{
		"session_id": mirror.SessionID,
		"domain":     mirror.Domain,
		"start_time": mirror.StartTime,
		"count":      mirror.ActionCount,
		"actions":    actions,
	})
}

// RecordingWebSocket streams captured actions to the client while a
// recording session is live.
func RecordingWebSocket(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.BadRequest(c, "session_id is required")
		return
	}

	rec, ok := recorders.Get(sessionID)
	if !ok {
		response.NotFound(c, "recording session not found")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	rec.SetWebSocketConnection(conn)

	// Hold the connection open; the recorder pushes events as they arrive.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			rec.SetWebSocketConnection(nil)
			break
		}
	}
}

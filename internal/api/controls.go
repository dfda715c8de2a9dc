package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"voicenotes/internal/utils"
)

type pressRequest struct {
	ReportID string `json:"report_id"`
}

type playRequest struct {
	ID string `json:"id" binding:"required"`
}

// pressRecord schedules a recording start, the press half of press-and-hold
func (h *Handler) pressRecord(c *gin.Context) {
	var req pressRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.app.Press(req.ReportID); err != nil {
		utils.Error(c, statusFor(err), err.Error())
		return
	}
	utils.Respond(c, http.StatusAccepted, gin.H{"recording": h.app.RecordingStatus()})
}

// releaseRecord cancels a pending start or stops and files the recording
func (h *Handler) releaseRecord(c *gin.Context) {
	h.app.Release()
	utils.Success(c, gin.H{"recording": h.app.RecordingStatus()})
}

func (h *Handler) recordingStatus(c *gin.Context) {
	utils.Success(c, gin.H{"recording": h.app.RecordingStatus()})
}

// play starts an entry's clip, or toggles it when it is the active one
func (h *Handler) play(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "id is required")
		return
	}

	entry, err := h.app.Notes.Get(c.Request.Context(), req.ID)
	if err != nil {
		utils.Error(c, statusFor(err), "entry not found")
		return
	}

	state, err := h.app.Playback.Play(c.Request.Context(), entry.URI)
	if err != nil {
		h.app.Logger.Warn("playback failed", "component", "api", "id", entry.ID, "error", err)
		utils.Error(c, http.StatusInternalServerError, "failed to play audio")
		return
	}
	utils.Success(c, gin.H{"playback": state, "id": entry.ID})
}

// togglePlayback is a no-op when nothing is loaded
func (h *Handler) togglePlayback(c *gin.Context) {
	state, err := h.app.Playback.Toggle()
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	utils.Success(c, gin.H{"playback": state})
}

func (h *Handler) stopPlayback(c *gin.Context) {
	h.app.Playback.Stop()
	utils.Success(c, gin.H{"playback": h.app.Playback.State()})
}

func (h *Handler) playbackStatus(c *gin.Context) {
	utils.Success(c, gin.H{"playback": h.app.Playback.State()})
}

package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voicenotes/internal/app"
	"voicenotes/internal/model"
	"voicenotes/internal/storage"
	"voicenotes/internal/utils"
)

const maxUploadSize = 25 << 20

// iPhone records M4A by default; the rest cover common recorder apps
var allowedExts = []string{".m4a", ".mp3", ".wav", ".aac", ".ogg", ".caf", ".aiff", ".aif", ".webm", ".3gp"}

// Handler serves the HTTP API on top of the wired application
type Handler struct {
	app *app.App
}

func NewHandler(a *app.App) *Handler {
	return &Handler{app: a}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(metricsMiddleware())

	// Health check
	r.GET("/health", h.healthCheck)

	// API v1
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", h.healthCheck)
		v1.GET("/metrics", gin.WrapH(promhttp.Handler()))

		v1.GET("/entries", h.listEntries)
		v1.POST("/entries", h.uploadEntry)
		v1.DELETE("/entries", h.clearEntries)
		v1.POST("/entries/submit", h.submitAll)
		v1.GET("/entries/:id", h.getEntry)
		v1.GET("/entries/:id/audio", h.getEntryAudio)
		v1.DELETE("/entries/:id", h.deleteEntry)

		v1.POST("/recording/press", h.pressRecord)
		v1.POST("/recording/release", h.releaseRecord)
		v1.GET("/recording", h.recordingStatus)

		v1.POST("/playback/play", h.play)
		v1.POST("/playback/toggle", h.togglePlayback)
		v1.POST("/playback/stop", h.stopPlayback)
		v1.GET("/playback", h.playbackStatus)
	}
}

// healthCheck returns server health status
func (h *Handler) healthCheck(c *gin.Context) {
	utils.Success(c, gin.H{
		"status":  "ok",
		"service": "vnote",
		"store":   h.app.Config.StoreBackend,
	})
}

// listEntries handles GET /api/v1/entries[?report_id=&limit=&offset=]
func (h *Handler) listEntries(c *gin.Context) {
	ctx := c.Request.Context()

	var entries []model.AudioEntry
	if reportID, ok := c.GetQuery("report_id"); ok {
		entries = h.app.Notes.ListByReport(ctx, reportID)
	} else {
		entries = h.app.Notes.List(ctx)
	}
	total := len(entries)

	// Optional pagination; without limit every entry is returned
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	entries = entries[offset:]
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}

	utils.Success(c, gin.H{
		"entries": h.app.Notes.Views(entries),
		"count":   len(entries),
		"total":   total,
		"offset":  offset,
	})
}

// uploadEntry handles a multipart audio upload and files it as a new entry
func (h *Handler) uploadEntry(c *gin.Context) {
	log := h.app.Logger.With("component", "upload")

	file, err := c.FormFile("audio_file")
	if err != nil {
		// Try alternative field names
		if file, err = c.FormFile("audio"); err != nil {
			if file, err = c.FormFile("file"); err != nil {
				utils.Error(c, http.StatusBadRequest, "audio_file is required")
				return
			}
		}
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	valid := false
	for _, allowed := range allowedExts {
		if ext == allowed {
			valid = true
			break
		}
	}
	if !valid {
		utils.Error(c, http.StatusBadRequest, "unsupported audio format. Supported: "+strings.Join(allowedExts, ", "))
		return
	}

	if file.Size > maxUploadSize {
		utils.Error(c, http.StatusBadRequest, "file size exceeds 25MB limit")
		return
	}

	src, err := file.Open()
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "failed to read upload")
		return
	}
	mtype, err := mimetype.DetectReader(src)
	src.Close()
	if err != nil || !looksLikeAudio(mtype) {
		detected := "unknown"
		if mtype != nil {
			detected = mtype.String()
		}
		log.Warn("rejected upload", "filename", file.Filename, "detected", detected)
		utils.Error(c, http.StatusBadRequest, "uploaded file is not audio")
		return
	}

	// uploads get a unique transient name so same-named files never collide
	// in the audio directory
	captureDir := h.app.Config.CaptureDir
	if err := os.MkdirAll(captureDir, 0o755); err != nil {
		log.Error("failed to create capture dir", "error", err)
		utils.Error(c, http.StatusInternalServerError, "failed to save audio file")
		return
	}
	transient := filepath.Join(captureDir, "upload-"+uuid.NewString()+ext)
	if err := c.SaveUploadedFile(file, transient); err != nil {
		log.Error("failed to save upload", "error", err)
		utils.Error(c, http.StatusInternalServerError, "failed to save audio file")
		return
	}

	entry, err := h.app.Notes.Import(c.Request.Context(), storage.URI(transient), c.PostForm("report_id"))
	if err != nil {
		os.Remove(transient)
		utils.Error(c, statusFor(err), err.Error())
		return
	}

	log.Info("audio uploaded", "id", entry.ID, "filename", file.Filename, "mime", mtype.String())
	utils.Created(c, gin.H{"entry": h.app.Notes.Views([]model.AudioEntry{entry})[0]})
}

// looksLikeAudio accepts anything detected as audio, the containers phones
// record into, and undetectable binaries such as CAF
func looksLikeAudio(m *mimetype.MIME) bool {
	if m == nil {
		return false
	}
	for t := m; t != nil; t = t.Parent() {
		if strings.HasPrefix(t.String(), "audio/") {
			return true
		}
	}
	return m.Is("video/mp4") || m.Is("video/webm") || m.Is("video/3gpp") ||
		m.Is("application/ogg") || m.Is("application/octet-stream")
}

func (h *Handler) getEntry(c *gin.Context) {
	entry, err := h.app.Notes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.Error(c, statusFor(err), "entry not found")
		return
	}
	utils.Success(c, gin.H{"entry": h.app.Notes.Views([]model.AudioEntry{entry})[0]})
}

// getEntryAudio streams the durable clip
func (h *Handler) getEntryAudio(c *gin.Context) {
	entry, err := h.app.Notes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.Error(c, statusFor(err), "entry not found")
		return
	}
	path := storage.Path(entry.URI)
	if _, err := os.Stat(path); err != nil {
		utils.Error(c, http.StatusNotFound, "audio file missing")
		return
	}
	c.File(path)
}

func (h *Handler) deleteEntry(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	if _, err := h.app.Notes.Get(ctx, id); err != nil {
		utils.Error(c, statusFor(err), "entry not found")
		return
	}

	remaining, err := h.app.Notes.Delete(ctx, id)
	if err != nil {
		utils.Error(c, statusFor(err), "failed to delete entry")
		return
	}

	utils.Success(c, gin.H{
		"id":      id,
		"status":  "deleted",
		"entries": h.app.Notes.Views(remaining),
	})
}

// clearEntries drops every entry; audio files are left on disk
func (h *Handler) clearEntries(c *gin.Context) {
	if err := h.app.Notes.Clear(c.Request.Context()); err != nil {
		utils.Error(c, statusFor(err), "failed to clear entries")
		return
	}
	utils.Success(c, gin.H{"status": "cleared"})
}

// submitAll runs one batch pass. The pass keeps going if the client goes
// away; completed entries are persisted as they finish.
func (h *Handler) submitAll(c *gin.Context) {
	report, err := h.app.Notes.SubmitAll(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		utils.Error(c, statusFor(err), err.Error())
		return
	}
	utils.Success(c, gin.H{
		"processed": report.Processed,
		"raw":       report.Raw,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
		"entries":   h.app.Notes.Views(report.Entries),
	})
}

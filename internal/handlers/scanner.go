package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/davidrys/gatepass/internal/scanner"
	"github.com/davidrys/gatepass/internal/store"
	appErrors "github.com/davidrys/gatepass/pkg/errors"
	"github.com/davidrys/gatepass/pkg/response"
)

// ScannerHandler controls the scan loop lifecycle over HTTP and feeds it
// decoded frames from an external optical decoder.
type ScannerHandler struct {
	loop   *scanner.Loop
	camera *scanner.KioskCamera
	events *store.ScanEvents
}

// NewScannerHandler constructs a ScannerHandler.
func NewScannerHandler(loop *scanner.Loop, camera *scanner.KioskCamera, events *store.ScanEvents) *ScannerHandler {
	return &ScannerHandler{loop: loop, camera: camera, events: events}
}

// Start begins the decode cycle.
func (h *ScannerHandler) Start(c *gin.Context) {
	err := h.loop.Start(c.Request.Context(), scanner.Callbacks{})
	if err != nil {
		if errors.Is(err, scanner.ErrAlreadyRunning) {
			response.Error(c, appErrors.ErrScannerRunning)
			return
		}

		var camErr *scanner.CameraError
		if errors.As(err, &camErr) {
			response.Error(c, appErrors.New("scanner.camera_"+string(camErr.Cause), camErr.Message(), http.StatusConflict))
			return
		}

		response.Error(c, appErrors.Wrap(err, "could not start scanner"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": h.loop.Status()})
}

// Stop halts the decode cycle and releases the camera.
func (h *ScannerHandler) Stop(c *gin.Context) {
	if err := h.loop.Stop(); err != nil {
		response.Error(c, appErrors.ErrScannerStopped)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": h.loop.Status()})
}

// Status returns a snapshot of the loop.
func (h *ScannerHandler) Status(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"status": h.loop.Status()})
}

type frameRequest struct {
	Text string `json:"text"`
}

// SubmitFrame accepts the decoded text of one camera frame. An empty text is
// a decode miss and is accepted silently.
func (h *ScannerHandler) SubmitFrame(c *gin.Context) {
	var req frameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid request body"))
		return
	}

	accepted := h.camera.Submit(strings.TrimSpace(req.Text))
	response.Success(c, http.StatusAccepted, gin.H{"accepted": accepted})
}

// Events returns the most recent scan audit rows.
func (h *ScannerHandler) Events(c *gin.Context) {
	events, err := h.events.Recent(c.Request.Context(), 100)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "could not load scan events"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"events": events})
}

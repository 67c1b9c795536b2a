package controlplane

import (
	"errors"
	"net/http"
	"time"

	"github.com/VersBinarii/thesamo/internal/version"
	"github.com/gin-gonic/gin"
)

const defaultJournalLimit = 50

type Handler struct {
	backend   Backend
	startedAt time.Time
}

func NewHandler(backend Backend) *Handler {
	return &Handler{
		backend:   backend,
		startedAt: time.Now().UTC(),
	}
}

func (h *Handler) Index(c *gin.Context) {
	c.PureJSON(http.StatusOK, version.DetailedWithApp())
}

// Status reports the role, the build and a role specific summary.
func (h *Handler) Status(c *gin.Context) {
	if h.backend == nil {
		c.PureJSON(http.StatusServiceUnavailable, &ControlPlaneError{
			ErrorCode: ErrCodeUnknownError,
			Error:     "no role running",
		})
		return
	}

	c.PureJSON(http.StatusOK, &StatusResponse{
		Status:    "ok",
		Role:      string(h.backend.Role()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		StartedAt: h.startedAt.Format(time.RFC3339),
		Version:   version.Version,
		Revision:  version.Revision,
		BuildDate: version.BuildDate,
		Summary:   h.backend.Summary(),
	})
}

func (h *Handler) Files(c *gin.Context) {
	c.PureJSON(http.StatusOK, &FilesResponse{Files: h.backend.Files()})
}

// Sync asks a master to push one file, or every changed file when no id is
// given.
func (h *Handler) Sync(c *gin.Context) {
	syncer, ok := h.backend.(Syncer)
	if !ok {
		AbortWithError(c, http.StatusNotFound, ErrCodeNotSupported, ErrNotSupported)
		return
	}

	var req SyncRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	if err := syncer.Sync(req.ID); err != nil {
		if errors.Is(err, ErrUnknownFile) {
			AbortWithError(c, http.StatusNotFound, ErrCodeNotFound, err)
			return
		}
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
		return
	}

	c.PureJSON(http.StatusAccepted, &ControlPlaneResponse{Code: CodeOk})
}

// Journal lists the most recent packets applied by a minion.
func (h *Handler) Journal(c *gin.Context) {
	source, ok := h.backend.(JournalSource)
	if !ok {
		AbortWithError(c, http.StatusNotFound, ErrCodeNotSupported, ErrNotSupported)
		return
	}

	var req JournalRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultJournalLimit
	}

	entries, err := source.Journal(req.Limit)
	if err != nil {
		if errors.Is(err, ErrNoJournal) {
			AbortWithError(c, http.StatusNotFound, ErrCodeNotSupported, err)
			return
		}
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
		return
	}

	c.PureJSON(http.StatusOK, &JournalResponse{Entries: entries})
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/linksync/internal/domain"
	"github.com/andresuchdata/linksync/internal/service"
	"github.com/andresuchdata/linksync/internal/table"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type SyncHandler struct {
	service *service.SyncService
}

func NewSyncHandler(service *service.SyncService) *SyncHandler {
	return &SyncHandler{service: service}
}

// StartSync queues a sync run and returns it immediately.
func (h *SyncHandler) StartSync(c *gin.Context) {
	var req domain.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	run, err := h.service.Start(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, run)
}

// ListSyncs returns recent runs, newest first. ?status keeps only runs in
// that state.
func (h *SyncHandler) ListSyncs(c *gin.Context) {
	limit := parsePositiveIntWithDefault(c.Query("limit"), 50)

	var (
		status    domain.State
		filtering bool
	)
	if raw := c.Query("status"); raw != "" {
		state, ok := domain.ParseState(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + raw})
			return
		}
		status, filtering = state, true
	}

	runs, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if filtering {
		filtered := make([]*domain.SyncRun, 0, len(runs))
		for _, run := range runs {
			if run.Status == status {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}

	c.JSON(http.StatusOK, runs)
}

// GetSync returns one run with its current state.
func (h *SyncHandler) GetSync(c *gin.Context) {
	run, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":   run,
		"label": domain.StateLabel(run.Status),
	})
}

// GetLinks returns the run's links as a long table, or reshaped with
// ?shape=wide or ?shape=grouped.
func (h *SyncHandler) GetLinks(c *gin.Context) {
	shape := strings.ToLower(c.DefaultQuery("shape", "long"))
	if shape != "long" && shape != "wide" && shape != "grouped" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shape must be long, wide or grouped"})
		return
	}

	links, err := h.service.Links(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if shape == "wide" {
		wide := table.ToWide(links)
		rows := make([]gin.H, 0, len(wide.Rows))
		for _, row := range wide.Rows {
			rows = append(rows, gin.H{"name": row.Name, "urls": row.URLs})
		}
		c.JSON(http.StatusOK, gin.H{"header": wide.Header, "rows": rows})
		return
	}

	if shape == "grouped" {
		groups := table.GroupByName(links)
		rows := make([]gin.H, 0, len(groups))
		for _, group := range groups {
			rows = append(rows, gin.H{"name": group.Name, "urls": group.URLs})
		}
		c.JSON(http.StatusOK, gin.H{"groups": rows})
		return
	}

	rows := make([]gin.H, 0, len(links))
	for _, row := range links {
		rows = append(rows, gin.H{"name": row.Name, "url": row.URL})
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

// ExportLinks streams the run's links as a wide .xlsx attachment.
func (h *SyncHandler) ExportLinks(c *gin.Context) {
	id := c.Param("id")

	// Check the run first so errors are reported as JSON, not a partial file.
	if _, err := h.service.Links(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="links-%s.xlsx"`, id))
	c.Status(http.StatusOK)
	if err := h.service.ExportXLSX(c.Request.Context(), id, c.Writer); err != nil {
		log.Error().Err(err).Str("run_id", id).Msg("failed to write export")
	}
}

func (h *SyncHandler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrRunNotDone):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("sync request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parsePositiveIntWithDefault(value string, fallback int) int {
	if fallback <= 0 {
		fallback = 50
	}
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return fallback
}

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mediahub/ffmpeg"
)

type subtitleRequest struct {
	InputFilename string `json:"inputFilename"`
}

// handleGetVideo serves a stored file, honouring byte ranges.
func (h *Handler) handleGetVideo(c *gin.Context) {
	filename := c.Param("filename")
	if err := h.Store.Serve(c.Writer, c.Request, filename); err != nil {
		if status, ok := storageStatus(err); ok {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error().Err(err).Str("file", filename).Msg("serving file failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func (h *Handler) handleGetVideoInfo(c *gin.Context) {
	filename := c.Param("filename")
	info, err := h.Prober.Info(c.Request.Context(), filename)
	if err != nil {
		if status, ok := storageStatus(err); ok {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error().Err(err).Str("file", filename).Msg("probe failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve video information", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) handleExtractSubtitles(c *gin.Context) {
	var req subtitleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.InputFilename) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Input filename is required"})
		return
	}

	data, err := h.Subtitles.Extract(c.Request.Context(), req.InputFilename)
	if err != nil {
		if status, ok := storageStatus(err); ok {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, ffmpeg.ErrNoSubtitles) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error().Err(err).Str("file", req.InputFilename).Msg("subtitle extraction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error extracting subtitles", "details": err.Error()})
		return
	}

	c.Data(http.StatusOK, "text/vtt; charset=utf-8", data)
}

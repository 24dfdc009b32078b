package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/records-explorer-go/internal/explorer"
	"github.com/jengzang/records-explorer-go/internal/models"
	"github.com/jengzang/records-explorer-go/internal/service"
	"github.com/jengzang/records-explorer-go/internal/spatial"
	"github.com/jengzang/records-explorer-go/pkg/response"
)

// ExplorerHandler handles HTTP requests for the tile explorer
type ExplorerHandler struct {
	explorerService *service.ExplorerService
}

// NewExplorerHandler creates a new explorer handler
func NewExplorerHandler(explorerService *service.ExplorerService) *ExplorerHandler {
	return &ExplorerHandler{
		explorerService: explorerService,
	}
}

// Compute handles POST /api/v1/explorer/compute
func (h *ExplorerHandler) Compute(c *gin.Context) {
	report, err := h.explorerService.Compute(c.Request.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			response.Error(c, http.StatusServiceUnavailable, "Compute interrupted, progress was saved")
			return
		}
		if errors.Is(err, explorer.ErrNaiveTimestamp) {
			response.Error(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, report)
}

// Reset handles POST /api/v1/explorer/reset
func (h *ExplorerHandler) Reset(c *gin.Context) {
	if err := h.explorerService.Reset(); err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"reset": true})
}

// GetZooms handles GET /api/v1/explorer/zooms
func (h *ExplorerHandler) GetZooms(c *gin.Context) {
	response.Success(c, h.explorerService.Zooms())
}

// GetTiles handles GET /api/v1/explorer/zooms/:zoom/tiles
func (h *ExplorerHandler) GetTiles(c *gin.Context) {
	zoom, ok := parseZoom(c)
	if !ok {
		return
	}

	var filter models.TileFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	result, err := h.explorerService.Tiles(zoom, filter)
	if err != nil {
		writeExplorerError(c, err)
		return
	}

	response.Success(c, result)
}

// GetTile handles GET /api/v1/explorer/zooms/:zoom/tiles/:x/:y
func (h *ExplorerHandler) GetTile(c *gin.Context) {
	zoom, ok := parseZoom(c)
	if !ok {
		return
	}
	x, errX := strconv.Atoi(c.Param("x"))
	y, errY := strconv.Atoi(c.Param("y"))
	if errX != nil || errY != nil {
		response.BadRequest(c, "Invalid tile coordinates")
		return
	}

	detail, err := h.explorerService.Tile(zoom, x, y)
	if err != nil {
		writeExplorerError(c, err)
		return
	}

	response.Success(c, detail)
}

// GetClusters handles GET /api/v1/explorer/zooms/:zoom/clusters
func (h *ExplorerHandler) GetClusters(c *gin.Context) {
	zoom, ok := parseZoom(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		response.BadRequest(c, "Invalid limit parameter")
		return
	}

	clusters, err := h.explorerService.Clusters(zoom, c.Query("members") == "true", limit)
	if err != nil {
		writeExplorerError(c, err)
		return
	}

	response.Success(c, gin.H{
		"data":  clusters,
		"count": len(clusters),
	})
}

// GetSquare handles GET /api/v1/explorer/zooms/:zoom/square
func (h *ExplorerHandler) GetSquare(c *gin.Context) {
	zoom, ok := parseZoom(c)
	if !ok {
		return
	}

	square, err := h.explorerService.Square(zoom, c.Query("tiles") == "true")
	if err != nil {
		writeExplorerError(c, err)
		return
	}

	response.Success(c, square)
}

// GetClusterHistory handles GET /api/v1/explorer/zooms/:zoom/history/clusters
func (h *ExplorerHandler) GetClusterHistory(c *gin.Context) {
	zoom, ok := parseZoom(c)
	if !ok {
		return
	}

	history, err := h.explorerService.ClusterHistory(zoom)
	if err != nil {
		writeExplorerError(c, err)
		return
	}

	response.Success(c, history)
}

// GetSquareHistory handles GET /api/v1/explorer/zooms/:zoom/history/squares
func (h *ExplorerHandler) GetSquareHistory(c *gin.Context) {
	zoom, ok := parseZoom(c)
	if !ok {
		return
	}

	history, err := h.explorerService.SquareHistory(zoom)
	if err != nil {
		writeExplorerError(c, err)
		return
	}

	response.Success(c, history)
}

// GetSummary handles GET /api/v1/explorer/zooms/:zoom/summary
func (h *ExplorerHandler) GetSummary(c *gin.Context) {
	zoom, ok := parseZoom(c)
	if !ok {
		return
	}

	summary, err := h.explorerService.Summary(zoom)
	if err != nil {
		writeExplorerError(c, err)
		return
	}

	response.Success(c, summary)
}

// GetGeoJSON handles GET /api/v1/explorer/zooms/:zoom/geojson
// The body is a bare FeatureCollection so map libraries can load it directly.
func (h *ExplorerHandler) GetGeoJSON(c *gin.Context) {
	zoom, ok := parseZoom(c)
	if !ok {
		return
	}

	var filter models.TileFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	fc, err := h.explorerService.GeoJSON(zoom, filter)
	if err != nil {
		writeExplorerError(c, err)
		return
	}

	body, err := fc.MarshalJSON()
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/geo+json", body)
}

func parseZoom(c *gin.Context) (int, bool) {
	zoom, err := strconv.Atoi(c.Param("zoom"))
	if err != nil {
		response.BadRequest(c, "Invalid zoom")
		return 0, false
	}
	return zoom, true
}

func writeExplorerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, spatial.ErrInvalidZoom):
		response.BadRequest(c, err.Error())
	case errors.Is(err, explorer.ErrUnknownZoom), errors.Is(err, service.ErrTileNotExplored):
		response.NotFound(c, err.Error())
	default:
		response.InternalError(c, err.Error())
	}
}

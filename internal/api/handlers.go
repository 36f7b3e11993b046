package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"studydesk/internal/assessment"
	"studydesk/internal/progress"
	"studydesk/internal/workspace"
)

const workspaceKey = "workspace"

type workspaceResponse struct {
	ID          string `json:"id"`
	CreatedAt   string `json:"created_at"`
	Uploads     int    `json:"uploads"`
	Assessments int    `json:"assessments"`
}

type addUploadsRequest struct {
	Files []workspace.Upload `json:"files"`
}

type failRequest struct {
	Reason string `json:"reason"`
}

type uploadResponse struct {
	progress.Item
	DocType string `json:"type"`
	Size    string `json:"size"`
}

type API struct {
	workspaces *workspace.Manager
}

func NewAPI(workspaces *workspace.Manager) *API {
	return &API{workspaces: workspaces}
}

// RegisterRoutes registers API routes on the provided gin engine
func (a *API) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/documents", a.ListDocuments)
		api.POST("/workspaces", a.CreateWorkspace)
	}
	ws := api.Group("/workspaces/:ws", a.loadWorkspace)
	{
		ws.GET("", a.GetWorkspace)
		ws.DELETE("", a.DisposeWorkspace)
		ws.GET("/sources", a.ListSources)
		ws.GET("/events", a.StreamEvents)

		ws.POST("/uploads", a.AddUploads)
		ws.GET("/uploads", a.ListUploads)
		ws.GET("/uploads/:id", a.GetUpload)
		ws.DELETE("/uploads/:id", a.RemoveUpload)
		ws.POST("/uploads/:id/fail", a.FailUpload)

		ws.POST("/assessments", a.GenerateAssessment)
		ws.GET("/assessments", a.ListAssessments)
		ws.GET("/assessments/:id", a.GetAssessment)
		ws.DELETE("/assessments/:id", a.RemoveAssessment)
		ws.GET("/assessments/:id/export", a.ExportAssessment)
	}
}

// loadWorkspace resolves :ws or aborts with 404
func (a *API) loadWorkspace(c *gin.Context) {
	id := c.Param("ws")
	ws, ok := a.workspaces.Get(id)
	if !ok {
		log.Warn().Str("workspace_id", id).Msg("workspace not found")
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": workspace.ErrNotFound.Error()})
		return
	}
	c.Set(workspaceKey, ws)
	c.Next()
}

func currentWorkspace(c *gin.Context) *workspace.Workspace {
	return c.MustGet(workspaceKey).(*workspace.Workspace) //nolint:forcetypeassert // set by loadWorkspace
}

// ListDocuments returns the shared document library
func (a *API) ListDocuments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"documents": a.workspaces.Catalog()})
}

// CreateWorkspace opens a new dashboard view
func (a *API) CreateWorkspace(c *gin.Context) {
	if a.workspaces.IsBusy() {
		log.Warn().Msg("rejecting workspace creation: too many open workspaces")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server busy"})
		return
	}
	ws, err := a.workspaces.Create()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toWorkspaceResponse(ws))
}

// GetWorkspace returns a summary of the workspace
func (a *API) GetWorkspace(c *gin.Context) {
	c.JSON(http.StatusOK, toWorkspaceResponse(currentWorkspace(c)))
}

// DisposeWorkspace stops everything running in the workspace and forgets it
func (a *API) DisposeWorkspace(c *gin.Context) {
	ws := currentWorkspace(c)
	if err := a.workspaces.Dispose(c.Request.Context(), ws.ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListSources returns catalog documents and the workspace uploads
func (a *API) ListSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": currentWorkspace(c).Sources()})
}

// AddUploads starts simulated uploads for the posted files
func (a *API) AddUploads(c *gin.Context) {
	ws := currentWorkspace(c)
	var req addUploadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Str("workspace_id", ws.ID).Err(err).Msg("invalid add uploads request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	items, err := ws.Upload(req.Files)
	if err != nil {
		log.Warn().Str("workspace_id", ws.ID).Err(err).Msg("failed to add uploads")
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"uploads": toUploadResponses(items)})
}

// ListUploads returns uploads in the order they were added
func (a *API) ListUploads(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"uploads": toUploadResponses(currentWorkspace(c).Uploads.List())})
}

// GetUpload returns one upload
func (a *API) GetUpload(c *gin.Context) {
	item, ok := currentWorkspace(c).Uploads.Get(c.Param("id"))
	if !ok {
		writeError(c, progress.ErrItemNotFound)
		return
	}
	c.JSON(http.StatusOK, toUploadResponse(item))
}

// RemoveUpload deletes an upload and stops its ticker
func (a *API) RemoveUpload(c *gin.Context) {
	ws := currentWorkspace(c)
	id := c.Param("id")
	if !ws.Uploads.Remove(id) {
		writeError(c, progress.ErrItemNotFound)
		return
	}
	log.Info().Str("workspace_id", ws.ID).Str("item_id", id).Msg("upload removed")
	c.Status(http.StatusNoContent)
}

// FailUpload simulates a failure of a running upload
func (a *API) FailUpload(c *gin.Context) {
	var req failRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}
	item, err := currentWorkspace(c).Uploads.Fail(c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUploadResponse(item))
}

// GenerateAssessment validates the request and starts a generation run
func (a *API) GenerateAssessment(c *gin.Context) {
	ws := currentWorkspace(c)
	var spec assessment.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		log.Warn().Str("workspace_id", ws.ID).Err(err).Msg("invalid assessment request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	generated, err := ws.Assessments.Generate(spec)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, generated)
}

// ListAssessments returns every assessment of the workspace
func (a *API) ListAssessments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"assessments": currentWorkspace(c).Assessments.List()})
}

// GetAssessment returns an assessment with its questions once generated
func (a *API) GetAssessment(c *gin.Context) {
	found, err := currentWorkspace(c).Assessments.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

// RemoveAssessment drops an assessment
func (a *API) RemoveAssessment(c *gin.Context) {
	if !currentWorkspace(c).Assessments.Remove(c.Param("id")) {
		writeError(c, assessment.ErrAssessmentNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportAssessment serves the zip bundle of a completed assessment
func (a *API) ExportAssessment(c *gin.Context) {
	ws := currentWorkspace(c)
	id := c.Param("id")
	path, name, err := a.workspaces.Export(ws, id)
	if err != nil {
		log.Warn().Str("workspace_id", ws.ID).Str("assessment_id", id).Err(err).Msg("export failed")
		writeError(c, err)
		return
	}
	log.Info().Str("workspace_id", ws.ID).Str("assessment_id", id).Str("path", path).Msg("serving assessment export")
	c.FileAttachment(path, name)
}

// StreamEvents pushes progress, complete and error events as server-sent
// events until the client leaves or the workspace is disposed
func (a *API) StreamEvents(c *gin.Context) {
	events, unsubscribe := currentWorkspace(c).Events.Subscribe(0)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(ev.Type, ev)
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func writeError(c *gin.Context, err error) {
	var validationErr *assessment.ValidationError
	var extErr *workspace.ExtensionError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message, "field": validationErr.Field})
	case errors.As(err, &extErr),
		errors.Is(err, workspace.ErrNoFiles),
		errors.Is(err, workspace.ErrFileTooLarge),
		errors.Is(err, workspace.ErrInvalidSize),
		errors.Is(err, progress.ErrEmptyLabel):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, workspace.ErrNotFound),
		errors.Is(err, progress.ErrItemNotFound),
		errors.Is(err, assessment.ErrAssessmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, progress.ErrItemFrozen),
		errors.Is(err, progress.ErrInvalidTransition),
		errors.Is(err, assessment.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, progress.ErrBoardDisposed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, workspace.ErrTooManyWorkspaces):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server busy"})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func toWorkspaceResponse(ws *workspace.Workspace) workspaceResponse {
	return workspaceResponse{
		ID:          ws.ID,
		CreatedAt:   ws.CreatedAt.UTC().Format(time.RFC3339),
		Uploads:     ws.Uploads.Len(),
		Assessments: len(ws.Assessments.List()),
	}
}

func toUploadResponse(item progress.Item) uploadResponse {
	var size uint64
	if item.SizeBytes > 0 {
		size = uint64(item.SizeBytes)
	}
	return uploadResponse{
		Item:    item,
		DocType: workspace.DocType(item.Label),
		Size:    humanize.Bytes(size),
	}
}

func toUploadResponses(items []progress.Item) []uploadResponse {
	out := make([]uploadResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toUploadResponse(item))
	}
	return out
}

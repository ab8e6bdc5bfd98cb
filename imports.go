package main

import (
	"io"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/production_backend/importer"
	"bitbucket.org/mmdatafocus/production_backend/models"
	"bitbucket.org/mmdatafocus/production_backend/utils"
	"github.com/gin-gonic/gin"
)

func registerImportRoutes(r *gin.Engine) {
	r.POST("/imports/upload", uploadImportHandler)
	r.GET("/imports/:id/preview", previewImportHandler)
	r.POST("/imports/:id/approve", approveImportHandler)
	r.POST("/imports/:id/resolve", resolveImportHandler)
	r.POST("/imports/folder", folderImportHandler)
	r.DELETE("/imports/:id", deleteImportHandler)
}

func uploadImportHandler(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := importer.UploadFile(c.Request.Context(), header.Filename, data, header.Header.Get("Content-Type"))
	if err != nil {
		writeImportError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func previewImportHandler(c *gin.Context) {
	id, ok := importIdParam(c)
	if !ok {
		return
	}
	preview, err := importer.GetPreview(c.Request.Context(), id)
	if err != nil {
		writeImportError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

type approveRequest struct {
	// Action optionally carries the operator's conflict decision; when empty
	// the import is approved as-is.
	Action      string `json:"action"`
	Kind        string `json:"conflict_kind"`
	ReplaceBase bool   `json:"replace_base"`
}

func approveImportHandler(c *gin.Context) {
	id, ok := importIdParam(c)
	if !ok {
		return
	}
	var req approveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
	}
	action := models.ResolutionAction("")
	if req.Action != "" {
		mapped, known := parseResolutionAction(req.Action, req.Kind)
		if !known {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "unknown action", "action": req.Action,
			})
			return
		}
		action = mapped
	}
	outcome, err := importer.ApproveImport(c.Request.Context(), id, action, req.ReplaceBase)
	if err != nil {
		writeImportError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

type resolveRequest struct {
	Action            string `json:"action" binding:"required"`
	TargetOrderNumber string `json:"target_order_number"`
	// Kind disambiguates "replace" into the base or exact-variant form.
	Kind string `json:"conflict_kind"`
}

func resolveImportHandler(c *gin.Context) {
	id, ok := importIdParam(c)
	if !ok {
		return
	}
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	action, known := parseResolutionAction(req.Action, req.Kind)
	if !known {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "unknown action", "action": req.Action,
		})
		return
	}

	outcome, err := importer.ProcessWithResolution(c.Request.Context(), id, importer.Resolution{
		Action:            action,
		TargetOrderNumber: req.TargetOrderNumber,
	})
	if err != nil {
		writeImportError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

type folderImportRequest struct {
	FolderPath string `json:"folder_path" binding:"required"`
}

func folderImportHandler(c *gin.Context) {
	var req folderImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	operator := "api"
	if name, ok := utils.GetOperatorNameFromContext(c.Request.Context()); ok {
		operator = name
	}
	batch, err := importer.ImportFromFolder(c.Request.Context(), req.FolderPath, operator)
	if err != nil {
		writeImportError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func deleteImportHandler(c *gin.Context) {
	id, ok := importIdParam(c)
	if !ok {
		return
	}
	if err := importer.DeleteImport(c.Request.Context(), id); err != nil {
		writeImportError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseResolutionAction maps the wire-level action onto the resolution enum.
// "replace" is the UI shorthand; conflict_kind disambiguates it into the base
// or exact-variant form.
func parseResolutionAction(action string, kind string) (models.ResolutionAction, bool) {
	switch action {
	case "replace":
		if kind == string(models.ConflictKindExactVariant) {
			return models.ActionReplaceVariant, true
		}
		return models.ActionReplaceBase, true
	case string(models.ActionReplaceBase), string(models.ActionReplaceVariant),
		string(models.ActionKeepBoth), string(models.ActionAddNew), string(models.ActionCancel):
		return models.ResolutionAction(action), true
	}
	return "", false
}

func importIdParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid import id"})
		return 0, false
	}
	return id, true
}

// writeImportError maps the domain error taxonomy onto HTTP statuses.
func writeImportError(c *gin.Context, err error) {
	if utils.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if ve, ok := utils.IsValidation(err); ok {
		body := gin.H{"error": ve.Message, "code": ve.Code}
		if ve.Details != nil {
			body["details"] = ve.Details
		}
		c.JSON(http.StatusUnprocessableEntity, body)
		return
	}
	if ce, ok := utils.IsConflict(err); ok {
		body := gin.H{"error": ce.Message}
		if ce.Holder != "" {
			body["holder"] = ce.Holder
		}
		c.JSON(http.StatusConflict, body)
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

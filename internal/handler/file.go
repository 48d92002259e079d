package handler

import (
	"DedupVault/internal/dto"
	"DedupVault/internal/service"
	"DedupVault/utils"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// UploadFile deduplicates and stores an uploaded file.
func UploadFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		utils.Fail(c, err)
		return
	}
	defer src.Close()

	result, err := service.BindStream(
		c.Request.Context(),
		src,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
	)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, result)
}

// ListFiles enumerates logical files, newest first. Optional limit and
// offset query parameters page the listing.
func ListFiles(c *gin.Context) {
	limit, err := parseIntParam(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := parseIntParam(c.Query("offset"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	infos, err := service.ListBindings(limit, offset)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, infos)
}

func parseIntParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid integer parameter %q", raw)
	}
	return value, nil
}

// DeleteBinding removes a logical file. Deleting an id that is already
// gone succeeds, so client retries are safe.
func DeleteBinding(c *gin.Context) {
	var req dto.DeleteBindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := service.Unbind(c.Request.Context(), req.BindingID); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, nil)
}

// DownloadBinding streams a logical file's content with its original
// name and media type.
func DownloadBinding(c *gin.Context) {
	bindingID := c.Param("bindingID")
	binding, err := service.GetBindingByID(bindingID)
	if err != nil {
		if errors.Is(err, service.ErrBindingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		utils.Fail(c, err)
		return
	}

	reader, obj, err := service.FetchContent(c.Request.Context(), binding.Fingerprint)
	if err != nil {
		if errors.Is(err, service.ErrContentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "content not found"})
			return
		}
		utils.Fail(c, err)
		return
	}
	defer reader.Close()

	fileName := utils.SanitizeHeaderFilename(binding.DisplayName)
	contentType := binding.MediaType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	extraHeaders := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=\"%s\"", fileName),
	}
	c.DataFromReader(http.StatusOK, obj.Size, contentType, reader, extraHeaders)
}

// FetchContent streams the raw stored bytes for a fingerprint.
func FetchContent(c *gin.Context) {
	fingerprint := c.Param("fingerprint")
	reader, obj, err := service.FetchContent(c.Request.Context(), fingerprint)
	if err != nil {
		if errors.Is(err, service.ErrContentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "content not found"})
			return
		}
		utils.Fail(c, err)
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, obj.Size, "application/octet-stream", reader, nil)
}

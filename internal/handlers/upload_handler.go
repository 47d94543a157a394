package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxUploadBytes caps product image uploads.
const maxUploadBytes = 5 << 20

var allowedImageExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// UploadImage handles POST /api/admin/uploads
// It saves the image under UPLOAD_DIR and returns its public URL.
func (h *Handlers) UploadImage(c *gin.Context) {
	// 1. Get the file from the request
	file, err := c.FormFile("file")
	if err != nil {
		failField(c, http.StatusBadRequest, "file", "No file uploaded.")
		return
	}
	if file.Size > maxUploadBytes {
		failField(c, http.StatusRequestEntityTooLarge, "file", "Images must be 5 MB or smaller.")
		return
	}

	// 2. Only images
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExt[ext] {
		failField(c, http.StatusUnprocessableEntity, "file", "Only JPG, PNG, WEBP and GIF images are allowed.")
		return
	}

	// 3. Make sure the upload directory exists
	if err := os.MkdirAll(h.Config.UploadDir, 0o755); err != nil {
		serverError(c, err, "Failed to prepare upload directory")
		return
	}

	// 4. Save under a safe unique filename (uuid + extension)
	newFilename := uuid.NewString() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(h.Config.UploadDir, newFilename)); err != nil {
		serverError(c, err, "Failed to save file")
		return
	}

	// 5. Return the public URL
	publicURL := fmt.Sprintf("%s/uploads/%s", strings.TrimRight(h.Config.BaseURL, "/"), newFilename)
	c.JSON(http.StatusCreated, gin.H{"success": true, "url": publicURL, "filename": newFilename})
}

package handlers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

// MaxContractFileSize is the largest contract file accepted for upload
const MaxContractFileSize = 2 * 1024 * 1024 // 2MB

// AnalyzeFile handles POST /api/analyze/file with a multipart "file" field
// holding a plain text contract
func (h *AnalysisHandler) AnalyzeFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "File is required")
		return
	}

	// Validate file size
	if fileHeader.Size > MaxContractFileSize {
		respondError(c, http.StatusBadRequest, "FILE_TOO_LARGE",
			fmt.Sprintf("File size exceeds maximum of %d bytes", MaxContractFileSize))
		return
	}

	mimeType := contractMimeType(fileHeader.Header.Get("Content-Type"), fileHeader.Filename)
	if !strings.HasPrefix(mimeType, "text/") {
		respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "File type not allowed. Upload a plain text contract (.txt, .md)")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "FILE_OPEN_ERROR", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxContractFileSize+1))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "FILE_READ_ERROR", err.Error())
		return
	}
	if !utf8.Valid(data) {
		respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "File is not valid UTF-8 text")
		return
	}

	text := strings.TrimSpace(string(data))
	if utf8.RuneCountInString(text) < MinContractLength {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Contract text must be at least 10 characters")
		return
	}

	h.analyze(c, text)
}

// contractMimeType prefers the declared type and falls back to the extension
func contractMimeType(declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		mt, _, err := mime.ParseMediaType(declared)
		if err == nil {
			return mt
		}
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text":
		return "text/plain"
	case ".md", ".markdown":
		return "text/markdown"
	}
	return "application/octet-stream"
}

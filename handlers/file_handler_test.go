package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"contractlens-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upload(t *testing.T, r http.Handler, filename, contentType string, content []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		if contentType != "" {
			hdr.Set("Content-Type", contentType)
		}
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze/file", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestAnalyzeFile_PlainText(t *testing.T) {
	report := &models.AnalysisReport{ID: uuid.New(), Status: models.ReportDone}
	analyzer := &stubAnalyzer{report: report}
	r := newRouter(analyzer, nil)

	w, env := upload(t, r, "lease.txt", "", []byte("\nThe tenant shall pay rent monthly.\n"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "The tenant shall pay rent monthly.", analyzer.got)
}

func TestAnalyzeFile_Rejects(t *testing.T) {
	r := newRouter(&stubAnalyzer{}, nil)

	tests := []struct {
		name        string
		filename    string
		contentType string
		content     []byte
		code        string
	}{
		{"missing file", "", "", nil, "MISSING_FILE"},
		{"pdf", "lease.pdf", "application/pdf", []byte("%PDF-1.7"), "INVALID_FILE_TYPE"},
		{"unknown extension", "lease.bin", "", []byte("The tenant shall pay rent."), "INVALID_FILE_TYPE"},
		{"not utf8", "lease.txt", "text/plain", []byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb, 0xfa, 0xf9, 0xf8, 0xf7, 0xf6, 0xf5}, "INVALID_FILE_TYPE"},
		{"too short", "lease.md", "", []byte("  rent  "), "INVALID_REQUEST"},
		{"too large", "lease.txt", "text/plain", []byte(strings.Repeat("a", MaxContractFileSize+1)), "FILE_TOO_LARGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := upload(t, r, tt.filename, tt.contentType, tt.content)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestContractMimeType(t *testing.T) {
	assert.Equal(t, "text/plain", contractMimeType("text/plain; charset=utf-8", "x.pdf"))
	assert.Equal(t, "text/plain", contractMimeType("application/octet-stream", "X.TXT"))
	assert.Equal(t, "text/markdown", contractMimeType("", "terms.md"))
	assert.Equal(t, "application/octet-stream", contractMimeType("", "terms.docx"))
}

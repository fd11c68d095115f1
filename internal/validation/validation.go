// Package validation holds the input checks that run before any import work starts:
// upload metadata for the HTTP and CLI front ends, and local paths for the CLI.
package validation

import (
	"bytes"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"fjacquet/statement-import/internal/importerror"
	"fjacquet/statement-import/internal/models"
)

// UploadLimits constrains what an upload may look like.
type UploadLimits struct {
	MaxFileSizeBytes  int64
	AllowedExtensions []string
	AllowedMIMETypes  []string
}

// DefaultUploadLimits returns the built-in limits.
func DefaultUploadLimits() UploadLimits {
	return UploadLimits{
		MaxFileSizeBytes:  models.DefaultMaxFileSizeBytes,
		AllowedExtensions: append([]string(nil), models.DefaultAllowedExtensions...),
		AllowedMIMETypes:  append([]string(nil), models.DefaultAllowedMIMETypes...),
	}
}

var pdfMagic = []byte("%PDF-")

// ValidateUpload checks the upload input contract. Every violated field is reported,
// not only the first one. content may be nil when only the metadata is known.
func ValidateUpload(meta models.FileMeta, content []byte, limits UploadLimits) error {
	verr := &importerror.ValidationError{Subject: "upload"}

	name := strings.TrimSpace(meta.Name)
	switch {
	case name == "":
		verr.Add("fileName", "File name is required")
	case utf8.RuneCountInString(name) > models.MaxFileNameLength:
		verr.Add("fileName", fmt.Sprintf("File name must be at most %d characters", models.MaxFileNameLength))
	case strings.ContainsAny(name, `/\`) || strings.Contains(name, ".."):
		verr.Add("fileName", "File name must not contain path elements")
	}

	ext := strings.ToLower(filepath.Ext(name))
	if name != "" && !contains(limits.AllowedExtensions, ext) {
		verr.Add("fileName", fmt.Sprintf("File extension %q is not allowed; accepted: %s", ext, strings.Join(limits.AllowedExtensions, ", ")))
	}

	switch {
	case meta.SizeBytes <= 0:
		verr.Add("fileSize", "File is empty")
	case meta.SizeBytes > limits.MaxFileSizeBytes:
		verr.Add("fileSize", fmt.Sprintf("File size %d exceeds the maximum of %d bytes", meta.SizeBytes, limits.MaxFileSizeBytes))
	}
	if content != nil && int64(len(content)) != meta.SizeBytes {
		verr.Add("fileSize", "Declared size does not match the uploaded content")
	}

	mime := normalizeMIME(meta.MIMEType)
	if !contains(limits.AllowedMIMETypes, mime) {
		verr.Add("mimeType", fmt.Sprintf("MIME type %q is not allowed", meta.MIMEType))
	}

	if ext == ".pdf" && content != nil && len(content) > 0 && !bytes.HasPrefix(content, pdfMagic) {
		verr.Add("content", "File does not look like a PDF document")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// FormatOf infers the document format from the file name and MIME type.
func FormatOf(fileName, mimeType string) models.DocumentFormat {
	switch ext := strings.ToLower(filepath.Ext(fileName)); {
	case ext == ".pdf" || normalizeMIME(mimeType) == "application/pdf":
		return models.FormatPDF
	case ext == ".csv" || strings.Contains(normalizeMIME(mimeType), "csv"):
		return models.FormatCSV
	default:
		return models.FormatUnknown
	}
}

// MIMETypeFor returns the MIME type a browser would declare for fileName.
func MIMETypeFor(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain"
	}
	if t := mime.TypeByExtension(filepath.Ext(fileName)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// IsValidPath checks if a given path exists and is a regular file or a directory.
func IsValidPath(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("error checking path %s: %w", path, err)
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return fmt.Errorf("path %s is neither a file nor a directory", path)
	}
	return nil
}

func normalizeMIME(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if i := strings.Index(m, ";"); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	return m
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

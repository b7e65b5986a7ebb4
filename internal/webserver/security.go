package webserver

import (
	"fmt"
	"mime"
	"mime/multipart"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
)

const (
	// ModelExtension is the only accepted upload extension
	ModelExtension = ".stl"
	// OutputExtension replaces ModelExtension for the slicer output
	OutputExtension = ".gcode"
	// MaxFormOverhead is the room allowed on top of the file for multipart framing and fields
	MaxFormOverhead = 1024 * 1024
	// MaxFormMemory is kept in memory while parsing, the rest spills to temp files
	MaxFormMemory = 1024 * 1024
)

// UploadLimits are the constraints checked before the content is read
type UploadLimits struct {
	MaxFileSize      int64
	AllowedMimeTypes []string
}

// ValidateFileUpload checks declared type, extension and size of an upload
func ValidateFileUpload(header *multipart.FileHeader, limits UploadLimits) error {
	if strings.TrimSpace(header.Filename) == "" {
		return fmt.Errorf("%w: filename cannot be empty", ErrNoFile)
	}

	contentType := header.Header.Get("Content-Type")
	if !isAllowedMimeType(contentType, limits.AllowedMimeTypes) {
		return fmt.Errorf("%w: content type %q not allowed", ErrNotSTL, contentType)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ModelExtension {
		return fmt.Errorf("%w: extension %q", ErrNotSTL, ext)
	}

	if header.Size > limits.MaxFileSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, header.Size, limits.MaxFileSize)
	}

	return nil
}

func isAllowedMimeType(contentType string, allowed []string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(contentType)
	}

	return slices.Contains(allowed, strings.ToLower(mediaType))
}

// SanitizeFilename strips directories and characters that are unsafe in file names
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)

	filename = strings.ReplaceAll(filename, "..", "")
	filename = strings.ReplaceAll(filename, ":", "")
	filename = strings.ReplaceAll(filename, "*", "")
	filename = strings.ReplaceAll(filename, "?", "")
	filename = strings.ReplaceAll(filename, "<", "")
	filename = strings.ReplaceAll(filename, ">", "")
	filename = strings.ReplaceAll(filename, "|", "")
	filename = strings.ReplaceAll(filename, "\"", "")
	filename = strings.TrimSpace(filename)

	if filename == "" || filename == "." || filename == "/" {
		filename = "upload" + ModelExtension
	}

	return filename
}

// storedName prefixes a sanitized name with a random UUID so concurrent
// uploads of the same file never share a path.
func storedName(filename string) string {
	return uuid.NewString() + "_" + SanitizeFilename(filename)
}

// outputName derives the G-code file name from a stored model name
func outputName(modelName string) string {
	ext := filepath.Ext(modelName)
	if strings.EqualFold(ext, ModelExtension) {
		modelName = strings.TrimSuffix(modelName, ext)
	}

	return modelName + OutputExtension
}

// isValidProfileName allows letters, digits, '-' and '_'
func isValidProfileName(name string) bool {
	if len(name) == 0 || len(name) > 64 {
		return false
	}

	for _, r := range name {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '-' || r == '_'

		if !isLetter && !isDigit && !isSpecial {
			return false
		}
	}

	return true
}

package webserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"slicequote/internal/gcode"
	"slicequote/internal/slicer"
)

var (
	ErrNoFile         = errors.New("no file uploaded")
	ErrNotSTL         = errors.New("not an STL file")
	ErrFileTooLarge   = errors.New("file size too large")
	ErrUnknownProfile = errors.New("unknown slicer profile")
	ErrFileCorrupted  = errors.New("file corrupted")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeInput      ErrorType = "input"
	ErrorTypeContent    ErrorType = "content"
	ErrorTypeConversion ErrorType = "conversion"
	ErrorTypeMetadata   ErrorType = "metadata"
	ErrorTypeInternal   ErrorType = "internal"
)

// ErrorResponse is the JSON body of every failed request. It never carries
// slicer output or other internal diagnostics.
type ErrorResponse struct {
	Error       string    `json:"error"`
	Type        ErrorType `json:"type"`
	Code        string    `json:"code"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Suggestions []string  `json:"suggestions,omitempty"`
}

type errorCategory struct {
	target error
	typ    ErrorType
	code   string
	status int
	hints  []string
}

var errorCategories = []errorCategory{
	{ErrNoFile, ErrorTypeInput, "no_file", http.StatusBadRequest, []string{"suggestion_select_file"}},
	{ErrNotSTL, ErrorTypeInput, "not_stl", http.StatusBadRequest, []string{"suggestion_stl_extension", "suggestion_export_stl"}},
	{ErrFileTooLarge, ErrorTypeInput, "file_too_large", http.StatusBadRequest, []string{"suggestion_reduce_size"}},
	{ErrUnknownProfile, ErrorTypeInput, "unknown_profile", http.StatusBadRequest, []string{"suggestion_pick_profile"}},
	{ErrFileCorrupted, ErrorTypeContent, "file_corrupted", http.StatusBadRequest, []string{"suggestion_export_stl", "suggestion_retry"}},
	{slicer.ErrConversionFailed, ErrorTypeConversion, "conversion_failed", http.StatusInternalServerError, []string{"suggestion_simplify_model", "suggestion_retry"}},
	{gcode.ErrMalformedLine, ErrorTypeMetadata, "metadata_malformed", http.StatusInternalServerError, []string{"suggestion_retry"}},
}

// CategorizeError analyzes an error and returns an appropriate ErrorResponse
func CategorizeError(err error) (ErrorResponse, int) {
	return CategorizeErrorWithLang(err, "en")
}

// CategorizeErrorWithLang maps an error to its translated response and HTTP status
func CategorizeErrorWithLang(err error, lang string) (ErrorResponse, int) {
	for _, c := range errorCategories {
		if err != nil && errors.Is(err, c.target) {
			return newErrorResponse(lang, c.typ, c.code, c.hints), c.status
		}
	}

	return newErrorResponse(lang, ErrorTypeInternal, "processing_error", []string{"suggestion_retry"}), http.StatusInternalServerError
}

func newErrorResponse(lang string, typ ErrorType, code string, hints []string) ErrorResponse {
	suggestions := make([]string, 0, len(hints))
	for _, key := range hints {
		suggestions = append(suggestions, GetTranslation(lang, key))
	}

	return ErrorResponse{
		Error:       GetTranslation(lang, "error_"+code),
		Type:        typ,
		Code:        code,
		Title:       GetTranslation(lang, "error_"+code+"_title"),
		Description: GetTranslation(lang, "error_"+code+"_description"),
		Suggestions: suggestions,
	}
}

// WriteErrorResponse writes a structured error response as JSON
func WriteErrorResponse(w http.ResponseWriter, err error) {
	WriteErrorResponseWithLang(w, err, "en")
}

// WriteErrorResponseWithLang writes a structured error response as JSON with language support
func WriteErrorResponseWithLang(w http.ResponseWriter, err error, lang string) {
	errorResp, statusCode := CategorizeErrorWithLang(err, lang)

	writeJSON(w, statusCode, errorResp)
}

// writeJSON encodes body before sending any header so that an encoding
// failure still ends up as a 500
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	var buf bytes.Buffer

	if jsonErr := json.NewEncoder(&buf).Encode(body); jsonErr != nil {
		slog.Error("Failed to encode JSON response", "error", jsonErr)

		buf.Reset()

		statusCode = http.StatusInternalServerError
		resp, _ := CategorizeError(jsonErr)

		if fallbackErr := json.NewEncoder(&buf).Encode(resp); fallbackErr != nil {
			buf.Reset()
			fmt.Fprintln(&buf, `{"error":"internal error"}`)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

package webserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slicequote/internal/gcode"
	"slicequote/internal/slicer"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedType   ErrorType
		expectedCode   string
		expectedStatus int
	}{
		{"no file", fmt.Errorf("%w: http: no such file", ErrNoFile), ErrorTypeInput, "no_file", http.StatusBadRequest},
		{"not stl", ErrNotSTL, ErrorTypeInput, "not_stl", http.StatusBadRequest},
		{"too large", fmt.Errorf("%w: 25000000 bytes", ErrFileTooLarge), ErrorTypeInput, "file_too_large", http.StatusBadRequest},
		{"unknown profile", ErrUnknownProfile, ErrorTypeInput, "unknown_profile", http.StatusBadRequest},
		{"corrupted", ErrFileCorrupted, ErrorTypeContent, "file_corrupted", http.StatusBadRequest},
		{"timeout", fmt.Errorf("%w after 15s", slicer.ErrTimeout), ErrorTypeConversion, "conversion_failed", http.StatusInternalServerError},
		{"exit status", slicer.ErrExitStatus, ErrorTypeConversion, "conversion_failed", http.StatusInternalServerError},
		{"malformed metadata", fmt.Errorf("line 3: %w: %w", gcode.ErrMalformedLine, strconv.ErrSyntax), ErrorTypeMetadata, "metadata_malformed", http.StatusInternalServerError},
		{"unknown error", errors.New("disk on fire"), ErrorTypeInternal, "processing_error", http.StatusInternalServerError},
		{"nil error", nil, ErrorTypeInternal, "processing_error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, status := CategorizeError(tt.err)

			assert.Equal(t, tt.expectedType, resp.Type)
			assert.Equal(t, tt.expectedCode, resp.Code)
			assert.Equal(t, tt.expectedStatus, status)
			assert.NotEmpty(t, resp.Title)
			assert.NotEmpty(t, resp.Description)
			assert.NotEmpty(t, resp.Suggestions)
		})
	}
}

func TestCategorizeErrorWithLang(t *testing.T) {
	en, _ := CategorizeErrorWithLang(ErrFileCorrupted, "en")
	uk, _ := CategorizeErrorWithLang(ErrFileCorrupted, "uk")

	assert.Equal(t, "File corrupted", en.Error)
	assert.Equal(t, "Файл пошкоджено", uk.Error)
	assert.Equal(t, en.Code, uk.Code)

	fallback, _ := CategorizeErrorWithLang(ErrFileCorrupted, "de")
	assert.Equal(t, en, fallback)
}

func TestWriteErrorResponseHidesDetails(t *testing.T) {
	w := httptest.NewRecorder()

	err := fmt.Errorf("%w: exit code 139: Segmentation fault in libslic3r", slicer.ErrExitStatus)
	WriteErrorResponse(w, err)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotContains(t, w.Body.String(), "Segmentation")
	assert.NotContains(t, w.Body.String(), "139")

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "conversion_failed", resp.Code)
}

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		body         any
		expectedCode int
		expectedKey  string
	}{
		{
			name:         "encodable body keeps status",
			statusCode:   http.StatusOK,
			body:         map[string]float64{"filament_used_cm3": 2.5},
			expectedCode: http.StatusOK,
			expectedKey:  "filament_used_cm3",
		},
		{
			name:         "nan becomes internal error",
			statusCode:   http.StatusOK,
			body:         map[string]float64{"filament_used_cm3": math.NaN()},
			expectedCode: http.StatusInternalServerError,
			expectedKey:  "error",
		},
		{
			name:         "infinity becomes internal error",
			statusCode:   http.StatusCreated,
			body:         map[string]float64{"filament_used_cm3": math.Inf(1)},
			expectedCode: http.StatusInternalServerError,
			expectedKey:  "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeJSON(w, tt.statusCode, tt.body)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var decoded map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
			assert.Contains(t, decoded, tt.expectedKey)
		})
	}
}

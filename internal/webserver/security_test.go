package webserver

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurity(t *testing.T) {
	t.Run("ValidateFileUpload", func(t *testing.T) {
		limits := UploadLimits{
			MaxFileSize:      100,
			AllowedMimeTypes: []string{"model/stl", "application/sla", "application/octet-stream"},
		}

		tests := []struct {
			name        string
			filename    string
			contentType string
			size        int
			expectedErr error
		}{
			{
				name:        "valid stl",
				filename:    "part.stl",
				contentType: "model/stl",
				size:        84,
			},
			{
				name:        "upper case extension",
				filename:    "PART.STL",
				contentType: "application/sla",
				size:        84,
			},
			{
				name:        "exactly at limit",
				filename:    "part.stl",
				contentType: "application/octet-stream",
				size:        100,
			},
			{
				name:        "one byte over limit",
				filename:    "part.stl",
				contentType: "model/stl",
				size:        101,
				expectedErr: ErrFileTooLarge,
			},
			{
				name:        "invalid extension",
				filename:    "part.obj",
				contentType: "model/stl",
				size:        10,
				expectedErr: ErrNotSTL,
			},
			{
				name:        "stl in the middle of the name",
				filename:    "part.stl.exe",
				contentType: "model/stl",
				size:        10,
				expectedErr: ErrNotSTL,
			},
			{
				name:        "disallowed content type",
				filename:    "part.stl",
				contentType: "text/plain",
				size:        10,
				expectedErr: ErrNotSTL,
			},
			{
				name:        "type is checked before size",
				filename:    "part.stl",
				contentType: "image/png",
				size:        1000,
				expectedErr: ErrNotSTL,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				header := createFileHeader(t, tt.filename, tt.contentType, bytes.Repeat([]byte("x"), tt.size))

				err := ValidateFileUpload(header, limits)
				if tt.expectedErr != nil {
					assert.True(t, errors.Is(err, tt.expectedErr), "got %v", err)
				} else {
					assert.NoError(t, err)
				}
			})
		}
	})

	t.Run("SanitizeFilename", func(t *testing.T) {
		tests := []struct {
			input    string
			expected string
		}{
			{"normal.stl", "normal.stl"},
			{"../../../etc/passwd", "passwd"},
			{"..\\..\\windows\\part.stl", "part.stl"},
			{"dir/sub/part.stl", "part.stl"},
			{"file:with*dangerous?chars.stl", "filewithdangerouschars.stl"},
			{"", "upload.stl"},
			{"..", "upload.stl"},
		}

		for _, tt := range tests {
			result := SanitizeFilename(tt.input)
			assert.Equal(t, tt.expected, result, "input %q", tt.input)
		}
	})

	t.Run("storedName is unique per call", func(t *testing.T) {
		const uploads = 50

		var (
			mu    sync.Mutex
			wg    sync.WaitGroup
			names = make(map[string]struct{}, uploads)
		)

		for range uploads {
			wg.Add(1)

			go func() {
				defer wg.Done()

				name := storedName("../same/part.stl")

				mu.Lock()
				names[name] = struct{}{}
				mu.Unlock()
			}()
		}

		wg.Wait()

		assert.Len(t, names, uploads)

		for name := range names {
			assert.True(t, strings.HasSuffix(name, "_part.stl"))
			assert.NotContains(t, name, "/")
		}
	})

	t.Run("outputName", func(t *testing.T) {
		assert.Equal(t, "abc_part.gcode", outputName("abc_part.stl"))
		assert.Equal(t, "abc_part.gcode", outputName("abc_part.STL"))
		assert.Equal(t, "abc_part.obj.gcode", outputName("abc_part.obj"))
	})

	t.Run("isValidProfileName", func(t *testing.T) {
		assert.True(t, isValidProfileName("default"))
		assert.True(t, isValidProfileName("pla_0-2mm"))
		assert.False(t, isValidProfileName(""))
		assert.False(t, isValidProfileName("../secret"))
		assert.False(t, isValidProfileName("with space"))
		assert.False(t, isValidProfileName(strings.Repeat("a", 65)))
	})
}

func createFileHeader(t *testing.T, filename, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()

	var b bytes.Buffer
	writer := multipart.NewWriter(&b)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)

	part, err := writer.CreatePart(h)
	require.NoError(t, err)

	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", &b)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1024*1024))

	file, header, err := req.FormFile("file")
	require.NoError(t, err)
	file.Close()

	return header
}

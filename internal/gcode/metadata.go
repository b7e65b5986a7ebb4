package gcode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	PrintTimePrefix = "; estimated printing time (normal mode)"
	FilamentPrefix  = "; filament used [cm3] = "

	maxLineSize = 1024 * 1024
)

// ErrMalformedLine is returned when a recognised metadata comment carries a value that cannot be read
var ErrMalformedLine = errors.New("malformed metadata line")

// SliceMetadata holds the summary comments the slicer writes into G-code.
// Nil fields mean the comment was not present.
type SliceMetadata struct {
	PrintTime       *string  `json:"print_time"`
	FilamentUsedCM3 *float64 `json:"filament_used_cm3"`
}

// Extract scans G-code once, line by line. When a comment appears more than
// once the last occurrence wins.
func Extract(r io.Reader) (SliceMetadata, error) {
	var meta SliceMetadata

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNum := int64(0)

	for scanner.Scan() {
		line := scanner.Text()
		lineNum++

		switch {
		case strings.HasPrefix(line, PrintTimePrefix):
			value, err := valueAfterEquals(line)
			if err != nil {
				return SliceMetadata{}, fmt.Errorf("print time at line %d: %w", lineNum, err)
			}

			meta.PrintTime = &value
		case strings.HasPrefix(line, FilamentPrefix):
			value, err := valueAfterEquals(line)
			if err != nil {
				return SliceMetadata{}, fmt.Errorf("filament volume at line %d: %w", lineNum, err)
			}

			volume, err := parseVolume(value)
			if err != nil {
				return SliceMetadata{}, fmt.Errorf("filament volume at line %d: %w", lineNum, err)
			}

			meta.FilamentUsedCM3 = &volume
		}
	}

	err := scanner.Err()
	if err != nil {
		return SliceMetadata{}, fmt.Errorf("failed to scan G-code: %w", err)
	}

	return meta, nil
}

// ExtractFile opens a G-code file and extracts its metadata
func ExtractFile(path string) (SliceMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return SliceMetadata{}, fmt.Errorf("failed to open G-code file %s: %w", path, err)
	}
	defer file.Close()

	return Extract(file)
}

// parseVolume accepts finite decimal numbers only
func parseVolume(value string) (float64, error) {
	if strings.ContainsAny(value, "xX") {
		return 0, fmt.Errorf("%w: hexadecimal value %q", ErrMalformedLine, value)
	}

	volume, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedLine, err)
	}

	if math.IsNaN(volume) || math.IsInf(volume, 0) {
		return 0, fmt.Errorf("%w: non-finite value %q", ErrMalformedLine, value)
	}

	return volume, nil
}

func valueAfterEquals(line string) (string, error) {
	_, value, found := strings.Cut(line, "=")
	if !found {
		return "", fmt.Errorf("%w: no '=' in %q", ErrMalformedLine, line)
	}

	return strings.TrimSpace(value), nil
}

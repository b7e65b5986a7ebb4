package stl

import (
	"bytes"
	"encoding/binary"
	"unicode/utf8"
)

const (
	// HeaderSize is the free-form header of a binary STL file
	HeaderSize = 80
	// MinBinarySize is the header plus the little-endian triangle count
	MinBinarySize = HeaderSize + 4
	// TriangleSize is one binary facet: normal, three vertices, attribute byte count
	TriangleSize = 50
)

// Encoding tells which STL flavour a byte sequence was recognised as
type Encoding string

const (
	EncodingUnknown Encoding = "unknown"
	EncodingASCII   Encoding = "ascii"
	EncodingBinary  Encoding = "binary"
)

var (
	asciiOpen  = []byte("solid")
	asciiClose = []byte("endsolid")
)

// IsASCII reports whether content is UTF-8 text bracketed by solid ... endsolid
func IsASCII(content []byte) bool {
	if !utf8.Valid(content) {
		return false
	}

	trimmed := bytes.TrimSpace(content)

	return bytes.HasPrefix(trimmed, asciiOpen) && bytes.HasSuffix(trimmed, asciiClose)
}

// IsBinary reports whether the length of content matches the triangle count
// stored at offset 80 exactly.
func IsBinary(content []byte) bool {
	count, ok := TriangleCount(content)
	if !ok {
		return false
	}

	expected := uint64(MinBinarySize) + uint64(count)*TriangleSize

	return uint64(len(content)) == expected
}

// TriangleCount reads the declared facet count of a binary STL
func TriangleCount(content []byte) (uint32, bool) {
	if len(content) < MinBinarySize {
		return 0, false
	}

	return binary.LittleEndian.Uint32(content[HeaderSize:MinBinarySize]), true
}

// Classify returns the encoding content was recognised as
func Classify(content []byte) Encoding {
	switch {
	case IsASCII(content):
		return EncodingASCII
	case IsBinary(content):
		return EncodingBinary
	default:
		return EncodingUnknown
	}
}

// Validate accepts content that is either an ASCII or a binary STL
func Validate(content []byte) bool {
	return Classify(content) != EncodingUnknown
}

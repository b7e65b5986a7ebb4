package types

// SliceRequest is one validated upload on its way to the slicer
type SliceRequest struct {
	OriginalName string
	StoredName   string
	ContentType  string
	Profile      string
	Content      []byte
}

// SliceResponse is returned to the client after a successful conversion.
// Nil metadata fields are encoded as null.
type SliceResponse struct {
	Filename        string   `json:"filename"`
	PrintTime       *string  `json:"print_time"`
	FilamentUsedCM3 *float64 `json:"filament_used_cm3"`
	Detail          string   `json:"detail"`
}

// ProfileList describes the slicer profiles a client may choose from
type ProfileList struct {
	Default  string   `json:"default"`
	Profiles []string `json:"profiles"`
}

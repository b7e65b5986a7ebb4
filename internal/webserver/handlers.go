package webserver

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"

	"slicequote/internal/config"
	"slicequote/internal/gcode"
	"slicequote/internal/stl"
	"slicequote/internal/types"
)

//go:embed www/*
var wwwFiles embed.FS

// Slicer converts a model file into G-code
type Slicer interface {
	Slice(ctx context.Context, modelPath, outputPath, profilePath string) error
}

// Server holds the dependencies shared by all handlers
type Server struct {
	cfg    *config.Config
	slicer Slicer
	index  *template.Template
}

// TemplateData holds data for template rendering
type TemplateData struct {
	Lang           string
	T              Translation
	Profiles       []string
	DefaultProfile string
}

func NewServer(cfg *config.Config, slicer Slicer) (*Server, error) {
	index, err := template.ParseFS(wwwFiles, "www/index_template.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse index template: %w", err)
	}

	return &Server{cfg: cfg, slicer: slicer, index: index}, nil
}

// Routes builds the handler tree with middleware applied
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.HomeHandler)
	mux.HandleFunc("/uploadfile/", s.UploadHandler)
	mux.HandleFunc("/upload", s.UploadHandler)
	mux.HandleFunc("/profiles", s.ProfilesHandler)
	mux.HandleFunc("/healthz", HealthHandler)
	mux.Handle("/www/", http.StripPrefix("/www/", StaticFileServer()))

	return RecoveryMiddleware(LoggingMiddleware(CompressionMiddleware(mux)))
}

func (s *Server) HomeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	lang := GetLanguageFromRequest(r)

	data := TemplateData{
		Lang:           lang,
		T:              GetTranslations(lang),
		Profiles:       s.profileNames(),
		DefaultProfile: s.cfg.Slicer.DefaultProfile,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	err := s.index.Execute(w, data)
	if err != nil {
		slog.Error("Error executing template:", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}
}

func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	log := slog.With("handler", "UploadHandler")
	log.Info("Received upload request", "remote_addr", r.RemoteAddr)

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	lang := GetLanguageFromRequest(r)

	req, err := s.receiveRequest(w, r)
	if err != nil {
		log.Warn("Upload rejected", "error", err)
		WriteErrorResponseWithLang(w, err, lang)

		return
	}

	log = log.With("filename", req.OriginalName, "stored_as", req.StoredName, "profile", req.Profile)

	encoding := stl.Classify(req.Content)
	if encoding == stl.EncodingUnknown {
		log.Warn("Upload is not a valid STL", "size", len(req.Content))
		WriteErrorResponseWithLang(w, fmt.Errorf("%w: %s", ErrFileCorrupted, req.OriginalName), lang)

		return
	}

	if count, ok := stl.TriangleCount(req.Content); ok && encoding == stl.EncodingBinary {
		log = log.With("triangles", count)
	}

	log.Info("Upload accepted", "encoding", encoding, "content_type", req.ContentType, "size", len(req.Content))

	resp, err := s.slice(r.Context(), req)
	if err != nil {
		log.Error("Request processing failed", "error", err)
		WriteErrorResponseWithLang(w, err, lang)

		return
	}

	if resp.PrintTime == nil {
		resp.Detail = GetTranslation(lang, "detail_no_print_time")
	} else {
		resp.Detail = GetTranslation(lang, "detail_success")
	}

	writeJSON(w, http.StatusOK, resp)

	log.Info("Request processed")
}

// slice stores the model, runs the slicer and reads the G-code summary.
// Metadata is only extracted after a successful slicer run.
func (s *Server) slice(ctx context.Context, req types.SliceRequest) (types.SliceResponse, error) {
	profilePath, ok := s.cfg.ProfilePath(req.Profile)
	if !ok {
		return types.SliceResponse{}, fmt.Errorf("%w: %s", ErrUnknownProfile, req.Profile)
	}

	modelPath := filepath.Join(s.cfg.Storage.UploadDir, req.StoredName)
	outputPath := filepath.Join(s.cfg.Storage.UploadDir, outputName(req.StoredName))

	if !s.cfg.Storage.KeepFiles {
		defer removeQuietly(modelPath)
		defer removeQuietly(outputPath)
	}

	err := os.WriteFile(modelPath, req.Content, 0644)
	if err != nil {
		return types.SliceResponse{}, fmt.Errorf("failed to write model file: %w", err)
	}

	err = s.slicer.Slice(ctx, modelPath, outputPath, profilePath)
	if err != nil {
		return types.SliceResponse{}, err
	}

	meta, err := gcode.ExtractFile(outputPath)
	if err != nil {
		return types.SliceResponse{}, err
	}

	return types.SliceResponse{
		Filename:        req.OriginalName,
		PrintTime:       meta.PrintTime,
		FilamentUsedCM3: meta.FilamentUsedCM3,
	}, nil
}

func (s *Server) receiveRequest(w http.ResponseWriter, r *http.Request) (types.SliceRequest, error) {
	var req types.SliceRequest

	maxBody := s.cfg.Upload.MaxFileSize + MaxFormOverhead

	// Refuse before reading anything when the client already tells us the body is too big
	if r.ContentLength > maxBody {
		return req, fmt.Errorf("%w: request body of %d bytes", ErrFileTooLarge, r.ContentLength)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	err := r.ParseMultipartForm(MaxFormMemory)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return req, fmt.Errorf("%w: request body over %d bytes", ErrFileTooLarge, maxErr.Limit)
		}

		return req, fmt.Errorf("%w: form parsing error: %w", ErrNoFile, err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return req, fmt.Errorf("%w: %w", ErrNoFile, err)
	}
	defer file.Close()

	limits := UploadLimits{
		MaxFileSize:      s.cfg.Upload.MaxFileSize,
		AllowedMimeTypes: s.cfg.Upload.AllowedMimeTypes,
	}

	err = ValidateFileUpload(header, limits)
	if err != nil {
		return req, err
	}

	req.Profile = r.FormValue("profile")
	if req.Profile != "" {
		if !isValidProfileName(req.Profile) {
			return req, fmt.Errorf("%w: invalid profile name", ErrUnknownProfile)
		}

		if _, ok := s.cfg.ProfilePath(req.Profile); !ok {
			return req, fmt.Errorf("%w: %s", ErrUnknownProfile, req.Profile)
		}
	}

	req.Content, err = io.ReadAll(io.LimitReader(file, s.cfg.Upload.MaxFileSize+1))
	if err != nil {
		return req, fmt.Errorf("file read error: %w", err)
	}

	if int64(len(req.Content)) > s.cfg.Upload.MaxFileSize {
		return req, fmt.Errorf("%w: content exceeds %d bytes", ErrFileTooLarge, s.cfg.Upload.MaxFileSize)
	}

	req.OriginalName = header.Filename
	req.StoredName = storedName(header.Filename)
	req.ContentType = header.Header.Get("Content-Type")

	return req, nil
}

func removeQuietly(path string) {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to remove working file", "path", path, "error", err)
	}
}

func (s *Server) profileNames() []string {
	names := make([]string, 0, len(s.cfg.Slicer.Profiles))
	for name := range s.cfg.Slicer.Profiles {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// ProfilesHandler lists the configured slicer profiles
func (s *Server) ProfilesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, types.ProfileList{
		Default:  s.cfg.Slicer.DefaultProfile,
		Profiles: s.profileNames(),
	})
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func StaticFileServer() http.Handler {
	subFS, err := fs.Sub(wwwFiles, "www")
	if err != nil {
		slog.Error("Failed to create sub-filesystem", "error", err)
		return http.FileServer(http.FS(wwwFiles))
	}

	return http.FileServer(http.FS(subFS))
}

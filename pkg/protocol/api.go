// Package protocol defines the API request/response types of the remote
// file store.
package protocol

// ListResponse is returned by GET /api/files.
type ListResponse struct {
	Files []string `json:"files"`
}

// PreviewResponse is returned by GET /api/preview/{filename}.
type PreviewResponse struct {
	Preview []string `json:"preview"`
}

// LoginRequest is the body for POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /api/login.
type LoginResponse struct {
	Token string `json:"token"`
}

// UploadResponse is returned by POST /api/upload.
type UploadResponse struct {
	Filename string `json:"filename"`
}

// MessageResponse is returned by mutating endpoints (delete, rename,
// create folder).
type MessageResponse struct {
	Message string `json:"message"`
}

// TempTokenResponse is returned by POST /api/generate-temp-token/{filename}.
type TempTokenResponse struct {
	TempToken string `json:"temp_token"`
}

// ShortURLResponse is returned by GET /api/make_short. ShortURL is a
// server-relative path such as "/short/Ab12Cd".
type ShortURLResponse struct {
	ShortURL string `json:"short_url"`
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Endpoint paths.
const (
	PathLogin        = "/api/login"
	PathFiles        = "/api/files"
	PathPreview      = "/api/preview/"
	PathUpload       = "/api/upload"
	PathRename       = "/api/rename/"
	PathCreateFolder = "/api/create_folder"
	PathTempToken    = "/api/generate-temp-token/"
	PathMakeShort    = "/api/make_short"
	PathPrivate      = "/private/"
	PathPublic       = "/public/"
)

// UploadField is the multipart form field carrying the uploaded file.
const UploadField = "file"

// Package filestoretest provides an in-memory fake of the remote file store
// API for tests.
package filestoretest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ayxkaddd/FilesBoard/pkg/models"
	"github.com/ayxkaddd/FilesBoard/pkg/protocol"
)

// PreviewLines is the number of lines the server returns for a preview.
const PreviewLines = 15

var signingKey = []byte("filestoretest")

// Server is a fake file store. Folders are keyed by their slash-joined path
// ("" is the root).
type Server struct {
	*httptest.Server

	// Username and Password are accepted by /api/login.
	Username string
	Password string

	// Hook runs before every request. A non-zero status short-circuits the
	// request with that status.
	Hook func(r *http.Request) int

	mu       sync.Mutex
	token    string
	folders  map[string]map[string][]byte // folder -> file name -> content
	shorts   map[string]string
	requests []string
}

// New starts a fake server holding an empty root folder.
func New() *Server {
	s := &Server{
		Username: "alice",
		Password: "secret",
		folders:  map[string]map[string][]byte{"": {}},
		shorts:   make(map[string]string),
	}
	s.token = s.sign(jwt.MapClaims{"sub": s.Username, "exp": time.Now().Add(24 * time.Hour).Unix()})
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Token returns the bearer token the server accepts.
func (s *Server) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// PutFile stores a file, creating its folder chain as needed.
func (s *Server) PutFile(folder, name, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureFolder(folder)
	s.folders[folder][name] = []byte(content)
}

// MkdirAll creates a folder chain.
func (s *Server) MkdirAll(folder string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureFolder(folder)
}

// Has reports whether folder contains name (file or subfolder).
func (s *Server) Has(folder, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.list(folder) {
		if n == name {
			return true
		}
	}
	return false
}

// Requests returns the "METHOD /path" log of API calls in arrival order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// CountRequests returns how many logged requests start with prefix.
func (s *Server) CountRequests(prefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

// ShortTarget returns the URL registered for a short path.
func (s *Server) ShortTarget(short string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.shorts[short]
	return target, ok
}

func (s *Server) sign(claims jwt.MapClaims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return token
}

func (s *Server) ensureFolder(folder string) {
	if folder == "" {
		return
	}
	parts := strings.Split(folder, "/")
	for i := range parts {
		p := strings.Join(parts[:i+1], "/")
		if _, ok := s.folders[p]; !ok {
			s.folders[p] = make(map[string][]byte)
		}
	}
}

func (s *Server) list(folder string) []string {
	files, ok := s.folders[folder]
	if !ok {
		return nil
	}
	var names []string
	for name := range files {
		names = append(names, name)
	}
	prefix := folder + "/"
	if folder == "" {
		prefix = ""
	}
	for p := range s.folders {
		if p == "" || !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if rest != "" && !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, protocol.ErrorResponse{Detail: detail})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	s.mu.Unlock()

	if s.Hook != nil {
		if status := s.Hook(r); status != 0 {
			writeError(w, status, http.StatusText(status))
			return
		}
	}

	p := r.URL.Path
	if r.Method == http.MethodPost && p == protocol.PathLogin {
		s.login(w, r)
		return
	}
	if strings.HasPrefix(p, protocol.PathPrivate) {
		s.private(w, r, strings.TrimPrefix(p, protocol.PathPrivate))
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+s.Token() {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	folder := r.URL.Query().Get("folder")
	switch {
	case r.Method == http.MethodGet && p == protocol.PathFiles:
		s.mu.Lock()
		_, ok := s.folders[folder]
		names := s.list(folder)
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "Folder not found")
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, protocol.ListResponse{Files: names})
	case r.Method == http.MethodGet && strings.HasPrefix(p, protocol.PathPreview):
		s.preview(w, folder, strings.TrimPrefix(p, protocol.PathPreview))
	case r.Method == http.MethodPost && p == protocol.PathUpload:
		s.upload(w, r, folder)
	case r.Method == http.MethodDelete && strings.HasPrefix(p, protocol.PathFiles+"/"):
		s.remove(w, folder, strings.TrimPrefix(p, protocol.PathFiles+"/"))
	case r.Method == http.MethodPut && strings.HasPrefix(p, protocol.PathRename):
		s.rename(w, folder, strings.TrimPrefix(p, protocol.PathRename), r.URL.Query().Get("new_name"))
	case r.Method == http.MethodPost && p == protocol.PathCreateFolder:
		s.createFolder(w, folder, r.URL.Query().Get("folder_name"))
	case r.Method == http.MethodPost && strings.HasPrefix(p, protocol.PathTempToken):
		s.tempToken(w, folder, strings.TrimPrefix(p, protocol.PathTempToken))
	case r.Method == http.MethodGet && p == protocol.PathMakeShort:
		s.makeShort(w, r.URL.Query().Get("url"))
	default:
		writeError(w, http.StatusNotFound, "Not Found")
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req protocol.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if req.Username != s.Username || req.Password != s.Password {
		writeError(w, http.StatusUnauthorized, "Invalid username and/or password")
		return
	}
	writeJSON(w, http.StatusOK, protocol.LoginResponse{Token: s.Token()})
}

func (s *Server) lookup(folder, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, ok := s.folders[folder]
	if !ok {
		return nil, false
	}
	data, ok := files[name]
	return data, ok
}

func (s *Server) private(w http.ResponseWriter, r *http.Request, name string) {
	data, ok := s.lookup(r.URL.Query().Get("folder"), name)
	if !ok {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (s *Server) preview(w http.ResponseWriter, folder, name string) {
	data, ok := s.lookup(folder, name)
	if !ok {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	if models.Classify(name).Kind != models.KindText {
		writeError(w, http.StatusBadRequest, "File type not supported for preview")
		return
	}
	lines := []string{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() && len(lines) < PreviewLines {
		lines = append(lines, sc.Text()+"\n")
	}
	writeJSON(w, http.StatusOK, protocol.PreviewResponse{Preview: lines})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request, folder string) {
	f, hdr, err := r.FormFile(protocol.UploadField)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "missing file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	files, ok := s.folders[folder]
	if ok {
		files[hdr.Filename] = data
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Folder not found")
		return
	}
	writeJSON(w, http.StatusOK, protocol.UploadResponse{Filename: hdr.Filename})
}

func (s *Server) remove(w http.ResponseWriter, folder, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if files, ok := s.folders[folder]; ok {
		if _, ok := files[name]; ok {
			delete(files, name)
			writeJSON(w, http.StatusOK, protocol.MessageResponse{Message: fmt.Sprintf("File %s deleted successfully", name)})
			return
		}
	}
	sub := path.Join(folder, name)
	if _, ok := s.folders[sub]; ok && sub != "" {
		for p := range s.folders {
			if p == sub || strings.HasPrefix(p, sub+"/") {
				delete(s.folders, p)
			}
		}
		writeJSON(w, http.StatusOK, protocol.MessageResponse{Message: fmt.Sprintf("Folder %s deleted successfully", name)})
		return
	}
	writeError(w, http.StatusNotFound, "File not found")
}

func (s *Server) rename(w http.ResponseWriter, folder, oldName, newName string) {
	if newName == "" {
		writeError(w, http.StatusBadRequest, "new_name is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	files, ok := s.folders[folder]
	if !ok {
		writeError(w, http.StatusNotFound, "Folder not found")
		return
	}
	data, ok := files[oldName]
	if !ok {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	if _, exists := files[newName]; exists {
		writeError(w, http.StatusConflict, "Target already exists")
		return
	}
	delete(files, oldName)
	files[newName] = data
	writeJSON(w, http.StatusOK, protocol.MessageResponse{Message: "renamed"})
}

func (s *Server) createFolder(w http.ResponseWriter, folder, name string) {
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, "invalid folder name")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[folder]; !ok {
		writeError(w, http.StatusNotFound, "Folder not found")
		return
	}
	sub := path.Join(folder, name)
	if _, ok := s.folders[sub]; ok {
		writeError(w, http.StatusConflict, "Folder already exists")
		return
	}
	s.folders[sub] = make(map[string][]byte)
	writeJSON(w, http.StatusOK, protocol.MessageResponse{Message: "created"})
}

func (s *Server) tempToken(w http.ResponseWriter, folder, name string) {
	if _, ok := s.lookup(folder, name); !ok {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	token := s.sign(jwt.MapClaims{
		"filename": name,
		"exp":      time.Now().Add(15 * time.Minute).Unix(),
	})
	writeJSON(w, http.StatusOK, protocol.TempTokenResponse{TempToken: token})
}

func (s *Server) makeShort(w http.ResponseWriter, target string) {
	if target == "" {
		writeError(w, http.StatusUnprocessableEntity, "url is required")
		return
	}
	s.mu.Lock()
	short := fmt.Sprintf("/short/s%05d", len(s.shorts)+1)
	s.shorts[short] = target
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, protocol.ShortURLResponse{ShortURL: short})
}

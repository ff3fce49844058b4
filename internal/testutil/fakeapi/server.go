// Package fakeapi is an in-memory back-office API for tests.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"smartcheck/internal/core/domain/models"
)

// Request is one request received by the server.
type Request struct {
	Method string
	Path   string
	Token  string
}

type failure struct {
	status int
	detail string
}

// Server holds the fake API state. All methods are safe for concurrent use.
type Server struct {
	URL string

	mu        sync.Mutex
	users     map[int64]models.User
	passwords map[int64]string
	tokens    map[string]int64
	batches   map[int64]models.DocumentBatch
	files     map[int64][]byte
	scripts   map[int64][]models.DocumentBatchUpdate
	deals     map[int64]models.Deal
	failures  map[string][]failure
	requests  []Request
	nextID    int64
	now       func() time.Time
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		users:     make(map[int64]models.User),
		passwords: make(map[int64]string),
		tokens:    make(map[string]int64),
		batches:   make(map[int64]models.DocumentBatch),
		files:     make(map[int64][]byte),
		scripts:   make(map[int64][]models.DocumentBatchUpdate),
		deals:     make(map[int64]models.Deal),
		failures:  make(map[string][]failure),
		now:       time.Now,
	}
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	s.URL = ts.URL
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/logout", s.authed(s.handleLogout))
	mux.HandleFunc("GET /users", s.authed(s.handleListUsers))
	mux.HandleFunc("POST /users", s.admin(s.handleCreateUser))
	mux.HandleFunc("GET /users/{id}", s.authed(s.handleGetUser))
	mux.HandleFunc("PUT /users/{id}", s.admin(s.handleUpdateUser))
	mux.HandleFunc("DELETE /users/{id}", s.admin(s.handleDeleteUser))
	mux.HandleFunc("POST /api/document-batches/upload", s.authed(s.handleUpload))
	mux.HandleFunc("GET /api/document-batches/{$}", s.authed(s.handleListBatches))
	mux.HandleFunc("GET /api/document-batches/{id}", s.authed(s.handleGetBatch))
	mux.HandleFunc("PUT /api/document-batches/{id}", s.authed(s.handleUpdateBatch))
	mux.HandleFunc("DELETE /api/document-batches/{id}", s.authed(s.handleDeleteBatch))
	mux.HandleFunc("GET /api/document-batches/{id}/download", s.authed(s.handleDownloadBatch))
	mux.HandleFunc("GET /api/deals/{id}", s.authed(s.handleGetDeal))
	// "batch/{id}" and "{id}/download" overlap as patterns, so one handler
	// tells them apart.
	mux.HandleFunc("GET /api/deals/{first}/{second}", s.authed(s.handleDealsPair))
	mux.HandleFunc("GET /api/deals/{id}/download/{part}", s.authed(s.handleDownloadDeal))

	return s.record(mux)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Token: bearer(r)})
		var f *failure
		key := r.Method + " " + r.URL.Path
		if queue := s.failures[key]; len(queue) > 0 {
			f = &queue[0]
			s.failures[key] = queue[1:]
		}
		s.mu.Unlock()

		if f != nil {
			writeError(w, f.status, f.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authed(h func(http.ResponseWriter, *http.Request, models.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		uid, ok := s.tokens[bearer(r)]
		user := s.users[uid]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		h(w, r, user)
	}
}

func (s *Server) admin(h func(http.ResponseWriter, *http.Request, models.User)) http.HandlerFunc {
	return s.authed(func(w http.ResponseWriter, r *http.Request, u models.User) {
		if u.Role != models.RoleAdmin {
			writeError(w, http.StatusForbidden, "Admin privileges required")
			return
		}
		h(w, r, u)
	})
}

// AddUser registers an active account.
func (s *Server) AddUser(username, password string, role models.UserRole) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u := models.User{
		ID:        s.nextID,
		Username:  username,
		Email:     username + "@bank.test",
		Role:      role,
		Status:    models.UserActive,
		CreatedAt: models.Timestamp{Time: s.now().UTC()},
	}
	s.users[u.ID] = u
	s.passwords[u.ID] = password
	return u
}

// Token issues a valid token for an existing user without a login request.
func (s *Server) Token(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.tokens[token] = userID
	return token
}

// RevokeTokens invalidates every issued token, as a server-side expiry would.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	s.tokens = make(map[string]int64)
	s.mu.Unlock()
}

// AddBatch stores a batch and returns it with its assigned id.
func (s *Server) AddBatch(b models.DocumentBatch) models.DocumentBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	b.ID = s.nextID
	if b.Status == "" {
		b.Status = models.BatchProcessing
	}
	if b.UploadTime.IsZero() {
		b.UploadTime = models.Timestamp{Time: s.now().UTC()}
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = b.UploadTime
	}
	s.batches[b.ID] = b
	return b
}

// Script queues updates applied to a batch, one per batch listing.
func (s *Server) Script(batchID int64, steps ...models.DocumentBatchUpdate) {
	s.mu.Lock()
	s.scripts[batchID] = append(s.scripts[batchID], steps...)
	s.mu.Unlock()
}

// Batch returns the current server copy of a batch.
func (s *Server) Batch(id int64) (models.DocumentBatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	return b, ok
}

// AddDeal attaches a deal to its batch and returns it with its assigned id.
func (s *Server) AddDeal(d models.Deal) models.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	d.ID = s.nextID
	s.deals[d.ID] = d
	return d
}

// Fail makes the next request matching "METHOD /path" fail with status.
func (s *Server) Fail(methodPath string, status int, detail string) {
	s.mu.Lock()
	s.failures[methodPath] = append(s.failures[methodPath], failure{status: status, detail: detail})
	s.mu.Unlock()
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests matched method and path.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if (u.Username == req.EmailOrUsername || u.Email == req.EmailOrUsername) && s.passwords[id] == req.Password {
			if u.Status != models.UserActive {
				writeError(w, http.StatusForbidden, "Account is inactive")
				return
			}
			token := uuid.NewString()
			s.tokens[token] = id
			writeJSON(w, http.StatusOK, models.LoginResponse{
				AccessToken: token,
				TokenType:   "bearer",
				ExpiresIn:   3600,
				UserID:      id,
				Username:    u.Username,
				Role:        string(u.Role),
			})
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "Incorrect username or password")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ models.User) {
	s.mu.Lock()
	delete(s.tokens, bearer(r))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, _ models.User) {
	q := r.URL.Query()
	s.mu.Lock()
	var out []models.User
	for _, u := range s.users {
		if term := q.Get("search_term"); term != "" && !strings.Contains(u.Username, term) && !strings.Contains(u.Email, term) {
			continue
		}
		if role := q.Get("role"); role != "" && string(u.Role) != role {
			continue
		}
		if status := q.Get("status"); status != "" && string(u.Status) != status {
			continue
		}
		out = append(out, u)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, paginate(out, q.Get("skip"), q.Get("limit")))
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request, _ models.User) {
	var req models.UserCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Email == "" {
		writeValidation(w, "username", "field required")
		return
	}
	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	u := s.AddUser(req.Username, req.Password, role)
	s.mu.Lock()
	u.Email = req.Email
	u.FirstName = req.FirstName
	u.LastName = req.LastName
	u.JobTitle = req.JobTitle
	if req.Status != "" {
		u.Status = req.Status
	}
	s.users[u.ID] = u
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, _ models.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	u, found := s.users[id]
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request, _ models.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.UserUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, found := s.users[id]
	if !found {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if req.Username != nil {
		u.Username = *req.Username
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
	}
	if req.JobTitle != nil {
		u.JobTitle = *req.JobTitle
	}
	if req.Role != nil {
		u.Role = *req.Role
	}
	if req.Status != nil {
		u.Status = *req.Status
	}
	u.UpdatedAt = &models.Timestamp{Time: s.now().UTC()}
	s.users[id] = u
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request, _ models.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.users[id]; !found {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	delete(s.users, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, u models.User) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeValidation(w, "file", "field required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}
	if !strings.HasPrefix(string(content), "%PDF-") {
		writeError(w, http.StatusBadRequest, "Only PDF files are allowed")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}
	b := s.AddBatch(models.DocumentBatch{
		Name:             name,
		UploadedByUserID: u.ID,
		UploadedBy:       u.Username,
		TotalPages:       strings.Count(string(content), "/Type /Page\n"),
		FilePath:         "uploads/" + header.Filename,
		FileSize:         int64(len(content)),
		MimeType:         "application/pdf",
	})
	s.mu.Lock()
	s.files[b.ID] = content
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request, _ models.User) {
	s.mu.Lock()
	out := make([]models.DocumentBatch, 0, len(s.batches))
	for id, b := range s.batches {
		if steps := s.scripts[id]; len(steps) > 0 {
			b = s.applyUpdate(b, steps[0])
			s.scripts[id] = steps[1:]
		}
		out = append(out, b)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, paginate(out, q.Get("skip"), q.Get("limit")))
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request, _ models.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, found := s.Batch(id)
	if !found {
		writeError(w, http.StatusNotFound, "Document batch not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUpdateBatch(w http.ResponseWriter, r *http.Request, _ models.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var upd models.DocumentBatchUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, found := s.batches[id]
	if !found {
		writeError(w, http.StatusNotFound, "Document batch not found")
		return
	}
	b = s.applyUpdate(b, upd)
	writeJSON(w, http.StatusOK, b)
}

// applyUpdate stores the result; the caller holds s.mu.
func (s *Server) applyUpdate(b models.DocumentBatch, upd models.DocumentBatchUpdate) models.DocumentBatch {
	if upd.Name != nil {
		b.Name = *upd.Name
	}
	if upd.TotalPages != nil {
		b.TotalPages = *upd.TotalPages
	}
	if upd.DealsDetected != nil {
		b.DealsDetected = *upd.DealsDetected
	}
	if upd.Status != nil {
		b.Status = *upd.Status
	}
	if upd.ProcessProgress != nil {
		b.ProcessProgress = *upd.ProcessProgress
	}
	if upd.PageMap != nil {
		b.PageMap = upd.PageMap
	}
	b.UpdatedAt = &models.Timestamp{Time: s.now().UTC()}
	s.batches[b.ID] = b
	return b
}

func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request, _ models.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.batches[id]; !found {
		writeError(w, http.StatusNotFound, "Document batch not found")
		return
	}
	delete(s.batches, id)
	delete(s.files, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownloadBatch(w http.ResponseWriter, r *http.Request, _ models.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	content, found := s.files[id]
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	_, _ = w.Write(content)
}

func (s *Server) handleDealsPair(w http.ResponseWriter, r *http.Request, u models.User) {
	first, second := r.PathValue("first"), r.PathValue("second")
	switch {
	case first == "batch":
		r.SetPathValue("id", second)
		s.handleListDeals(w, r, u)
	case second == "download":
		r.SetPathValue("id", first)
		s.handleDownloadDeal(w, r, u)
	default:
		writeError(w, http.StatusNotFound, "Not Found")
	}
}

func (s *Server) handleListDeals(w http.ResponseWriter, r *http.Request, _ models.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	out := []models.Deal{}
	for _, d := range s.deals {
		if d.BatchID == id {
			out = append(out, d)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDeal(w http.ResponseWriter, r *http.Request, _ models.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	d, found := s.deals[id]
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "Deal not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDownloadDeal(w http.ResponseWriter, r *http.Request, _ models.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	part := r.PathValue("part")
	if part == "" {
		part = string(models.DealPartFull)
	}
	if part != string(models.DealPartFull) && part != string(models.DealPartSpendingUnit) && part != string(models.DealPartReceivingUnit) {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	s.mu.Lock()
	_, found := s.deals[id]
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "Deal not found")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	_, _ = w.Write(DealPDF(id, models.DealPart(part)))
}

// DealPDF is the body served for a deal download.
func DealPDF(id int64, part models.DealPart) []byte {
	return []byte(fmt.Sprintf("%%PDF-1.4\n%% deal %d %s\n%%%%EOF\n", id, part))
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeValidation(w, "id", "value is not a valid integer")
		return 0, false
	}
	return id, true
}

func paginate[T any](items []T, skipParam, limitParam string) []T {
	skip, _ := strconv.Atoi(skipParam)
	limit, err := strconv.Atoi(limitParam)
	if err != nil || limit <= 0 {
		limit = 100
	}
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeValidation(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{{"loc": []string{"body", field}, "msg": msg, "type": "value_error"}},
	})
}

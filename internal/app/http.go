package app

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HansvanLeerdam/extrusion-crm-app/internal/crm"
	"github.com/HansvanLeerdam/extrusion-crm-app/internal/search"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"cache": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["cache"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/data" {
		doc, revision := s.service.Data()
		writeJSON(w, http.StatusOK, map[string]any{"data": doc, "revision": revision})
		return
	}

	if r.Method == http.MethodPut && r.URL.Path == "/api/data" {
		var doc crm.Document
		if err := decodeBody(r, &doc); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc = s.service.SetData(doc)
		writeJSON(w, http.StatusOK, map[string]any{"data": doc})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/load" {
		doc, revision, err := s.service.LoadRemote(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": doc, "revision": revision})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/save" {
		revision, err := s.service.SaveRemote(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "revision": revision})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/import" {
		s.handleImport(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/export.xlsx" {
		var buf bytes.Buffer
		if err := s.service.ExportWorkbook(&buf); err != nil {
			s.fail(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="crm-data.xlsx"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/followups.ics" {
		feed := s.service.CalendarFeed()
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="followups.ics"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(feed))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/history" {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", nil)
				return
			}
			limit = parsed
		}
		commits, err := s.service.History(r.Context(), limit)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"commits": commits})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		query := search.Query{
			Text: r.URL.Query().Get("q"),
			Type: search.ResultType(r.URL.Query().Get("type")),
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				query.Limit = parsed
			}
		}
		writeJSON(w, http.StatusOK, s.service.Search(query))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/clients" {
		var body struct {
			Name    string      `json:"name"`
			Country string      `json:"country"`
			Contact crm.Contact `json:"contact"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		client, err := s.service.AddClient(body.Name, body.Country, body.Contact)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, client)
		return
	}

	parts := splitPath(r.URL.Path)

	// /api/clients/{id}/contacts/{idx}
	if len(parts) == 5 && parts[0] == "api" && parts[1] == "clients" && parts[3] == "contacts" {
		idx, err := strconv.Atoi(parts[4])
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_INDEX", "contact index must be an integer", nil)
			return
		}
		switch r.Method {
		case http.MethodPut:
			var contact crm.Contact
			if err := decodeBody(r, &contact); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.UpdateClientContact(parts[2], idx, contact); err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		case http.MethodDelete:
			if err := s.service.DeleteClientContact(parts[2], idx); err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	// /api/partners/{id}/contacts/{idx}
	if r.Method == http.MethodDelete && len(parts) == 5 && parts[0] == "api" && parts[1] == "partners" && parts[3] == "contacts" {
		idx, err := strconv.Atoi(parts[4])
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_INDEX", "contact index must be an integer", nil)
			return
		}
		if err := s.service.DeletePartnerContact(parts[2], idx); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/products" {
		var body struct {
			PartnerID string `json:"partnerId"`
			Product   string `json:"product"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc, err := s.service.AddProduct(body.PartnerID, body.Product)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"products": doc.Products})
		return
	}

	// /api/products/{partnerKey}/{idx}
	if r.Method == http.MethodDelete && len(parts) == 4 && parts[0] == "api" && parts[1] == "products" {
		idx, err := strconv.Atoi(parts[3])
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_INDEX", "product index must be an integer", nil)
			return
		}
		if err := s.service.DeleteProduct(parts[2], idx); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/followups" {
		var followup crm.Followup
		if err := decodeBody(r, &followup); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		created, err := s.service.AddFollowup(followup)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
		return
	}

	// /api/followups/{id}
	if len(parts) == 3 && parts[0] == "api" && parts[1] == "followups" {
		switch r.Method {
		case http.MethodPut:
			var followup crm.Followup
			if err := decodeBody(r, &followup); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.UpdateFollowup(parts[2], followup); err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		case http.MethodDelete:
			if err := s.service.DeleteFollowup(parts[2]); err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	// /api/projects/{id}
	if r.Method == http.MethodDelete && len(parts) == 3 && parts[0] == "api" && parts[1] == "projects" {
		if err := s.service.DeleteProject(parts[2]); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// handleImport accepts the workbook either as a multipart "file" field
// or as the raw request body.
func (s *HTTPServer) handleImport(w http.ResponseWriter, r *http.Request) {
	reader := r.Body
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "missing file field", nil)
			return
		}
		defer file.Close()
		reader = file
	}

	doc, err := s.service.ImportWorkbook(reader)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": doc})
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("app: %v", err)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, crm.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

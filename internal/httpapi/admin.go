package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mzDeaThly/data-spf/internal/registry/service"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

// maxImportBody caps CSV uploads.
const maxImportBody = 10 << 20

func (s *Server) registerAdminRoutes() {
	h := func(pattern string, fn http.HandlerFunc) {
		s.mux.HandleFunc(pattern, s.adminOnly(fn))
	}

	h("GET /admin/stats", s.handleStats)

	h("GET /admin/vehicles", s.handleListVehicles)
	h("POST /admin/vehicles", s.handleCreateVehicle)
	h("POST /admin/vehicles/import", s.handleImportVehicles)
	h("GET /admin/vehicles/{id}", s.handleGetVehicle)
	h("PUT /admin/vehicles/{id}", s.handleUpdateVehicle)
	h("DELETE /admin/vehicles/{id}", s.handleDeleteVehicle)

	for path, kind := range map[string]types.PermissionKind{
		"/admin/line/users":  types.PermissionUser,
		"/admin/line/groups": types.PermissionGroup,
	} {
		h("GET "+path, s.handleListPermissions(kind))
		h("POST "+path, s.handleCreatePermission(kind))
		h("PUT "+path+"/{id}", s.handleUpdatePermission(kind))
		h("DELETE "+path+"/{id}", s.handleDeletePermission(kind))
	}

	h("GET /admin/audit", s.handleAudit)
	h("POST /admin/admins", s.handleCreateAdmin)
}

// writeServiceError maps service sentinels onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, service.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already_exists", "resource already exists")
	default:
		s.logger.Error(op+" failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.admin.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ── Vehicles ─────────────────────────────────────────────────────────────────

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	vs, err := s.admin.ListVehicles(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeServiceError(w, r, "list vehicles", err)
		return
	}
	if vs == nil {
		vs = []types.Vehicle{}
	}
	writeJSON(w, http.StatusOK, vs)
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return
	}
	v, err := s.admin.GetVehicle(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, "get vehicle", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	var in types.VehicleInput
	if !decodeJSON(w, r, &in) {
		return
	}
	v, err := s.admin.CreateVehicle(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, "create vehicle", err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleUpdateVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return
	}
	var in types.VehicleInput
	if !decodeJSON(w, r, &in) {
		return
	}
	v, err := s.admin.UpdateVehicle(r.Context(), id, in)
	if err != nil {
		s.writeServiceError(w, r, "update vehicle", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return
	}
	if err := s.admin.DeleteVehicle(r.Context(), id); err != nil {
		s.writeServiceError(w, r, "delete vehicle", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImportVehicles accepts either a raw text/csv body or a multipart
// form with the file under "file".
func (s *Server) handleImportVehicles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)

	var src io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		f, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing_file", "multipart field \"file\" is required")
			return
		}
		defer f.Close()
		src = f
	}

	res, err := s.admin.ImportVehiclesCSV(r.Context(), src)
	if err != nil {
		s.writeServiceError(w, r, "import vehicles", err)
		return
	}
	s.logger.Info("vehicles imported",
		zap.String("request_id", RequestID(r.Context())),
		zap.Int("imported", res.Imported),
		zap.Int("skipped", len(res.Skipped)))
	writeJSON(w, http.StatusOK, res)
}

// ── LINE permissions ─────────────────────────────────────────────────────────

func (s *Server) handleListPermissions(kind types.PermissionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ps, err := s.admin.ListPermissions(r.Context(), kind)
		if err != nil {
			s.writeServiceError(w, r, "list permissions", err)
			return
		}
		if ps == nil {
			ps = []types.Permission{}
		}
		writeJSON(w, http.StatusOK, ps)
	}
}

func (s *Server) handleCreatePermission(kind types.PermissionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in types.PermissionInput
		if !decodeJSON(w, r, &in) {
			return
		}
		p, err := s.admin.CreatePermission(r.Context(), kind, in)
		if err != nil {
			s.writeServiceError(w, r, "create permission", err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func (s *Server) handleUpdatePermission(kind types.PermissionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
			return
		}
		var in types.PermissionInput
		if !decodeJSON(w, r, &in) {
			return
		}
		p, err := s.admin.UpdatePermission(r.Context(), kind, id, in)
		if err != nil {
			s.writeServiceError(w, r, "update permission", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) handleDeletePermission(kind types.PermissionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
			return
		}
		if err := s.admin.DeletePermission(r.Context(), kind, id); err != nil {
			s.writeServiceError(w, r, "delete permission", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ── Audit ────────────────────────────────────────────────────────────────────

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = n
	}
	logs, err := s.admin.RecentQueries(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, "recent queries", err)
		return
	}
	if logs == nil {
		logs = []types.QueryLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// ── Operators ────────────────────────────────────────────────────────────────

type createAdminRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := s.admin.CreateAdmin(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeServiceError(w, r, "create admin", err)
		return
	}
	by, _ := currentAdmin(r.Context())
	s.logger.Info("admin account created",
		zap.String("username", a.Username),
		zap.String("created_by", by.Username))
	writeJSON(w, http.StatusCreated, a)
}

func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

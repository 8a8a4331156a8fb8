/*
handlers.go - HTTP API handlers for the attendance system

PURPOSE:
  Exposes attendance, registry and settings operations via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Auth:
    POST   /api/auth/parent/login      Parent PIN login
    POST   /api/auth/staff/login       Staff PIN login
    POST   /api/auth/logout            End session

  Attendance:
    POST   /api/attendance/checkins    Check a child in
    POST   /api/attendance/checkouts   Check a child out
    GET    /api/attendance/present     Children currently present

  Records:
    GET    /api/children/{id}/records  Records in a date range
    GET    /api/children/{id}/report   Summarized report for a range

  Admin (staff session required):
    POST   /api/admin/records                 Add a record manually
    PUT    /api/admin/records/{month}/{id}    Edit a record's times
    GET    /api/admin/settings                Current settings
    PUT    /api/admin/settings                Update settings
    CRUD   /api/admin/families[...]           Families and children
    CRUD   /api/admin/staff[...]              Staff accounts (admin only)

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (attendance service, registry, config provider)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Domain errors map to HTTP status by kind:
  - 400: Malformed input (bad dates, bad times, short PINs)
  - 401: Invalid PIN / no session
  - 403: Parent acting on another family's child
  - 404: Unknown child, record, family or staff member
  - 409: Duplicate record, already checked in, not checked in,
         non-chronological times, last-admin and self-deletion guards
  - 500: Everything else
  The body is always the {"success": false, "message": ...} envelope.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/littlepine/timekeeper/attendance"
	"github.com/littlepine/timekeeper/auth"
	"github.com/littlepine/timekeeper/billing"
	"github.com/littlepine/timekeeper/config"
	"github.com/littlepine/timekeeper/pkg/metrics"
	"github.com/littlepine/timekeeper/registry"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Attendance *attendance.Service
	Registry   *registry.Service
	Auth       *auth.Service
	Config     *config.Provider
	Metrics    *metrics.Metrics
	Log        *zap.Logger
}

// NewHandler creates a new handler. metrics may be nil (tests).
func NewHandler(att *attendance.Service, reg *registry.Service, sessions *auth.Service, cfg *config.Provider, m *metrics.Metrics, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Attendance: att,
		Registry:   reg,
		Auth:       sessions,
		Config:     cfg,
		Metrics:    m,
		Log:        log,
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// ParentLogin opens a parent session from a family PIN.
func (h *Handler) ParentLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, identity, err := h.Auth.LoginParent(r.Context(), req.PIN)
	if err != nil {
		h.writeDomainError(w, "parent_login", err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Success: true, Token: token, Identity: identity})
}

// StaffLogin opens a staff session from a staff PIN.
func (h *Handler) StaffLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, identity, err := h.Auth.LoginStaff(r.Context(), req.PIN)
	if err != nil {
		h.writeDomainError(w, "staff_login", err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Success: true, Token: token, Identity: identity})
}

// Logout ends the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		h.Auth.Logout(token)
	}
	writeJSON(w, http.StatusOK, ErrorResponse{Success: true, Message: "Logged out"})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	hdr := r.Header.Get("Authorization")
	if len(hdr) > len(prefix) && hdr[:len(prefix)] == prefix {
		return hdr[len(prefix):]
	}
	return ""
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// CheckIn checks a child in at the current time.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	identity, actor, ok := h.authorizeChildAction(w, r, req.ChildID)
	if !ok {
		return
	}

	result, err := h.Attendance.CheckIn(r.Context(), req.ChildID, actor)
	if err != nil {
		h.writeDomainError(w, "checkin", err)
		return
	}

	if h.Metrics != nil {
		h.Metrics.CheckIns.Inc()
	}
	h.Log.Debug("check-in served", zap.String("by", identity.Name))

	writeJSON(w, http.StatusCreated, CheckResponse{
		Success: true,
		Message: result.Message,
		Record:  toRecordDTO(result.Record),
	})
}

// CheckOut checks a child out at the current time.
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	_, actor, ok := h.authorizeChildAction(w, r, req.ChildID)
	if !ok {
		return
	}

	result, err := h.Attendance.CheckOut(r.Context(), req.ChildID, actor)
	if err != nil {
		h.writeDomainError(w, "checkout", err)
		return
	}

	if h.Metrics != nil {
		h.Metrics.CheckOuts.Inc()
		if result.Breakdown.LatePickupMinutes > 0 {
			h.Metrics.LatePickups.Inc()
		}
	}

	writeJSON(w, http.StatusOK, CheckResponse{
		Success:   true,
		Message:   result.Message,
		Record:    toRecordDTO(result.Record),
		Breakdown: toBreakdownDTO(result.Breakdown),
	})
}

// ListPresent returns every child currently checked in.
func (h *Handler) ListPresent(w http.ResponseWriter, r *http.Request) {
	present, err := h.Attendance.ListCurrentlyPresent(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list present children")
		return
	}
	writeJSON(w, http.StatusOK, toPresentDTOs(present))
}

// authorizeChildAction resolves the session and checks that a parent only
// acts on children of their own family. Staff may act on any child.
func (h *Handler) authorizeChildAction(w http.ResponseWriter, r *http.Request, childID string) (auth.Identity, attendance.Actor, bool) {
	identity, _ := auth.FromContext(r.Context())
	actor := attendance.ActorStaff
	if identity.Role == auth.RoleParent {
		actor = attendance.ActorParent
		child, err := h.Registry.Child(r.Context(), childID)
		if err != nil {
			h.writeDomainError(w, "child_lookup", err)
			return identity, actor, false
		}
		if child.FamilyID != identity.FamilyID {
			writeError(w, http.StatusForbidden, "Child belongs to another family")
			return identity, actor, false
		}
	}
	return identity, actor, true
}

// =============================================================================
// RECORD QUERIES
// =============================================================================

// GetChildRecords returns a child's records in the ?start=&end= range.
func (h *Handler) GetChildRecords(w http.ResponseWriter, r *http.Request) {
	childID := chi.URLParam(r, "id")
	if _, _, ok := h.authorizeChildAction(w, r, childID); !ok {
		return
	}

	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}

	records, err := h.Attendance.GetChildRecords(r.Context(), childID, start, end)
	if err != nil {
		h.writeDomainError(w, "child_records", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTOs(records))
}

// GetChildReport returns the summarized report for the ?start=&end= range.
func (h *Handler) GetChildReport(w http.ResponseWriter, r *http.Request) {
	childID := chi.URLParam(r, "id")
	if _, _, ok := h.authorizeChildAction(w, r, childID); !ok {
		return
	}

	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}

	report, err := h.Attendance.ChildReport(r.Context(), childID, start, end)
	if err != nil {
		h.writeDomainError(w, "child_report", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

func parseRange(w http.ResponseWriter, r *http.Request) (billing.Date, billing.Date, bool) {
	start, err := billing.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start date (use YYYY-MM-DD)")
		return billing.Date{}, billing.Date{}, false
	}
	end, err := billing.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end date (use YYYY-MM-DD)")
		return billing.Date{}, billing.Date{}, false
	}
	return start, end, true
}

// =============================================================================
// STAFF CORRECTION HANDLERS
// =============================================================================

// AddRecord creates an attendance record for an arbitrary date.
func (h *Handler) AddRecord(w http.ResponseWriter, r *http.Request) {
	var req AddRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	date, err := billing.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)")
		return
	}
	checkIn, err := billing.ParseTimeOfDay(req.CheckIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid check_in time (use HH:MM:SS)")
		return
	}
	checkOut, ok := parseOptionalTime(w, req.CheckOut, "check_out")
	if !ok {
		return
	}

	rec, err := h.Attendance.StaffAddRecord(r.Context(), req.ChildID, date, checkIn, checkOut, req.Notes)
	if err != nil {
		h.writeDomainError(w, "add_record", err)
		return
	}
	writeJSON(w, http.StatusCreated, CheckResponse{
		Success: true,
		Message: "Record added",
		Record:  toRecordDTO(*rec),
	})
}

// EditTimes overwrites a record's times. Leaving check_out empty keeps the
// stored check-out and derived fields untouched.
func (h *Handler) EditTimes(w http.ResponseWriter, r *http.Request) {
	month := attendance.MonthKey(chi.URLParam(r, "month"))
	recordID := chi.URLParam(r, "id")

	var req EditTimesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	checkIn, err := billing.ParseTimeOfDay(req.CheckIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid check_in time (use HH:MM:SS)")
		return
	}
	checkOut, ok := parseOptionalTime(w, req.CheckOut, "check_out")
	if !ok {
		return
	}

	rec, err := h.Attendance.StaffEditTimes(r.Context(), month, recordID, checkIn, checkOut)
	if err != nil {
		h.writeDomainError(w, "edit_times", err)
		return
	}
	writeJSON(w, http.StatusOK, CheckResponse{
		Success: true,
		Message: "Record updated",
		Record:  toRecordDTO(*rec),
	})
}

func parseOptionalTime(w http.ResponseWriter, value, field string) (*billing.TimeOfDay, bool) {
	if value == "" {
		return nil, true
	}
	t, err := billing.ParseTimeOfDay(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+field+" time (use HH:MM:SS)")
		return nil, false
	}
	return &t, true
}

// =============================================================================
// FAMILY HANDLERS
// =============================================================================

// ListFamilies returns all families with their children.
func (h *Handler) ListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := h.Registry.ListFamilies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list families")
		return
	}
	dtos := make([]FamilyDTO, len(families))
	for i, f := range families {
		dtos[i] = toFamilyDTO(f)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateFamily creates a family with a hashed PIN.
func (h *Handler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	var req FamilyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Family name is required")
		return
	}

	hash, err := auth.HashPIN(req.PIN)
	if err != nil {
		h.writeDomainError(w, "create_family", err)
		return
	}

	family, err := h.Registry.CreateFamily(r.Context(), req.Name, hash)
	if err != nil {
		h.writeDomainError(w, "create_family", err)
		return
	}
	writeJSON(w, http.StatusCreated, toFamilyDTO(*family))
}

// UpdateFamily renames a family; a non-empty PIN replaces the stored one.
func (h *Handler) UpdateFamily(w http.ResponseWriter, r *http.Request) {
	var req FamilyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	hash := ""
	if req.PIN != "" {
		var err error
		if hash, err = auth.HashPIN(req.PIN); err != nil {
			h.writeDomainError(w, "update_family", err)
			return
		}
	}

	if err := h.Registry.EditFamily(r.Context(), chi.URLParam(r, "id"), req.Name, hash); err != nil {
		h.writeDomainError(w, "update_family", err)
		return
	}
	writeJSON(w, http.StatusOK, ErrorResponse{Success: true, Message: "Family updated"})
}

// DeleteFamily removes a family, its children and their records.
func (h *Handler) DeleteFamily(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.DeleteFamily(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, "delete_family", err)
		return
	}
	writeJSON(w, http.StatusOK, ErrorResponse{Success: true, Message: "Family deleted"})
}

// AddChild adds a child to a family.
func (h *Handler) AddChild(w http.ResponseWriter, r *http.Request) {
	var req ChildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FirstName == "" {
		writeError(w, http.StatusBadRequest, "First name is required")
		return
	}

	child, err := h.Registry.AddChild(r.Context(), chi.URLParam(r, "id"), req.FirstName, req.LastName)
	if err != nil {
		h.writeDomainError(w, "add_child", err)
		return
	}
	writeJSON(w, http.StatusCreated, ChildDTO{ID: child.ID, FirstName: child.FirstName, LastName: child.LastName})
}

// UpdateChild renames a child.
func (h *Handler) UpdateChild(w http.ResponseWriter, r *http.Request) {
	var req ChildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.Registry.EditChild(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "childID"), req.FirstName, req.LastName)
	if err != nil {
		h.writeDomainError(w, "update_child", err)
		return
	}
	writeJSON(w, http.StatusOK, ErrorResponse{Success: true, Message: "Child updated"})
}

// DeleteChild removes a child and its attendance records.
func (h *Handler) DeleteChild(w http.ResponseWriter, r *http.Request) {
	err := h.Registry.DeleteChild(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "childID"))
	if err != nil {
		h.writeDomainError(w, "delete_child", err)
		return
	}
	writeJSON(w, http.StatusOK, ErrorResponse{Success: true, Message: "Child deleted"})
}

// =============================================================================
// STAFF MANAGEMENT HANDLERS (admin only)
// =============================================================================

// ListStaff returns all staff accounts. PIN hashes never leave the server.
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	members, err := h.Registry.ListStaff(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list staff")
		return
	}
	dtos := make([]StaffDTO, len(members))
	for i, m := range members {
		dtos[i] = StaffDTO{ID: m.ID, Name: m.Name, Role: string(m.Role)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateStaff adds a staff account.
func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req StaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Staff name is required")
		return
	}

	hash, err := auth.HashPIN(req.PIN)
	if err != nil {
		h.writeDomainError(w, "create_staff", err)
		return
	}

	member, err := h.Registry.AddStaff(r.Context(), req.Name, registry.StaffRole(req.Role), hash)
	if err != nil {
		h.writeDomainError(w, "create_staff", err)
		return
	}
	writeJSON(w, http.StatusCreated, StaffDTO{ID: member.ID, Name: member.Name, Role: string(member.Role)})
}

// UpdateStaff edits a staff account; a non-empty PIN replaces the stored one.
func (h *Handler) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	var req StaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	hash := ""
	if req.PIN != "" {
		var err error
		if hash, err = auth.HashPIN(req.PIN); err != nil {
			h.writeDomainError(w, "update_staff", err)
			return
		}
	}

	err := h.Registry.EditStaff(r.Context(), chi.URLParam(r, "id"), req.Name, registry.StaffRole(req.Role), hash)
	if err != nil {
		h.writeDomainError(w, "update_staff", err)
		return
	}
	writeJSON(w, http.StatusOK, ErrorResponse{Success: true, Message: "Staff updated"})
}

// DeleteStaff removes a staff account, guarded against self-deletion and
// removing the last admin.
func (h *Handler) DeleteStaff(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	err := h.Registry.DeleteStaff(r.Context(), identity.StaffID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "delete_staff", err)
		return
	}
	writeJSON(w, http.StatusOK, ErrorResponse{Success: true, Message: "Staff deleted"})
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetSettings returns the settings currently in effect.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Config.Settings())
}

// UpdateSettings validates, persists and applies new settings. Existing
// records keep their stored charges until staff explicitly re-save them.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.Config.Update(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ErrorResponse{Success: true, Message: "Settings updated"})
}

// =============================================================================
// ERROR MAPPING / JSON HELPERS
// =============================================================================

func (h *Handler) writeDomainError(w http.ResponseWriter, operation string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Log.Error("internal error", zap.String("operation", operation), zap.Error(err))
		if h.Metrics != nil {
			h.Metrics.ErrorsCount.WithLabelValues(operation).Inc()
		}
		writeError(w, status, "Internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidPIN):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrPINTooShort):
		return http.StatusBadRequest
	case errors.Is(err, attendance.ErrChildNotFound),
		errors.Is(err, attendance.ErrRecordNotFound),
		errors.Is(err, registry.ErrFamilyNotFound),
		errors.Is(err, registry.ErrStaffNotFound):
		return http.StatusNotFound
	case attendance.IsClientError(err), registry.IsClientError(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Success: false, Message: message})
}

/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

ENVELOPE:
  Mutating endpoints answer with {"success": ..., "message": ...} plus any
  payload, so the kiosk frontend can show the message verbatim. Errors use
  the same envelope with success=false.

MONEY AND TIME:
  Decimal fields are serialized as strings ("9.25", "45") to avoid float
  drift in clients. Times of day are "HH:MM:SS", dates are "YYYY-MM-DD".

SEE ALSO:
  - handlers.go: Uses these types
  - attendance/types.go: the domain model behind RecordDTO
*/
package api

import (
	"github.com/littlepine/timekeeper/attendance"
	"github.com/littlepine/timekeeper/auth"
	"github.com/littlepine/timekeeper/billing"
	"github.com/littlepine/timekeeper/config"
	"github.com/littlepine/timekeeper/registry"
)

// =============================================================================
// ENVELOPE
// =============================================================================

// ErrorResponse is the uniform failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	PIN string `json:"pin"`
}

type LoginResponse struct {
	Success  bool          `json:"success"`
	Token    string        `json:"token"`
	Identity auth.Identity `json:"identity"`
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type CheckRequest struct {
	ChildID string `json:"child_id"`
}

// RecordDTO represents one attendance record in API responses.
type RecordDTO struct {
	ID                string  `json:"id"`
	ChildID           string  `json:"child_id"`
	Date              string  `json:"date"`
	CheckInTime       string  `json:"check_in_time"`
	CheckOutTime      *string `json:"check_out_time"`
	DurationHours     *string `json:"duration_hours"`
	OverageMinutes    int     `json:"overage_minutes"`
	OverageCharge     string  `json:"overage_charge"`
	LatePickupMinutes int     `json:"late_pickup_minutes"`
	LatePickupCharge  string  `json:"late_pickup_charge"`
	CheckedInBy       string  `json:"checked_in_by"`
	CheckedOutBy      string  `json:"checked_out_by,omitempty"`
	Notes             string  `json:"notes,omitempty"`
}

func toRecordDTO(rec attendance.Record) RecordDTO {
	dto := RecordDTO{
		ID:                rec.ID,
		ChildID:           rec.ChildID,
		Date:              rec.Date.String(),
		CheckInTime:       rec.CheckInTime.String(),
		OverageMinutes:    rec.OverageMinutes,
		OverageCharge:     rec.OverageCharge.String(),
		LatePickupMinutes: rec.LatePickupMinutes,
		LatePickupCharge:  rec.LatePickupCharge.String(),
		CheckedInBy:       string(rec.CheckedInBy),
		CheckedOutBy:      string(rec.CheckedOutBy),
		Notes:             rec.Notes,
	}
	if rec.CheckOutTime != nil {
		s := rec.CheckOutTime.String()
		dto.CheckOutTime = &s
	}
	if rec.DurationHours != nil {
		s := rec.DurationHours.StringFixed(2)
		dto.DurationHours = &s
	}
	return dto
}

func toRecordDTOs(records []attendance.Record) []RecordDTO {
	dtos := make([]RecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toRecordDTO(rec)
	}
	return dtos
}

// CheckResponse confirms a check-in or check-out.
type CheckResponse struct {
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	Record    RecordDTO     `json:"record"`
	Breakdown *BreakdownDTO `json:"breakdown,omitempty"`
}

// BreakdownDTO carries the derived billing fields of one check-out.
type BreakdownDTO struct {
	DurationHours     string `json:"duration_hours"`
	OverageMinutes    int    `json:"overage_minutes"`
	OverageCharge     string `json:"overage_charge"`
	LatePickupMinutes int    `json:"late_pickup_minutes"`
	LatePickupCharge  string `json:"late_pickup_charge"`
	TotalCharges      string `json:"total_charges"`
}

func toBreakdownDTO(b billing.Breakdown) *BreakdownDTO {
	return &BreakdownDTO{
		DurationHours:     b.DurationHours.StringFixed(2),
		OverageMinutes:    b.OverageMinutes,
		OverageCharge:     b.OverageCharge.String(),
		LatePickupMinutes: b.LatePickupMinutes,
		LatePickupCharge:  b.LatePickupCharge.String(),
		TotalCharges:      b.TotalCharges().String(),
	}
}

// PresentChildDTO is one row of the "currently present" dashboard.
type PresentChildDTO struct {
	ChildID     string `json:"child_id"`
	ChildName   string `json:"child_name"`
	FamilyName  string `json:"family_name"`
	RecordID    string `json:"record_id"`
	CheckInTime string `json:"check_in_time"`
	HoursSoFar  string `json:"hours_so_far"`
}

func toPresentDTOs(present []attendance.PresentChild) []PresentChildDTO {
	dtos := make([]PresentChildDTO, len(present))
	for i, p := range present {
		dtos[i] = PresentChildDTO{
			ChildID:     p.Child.ID,
			ChildName:   p.Child.Name,
			FamilyName:  p.Child.FamilyName,
			RecordID:    p.RecordID,
			CheckInTime: p.CheckInTime.String(),
			HoursSoFar:  p.HoursSoFar.StringFixed(2),
		}
	}
	return dtos
}

// ReportDTO summarizes a child's attendance over a date range.
type ReportDTO struct {
	ChildID                string      `json:"child_id"`
	ChildName              string      `json:"child_name"`
	Start                  string      `json:"start"`
	End                    string      `json:"end"`
	Records                []RecordDTO `json:"records"`
	TotalVisits            int         `json:"total_visits"`
	TotalHours             string      `json:"total_hours"`
	TotalOverageCharges    string      `json:"total_overage_charges"`
	TotalLatePickupCharges string      `json:"total_late_pickup_charges"`
	TotalCharges           string      `json:"total_charges"`
}

func toReportDTO(rep *attendance.ChildReport) ReportDTO {
	return ReportDTO{
		ChildID:                rep.Child.ID,
		ChildName:              rep.Child.Name,
		Start:                  rep.Start.String(),
		End:                    rep.End.String(),
		Records:                toRecordDTOs(rep.Records),
		TotalVisits:            rep.TotalVisits,
		TotalHours:             rep.TotalHours.StringFixed(2),
		TotalOverageCharges:    rep.TotalOverageCharges.String(),
		TotalLatePickupCharges: rep.TotalLatePickupCharges.String(),
		TotalCharges:           rep.TotalCharges().String(),
	}
}

// =============================================================================
// STAFF CORRECTIONS
// =============================================================================

type AddRecordRequest struct {
	ChildID  string `json:"child_id"`
	Date     string `json:"date"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type EditTimesRequest struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out,omitempty"`
}

// =============================================================================
// REGISTRY
// =============================================================================

type FamilyDTO struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Children []ChildDTO `json:"children"`
}

type ChildDTO struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func toFamilyDTO(f registry.Family) FamilyDTO {
	dto := FamilyDTO{ID: f.ID, Name: f.Name, Children: []ChildDTO{}}
	for _, c := range f.Children {
		dto.Children = append(dto.Children, ChildDTO{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName})
	}
	return dto
}

type FamilyRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin,omitempty"`
}

type ChildRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type StaffDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type StaffRequest struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
	PIN  string `json:"pin,omitempty"`
}

// =============================================================================
// SETTINGS
// =============================================================================

// SettingsDTO mirrors config.Settings for the admin settings screen.
type SettingsDTO = config.Settings

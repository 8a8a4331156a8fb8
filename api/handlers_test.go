package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/littlepine/timekeeper/api"
	"github.com/littlepine/timekeeper/attendance"
	attstore "github.com/littlepine/timekeeper/attendance/store"
	"github.com/littlepine/timekeeper/auth"
	"github.com/littlepine/timekeeper/config"
	"github.com/littlepine/timekeeper/registry"
)

// purgerAdapter breaks the registry <-> attendance construction cycle.
type purgerAdapter struct {
	att *attendance.Service
}

func (p *purgerAdapter) DeleteChildRecords(ctx context.Context, childID string) (int, error) {
	return p.att.DeleteChildRecords(ctx, childID)
}

type testServer struct {
	router   http.Handler
	registry *registry.Service
	now      *time.Time

	family      *registry.Family
	child       *registry.Child
	admin       *registry.Staff
	parentToken string
	staffToken  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	provider, err := config.Load(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)

	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	clock := attendance.ClockFunc(func() time.Time { return now })

	regStore := registry.NewMemoryStore()
	purger := &purgerAdapter{}
	regSvc := registry.NewService(regStore, purger, nil)
	attSvc := attendance.NewService(attstore.NewMemory(), provider, regSvc, clock, nil)
	purger.att = attSvc

	sessions := auth.NewService(regStore, nil)
	handler := api.NewHandler(attSvc, regSvc, sessions, provider, nil, nil)

	ts := &testServer{
		router:   api.NewRouter(handler, nil),
		registry: regSvc,
		now:      &now,
	}

	parentHash, err := auth.HashPIN("1234")
	require.NoError(t, err)
	ts.family, err = regSvc.CreateFamily(ctx, "Ortiz", parentHash)
	require.NoError(t, err)
	ts.child, err = regSvc.AddChild(ctx, ts.family.ID, "Maya", "Ortiz")
	require.NoError(t, err)

	staffHash, err := auth.HashPIN("9999")
	require.NoError(t, err)
	ts.admin, err = regSvc.AddStaff(ctx, "Dana", registry.RoleAdmin, staffHash)
	require.NoError(t, err)

	ts.parentToken = ts.login(t, "/api/auth/parent/login", "1234")
	ts.staffToken = ts.login(t, "/api/auth/staff/login", "9999")
	return ts
}

func (ts *testServer) login(t *testing.T, path, pin string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, path, "", map[string]string{"pin": pin})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp api.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestLogin_InvalidPIN(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/auth/parent/login", "", map[string]string{"pin": "0000"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	resp := decode[api.ErrorResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid PIN", resp.Message)
}

func TestCheckInCheckOutFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/attendance/checkins", ts.parentToken, api.CheckRequest{ChildID: ts.child.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	checkin := decode[api.CheckResponse](t, rec)
	assert.True(t, checkin.Success)
	assert.Equal(t, "Maya Ortiz checked in at 8:00 AM", checkin.Message)
	assert.Nil(t, checkin.Record.CheckOutTime)

	// Second check-in while present conflicts.
	rec = ts.do(t, http.MethodPost, "/api/attendance/checkins", ts.parentToken, api.CheckRequest{ChildID: ts.child.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, decode[api.ErrorResponse](t, rec).Success)

	// Present dashboard shows the child with provisional hours.
	*ts.now = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	rec = ts.do(t, http.MethodGet, "/api/attendance/present", ts.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	present := decode[[]api.PresentChildDTO](t, rec)
	require.Len(t, present, 1)
	assert.Equal(t, "Maya Ortiz", present[0].ChildName)
	assert.Equal(t, "4.00", present[0].HoursSoFar)

	// Check out late: past the hour cap and past closing.
	*ts.now = time.Date(2025, 1, 10, 17, 15, 0, 0, time.UTC)
	rec = ts.do(t, http.MethodPost, "/api/attendance/checkouts", ts.parentToken, api.CheckRequest{ChildID: ts.child.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	checkout := decode[api.CheckResponse](t, rec)
	assert.Equal(t, "Maya Ortiz checked out at 5:15 PM (9.25 hours)", checkout.Message)
	require.NotNil(t, checkout.Breakdown)
	assert.Equal(t, "9.25", checkout.Breakdown.DurationHours)
	assert.Equal(t, 45, checkout.Breakdown.OverageMinutes)
	assert.Equal(t, "45", checkout.Breakdown.OverageCharge)
	assert.Equal(t, 45, checkout.Breakdown.LatePickupMinutes)
	assert.Equal(t, "45", checkout.Breakdown.LatePickupCharge)
	assert.Equal(t, "90", checkout.Breakdown.TotalCharges)

	// Checked out means no longer present, and no second checkout.
	rec = ts.do(t, http.MethodGet, "/api/attendance/present", ts.staffToken, nil)
	assert.Empty(t, decode[[]api.PresentChildDTO](t, rec))

	rec = ts.do(t, http.MethodPost, "/api/attendance/checkouts", ts.parentToken, api.CheckRequest{ChildID: ts.child.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestParentScopedToOwnFamily(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	hash, err := auth.HashPIN("5678")
	require.NoError(t, err)
	other, err := ts.registry.CreateFamily(ctx, "Tran", hash)
	require.NoError(t, err)
	otherChild, err := ts.registry.AddChild(ctx, other.ID, "Leo", "Tran")
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/api/attendance/checkins", ts.parentToken, api.CheckRequest{ChildID: otherChild.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Staff can check in any child.
	rec = ts.do(t, http.MethodPost, "/api/attendance/checkins", ts.staffToken, api.CheckRequest{ChildID: otherChild.ID})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "staff", decode[api.CheckResponse](t, rec).Record.CheckedInBy)
}

func TestAccessControl(t *testing.T) {
	ts := newTestServer(t)

	// No session.
	rec := ts.do(t, http.MethodPost, "/api/attendance/checkins", "", api.CheckRequest{ChildID: ts.child.ID})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Parents cannot reach admin routes.
	rec = ts.do(t, http.MethodGet, "/api/admin/families", ts.parentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Logout invalidates the token.
	rec = ts.do(t, http.MethodPost, "/api/auth/logout", ts.parentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/attendance/present", ts.parentToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAddAndEditRecord(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/admin/records", ts.staffToken, api.AddRecordRequest{
		ChildID: ts.child.ID,
		Date:    "2025-01-08",
		CheckIn: "08:00:00",
		Notes:   "forgot to check in",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := decode[api.CheckResponse](t, rec)
	assert.Nil(t, added.Record.CheckOutTime)
	assert.Equal(t, "forgot to check in", added.Record.Notes)

	// Same child and date again conflicts.
	rec = ts.do(t, http.MethodPost, "/api/admin/records", ts.staffToken, api.AddRecordRequest{
		ChildID: ts.child.ID,
		Date:    "2025-01-08",
		CheckIn: "09:00:00",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Supplying a check-out computes and stores the breakdown.
	rec = ts.do(t, http.MethodPut, "/api/admin/records/2025-01/"+added.Record.ID, ts.staffToken, api.EditTimesRequest{
		CheckIn:  "08:00:00",
		CheckOut: "17:15:00",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decode[api.CheckResponse](t, rec)
	require.NotNil(t, edited.Record.DurationHours)
	assert.Equal(t, "9.25", *edited.Record.DurationHours)
	assert.Equal(t, 45, edited.Record.OverageMinutes)

	// Non-chronological times are rejected.
	rec = ts.do(t, http.MethodPut, "/api/admin/records/2025-01/"+added.Record.ID, ts.staffToken, api.EditTimesRequest{
		CheckIn:  "18:00:00",
		CheckOut: "17:00:00",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown record in that month.
	rec = ts.do(t, http.MethodPut, "/api/admin/records/2025-01/rec_missing", ts.staffToken, api.EditTimesRequest{CheckIn: "08:00:00"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChildRecordsAndReport(t *testing.T) {
	ts := newTestServer(t)

	for _, day := range []string{"2025-01-06", "2025-01-07"} {
		rec := ts.do(t, http.MethodPost, "/api/admin/records", ts.staffToken, api.AddRecordRequest{
			ChildID:  ts.child.ID,
			Date:     day,
			CheckIn:  "08:00:00",
			CheckOut: "16:00:00",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := ts.do(t, http.MethodGet, "/api/children/"+ts.child.ID+"/records?start=2025-01-01&end=2025-01-31", ts.parentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]api.RecordDTO](t, rec)
	require.Len(t, records, 2)
	assert.Equal(t, "2025-01-06", records[0].Date)

	rec = ts.do(t, http.MethodGet, "/api/children/"+ts.child.ID+"/report?start=2025-01-01&end=2025-01-31", ts.parentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[api.ReportDTO](t, rec)
	assert.Equal(t, 2, report.TotalVisits)
	assert.Equal(t, "16.00", report.TotalHours)
	assert.Equal(t, "0", report.TotalCharges)

	rec = ts.do(t, http.MethodGet, "/api/children/"+ts.child.ID+"/records?start=bad&end=2025-01-31", ts.parentToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFamilyCRUDAndCascade(t *testing.T) {
	ts := newTestServer(t)

	// Check the child in so a record exists, then delete the child.
	rec := ts.do(t, http.MethodPost, "/api/attendance/checkins", ts.staffToken, api.CheckRequest{ChildID: ts.child.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/admin/families/"+ts.family.ID+"/children/"+ts.child.ID, ts.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The child and its records are gone.
	rec = ts.do(t, http.MethodPost, "/api/attendance/checkins", ts.staffToken, api.CheckRequest{ChildID: ts.child.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/attendance/present", ts.staffToken, nil)
	assert.Empty(t, decode[[]api.PresentChildDTO](t, rec))

	// Family rename keeps the PIN usable when pin is omitted.
	rec = ts.do(t, http.MethodPut, "/api/admin/families/"+ts.family.ID, ts.staffToken, api.FamilyRequest{Name: "Ortiz-Reyes"})
	require.Equal(t, http.StatusOK, rec.Code)
	ts.login(t, "/api/auth/parent/login", "1234")

	rec = ts.do(t, http.MethodDelete, "/api/admin/families/"+ts.family.ID, ts.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/admin/families", ts.staffToken, nil)
	assert.Empty(t, decode[[]api.FamilyDTO](t, rec))
}

func TestStaffManagementGuards(t *testing.T) {
	ts := newTestServer(t)

	// Creating staff requires a long enough PIN.
	rec := ts.do(t, http.MethodPost, "/api/admin/staff", ts.staffToken, api.StaffRequest{Name: "Helper", PIN: "12"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/admin/staff", ts.staffToken, api.StaffRequest{Name: "Helper", PIN: "4321"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	helper := decode[api.StaffDTO](t, rec)
	assert.Equal(t, "staff", helper.Role)

	// Self deletion and last-admin deletion are refused.
	rec = ts.do(t, http.MethodDelete, "/api/admin/staff/"+ts.admin.ID, ts.staffToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Plain staff cannot manage staff accounts at all.
	helperToken := ts.login(t, "/api/auth/staff/login", "4321")
	rec = ts.do(t, http.MethodGet, "/api/admin/staff", helperToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/admin/staff/"+helper.ID, ts.staffToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSettingsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/admin/settings", ts.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	settings := decode[api.SettingsDTO](t, rec)
	assert.Equal(t, "16:30:00", settings.ClosingTime)

	settings.ClosingTime = "18:00:00"
	settings.LatePickupRatePerMinute = 2
	rec = ts.do(t, http.MethodPut, "/api/admin/settings", ts.staffToken, settings)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// New closing time applies to the next checkout: 17:15 is no longer late.
	rec = ts.do(t, http.MethodPost, "/api/attendance/checkins", ts.staffToken, api.CheckRequest{ChildID: ts.child.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	*ts.now = time.Date(2025, 1, 10, 17, 15, 0, 0, time.UTC)
	rec = ts.do(t, http.MethodPost, "/api/attendance/checkouts", ts.staffToken, api.CheckRequest{ChildID: ts.child.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[api.CheckResponse](t, rec)
	assert.Equal(t, 0, out.Breakdown.LatePickupMinutes)
	assert.Equal(t, 45, out.Breakdown.OverageMinutes, "the hour cap still applies")

	// Invalid settings are rejected.
	settings.ClosingTime = "99:00:00"
	rec = ts.do(t, http.MethodPut, "/api/admin/settings", ts.staffToken, settings)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

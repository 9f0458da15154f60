package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rotation-engine/api"
	"github.com/warp/rotation-engine/factory"
	"github.com/warp/rotation-engine/roster"
	"github.com/warp/rotation-engine/schedule"
	memstore "github.com/warp/rotation-engine/schedule/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type apiFixture struct {
	store    *memstore.Memory
	recorder *schedule.Recorder
	router   http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := memstore.NewMemory()
	ctx := context.Background()

	require.NoError(t, store.SaveArea(ctx, schedule.Area{ID: "a1", Name: "Mill", Manning: 1}))
	require.NoError(t, store.SaveGroup(ctx, schedule.Group{
		ID: "g1", Name: "Mill G1", AreaID: "a1", RuleReference: "N0439",
		PersonsPerShift: 2, ShiftHours: 48, Active: true,
	}))
	require.NoError(t, factory.SeedRules(ctx, store))

	recorder := &schedule.Recorder{}
	clock := schedule.FixedClock{T: time.Date(2025, time.November, 1, 8, 0, 0, 0, time.UTC)}
	h := api.NewHandler(store, roster.New(factory.BuiltinRules(), store), recorder, clock, zerolog.Nop())

	return &apiFixture{store: store, recorder: recorder, router: api.NewRouter(h)}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestEmployeeEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/employees", map[string]string{
		"id": "e1", "name": "Maria Delgado", "payroll": "1001",
		"group_id": "g1", "hire_date": "2014-05-01",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodGet, "/api/employees/e1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	emp := decode[map[string]any](t, w)
	assert.Equal(t, "Maria Delgado", emp["name"])
	assert.Equal(t, "2014-05-01", emp["hire_date"])
	assert.Equal(t, true, emp["active"])

	w = f.do(t, http.MethodGet, "/api/employees/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/employees", map[string]string{
		"id": "e2", "name": "Bad Date", "hire_date": "01-05-2014",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEntitlementEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/employees", map[string]string{
		"id": "e1", "name": "Maria Delgado", "payroll": "1001",
		"group_id": "g1", "hire_date": "2014-05-01",
	})

	w := f.do(t, http.MethodGet, "/api/employees/e1/entitlement?year=2026", nil)
	require.Equal(t, http.StatusOK, w.Code)

	ent := decode[map[string]any](t, w)
	assert.EqualValues(t, 12, ent["seniority_years"])
	assert.EqualValues(t, 12, ent["company_days"])
	assert.EqualValues(t, 5, ent["auto_days"])
	assert.EqualValues(t, 7, ent["programmable_days"])
	assert.EqualValues(t, 24, ent["total_days"])
}

func TestCalendarEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/employees", map[string]string{
		"id": "e1", "name": "Maria Delgado", "payroll": "1001",
		"group_id": "g1", "hire_date": "2014-05-01",
	})

	// one N0439 week starting Monday: five working days then the weekend
	w := f.do(t, http.MethodGet, "/api/employees/e1/calendar?from=2026-03-02&to=2026-03-08", nil)
	require.Equal(t, http.StatusOK, w.Code)

	days := decode[[]map[string]any](t, w)
	require.Len(t, days, 7)
	assert.Equal(t, "1", days[0]["code"])
	assert.Equal(t, false, days[0]["rest"])
	assert.Equal(t, true, days[5]["rest"])
	assert.Equal(t, true, days[6]["rest"])

	w = f.do(t, http.MethodGet, "/api/employees/e1/calendar?from=2026-03-08&to=2026-03-02", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// ADMISSION
// =============================================================================

func TestAdmissionEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/employees", map[string]string{
		"id": "e1", "name": "Maria Delgado", "payroll": "1001",
		"group_id": "g1", "hire_date": "2014-05-01",
	})

	w := f.do(t, http.MethodGet, "/api/groups/g1/admission?date=2026-06-01&extra=e1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	d := decode[map[string]any](t, w)
	assert.Equal(t, true, d["admissible"])
	assert.Equal(t, true, d["small_group"])

	w = f.do(t, http.MethodGet, "/api/groups/missing/admission?date=2026-06-01", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =============================================================================
// RESERVATIONS AND BLOCK ADMINISTRATION
// =============================================================================

func TestReservationEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/employees", map[string]string{
		"id": "e1", "name": "Maria Delgado", "payroll": "1001",
		"group_id": "g1", "hire_date": "2014-05-01",
	})

	w := f.do(t, http.MethodPost, "/api/reservations", map[string]any{
		"employee_id": "e1", "year": 2026,
		"dates": []string{"2026-06-01", "2026-06-02"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	res := decode[map[string]any](t, w)
	assert.EqualValues(t, 7, res["programmable_days"])
	assert.Len(t, res["record_ids"], 2)

	// the same days again collide
	w = f.do(t, http.MethodPost, "/api/reservations", map[string]any{
		"employee_id": "e1", "year": 2026,
		"dates": []string{"2026-06-01"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// over the programmable budget
	w = f.do(t, http.MethodPost, "/api/reservations", map[string]any{
		"employee_id": "e1", "year": 2026,
		"dates": []string{
			"2026-07-06", "2026-07-07", "2026-07-08", "2026-07-09",
			"2026-07-10", "2026-07-13", "2026-07-14", "2026-07-15",
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestBlockAdminFlow(t *testing.T) {
	// generate, approve, then sweep through the admin surface
	f := newAPIFixture(t)
	for _, e := range []map[string]string{
		{"id": "e1", "name": "Maria Delgado", "payroll": "1001", "group_id": "g1", "hire_date": "2014-05-01"},
		{"id": "e2", "name": "Jorge Paredes", "payroll": "1002", "group_id": "g1", "hire_date": "2016-02-15"},
		{"id": "e3", "name": "Lucia Mena", "payroll": "1003", "group_id": "g1", "hire_date": "2018-09-01"},
	} {
		require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/employees", e).Code)
	}

	w := f.do(t, http.MethodPost, "/api/admin/blocks/generate", map[string]any{
		"year": 2026, "start_date": "2025-11-03",
	})
	require.Equal(t, http.StatusOK, w.Code)
	gen := decode[map[string]any](t, w)
	assert.EqualValues(t, 0, gen["failed"])

	w = f.do(t, http.MethodGet, "/api/groups/g1/blocks?year=2026", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]map[string]any](t, w)
	require.Len(t, list, 3) // ceil(3/2) regular + queue

	w = f.do(t, http.MethodPost, "/api/admin/blocks/approve", map[string]int{"year": 2026})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decode[map[string]any](t, w)["approved"])

	w = f.do(t, http.MethodPost, "/api/admin/sweep", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[map[string]any](t, w)
	assert.EqualValues(t, 3, stats["blocks_examined"])

	w = f.do(t, http.MethodGet, "/api/admin/blocks/non-responders?year=2026", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/api/admin/blocks/g1/2026", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodDelete, "/api/admin/blocks/g1/2026", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAutoAssignEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/employees", map[string]string{
		"id": "e1", "name": "Maria Delgado", "payroll": "1001",
		"group_id": "g1", "hire_date": "2014-05-01",
	})

	w := f.do(t, http.MethodPost, "/api/admin/auto-assign", map[string]any{
		"year": 2026, "simulate": true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode[map[string]any](t, w)
	assert.EqualValues(t, 1, sum["assigned"])
	assert.Equal(t, true, sum["simulated"])

	w = f.do(t, http.MethodPost, "/api/admin/auto-assign", map[string]any{"year": 2026})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/api/admin/auto-assign/2026", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 5, decode[map[string]any](t, w)["removed"])
}

// =============================================================================
// CALENDAR CONFIGURATION
// =============================================================================

func TestHolidayEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/holidays", map[string]string{
		"id": "ss-2026", "name": "Semana Santa",
		"date": "2026-03-30", "end_date": "2026-04-05",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodGet, "/api/holidays?year=2026", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]map[string]any](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "2026-04-05", list[0]["end_date"])

	w = f.do(t, http.MethodDelete, "/api/holidays/ss-2026", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRuleEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]map[string]any](t, w)
	assert.NotEmpty(t, list)

	w = f.do(t, http.MethodPost, "/api/rules", map[string]any{
		"code": "BADLEN", "sequence": []string{"1", "2", "3"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/rules", map[string]any{
		"code": "X0001", "sequence": []string{"1", "1", "1", "1", "1", "D", "D"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["weeks"])
}
package handlers_test

import (
	"net/http"
	"testing"

	"github.com/jroosing/pdnsadmin/internal/api/models"
	"github.com/jroosing/pdnsadmin/internal/bulk"
	"github.com/jroosing/pdnsadmin/internal/zones"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Zone Endpoint Tests
// ============================================================================

func TestZones_CreateGetListDelete(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createZone(t, "manager", "example.com")

	w := env.do("manager", http.MethodGet, zonePath(id, ""), "")
	require.Equal(t, http.StatusOK, w.Code)
	var z models.Zone
	decode(t, w, &z)
	assert.Equal(t, "example.com", z.Name)
	assert.Equal(t, "MASTER", z.Type)
	assert.Equal(t, []string{"manager"}, z.Owners)

	w = env.do("manager", http.MethodGet, "/api/zones", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list models.ZoneListResponse
	decode(t, w, &list)
	assert.Equal(t, 1, list.Pagination.Total)
	require.Len(t, list.Zones, 1)
	assert.Equal(t, id, list.Zones[0].ID)

	w = env.do("other", http.MethodGet, "/api/zones", "")
	decode(t, w, &list)
	assert.Zero(t, list.Pagination.Total)
	assert.Empty(t, list.Zones)

	w = env.do("other", http.MethodDelete, zonePath(id, ""), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do("manager", http.MethodDelete, zonePath(id, ""), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Zone has been deleted successfully.", decode(t, w, nil).Message)

	w = env.do("manager", http.MethodGet, zonePath(id, ""), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestZones_CreateErrors(t *testing.T) {
	env := newTestEnv(t, false)
	env.createZone(t, "manager", "example.com")

	tests := []struct {
		name string
		user string
		body string
		want int
		code string
	}{
		{"duplicate", "manager", `{"name":"example.com"}`, http.StatusConflict, "conflict"},
		{"invalid name", "manager", `{"name":"bad_name!.com"}`, http.StatusBadRequest, "validation_error"},
		{"missing name", "manager", `{"type":"master"}`, http.StatusBadRequest, "validation_error"},
		{"malformed json", "manager", `{`, http.StatusBadRequest, "validation_error"},
		{"viewer", "viewer", `{"name":"viewer.com"}`, http.StatusForbidden, "forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(tt.user, http.MethodPost, "/api/zones", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			env := decode(t, w, nil)
			assert.True(t, env.Error)
			assert.Equal(t, tt.code, env.Code)
		})
	}
}

func TestZones_InvalidID(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do("manager", http.MethodGet, "/api/zones/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid zone ID", decode(t, w, nil).Message)

	w = env.do("manager", http.MethodGet, "/api/zones/0/records", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestZones_Pagination(t *testing.T) {
	env := newTestEnv(t, false)
	for _, name := range []string{"a.com", "b.com", "c.com"} {
		env.createZone(t, "admin", name)
	}

	w := env.do("admin", http.MethodGet, "/api/zones?page=2&per_page=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list models.ZoneListResponse
	decode(t, w, &list)
	assert.Equal(t, models.Pagination{Total: 3, Page: 2, PerPage: 2}, list.Pagination)
	require.Len(t, list.Zones, 1)
	assert.Equal(t, "c.com", list.Zones[0].Name)
}

func TestZones_Export(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createZone(t, "manager", "example.com")
	w := env.do("manager", http.MethodPost, zonePath(id, "/records"), `{"name":"www","type":"A","content":"192.0.2.10"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do("manager", http.MethodGet, zonePath(id, "/export"), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	body := w.Body.String()
	assert.Contains(t, body, "$ORIGIN example.com.")
	assert.Contains(t, body, "www.example.com.")
	assert.Contains(t, body, "192.0.2.10")

	w = env.do("other", http.MethodGet, zonePath(id, "/export"), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// ============================================================================
// Record Endpoint Tests
// ============================================================================

func TestRecords_Lifecycle(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createZone(t, "manager", "example.com")

	w := env.do("manager", http.MethodPost, zonePath(id, "/records"), `{"name":"www","type":"A","content":"192.0.2.1","ttl":300}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rec models.Record
	decode(t, w, &rec)
	assert.Equal(t, "www.example.com", rec.Name)
	assert.Equal(t, 300, rec.TTL)
	assert.Equal(t, id, rec.ZoneID)
	rid := rec.ID

	w = env.do("manager", http.MethodPost, zonePath(id, "/records"), `{"name":"www","type":"A","content":"192.0.2.1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do("manager", http.MethodPost, zonePath(id, "/records"), `{"name":"www","type":"A","content":"not-an-ip"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do("manager", http.MethodGet, zonePath(id, "/records?type=A"), "")
	require.Equal(t, http.StatusOK, w.Code)
	var list models.RecordListResponse
	decode(t, w, &list)
	assert.Equal(t, 1, list.Pagination.Total)
	require.Len(t, list.Records, 1)

	path := zonePath(id, "/records/"+itoa(rid))
	w = env.do("manager", http.MethodPut, path, `{"name":"www","type":"A","content":"192.0.2.2","ttl":600}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &rec)
	assert.Equal(t, "192.0.2.2", rec.Content)

	w = env.do("manager", http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &rec)
	assert.Equal(t, 600, rec.TTL)

	w = env.do("manager", http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do("manager", http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecords_SOACannotBeDeleted(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createZone(t, "manager", "example.com")

	w := env.do("manager", http.MethodGet, zonePath(id, "/records?type=SOA"), "")
	var list models.RecordListResponse
	decode(t, w, &list)
	require.Len(t, list.Records, 1)

	w = env.do("manager", http.MethodDelete, zonePath(id, "/records/"+itoa(list.Records[0].ID)), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecords_ViewerCannotMutate(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createZone(t, "admin", "example.com")
	_, err := env.db.AddRecord(t.Context(), databaseRecord(id, "www.example.com", "A", "192.0.2.1"))
	require.NoError(t, err)

	// Give the viewer ownership so only the missing edit permission blocks it.
	require.NoError(t, env.db.ChangeZoneOwner(t.Context(), id, env.users["viewer"].UserID))

	w := env.do("viewer", http.MethodGet, zonePath(id, "/records"), "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("viewer", http.MethodPost, zonePath(id, "/records"), `{"name":"mail","type":"A","content":"192.0.2.5"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// ============================================================================
// Bulk and PTR Endpoint Tests
// ============================================================================

func TestBulkRegister(t *testing.T) {
	env := newTestEnv(t, false)
	env.createZone(t, "manager", "taken.com")

	w := env.do("manager", http.MethodPost, "/api/zones/bulk", `{"domains":"one.com\ntaken.com\n\nbad_name!\ntwo.com"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res bulk.Result
	resp := decode(t, w, &res)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Rejected)
	assert.Zero(t, res.Failed)
	require.Len(t, res.Lines, 4)
	assert.Equal(t, 5, res.Lines[3].Line)
	assert.Equal(t, "2 created, 1 skipped, 1 rejected, 0 failed.", resp.Message)

	w = env.do("manager", http.MethodPost, "/api/zones/bulk", `{"domain_list":["three.com","four.com"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &res)
	assert.Equal(t, 2, res.Created)
}

func TestBulkRegister_Errors(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do("manager", http.MethodPost, "/api/zones/bulk", `{"domains":"  \n "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do("viewer", http.MethodPost, "/api/zones/bulk", `{"domains":"one.com"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do("manager", http.MethodPost, "/api/zones/bulk", `{"domains":"one.com","type":"FOO"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestPTRBatch(t *testing.T) {
	env := newTestEnv(t, false)
	env.createZone(t, "manager", "1.168.192.in-addr.arpa")

	body := `{"network_prefix":"192.168.1","host_prefix":"host","domain":"example.com"}`
	w := env.do("manager", http.MethodPost, "/api/zones/ptr-batch", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res zones.PTRBatchResult
	resp := decode(t, w, &res)
	assert.Equal(t, 256, res.Created)
	assert.Equal(t, "Created 256 PTR records successfully", resp.Message)

	w = env.do("manager", http.MethodPost, "/api/zones/ptr-batch", `{"network_prefix":"10.0.0","host_prefix":"h","domain":"example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do("manager", http.MethodPost, "/api/zones/ptr-batch", `{"network_prefix":"192.168.1","host_prefix":"-h","domain":"example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do("other", http.MethodPost, "/api/zones/ptr-batch", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListZoneTemplates(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do("manager", http.MethodGet, "/api/zone-templates", "")
	require.Equal(t, http.StatusOK, w.Code)
	var templates []models.ZoneTemplate
	decode(t, w, &templates)
	assert.NotNil(t, templates)
}

package handlers_test

import (
	"net/http"
	"testing"

	"github.com/jroosing/pdnsadmin/internal/api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Legacy Dispatcher Tests
// ============================================================================

func TestLegacy_ListZones(t *testing.T) {
	env := newTestEnv(t, false)
	env.createZone(t, "manager", "example.com")

	w := env.do("manager", http.MethodGet, "/api/index.php?page=list_zones", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list models.ZoneListResponse
	decode(t, w, &list)
	assert.Equal(t, 1, list.Pagination.Total)
}

func TestLegacy_RecordPages(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createZone(t, "manager", "example.com")

	w := env.do("manager", http.MethodPost, "/api/index.php?page=add_record&id="+itoa(id), `{"name":"www","type":"A","content":"192.0.2.1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rec models.Record
	decode(t, w, &rec)

	query := "&id=" + itoa(id) + "&rid=" + itoa(rec.ID)
	w = env.do("manager", http.MethodGet, "/api/index.php?page=edit_record"+query, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("manager", http.MethodPost, "/api/index.php?page=edit_record"+query, `{"name":"www","type":"A","content":"192.0.2.9"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do("manager", http.MethodPost, "/api/index.php?page=delete_record"+query, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestLegacy_ViewerIsForbidden(t *testing.T) {
	env := newTestEnv(t, true)
	id := env.createZone(t, "admin", "example.com")
	require.NoError(t, env.db.ChangeZoneOwner(t.Context(), id, env.users["viewer"].UserID))

	w := env.do("viewer", http.MethodPost, "/api/index.php?page=add_record&id="+itoa(id), `{"name":"www","type":"A","content":"192.0.2.1"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do("viewer", http.MethodPost, "/api/index.php?page=dnssec_add_key&id="+itoa(id), `{"key_type":"ksk","algorithm":"ecdsa256","bits":256}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLegacy_DNSSECEditKey(t *testing.T) {
	env := newTestEnv(t, true)
	id := env.createZone(t, "manager", "example.com")
	key := addKey(t, env, "manager", id, `{"key_type":"ksk","algorithm":"ecdsa256","bits":256}`)
	query := "&id=" + itoa(id) + "&key_id=" + itoa(int64(key.ID))

	w := env.do("manager", http.MethodPost, "/api/index.php?page=dnssec_edit_key"+query, `{"action":"activate"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stored, _ := env.pdns.key(key.ID)
	assert.True(t, stored.Active)

	w = env.do("manager", http.MethodPost, "/api/index.php?page=dnssec_edit_key"+query, `{"action":"explode"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLegacy_UnknownPageAndMethod(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do("manager", http.MethodGet, "/api/index.php?page=nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do("manager", http.MethodGet, "/api/index.php?page=add_record&id=1", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

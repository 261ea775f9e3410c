// Package handlers_test provides behavior tests for the API handlers package.
package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jroosing/pdnsadmin/internal/api/handlers"
	"github.com/jroosing/pdnsadmin/internal/auth"
	"github.com/jroosing/pdnsadmin/internal/bulk"
	"github.com/jroosing/pdnsadmin/internal/config"
	"github.com/jroosing/pdnsadmin/internal/database"
	"github.com/jroosing/pdnsadmin/internal/dnssec"
	"github.com/jroosing/pdnsadmin/internal/kvstore"
	"github.com/jroosing/pdnsadmin/internal/pdns"
	"github.com/jroosing/pdnsadmin/internal/session"
	"github.com/jroosing/pdnsadmin/internal/validation"
	"github.com/jroosing/pdnsadmin/internal/zones"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// envelope decodes both success and error bodies.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   bool            `json:"error"`
	Code    string          `json:"code"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data), string(env.Data))
	}
	return env
}

// ============================================================================
// Fake PowerDNS server
// ============================================================================

type fakePdns struct {
	mu         sync.Mutex
	secured    map[string]bool
	presigned  map[string]bool
	paths      []string
	keys       map[int]pdns.Cryptokey
	nextID     int
	dnskey     string
	failSecure string
}

func newFakePdns(t *testing.T) *fakePdns {
	t.Helper()
	k := &dns.DNSKEY{
		Hdr:       dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeDNSKEY, Class: dns.ClassINET, Ttl: 3600},
		Flags:     257,
		Protocol:  3,
		Algorithm: dns.ECDSAP256SHA256,
	}
	_, err := k.Generate(256)
	require.NoError(t, err)
	return &fakePdns{
		secured:   map[string]bool{},
		presigned: map[string]bool{},
		keys:      map[int]pdns.Cryptokey{},
		nextID:    1,
		dnskey:    "257 3 13 " + k.PublicKey,
	}
}

func (f *fakePdns) handler() http.Handler {
	r := gin.New()
	r.UseRawPath = true
	r.Use(func(c *gin.Context) {
		f.mu.Lock()
		f.paths = append(f.paths, c.Request.Method+" "+c.Request.URL.EscapedPath())
		f.mu.Unlock()
	})
	g := r.Group("/api/v1/servers/localhost/zones/:zone")
	zoneName := func(c *gin.Context) string { return strings.TrimSuffix(c.Param("zone"), ".") }
	keyNotFound := func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Could not find a key with id " + c.Param("kid")})
	}

	g.GET("", func(c *gin.Context) {
		f.mu.Lock()
		defer f.mu.Unlock()
		c.JSON(http.StatusOK, pdns.Zone{ID: c.Param("zone"), Name: c.Param("zone"), Kind: "Master", DNSSEC: f.secured[zoneName(c)]})
	})
	g.PUT("", func(c *gin.Context) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failSecure != "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": f.failSecure})
			return
		}
		var body struct {
			DNSSEC bool `json:"dnssec"`
		}
		_ = c.ShouldBindJSON(&body)
		f.secured[zoneName(c)] = body.DNSSEC
		c.Status(http.StatusNoContent)
	})
	g.GET("/metadata/:kind", func(c *gin.Context) {
		f.mu.Lock()
		defer f.mu.Unlock()
		md := pdns.Metadata{Kind: c.Param("kind"), Metadata: []string{}}
		if md.Kind == "PRESIGNED" && f.presigned[zoneName(c)] {
			md.Metadata = []string{"1"}
		}
		c.JSON(http.StatusOK, md)
	})
	g.PUT("/rectify", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"result": "Rectified"})
	})
	g.GET("/cryptokeys", func(c *gin.Context) {
		f.mu.Lock()
		defer f.mu.Unlock()
		out := []pdns.Cryptokey{}
		for id := 1; id < f.nextID; id++ {
			if k, ok := f.keys[id]; ok {
				out = append(out, k)
			}
		}
		c.JSON(http.StatusOK, out)
	})
	g.POST("/cryptokeys", func(c *gin.Context) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var k pdns.Cryptokey
		if err := c.ShouldBindJSON(&k); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		k.ID = f.nextID
		f.nextID++
		k.DNSKey = f.dnskey
		f.keys[k.ID] = k
		c.JSON(http.StatusCreated, k)
	})
	g.GET("/cryptokeys/:kid", func(c *gin.Context) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.Atoi(c.Param("kid"))
		k, ok := f.keys[id]
		if !ok {
			keyNotFound(c)
			return
		}
		c.JSON(http.StatusOK, k)
	})
	g.PUT("/cryptokeys/:kid", func(c *gin.Context) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.Atoi(c.Param("kid"))
		k, ok := f.keys[id]
		if !ok {
			keyNotFound(c)
			return
		}
		var body struct {
			Active bool `json:"active"`
		}
		_ = c.ShouldBindJSON(&body)
		k.Active = body.Active
		f.keys[id] = k
		c.Status(http.StatusNoContent)
	})
	g.DELETE("/cryptokeys/:kid", func(c *gin.Context) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.Atoi(c.Param("kid"))
		if _, ok := f.keys[id]; !ok {
			keyNotFound(c)
			return
		}
		delete(f.keys, id)
		c.Status(http.StatusNoContent)
	})
	return r
}

func (f *fakePdns) key(id int) (pdns.Cryptokey, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[id]
	return k, ok
}

// ============================================================================
// Test environment
// ============================================================================

type testEnv struct {
	db      *database.DB
	pdns    *fakePdns
	router  *gin.Engine
	users   map[string]*auth.Identity
	handler *handlers.Handler
}

func createTestConfig() *config.Config {
	return &config.Config{
		DNSSEC:    config.DNSSECConfig{Enabled: true},
		Interface: config.InterfaceConfig{AddReverseRecord: true, RowsPerPage: 10},
		API:       config.APIConfig{Enabled: true, MaxKeysPerUser: 5},
	}
}

func newTestEnv(t *testing.T, withDNSSEC bool) *testEnv {
	t.Helper()
	ctx := context.Background()
	cfg := createTestConfig()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Type: config.DatabaseSQLite,
		DSN:  filepath.Join(t.TempDir(), "handlers.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{db: db, users: map[string]*auth.Identity{}}
	for name, templ := range map[string]int64{"admin": 1, "manager": 2, "other": 2, "viewer": 3} {
		id, err := db.CreateUser(ctx, database.User{Username: name, PasswordHash: "x", PermTemplate: templ, Active: true})
		require.NoError(t, err)
		perms, err := db.UserPermissions(ctx, id)
		require.NoError(t, err)
		env.users[name] = &auth.Identity{UserID: id, Username: name, Permissions: auth.NewPermissions(perms...), Method: auth.MethodAPIKey}
	}

	zoneSvc := zones.NewService(db, zones.Options{
		Hostnames: &validation.HostnameValidator{TopLevelCheck: true},
		SOA: database.SOADefaults{
			NS1: "ns1.example.net", Hostmaster: "hostmaster.example.net", TTL: 3600,
			Refresh: 28800, Retry: 7200, Expire: 604800, Minimum: 86400,
		},
		AddReverseRecord: true,
		DNSSECEnabled:    withDNSSEC,
	}, nil)
	store := kvstore.NewMemory(1000)

	svc := handlers.Services{
		Zones:    zoneSvc,
		Bulk:     bulk.NewRegistrar(zoneSvc, nil),
		APIKeys:  auth.NewAPIKeyService(db, cfg.API.MaxKeysPerUser, nil),
		Auth:     auth.NewAuthenticator(db, db, nil),
		Sessions: session.NewManager(store, time.Hour),
	}
	if withDNSSEC {
		env.pdns = newFakePdns(t)
		srv := httptest.NewServer(env.pdns.handler())
		t.Cleanup(srv.Close)
		client, err := pdns.NewClient(config.PdnsAPIConfig{URL: srv.URL, Key: "secret", Timeout: 5 * time.Second}, nil)
		require.NoError(t, err)
		svc.DNSSEC = dnssec.NewService(client, zoneSvc, dnssec.NewConfirmationStore(store, time.Minute), true, nil)
	}

	env.handler = handlers.New(cfg, db, svc, nil)
	env.router = setupTestRouter(env.handler, env.users)
	return env
}

// setupTestRouter mounts the handlers behind a middleware that takes the
// caller from the X-Test-User header.
func setupTestRouter(h *handlers.Handler, users map[string]*auth.Identity) *gin.Engine {
	r := gin.New()
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.Use(func(c *gin.Context) {
		if id, ok := users[c.GetHeader("X-Test-User")]; ok {
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		}
		c.Next()
	})

	api.GET("/stats", h.Stats)
	api.GET("/zone-templates", h.ListZoneTemplates)

	api.GET("/zones", h.ListZones)
	api.POST("/zones", h.CreateZone)
	api.POST("/zones/bulk", h.BulkRegister)
	api.POST("/zones/ptr-batch", h.PTRBatch)
	api.GET("/zones/:id", h.GetZone)
	api.DELETE("/zones/:id", h.DeleteZone)
	api.GET("/zones/:id/export", h.ExportZone)

	api.GET("/zones/:id/records", h.ListRecords)
	api.POST("/zones/:id/records", h.CreateRecord)
	api.GET("/zones/:id/records/:rid", h.GetRecord)
	api.PUT("/zones/:id/records/:rid", h.UpdateRecord)
	api.DELETE("/zones/:id/records/:rid", h.DeleteRecord)

	api.GET("/zones/:id/dnssec", h.DNSSECStatus)
	api.POST("/zones/:id/dnssec/secure", h.SecureZone)
	api.POST("/zones/:id/dnssec/unsecure", h.UnsecureZone)
	api.GET("/zones/:id/dnssec/ds-dnskey", h.DSAndDNSKEY)
	api.POST("/zones/:id/dnssec/keys", h.AddKey)
	api.POST("/zones/:id/dnssec/keys/:key_id/activate", h.ActivateKey)
	api.POST("/zones/:id/dnssec/keys/:key_id/deactivate", h.DeactivateKey)
	api.GET("/zones/:id/dnssec/keys/:key_id/delete", h.DeleteKeyConfirmation)
	api.POST("/zones/:id/dnssec/keys/:key_id/delete", h.DeleteKey)

	api.GET("/api-keys", h.ListAPIKeys)
	api.POST("/api-keys", h.CreateAPIKey)
	api.GET("/api-keys/:key_id", h.GetAPIKey)
	api.PUT("/api-keys/:key_id", h.UpdateAPIKey)
	api.DELETE("/api-keys/:key_id", h.DeleteAPIKey)
	api.POST("/api-keys/:key_id/regenerate", h.RegenerateAPIKey)
	api.POST("/api-keys/:key_id/toggle", h.ToggleAPIKey)

	api.GET("/index.php", h.Legacy)
	api.POST("/index.php", h.Legacy)
	return r
}

func performRequest(r http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	return performRequestAs(r, "", method, path, body)
}

func performRequestAs(r http.Handler, user, method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func (e *testEnv) do(user, method, path, body string) *httptest.ResponseRecorder {
	return performRequestAs(e.router, user, method, path, body)
}

// createZone adds a zone through the API and returns its id.
func (e *testEnv) createZone(t *testing.T, user, name string) int64 {
	t.Helper()
	w := e.do(user, http.MethodPost, "/api/zones", `{"name":"`+name+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var data struct {
		ZoneID int64 `json:"zone_id"`
	}
	decode(t, w, &data)
	return data.ZoneID
}

func zonePath(id int64, suffix string) string {
	return "/api/zones/" + strconv.FormatInt(id, 10) + suffix
}

func databaseRecord(domainID int64, name, typ, content string) database.Record {
	return database.Record{DomainID: domainID, Name: name, Type: typ, Content: content, TTL: 3600}
}

package dnssec

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jroosing/pdnsadmin/internal/auth"
	"github.com/jroosing/pdnsadmin/internal/config"
	"github.com/jroosing/pdnsadmin/internal/kvstore"
	"github.com/jroosing/pdnsadmin/internal/pdns"
	"github.com/jroosing/pdnsadmin/internal/validation"
	"github.com/jroosing/pdnsadmin/internal/zones"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	secured   map[string]bool
	presigned map[string]bool
	keys      map[int]pdns.Cryptokey
	nextID    int
	rectify   int
	deleted   []int
	failWith  error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{secured: map[string]bool{}, presigned: map[string]bool{}, keys: map[int]pdns.Cryptokey{}, nextID: 1}
}

func (f *fakeAPI) GetZone(_ context.Context, zone string) (*pdns.Zone, error) {
	return &pdns.Zone{Name: dns.Fqdn(zone), DNSSEC: f.secured[zone]}, nil
}

func (f *fakeAPI) GetMetadata(_ context.Context, zone, kind string) (*pdns.Metadata, error) {
	if kind != "PRESIGNED" || !f.presigned[zone] {
		return nil, &pdns.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}
	}
	return &pdns.Metadata{Kind: kind, Metadata: []string{"1"}}, nil
}

func (f *fakeAPI) SetDNSSEC(_ context.Context, zone string, enabled bool) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.secured[zone] = enabled
	return nil
}

func (f *fakeAPI) RectifyZone(context.Context, string) error {
	f.rectify++
	return nil
}

func (f *fakeAPI) ListCryptokeys(context.Context, string) ([]pdns.Cryptokey, error) {
	out := []pdns.Cryptokey{}
	for id := 1; id < f.nextID; id++ {
		if k, ok := f.keys[id]; ok {
			k.DNSKey = ""
			k.DS = nil
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeAPI) GetCryptokey(_ context.Context, _ string, id int) (*pdns.Cryptokey, error) {
	k, ok := f.keys[id]
	if !ok {
		return nil, &pdns.APIError{StatusCode: http.StatusNotFound, Message: "Could not find a key"}
	}
	return &k, nil
}

func (f *fakeAPI) CreateCryptokey(_ context.Context, _ string, key pdns.Cryptokey) (*pdns.Cryptokey, error) {
	key.ID = f.nextID
	f.nextID++
	f.keys[key.ID] = key
	return &key, nil
}

func (f *fakeAPI) SetCryptokeyActive(_ context.Context, _ string, id int, active bool) error {
	k := f.keys[id]
	k.Active = active
	f.keys[id] = k
	return nil
}

func (f *fakeAPI) DeleteCryptokey(_ context.Context, _ string, id int) error {
	delete(f.keys, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeZones struct {
	names  map[int64]string
	owners map[int64]int64
}

func (f *fakeZones) Access(_ context.Context, id *auth.Identity, zoneID int64) (string, bool, error) {
	name, ok := f.names[zoneID]
	if !ok {
		return "", false, zones.ErrZoneNotFound
	}
	return name, f.owners[zoneID] == id.UserID, nil
}

func newKey(t *testing.T, flags uint16) (*dns.DNSKEY, string) {
	t.Helper()
	k := &dns.DNSKEY{
		Hdr:       dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeDNSKEY, Class: dns.ClassINET, Ttl: 3600},
		Flags:     flags,
		Protocol:  3,
		Algorithm: dns.ECDSAP256SHA256,
	}
	_, err := k.Generate(256)
	require.NoError(t, err)
	return k, "257 3 13 " + k.PublicKey
}

type fixture struct {
	api   *fakeAPI
	svc   *Service
	owner *auth.Identity
	other *auth.Identity
	view  *auth.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	api := newFakeAPI()
	mem := kvstore.NewMemory(100)
	z := &fakeZones{names: map[int64]string{1: "example.com"}, owners: map[int64]int64{1: 10}}
	return &fixture{
		api:   api,
		svc:   NewService(api, z, NewConfirmationStore(mem, time.Minute), true, nil),
		owner: &auth.Identity{UserID: 10, Permissions: auth.NewPermissions(auth.PermViewOwn, auth.PermMetaEditOwn)},
		other: &auth.Identity{UserID: 11, Permissions: auth.NewPermissions(auth.PermViewOwn, auth.PermMetaEditOwn)},
		view:  &auth.Identity{UserID: 10, Permissions: auth.NewPermissions(auth.PermViewOwn)},
	}
}

// =============================================================================
// Key lifecycle
// =============================================================================

func TestDisabled(t *testing.T) {
	svc := NewService(newFakeAPI(), &fakeZones{}, nil, false, nil)
	_, err := svc.ListKeys(context.Background(), &auth.Identity{}, 1)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.False(t, svc.Enabled())
}

func TestValidateNewKey(t *testing.T) {
	assert.NoError(t, ValidateNewKey("ksk", "rsasha256", 2048))
	assert.NoError(t, ValidateNewKey("csk", "ecdsa256", 0))
	assert.True(t, validation.IsValidationError(ValidateNewKey("big", "rsasha256", 2048)))
	assert.True(t, validation.IsValidationError(ValidateNewKey("zsk", "md5", 0)))
	assert.True(t, validation.IsValidationError(ValidateNewKey("zsk", "ecdsa256", 2048)))
}

func TestAddActivateDeactivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	key, err := f.svc.AddKey(ctx, f.owner, 1, "KSK", "ECDSA256", 256)
	require.NoError(t, err)
	assert.False(t, key.Active)
	assert.Equal(t, "KSK", key.Type)
	assert.False(t, f.api.keys[key.ID].Active)

	require.NoError(t, f.svc.ActivateKey(ctx, f.owner, 1, key.ID))
	assert.True(t, f.api.keys[key.ID].Active)
	require.NoError(t, f.svc.DeactivateKey(ctx, f.owner, 1, key.ID))
	assert.False(t, f.api.keys[key.ID].Active)

	assert.ErrorIs(t, f.svc.ActivateKey(ctx, f.owner, 1, 99), ErrKeyNotFound)

	keys, err := f.svc.ListKeys(ctx, f.view, 1)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	t.Run("invalid input", func(t *testing.T) {
		_, err := f.svc.AddKey(ctx, f.owner, 1, "ksk", "ecdsa256", 1024)
		assert.True(t, validation.IsValidationError(err))
	})

	t.Run("viewer and non-owner are forbidden", func(t *testing.T) {
		_, err := f.svc.AddKey(ctx, f.view, 1, "ksk", "ecdsa256", 256)
		assert.ErrorIs(t, err, auth.ErrForbidden)
		assert.ErrorIs(t, f.svc.ActivateKey(ctx, f.other, 1, key.ID), auth.ErrForbidden)
		_, err = f.svc.ListKeys(ctx, f.other, 1)
		assert.ErrorIs(t, err, auth.ErrForbidden)
	})

	t.Run("unknown zone", func(t *testing.T) {
		_, err := f.svc.ListKeys(ctx, f.owner, 42)
		assert.ErrorIs(t, err, zones.ErrZoneNotFound)
	})
}

func TestGetKey_DerivesTag(t *testing.T) {
	f := newFixture(t)
	k, rdata := newKey(t, 257)
	f.api.keys[1] = pdns.Cryptokey{ID: 1, KeyType: "csk", DNSKey: rdata}
	f.api.nextID = 2

	key, err := f.svc.GetKey(context.Background(), f.view, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, k.KeyTag(), key.Tag)
	assert.Equal(t, "ECDSAP256SHA256", key.Algorithm)
	assert.Equal(t, "CSK", key.Type)
}

// =============================================================================
// Two-phase delete
// =============================================================================

func TestDelete_TwoPhase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key, err := f.svc.AddKey(ctx, f.owner, 1, "zsk", "ed25519", 0)
	require.NoError(t, err)

	req, err := f.svc.RequestDelete(ctx, f.owner, 1, key.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, req.Token)
	assert.Equal(t, "example.com", req.Zone)
	assert.Equal(t, 60, req.ExpiresIn)
	assert.Contains(t, f.api.keys, key.ID)

	t.Run("wrong key consumes token", func(t *testing.T) {
		other, err := f.svc.RequestDelete(ctx, f.owner, 1, key.ID)
		require.NoError(t, err)
		assert.ErrorIs(t, f.svc.ConfirmDelete(ctx, f.owner, 1, key.ID+1, other.Token), ErrInvalidToken)
		assert.ErrorIs(t, f.svc.ConfirmDelete(ctx, f.owner, 1, key.ID, other.Token), ErrInvalidToken)
		assert.Contains(t, f.api.keys, key.ID)
	})

	t.Run("other user", func(t *testing.T) {
		admin := &auth.Identity{UserID: 99, Permissions: auth.NewPermissions(auth.PermUeberuser)}
		assert.ErrorIs(t, f.svc.ConfirmDelete(ctx, admin, 1, key.ID, req.Token), ErrInvalidToken)
		assert.Contains(t, f.api.keys, key.ID)
	})

	t.Run("confirm", func(t *testing.T) {
		req, err := f.svc.RequestDelete(ctx, f.owner, 1, key.ID)
		require.NoError(t, err)
		require.NoError(t, f.svc.ConfirmDelete(ctx, f.owner, 1, key.ID, req.Token))
		assert.NotContains(t, f.api.keys, key.ID)
		assert.Equal(t, []int{key.ID}, f.api.deleted)

		assert.ErrorIs(t, f.svc.ConfirmDelete(ctx, f.owner, 1, key.ID, req.Token), ErrInvalidToken)
	})

	t.Run("cancel", func(t *testing.T) {
		k2, err := f.svc.AddKey(ctx, f.owner, 1, "zsk", "ed25519", 0)
		require.NoError(t, err)
		req, err := f.svc.RequestDelete(ctx, f.owner, 1, k2.ID)
		require.NoError(t, err)
		assert.ErrorIs(t, f.svc.CancelDelete(ctx, f.view, 1, k2.ID, req.Token), auth.ErrForbidden)
		require.NoError(t, f.svc.CancelDelete(ctx, f.owner, 1, k2.ID, req.Token))
		assert.ErrorIs(t, f.svc.ConfirmDelete(ctx, f.owner, 1, k2.ID, req.Token), ErrInvalidToken)
		assert.Contains(t, f.api.keys, k2.ID)
	})

	t.Run("cancel by other user", func(t *testing.T) {
		k3, err := f.svc.AddKey(ctx, f.owner, 1, "zsk", "ed25519", 0)
		require.NoError(t, err)
		req, err := f.svc.RequestDelete(ctx, f.owner, 1, k3.ID)
		require.NoError(t, err)
		admin := &auth.Identity{UserID: 99, Permissions: auth.NewPermissions(auth.PermUeberuser)}
		assert.ErrorIs(t, f.svc.CancelDelete(ctx, admin, 1, k3.ID, req.Token), ErrInvalidToken)
		assert.Contains(t, f.api.keys, k3.ID)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := f.svc.RequestDelete(ctx, f.owner, 1, 404)
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("viewer", func(t *testing.T) {
		_, err := f.svc.RequestDelete(ctx, f.view, 1, key.ID)
		assert.ErrorIs(t, err, auth.ErrForbidden)
	})
}

func TestConfirmationStore_Expires(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := kvstore.NewRedis(mr.Addr(), "", 0)
	t.Cleanup(func() { rdb.Close() })
	store := NewConfirmationStore(rdb, time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx, 1, 2, 3)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, store.Consume(ctx, token, 1, 2, 3), ErrInvalidToken)
	assert.ErrorIs(t, store.Consume(ctx, "", 1, 2, 3), ErrInvalidToken)
	assert.Equal(t, DefaultConfirmTTL, NewConfirmationStore(rdb, 0).TTL())
}

// =============================================================================
// Secure / unsecure
// =============================================================================

func TestSecureUnsecure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SecureZone(ctx, f.owner, 1))
	assert.Equal(t, 1, f.api.rectify)
	secured, err := f.svc.IsZoneSecured(ctx, f.view, 1)
	require.NoError(t, err)
	assert.True(t, secured)

	require.NoError(t, f.svc.UnsecureZone(ctx, f.owner, 1))
	secured, err = f.svc.IsZoneSecured(ctx, f.view, 1)
	require.NoError(t, err)
	assert.False(t, secured)

	assert.ErrorIs(t, f.svc.SecureZone(ctx, f.view, 1), auth.ErrForbidden)

	f.api.failWith = &pdns.APIError{StatusCode: 422, Message: "Zone is presigned"}
	err = f.svc.SecureZone(ctx, f.owner, 1)
	assert.EqualError(t, err, "Zone is presigned")
	assert.Equal(t, 1, f.api.rectify)
}

func TestSecureUnsecure_ClasslessZone(t *testing.T) {
	const zone = "0/26.1.168.192.in-addr.arpa"
	var (
		mu      sync.Mutex
		calls   []string
		secured bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, r.Method+" "+r.URL.EscapedPath())
		switch {
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(pdns.Zone{Name: zone + ".", DNSSEC: secured})
		case strings.HasSuffix(r.URL.Path, "/rectify"):
			_, _ = w.Write([]byte(`{"result":"Rectified"}`))
		default:
			var body struct {
				DNSSEC bool `json:"dnssec"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			secured = body.DNSSEC
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := pdns.NewClient(config.PdnsAPIConfig{URL: srv.URL, ServerID: "localhost", Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	z := &fakeZones{names: map[int64]string{7: zone}, owners: map[int64]int64{7: 10}}
	svc := NewService(client, z, NewConfirmationStore(kvstore.NewMemory(10), time.Minute), true, nil)
	owner := &auth.Identity{UserID: 10, Permissions: auth.NewPermissions(auth.PermViewOwn, auth.PermMetaEditOwn)}
	ctx := context.Background()

	require.NoError(t, svc.SecureZone(ctx, owner, 7))
	on, err := svc.IsZoneSecured(ctx, owner, 7)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, svc.UnsecureZone(ctx, owner, 7))
	on, err = svc.IsZoneSecured(ctx, owner, 7)
	require.NoError(t, err)
	assert.False(t, on)

	const base = "/api/v1/servers/localhost/zones/0%2F26.1.168.192.in-addr.arpa."
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"PUT " + base,
		"PUT " + base + "/rectify",
		"GET " + base,
		"PUT " + base,
		"GET " + base,
	}, calls)
}

func TestIsZonePresigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	presigned, err := f.svc.IsZonePresigned(ctx, f.view, 1)
	require.NoError(t, err)
	assert.False(t, presigned)

	f.api.presigned["example.com"] = true
	presigned, err = f.svc.IsZonePresigned(ctx, f.view, 1)
	require.NoError(t, err)
	assert.True(t, presigned)

	_, err = f.svc.IsZonePresigned(ctx, f.other, 1)
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

// =============================================================================
// DS and DNSKEY
// =============================================================================

func TestDSAndDNSKEY(t *testing.T) {
	f := newFixture(t)
	ksk, kskData := newKey(t, 257)
	_, zskData := newKey(t, 256)

	serverDS := ksk.ToDS(dns.SHA256)
	f.api.keys[1] = pdns.Cryptokey{ID: 1, KeyType: "ksk", Active: true, DNSKey: kskData,
		DS: []string{"not a ds", serverDS.String()[len(serverDS.Hdr.String()):]}}
	f.api.keys[2] = pdns.Cryptokey{ID: 2, KeyType: "zsk", Active: true, DNSKey: zskData}
	f.api.keys[3] = pdns.Cryptokey{ID: 3, KeyType: "csk", Active: true, DNSKey: kskData}
	f.api.nextID = 4

	records, err := f.svc.DSAndDNSKEY(context.Background(), f.view, 1)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 1, records[0].KeyID)
	assert.Equal(t, "KSK", records[0].Type)
	assert.Equal(t, ksk.KeyTag(), records[0].KeyTag)
	assert.Equal(t, "ECDSAP256SHA256", records[0].Algorithm)
	assert.Contains(t, records[0].DNSKEY, "DNSKEY\t257 3 13 ")
	require.Len(t, records[0].DS, 1)
	assert.False(t, records[0].DS[0].Computed)
	assert.Equal(t, "SHA256", records[0].DS[0].DigestType)
	assert.Equal(t, ksk.KeyTag(), records[0].DS[0].KeyTag)

	assert.Equal(t, "CSK", records[1].Type)
	require.Len(t, records[1].DS, 2)
	assert.True(t, records[1].DS[0].Computed)
	assert.Equal(t, "SHA256", records[1].DS[0].DigestType)
	assert.Equal(t, "SHA384", records[1].DS[1].DigestType)
	assert.Equal(t, serverDS.Digest, records[1].DS[0].Digest)
}

func TestAlgorithmNames(t *testing.T) {
	assert.Equal(t, "RSASHA256", AlgorithmName(8))
	assert.Equal(t, "Unknown", AlgorithmName(200))
	assert.Equal(t, "SHA384", DigestTypeName(4))
	assert.Equal(t, "Unknown", DigestTypeName(99))
}

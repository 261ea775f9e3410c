// Package dnssec manages DNSSEC keys of zones through the PowerDNS API.
package dnssec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jroosing/pdnsadmin/internal/auth"
	"github.com/jroosing/pdnsadmin/internal/metrics"
	"github.com/jroosing/pdnsadmin/internal/pdns"
	"github.com/jroosing/pdnsadmin/internal/validation"
	"github.com/miekg/dns"
)

var (
	// ErrDisabled is returned when DNSSEC support is switched off.
	ErrDisabled = errors.New("DNSSEC is not enabled")
	// ErrKeyNotFound is returned for keys that do not exist in the zone.
	ErrKeyNotFound = errors.New("key not found")
)

// API is the PowerDNS surface used by the service.
type API interface {
	GetZone(ctx context.Context, zone string) (*pdns.Zone, error)
	SetDNSSEC(ctx context.Context, zone string, enabled bool) error
	RectifyZone(ctx context.Context, zone string) error
	ListCryptokeys(ctx context.Context, zone string) ([]pdns.Cryptokey, error)
	GetCryptokey(ctx context.Context, zone string, id int) (*pdns.Cryptokey, error)
	CreateCryptokey(ctx context.Context, zone string, key pdns.Cryptokey) (*pdns.Cryptokey, error)
	SetCryptokeyActive(ctx context.Context, zone string, id int, active bool) error
	DeleteCryptokey(ctx context.Context, zone string, id int) error
	GetMetadata(ctx context.Context, zone, kind string) (*pdns.Metadata, error)
}

// Zones resolves a zone id to its name and the caller's ownership.
type Zones interface {
	Access(ctx context.Context, id *auth.Identity, zoneID int64) (name string, owns bool, err error)
}

// Key is a DNSSEC key with fields derived from its DNSKEY.
type Key struct {
	ID        int      `json:"id"`
	Type      string   `json:"type"`
	Tag       uint16   `json:"tag"`
	Algorithm string   `json:"algorithm"`
	Bits      int      `json:"bits"`
	Active    bool     `json:"active"`
	Published bool     `json:"published"`
	DNSKey    string   `json:"dnskey,omitempty"`
	DS        []string `json:"ds,omitempty"`
}

// DeleteRequest is the first phase of a key deletion.
type DeleteRequest struct {
	Zone      string `json:"zone"`
	Key       Key    `json:"key"`
	Token     string `json:"confirm_token"`
	ExpiresIn int    `json:"expires_in"`
}

// DSRecord is one DS record in presentation form with decoded fields.
type DSRecord struct {
	KeyTag     uint16 `json:"key_tag"`
	Algorithm  string `json:"algorithm"`
	DigestType string `json:"digest_type"`
	Digest     string `json:"digest"`
	Record     string `json:"record"`
	Computed   bool   `json:"computed,omitempty"`
}

// KeyRecords are the DNSKEY and DS records published for one KSK or CSK.
type KeyRecords struct {
	KeyID     int        `json:"key_id"`
	Type      string     `json:"type"`
	KeyTag    uint16     `json:"key_tag"`
	Algorithm string     `json:"algorithm"`
	DNSKEY    string     `json:"dnskey"`
	DS        []DSRecord `json:"ds"`
}

// Service runs the DNSSEC key lifecycle for authenticated callers.
type Service struct {
	api           API
	zones         Zones
	confirmations *ConfirmationStore
	enabled       bool
	logger        *slog.Logger
}

// NewService creates a Service. logger may be nil.
func NewService(api API, zones Zones, confirmations *ConfirmationStore, enabled bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, zones: zones, confirmations: confirmations, enabled: enabled, logger: logger}
}

// Enabled reports whether DNSSEC support is on.
func (s *Service) Enabled() bool { return s.enabled }

func (s *Service) zone(ctx context.Context, id *auth.Identity, zoneID int64, edit bool) (string, error) {
	if !s.enabled {
		return "", ErrDisabled
	}
	if id == nil {
		return "", auth.ErrForbidden
	}
	name, owns, err := s.zones.Access(ctx, id, zoneID)
	if err != nil {
		return "", err
	}
	allowed := id.Permissions.CanViewZone(owns)
	if edit {
		allowed = id.Permissions.CanEditZoneMeta(owns)
	}
	if !allowed {
		return "", auth.ErrForbidden
	}
	return name, nil
}

func (s *Service) audit(op string, id *auth.Identity, zone string, err error, attrs ...any) {
	metrics.DNSSECOperations.WithLabelValues(op, metrics.Result(err)).Inc()
	if err != nil {
		return
	}
	s.logger.Info("dnssec "+strings.ReplaceAll(op, "_", " "),
		append([]any{"user_id", id.UserID, "zone", zone}, attrs...)...)
}

func toKey(zone string, k pdns.Cryptokey) Key {
	key := Key{
		ID:        k.ID,
		Type:      strings.ToUpper(k.KeyType),
		Algorithm: k.Algorithm,
		Bits:      k.Bits,
		Active:    k.Active,
		Published: k.Published,
		DNSKey:    k.DNSKey,
		DS:        k.DS,
	}
	if k.DNSKey != "" {
		if dk, err := ParseDNSKEY(zone, k.DNSKey); err == nil {
			key.Tag = dk.KeyTag()
			if key.Algorithm == "" {
				key.Algorithm = AlgorithmName(dk.Algorithm)
			}
		}
	}
	return key
}

// IsZoneSecured reports whether the server signs the zone.
func (s *Service) IsZoneSecured(ctx context.Context, id *auth.Identity, zoneID int64) (bool, error) {
	zone, err := s.zone(ctx, id, zoneID, false)
	if err != nil {
		return false, err
	}
	z, err := s.api.GetZone(ctx, zone)
	if err != nil {
		return false, err
	}
	return z.DNSSEC, nil
}

// IsZonePresigned reports whether the zone carries PRESIGNED metadata, in
// which case the server serves signatures it did not create.
func (s *Service) IsZonePresigned(ctx context.Context, id *auth.Identity, zoneID int64) (bool, error) {
	zone, err := s.zone(ctx, id, zoneID, false)
	if err != nil {
		return false, err
	}
	md, err := s.api.GetMetadata(ctx, zone, "PRESIGNED")
	if pdns.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(md.Metadata) > 0 && md.Metadata[0] == "1", nil
}

// ListKeys returns the keys of a zone the caller may view.
func (s *Service) ListKeys(ctx context.Context, id *auth.Identity, zoneID int64) ([]Key, error) {
	zone, err := s.zone(ctx, id, zoneID, false)
	if err != nil {
		return nil, err
	}
	raw, err := s.api.ListCryptokeys(ctx, zone)
	if err != nil {
		return nil, err
	}
	keys := make([]Key, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, toKey(zone, k))
	}
	return keys, nil
}

// GetKey returns one key of a zone the caller may view.
func (s *Service) GetKey(ctx context.Context, id *auth.Identity, zoneID int64, keyID int) (*Key, error) {
	zone, err := s.zone(ctx, id, zoneID, false)
	if err != nil {
		return nil, err
	}
	return s.getKey(ctx, zone, keyID)
}

func (s *Service) getKey(ctx context.Context, zone string, keyID int) (*Key, error) {
	k, err := s.api.GetCryptokey(ctx, zone, keyID)
	if pdns.IsNotFound(err) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	key := toKey(zone, *k)
	return &key, nil
}

// ValidateNewKey checks key type, algorithm short name and bits.
func ValidateNewKey(keyType, algorithm string, bits int) error {
	var msgs []string
	switch keyType {
	case KeyTypeKSK, KeyTypeZSK, KeyTypeCSK:
	default:
		msgs = append(msgs, "Invalid key type. Use ksk, zsk or csk.")
	}
	alg, ok := Algorithms[algorithm]
	if !ok {
		msgs = append(msgs, fmt.Sprintf("Unsupported algorithm %q.", algorithm))
	} else if !slices.Contains(alg.Bits, bits) {
		msgs = append(msgs, fmt.Sprintf("Invalid key size %d for %s.", bits, alg.Name))
	}
	if len(msgs) > 0 {
		return &validation.Error{Messages: msgs}
	}
	return nil
}

// AddKey creates an inactive key.
func (s *Service) AddKey(ctx context.Context, id *auth.Identity, zoneID int64, keyType, algorithm string, bits int) (*Key, error) {
	zone, err := s.zone(ctx, id, zoneID, true)
	if err != nil {
		return nil, err
	}
	keyType = strings.ToLower(strings.TrimSpace(keyType))
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if err := ValidateNewKey(keyType, algorithm, bits); err != nil {
		return nil, err
	}

	created, err := s.api.CreateCryptokey(ctx, zone, pdns.Cryptokey{
		KeyType:   keyType,
		Active:    false,
		Algorithm: algorithm,
		Bits:      bits,
	})
	s.audit("add_key", id, zone, err, "type", keyType, "algorithm", algorithm, "bits", bits)
	if err != nil {
		return nil, err
	}
	key := toKey(zone, *created)
	return &key, nil
}

// ActivateKey activates a key.
func (s *Service) ActivateKey(ctx context.Context, id *auth.Identity, zoneID int64, keyID int) error {
	return s.setActive(ctx, id, zoneID, keyID, true)
}

// DeactivateKey deactivates a key.
func (s *Service) DeactivateKey(ctx context.Context, id *auth.Identity, zoneID int64, keyID int) error {
	return s.setActive(ctx, id, zoneID, keyID, false)
}

func (s *Service) setActive(ctx context.Context, id *auth.Identity, zoneID int64, keyID int, active bool) error {
	zone, err := s.zone(ctx, id, zoneID, true)
	if err != nil {
		return err
	}
	if _, err := s.getKey(ctx, zone, keyID); err != nil {
		return err
	}
	op := "deactivate_key"
	if active {
		op = "activate_key"
	}
	err = s.api.SetCryptokeyActive(ctx, zone, keyID, active)
	s.audit(op, id, zone, err, "key_id", keyID)
	return err
}

// RequestDelete returns the key details and a confirmation token. The key
// is not deleted.
func (s *Service) RequestDelete(ctx context.Context, id *auth.Identity, zoneID int64, keyID int) (*DeleteRequest, error) {
	zone, err := s.zone(ctx, id, zoneID, true)
	if err != nil {
		return nil, err
	}
	key, err := s.getKey(ctx, zone, keyID)
	if err != nil {
		return nil, err
	}
	token, err := s.confirmations.Issue(ctx, zoneID, keyID, id.UserID)
	if err != nil {
		return nil, err
	}
	return &DeleteRequest{
		Zone:      zone,
		Key:       *key,
		Token:     token,
		ExpiresIn: int(s.confirmations.TTL().Seconds()),
	}, nil
}

// ConfirmDelete consumes token and deletes the key it was issued for.
func (s *Service) ConfirmDelete(ctx context.Context, id *auth.Identity, zoneID int64, keyID int, token string) error {
	zone, err := s.zone(ctx, id, zoneID, true)
	if err != nil {
		return err
	}
	if err := s.confirmations.Consume(ctx, token, zoneID, keyID, id.UserID); err != nil {
		s.audit("delete_key", id, zone, err)
		return err
	}
	if _, err := s.getKey(ctx, zone, keyID); err != nil {
		return err
	}
	err = s.api.DeleteCryptokey(ctx, zone, keyID)
	s.audit("delete_key", id, zone, err, "key_id", keyID)
	return err
}

// CancelDelete consumes token without deleting the key. The token must
// have been issued to the same user for the same zone and key.
func (s *Service) CancelDelete(ctx context.Context, id *auth.Identity, zoneID int64, keyID int, token string) error {
	zone, err := s.zone(ctx, id, zoneID, true)
	if err != nil {
		return err
	}
	err = s.confirmations.Consume(ctx, token, zoneID, keyID, id.UserID)
	s.audit("cancel_delete_key", id, zone, err, "key_id", keyID)
	return err
}

// SecureZone enables signing and rectifies the zone.
func (s *Service) SecureZone(ctx context.Context, id *auth.Identity, zoneID int64) error {
	zone, err := s.zone(ctx, id, zoneID, true)
	if err != nil {
		return err
	}
	err = s.api.SetDNSSEC(ctx, zone, true)
	if err == nil {
		err = s.api.RectifyZone(ctx, zone)
	}
	s.audit("secure_zone", id, zone, err)
	return err
}

// UnsecureZone disables signing.
func (s *Service) UnsecureZone(ctx context.Context, id *auth.Identity, zoneID int64) error {
	zone, err := s.zone(ctx, id, zoneID, true)
	if err != nil {
		return err
	}
	err = s.api.SetDNSSEC(ctx, zone, false)
	s.audit("unsecure_zone", id, zone, err)
	return err
}

// DSAndDNSKEY returns the DNSKEY and DS records of every KSK and CSK of a
// zone. When the server lists no DS for a key, SHA-256 and SHA-384 digests
// are computed from the DNSKEY.
func (s *Service) DSAndDNSKEY(ctx context.Context, id *auth.Identity, zoneID int64) ([]KeyRecords, error) {
	zone, err := s.zone(ctx, id, zoneID, false)
	if err != nil {
		return nil, err
	}
	keys, err := s.api.ListCryptokeys(ctx, zone)
	if err != nil {
		return nil, err
	}

	out := []KeyRecords{}
	for _, k := range keys {
		kt := strings.ToLower(k.KeyType)
		if kt != KeyTypeKSK && kt != KeyTypeCSK {
			continue
		}
		if k.DNSKey == "" {
			full, err := s.api.GetCryptokey(ctx, zone, k.ID)
			if err != nil {
				return nil, err
			}
			k = *full
		}
		dk, err := ParseDNSKEY(zone, k.DNSKey)
		if err != nil {
			s.logger.Warn("skipping unparsable dnskey", "zone", zone, "key_id", k.ID, "err", err)
			continue
		}

		rec := KeyRecords{
			KeyID:     k.ID,
			Type:      strings.ToUpper(kt),
			KeyTag:    dk.KeyTag(),
			Algorithm: AlgorithmName(dk.Algorithm),
			DNSKEY:    dk.String(),
			DS:        []DSRecord{},
		}
		for _, raw := range k.DS {
			ds, err := ParseDS(zone, raw)
			if err != nil {
				s.logger.Warn("skipping unparsable ds", "zone", zone, "key_id", k.ID, "err", err)
				continue
			}
			rec.DS = append(rec.DS, dsRecord(ds, false))
		}
		if len(rec.DS) == 0 {
			for _, ds := range ComputeDS(dk) {
				rec.DS = append(rec.DS, dsRecord(ds, true))
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func dsRecord(ds *dns.DS, computed bool) DSRecord {
	return DSRecord{
		KeyTag:     ds.KeyTag,
		Algorithm:  AlgorithmName(ds.Algorithm),
		DigestType: DigestTypeName(ds.DigestType),
		Digest:     ds.Digest,
		Record:     ds.String(),
		Computed:   computed,
	}
}

// Package zones implements zone and record management on top of the
// database layer: validation, permission checks and audit logging.
package zones

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/jroosing/pdnsadmin/internal/auth"
	"github.com/jroosing/pdnsadmin/internal/database"
	"github.com/jroosing/pdnsadmin/internal/metrics"
	"github.com/jroosing/pdnsadmin/internal/validation"
)

var (
	// ErrZoneExists is returned when a zone with the same name already exists.
	ErrZoneExists = errors.New("zone already exists")
	// ErrZoneNotFound is returned for unknown zone ids.
	ErrZoneNotFound = errors.New("zone not found")
	// ErrRecordNotFound is returned for unknown records or records of another zone.
	ErrRecordNotFound = errors.New("record not found")
	// ErrRecordExists is returned when an identical record is already present.
	ErrRecordExists = errors.New("record already exists")
)

// Zone types accepted by Create.
const (
	TypeMaster = "MASTER"
	TypeNative = "NATIVE"
	TypeSlave  = "SLAVE"
)

// Store is the database surface used by the service.
type Store interface {
	GetZones(ctx context.Context, q database.ZoneQuery) ([]database.Zone, error)
	CountZones(ctx context.Context, q database.ZoneQuery) (int, error)
	GetZoneInfoFromID(ctx context.Context, scope string, id int64) (*database.Zone, error)
	GetBestMatchingZoneIDFromName(ctx context.Context, domain string) (int64, error)
	DomainExists(ctx context.Context, name string) (bool, error)
	GetDomainNameByID(ctx context.Context, id int64) (string, error)
	UserOwnsZone(ctx context.Context, userID, zoneID int64) (bool, error)
	AddDomain(ctx context.Context, d database.NewDomain) (int64, error)
	DeleteZone(ctx context.Context, id int64) error
	GetUserByID(ctx context.Context, id int64) (*database.User, error)

	GetRecordsFromDomainID(ctx context.Context, q database.RecordQuery) ([]database.Record, error)
	CountZoneRecords(ctx context.Context, q database.RecordQuery) (int, error)
	GetRecordFromID(ctx context.Context, id int64) (*database.Record, error)
	RecordExists(ctx context.Context, domainID int64, name, rtype, content string) (bool, error)
	AddRecord(ctx context.Context, r database.Record) (int64, error)
	EditRecord(ctx context.Context, r database.Record) error
	DeleteRecord(ctx context.Context, id int64) error
}

// Options configure a Service.
type Options struct {
	Hostnames        *validation.HostnameValidator
	SOA              database.SOADefaults
	AddReverseRecord bool
	DNSSECEnabled    bool
	ShowSerial       bool
}

// Service manages zones and their records for an authenticated identity.
type Service struct {
	store   Store
	opts    Options
	records *validation.RecordValidator
	logger  *slog.Logger
}

// NewService creates a Service. logger may be nil.
func NewService(store Store, opts Options, logger *slog.Logger) *Service {
	if opts.Hostnames == nil {
		opts.Hostnames = &validation.HostnameValidator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		opts:    opts,
		records: &validation.RecordValidator{Hostnames: opts.Hostnames},
		logger:  logger,
	}
}

// CreateRequest describes a zone to add.
type CreateRequest struct {
	Name       string
	Type       string
	Master     string
	OwnerID    int64 // 0 means the caller
	TemplateID int64 // 0 means no template
}

// NormalizeType upper-cases a zone type and defaults it to MASTER.
func NormalizeType(t string) string {
	t = strings.ToUpper(strings.TrimSpace(t))
	if t == "" {
		return TypeMaster
	}
	return t
}

// ValidateType rejects zone types other than MASTER, NATIVE and SLAVE.
func ValidateType(t string) error {
	switch NormalizeType(t) {
	case TypeMaster, TypeNative, TypeSlave:
		return nil
	}
	return &validation.Error{Messages: []string{fmt.Sprintf("Unknown zone type %q.", t)}}
}

// CheckCreate verifies that id may create zones of zoneType.
func CheckCreate(id *auth.Identity, zoneType string) error {
	if id == nil || !id.Permissions.CanCreateZone(NormalizeType(zoneType)) {
		return auth.ErrForbidden
	}
	return nil
}

// Create validates and adds a zone. Validation failures are returned as
// *validation.Error, duplicates as ErrZoneExists.
func (s *Service) Create(ctx context.Context, id *auth.Identity, req CreateRequest) (int64, error) {
	zoneType := NormalizeType(req.Type)
	if err := ValidateType(zoneType); err != nil {
		return 0, err
	}
	if err := CheckCreate(id, zoneType); err != nil {
		return 0, err
	}

	name, err := s.opts.Hostnames.Validate(strings.TrimSpace(req.Name), false)
	if err != nil {
		return 0, err
	}
	name = strings.ToLower(name)
	if name == "." || name == "@" || strings.HasPrefix(name, "@.") {
		return 0, &validation.Error{Messages: []string{"Invalid zone name."}}
	}

	master := strings.TrimSpace(req.Master)
	if zoneType == TypeSlave {
		if err := validateMasters(master); err != nil {
			return 0, err
		}
	}

	owner := req.OwnerID
	if owner == 0 {
		owner = id.UserID
	}
	if owner != id.UserID {
		if !id.Permissions.IsUeberuser() {
			return 0, auth.ErrForbidden
		}
		if _, err := s.store.GetUserByID(ctx, owner); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return 0, &validation.Error{Messages: []string{"The selected owner does not exist."}}
			}
			return 0, err
		}
	}

	exists, err := s.store.DomainExists(ctx, name)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrZoneExists
	}

	zoneID, err := s.store.AddDomain(ctx, database.NewDomain{
		Name:       name,
		Type:       zoneType,
		Master:     master,
		OwnerID:    owner,
		TemplateID: req.TemplateID,
		SOA:        s.opts.SOA,
	})
	if err != nil {
		return 0, err
	}

	metrics.ZoneOperations.WithLabelValues("zone_create").Inc()
	s.logger.Info("zone created", "user_id", id.UserID, "zone", name, "zone_id", zoneID, "type", zoneType)
	return zoneID, nil
}

// validateMasters checks a comma or space separated list of master addresses.
func validateMasters(master string) error {
	if master == "" {
		return &validation.Error{Messages: []string{"A master address is required for slave zones."}}
	}
	for _, m := range strings.FieldsFunc(master, func(r rune) bool { return r == ',' || r == ' ' }) {
		if _, err := netip.ParseAddr(m); err != nil {
			if _, err := netip.ParseAddrPort(m); err != nil {
				return &validation.Error{Messages: []string{fmt.Sprintf("%q is not a valid master address.", m)}}
			}
		}
	}
	return nil
}

// ListQuery is the caller-controlled part of a zone listing.
type ListQuery struct {
	Letter         string
	Offset         int
	Limit          int
	SortBy         string
	SortDir        string
	ExcludeReverse bool
}

// List returns the zones visible to id and the total count.
func (s *Service) List(ctx context.Context, id *auth.Identity, q ListQuery) ([]database.Zone, int, error) {
	zq := database.ZoneQuery{
		Scope:          id.Permissions.ZoneViewScope(),
		UserID:         id.UserID,
		Letter:         q.Letter,
		Offset:         q.Offset,
		Limit:          q.Limit,
		SortBy:         q.SortBy,
		SortDir:        q.SortDir,
		ExcludeReverse: q.ExcludeReverse,
		WithDNSSEC:     s.opts.DNSSECEnabled,
		WithSerial:     s.opts.ShowSerial,
	}
	zones, err := s.store.GetZones(ctx, zq)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountZones(ctx, zq)
	if err != nil {
		return nil, 0, err
	}
	return zones, total, nil
}

// Get returns a zone the caller may view.
func (s *Service) Get(ctx context.Context, id *auth.Identity, zoneID int64) (*database.Zone, error) {
	owns, err := s.access(ctx, id, zoneID)
	if err != nil {
		return nil, err
	}
	if !id.Permissions.CanViewZone(owns) {
		return nil, auth.ErrForbidden
	}
	z, err := s.store.GetZoneInfoFromID(ctx, database.ScopeAll, zoneID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrZoneNotFound
	}
	return z, err
}

// Delete removes a zone the caller may edit.
func (s *Service) Delete(ctx context.Context, id *auth.Identity, zoneID int64) error {
	name, owns, err := s.zoneForCaller(ctx, id, zoneID)
	if err != nil {
		return err
	}
	if !id.Permissions.CanDeleteZone(owns) {
		return auth.ErrForbidden
	}
	if err := s.store.DeleteZone(ctx, zoneID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrZoneNotFound
		}
		return err
	}
	metrics.ZoneOperations.WithLabelValues("zone_delete").Inc()
	s.logger.Info("zone deleted", "user_id", id.UserID, "zone", name, "zone_id", zoneID)
	return nil
}

// ZoneName returns the name of a zone the caller may view.
func (s *Service) ZoneName(ctx context.Context, id *auth.Identity, zoneID int64) (string, error) {
	name, owns, err := s.zoneForCaller(ctx, id, zoneID)
	if err != nil {
		return "", err
	}
	if !id.Permissions.CanViewZone(owns) {
		return "", auth.ErrForbidden
	}
	return name, nil
}

// Access returns the zone name and whether the caller owns it.
func (s *Service) Access(ctx context.Context, id *auth.Identity, zoneID int64) (name string, owns bool, err error) {
	return s.zoneForCaller(ctx, id, zoneID)
}

func (s *Service) access(ctx context.Context, id *auth.Identity, zoneID int64) (bool, error) {
	_, owns, err := s.zoneForCaller(ctx, id, zoneID)
	return owns, err
}

func (s *Service) zoneForCaller(ctx context.Context, id *auth.Identity, zoneID int64) (string, bool, error) {
	if id == nil {
		return "", false, auth.ErrForbidden
	}
	name, err := s.store.GetDomainNameByID(ctx, zoneID)
	if errors.Is(err, database.ErrNotFound) {
		return "", false, ErrZoneNotFound
	}
	if err != nil {
		return "", false, err
	}
	owns, err := s.store.UserOwnsZone(ctx, id.UserID, zoneID)
	if err != nil {
		return "", false, err
	}
	return name, owns, nil
}

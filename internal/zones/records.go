package zones

import (
	"context"
	"errors"

	"github.com/jroosing/pdnsadmin/internal/auth"
	"github.com/jroosing/pdnsadmin/internal/database"
	"github.com/jroosing/pdnsadmin/internal/metrics"
	"github.com/jroosing/pdnsadmin/internal/validation"
)

// RecordInput is a record as submitted by a client. Name may be relative
// to the zone, "@" or empty for the apex.
type RecordInput struct {
	Name     string
	Type     string
	Content  string
	TTL      int
	Prio     int
	Disabled bool
	Comment  string
}

// RecordListQuery is the caller-controlled part of a record listing.
type RecordListQuery struct {
	Offset        int
	Limit         int
	SortBy        string
	SortDir       string
	TypeFilter    string
	ContentFilter string
}

// ListRecords returns the records of a zone the caller may view.
func (s *Service) ListRecords(ctx context.Context, id *auth.Identity, zoneID int64, q RecordListQuery) ([]database.Record, int, error) {
	if _, err := s.ZoneName(ctx, id, zoneID); err != nil {
		return nil, 0, err
	}
	rq := database.RecordQuery{
		DomainID:        zoneID,
		Offset:          q.Offset,
		Limit:           q.Limit,
		SortBy:          q.SortBy,
		SortDir:         q.SortDir,
		TypeFilter:      q.TypeFilter,
		ContentFilter:   q.ContentFilter,
		IncludeComments: true,
	}
	records, err := s.store.GetRecordsFromDomainID(ctx, rq)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountZoneRecords(ctx, rq)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// GetRecord returns a record of a zone the caller may view.
func (s *Service) GetRecord(ctx context.Context, id *auth.Identity, zoneID, recordID int64) (*database.Record, error) {
	if _, err := s.ZoneName(ctx, id, zoneID); err != nil {
		return nil, err
	}
	return s.recordInZone(ctx, zoneID, recordID)
}

func (s *Service) recordInZone(ctx context.Context, zoneID, recordID int64) (*database.Record, error) {
	r, err := s.store.GetRecordFromID(ctx, recordID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	if r.DomainID != zoneID {
		return nil, ErrRecordNotFound
	}
	return r, nil
}

// editableZone returns the zone name when the caller may change its records.
func (s *Service) editableZone(ctx context.Context, id *auth.Identity, zoneID int64) (string, error) {
	name, owns, err := s.zoneForCaller(ctx, id, zoneID)
	if err != nil {
		return "", err
	}
	if !id.Permissions.CanEditZone(owns) {
		return "", auth.ErrForbidden
	}
	return name, nil
}

func (s *Service) normalizeRecord(zone string, in RecordInput) (database.Record, error) {
	v := validation.Record{
		Name:    validation.QualifyName(in.Name, zone),
		Type:    in.Type,
		Content: in.Content,
		TTL:     in.TTL,
		Prio:    in.Prio,
	}
	if v.TTL == 0 {
		v.TTL = s.opts.SOA.TTL
	}
	if err := s.records.Validate(&v); err != nil {
		return database.Record{}, err
	}
	return database.Record{
		Name:     v.Name,
		Type:     v.Type,
		Content:  v.Content,
		TTL:      v.TTL,
		Prio:     v.Prio,
		Disabled: in.Disabled,
		Comment:  in.Comment,
	}, nil
}

// AddRecord validates and stores a record in a zone the caller may edit.
func (s *Service) AddRecord(ctx context.Context, id *auth.Identity, zoneID int64, in RecordInput) (*database.Record, error) {
	zone, err := s.editableZone(ctx, id, zoneID)
	if err != nil {
		return nil, err
	}
	r, err := s.normalizeRecord(zone, in)
	if err != nil {
		return nil, err
	}
	r.DomainID = zoneID

	exists, err := s.store.RecordExists(ctx, zoneID, r.Name, r.Type, r.Content)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrRecordExists
	}

	if r.ID, err = s.store.AddRecord(ctx, r); err != nil {
		return nil, err
	}
	metrics.ZoneOperations.WithLabelValues("record_add").Inc()
	s.logger.Info("record added", "user_id", id.UserID, "zone", zone, "name", r.Name, "type", r.Type, "content", r.Content)
	return &r, nil
}

// EditRecord replaces a record of a zone the caller may edit.
func (s *Service) EditRecord(ctx context.Context, id *auth.Identity, zoneID, recordID int64, in RecordInput) (*database.Record, error) {
	zone, err := s.editableZone(ctx, id, zoneID)
	if err != nil {
		return nil, err
	}
	old, err := s.recordInZone(ctx, zoneID, recordID)
	if err != nil {
		return nil, err
	}
	r, err := s.normalizeRecord(zone, in)
	if err != nil {
		return nil, err
	}
	r.ID = recordID
	r.DomainID = zoneID

	if r.Name != old.Name || r.Type != old.Type || r.Content != old.Content {
		exists, err := s.store.RecordExists(ctx, zoneID, r.Name, r.Type, r.Content)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrRecordExists
		}
	}

	if err := s.store.EditRecord(ctx, r); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	metrics.ZoneOperations.WithLabelValues("record_edit").Inc()
	s.logger.Info("record edited", "user_id", id.UserID, "zone", zone, "record_id", recordID,
		"old_content", old.Content, "content", r.Content)
	return &r, nil
}

// DeleteRecord removes a record from a zone the caller may edit. The SOA
// record can not be deleted.
func (s *Service) DeleteRecord(ctx context.Context, id *auth.Identity, zoneID, recordID int64) error {
	zone, err := s.editableZone(ctx, id, zoneID)
	if err != nil {
		return err
	}
	r, err := s.recordInZone(ctx, zoneID, recordID)
	if err != nil {
		return err
	}
	if r.Type == "SOA" {
		return &validation.Error{Messages: []string{"You are not allowed to delete the SOA record."}}
	}
	if err := s.store.DeleteRecord(ctx, recordID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrRecordNotFound
		}
		return err
	}
	metrics.ZoneOperations.WithLabelValues("record_delete").Inc()
	s.logger.Info("record deleted", "user_id", id.UserID, "zone", zone, "name", r.Name, "type", r.Type, "content", r.Content)
	return nil
}

package models

import (
	"github.com/jroosing/pdnsadmin/internal/bulk"
	"github.com/jroosing/pdnsadmin/internal/database"
)

// ZoneCreateRequest is the body of POST /zones.
type ZoneCreateRequest struct {
	Name       string `json:"name" binding:"required"`
	Type       string `json:"type"`
	Master     string `json:"master"`
	OwnerID    int64  `json:"owner_id"`
	TemplateID int64  `json:"template_id"`
}

// Zone is a zone as returned by the API.
type Zone struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Master      string   `json:"master,omitempty"`
	RecordCount int      `json:"record_count"`
	Owners      []string `json:"owners"`
	Secured     bool     `json:"dnssec"`
	Serial      string   `json:"serial,omitempty"`
}

// ZoneFromDB converts a database zone.
func ZoneFromDB(z database.Zone) Zone {
	owners := z.Owners
	if owners == nil {
		owners = []string{}
	}
	return Zone{
		ID:          z.ID,
		Name:        z.Name,
		Type:        z.Type,
		Master:      z.Master,
		RecordCount: z.RecordCount,
		Owners:      owners,
		Secured:     z.Secured,
		Serial:      z.Serial,
	}
}

// ZoneListResponse is the data of GET /zones.
type ZoneListResponse struct {
	Zones      []Zone     `json:"zones"`
	Pagination Pagination `json:"pagination"`
}

// ZoneCreatedResponse is the data of POST /zones.
type ZoneCreatedResponse struct {
	ZoneID int64 `json:"zone_id"`
}

// RecordRequest is the body of POST and PUT record routes.
type RecordRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type" binding:"required"`
	Content  string `json:"content" binding:"required"`
	TTL      int    `json:"ttl"`
	Prio     int    `json:"prio"`
	Disabled bool   `json:"disabled"`
	Comment  string `json:"comment"`
}

// Record is a record as returned by the API.
type Record struct {
	ID       int64  `json:"id"`
	ZoneID   int64  `json:"zone_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	TTL      int    `json:"ttl"`
	Prio     int    `json:"prio"`
	Disabled bool   `json:"disabled"`
	Comment  string `json:"comment,omitempty"`
}

// RecordFromDB converts a database record.
func RecordFromDB(r database.Record) Record {
	return Record{
		ID:       r.ID,
		ZoneID:   r.DomainID,
		Name:     r.Name,
		Type:     r.Type,
		Content:  r.Content,
		TTL:      r.TTL,
		Prio:     r.Prio,
		Disabled: r.Disabled,
		Comment:  r.Comment,
	}
}

// RecordListResponse is the data of GET /zones/:id/records.
type RecordListResponse struct {
	Records    []Record   `json:"records"`
	Pagination Pagination `json:"pagination"`
}

// BulkRequest is the body of POST /zones/bulk. Domains may be given as a
// newline separated string or as a list.
type BulkRequest struct {
	Domains    string   `json:"domains"`
	DomainList []string `json:"domain_list"`
	Type       string   `json:"type"`
	Master     string   `json:"master"`
	OwnerID    int64    `json:"owner_id"`
	TemplateID int64    `json:"template_id"`
}

// BulkResponse is the data of POST /zones/bulk.
type BulkResponse = bulk.Result

// PTRBatchRequest is the body of POST /zones/ptr-batch.
type PTRBatchRequest struct {
	NetworkPrefix string `json:"network_prefix" binding:"required"`
	HostPrefix    string `json:"host_prefix" binding:"required"`
	Domain        string `json:"domain" binding:"required"`
	TTL           int    `json:"ttl"`
	Comment       string `json:"comment"`
}

// ZoneTemplate is a zone template offered when creating zones.
type ZoneTemplate struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Global      bool   `json:"global"`
}

package models

import "github.com/jroosing/pdnsadmin/internal/dnssec"

// DNSSECStatusResponse is the data of GET /zones/:id/dnssec.
type DNSSECStatusResponse struct {
	ZoneID    int64        `json:"zone_id"`
	Secured   bool         `json:"secured"`
	Presigned bool         `json:"presigned"`
	Keys      []dnssec.Key `json:"keys"`
}

// AddKeyRequest is the body of POST /zones/:id/dnssec/keys.
type AddKeyRequest struct {
	KeyType   string `json:"key_type" binding:"required"`
	Algorithm string `json:"algorithm" binding:"required"`
	Bits      int    `json:"bits"`
}

// EditKeyRequest is the body of the legacy dnssec_edit_key page.
type EditKeyRequest struct {
	Action string `json:"action" binding:"required,oneof=activate deactivate"`
}

// ConfirmDeleteRequest is the body of POST .../keys/:key_id/delete. Cancel
// discards the token instead of deleting the key.
type ConfirmDeleteRequest struct {
	ConfirmToken string `json:"confirm_token" binding:"required"`
	Cancel       bool   `json:"cancel"`
}

// DSAndDNSKEYResponse is the data of GET /zones/:id/dnssec/ds-dnskey.
type DSAndDNSKEYResponse struct {
	ZoneID int64               `json:"zone_id"`
	Keys   []dnssec.KeyRecords `json:"keys"`
}

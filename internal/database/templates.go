package database

import (
	"context"
	"fmt"
)

// ZoneTemplate is a named set of records applied when a zone is created.
type ZoneTemplate struct {
	ID          int64
	Name        string
	Description string
	Owner       int64
}

// TemplateRecord is one record of a zone template. Name and Content may
// contain [ZONE] and [SERIAL] placeholders.
type TemplateRecord struct {
	ID         int64
	TemplateID int64
	Name       string
	Type       string
	Content    string
	TTL        int
	Prio       int
}

// ListZoneTemplates returns the templates owned by userID plus global
// templates (owner 0). userID 0 returns every template.
func (db *DB) ListZoneTemplates(ctx context.Context, userID int64) ([]ZoneTemplate, error) {
	query := "SELECT id, name, descr, owner FROM zone_templ"
	var args []any
	if userID != 0 {
		query += " WHERE owner = ? OR owner = 0"
		args = append(args, userID)
	}
	query += " ORDER BY name"

	rows, err := db.query(ctx, db.conn, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query zone templates: %w", err)
	}
	defer rows.Close()

	templates := []ZoneTemplate{}
	for rows.Next() {
		var t ZoneTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Owner); err != nil {
			return nil, fmt.Errorf("failed to scan zone template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating zone templates: %w", err)
	}
	return templates, nil
}

// CreateZoneTemplate stores a template with its records.
func (db *DB) CreateZoneTemplate(ctx context.Context, t ZoneTemplate, records []TemplateRecord) (int64, error) {
	id, err := db.insertID(ctx, db.conn,
		"INSERT INTO zone_templ (name, descr, owner) VALUES (?, ?, ?)", t.Name, t.Description, t.Owner)
	if err != nil {
		return 0, fmt.Errorf("failed to create zone template: %w", err)
	}
	for _, r := range records {
		if _, err := db.exec(ctx, db.conn,
			"INSERT INTO zone_templ_records (zone_templ_id, name, type, content, ttl, prio) VALUES (?, ?, ?, ?, ?, ?)",
			id, r.Name, r.Type, r.Content, r.TTL, r.Prio); err != nil {
			return 0, fmt.Errorf("failed to create zone template record: %w", err)
		}
	}
	return id, nil
}

// GetZoneTemplateRecords returns the records of a template.
func (db *DB) GetZoneTemplateRecords(ctx context.Context, templateID int64) ([]TemplateRecord, error) {
	return db.templateRecords(ctx, db.conn, templateID)
}

func (db *DB) templateRecords(ctx context.Context, q queryer, templateID int64) ([]TemplateRecord, error) {
	rows, err := db.query(ctx, q,
		"SELECT id, zone_templ_id, name, type, content, ttl, prio FROM zone_templ_records WHERE zone_templ_id = ? ORDER BY id",
		templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query template records: %w", err)
	}
	defer rows.Close()

	records := []TemplateRecord{}
	for rows.Next() {
		var r TemplateRecord
		if err := rows.Scan(&r.ID, &r.TemplateID, &r.Name, &r.Type, &r.Content, &r.TTL, &r.Prio); err != nil {
			return nil, fmt.Errorf("failed to scan template record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating template records: %w", err)
	}
	return records, nil
}

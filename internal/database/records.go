package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is a row of the PowerDNS records table.
type Record struct {
	ID       int64
	DomainID int64
	Name     string
	Type     string
	Content  string
	TTL      int
	Prio     int
	Disabled bool
	Comment  string
}

// RecordQuery filters and orders GetRecordsFromDomainID.
type RecordQuery struct {
	DomainID        int64
	Offset          int
	Limit           int
	SortBy          string
	SortDir         string
	TypeFilter      string
	ContentFilter   string
	IncludeComments bool
}

var recordSortColumns = map[string]string{
	"name":     "records.name",
	"type":     "records.type",
	"content":  "records.content",
	"ttl":      "records.ttl",
	"prio":     "records.prio",
	"disabled": "records.disabled",
	"id":       "records.id",
}

func recordFilter(q RecordQuery) (string, []any) {
	where := " WHERE records.domain_id = ? AND records.type IS NOT NULL AND records.type <> ''"
	args := []any{q.DomainID}
	if t := strings.TrimSpace(q.TypeFilter); t != "" {
		where += " AND records.type = ?"
		args = append(args, strings.ToUpper(t))
	}
	if c := strings.TrimSpace(q.ContentFilter); c != "" {
		where += ` AND lower(records.content) LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(strings.ToLower(c))+"%")
	}
	return where, args
}

// GetRecordsFromDomainID lists the records of a zone. SOA comes first,
// then NS, then apex records, then the requested order.
func (db *DB) GetRecordsFromDomainID(ctx context.Context, q RecordQuery) ([]Record, error) {
	where, args := recordFilter(q)

	sortCol, ok := recordSortColumns[q.SortBy]
	if !ok {
		sortCol = "records.name"
	}
	sortDir := "ASC"
	if strings.EqualFold(q.SortDir, "DESC") {
		sortDir = "DESC"
	}

	comment := "''"
	if q.IncludeComments {
		comment = `COALESCE((SELECT comments.comment FROM comments
			WHERE comments.domain_id = records.domain_id
			AND comments.name = records.name
			AND comments.type = records.type
			ORDER BY comments.id LIMIT 1), '')`
	}

	query := `
		SELECT records.id, records.domain_id, records.name, records.type, records.content,
			COALESCE(records.ttl, 0), COALESCE(records.prio, 0), COALESCE(records.disabled, ` + db.falseLiteral() + `),
			` + comment + `
		FROM records JOIN domains ON domains.id = records.domain_id` + where + `
		ORDER BY CASE
			WHEN records.type = 'SOA' THEN 0
			WHEN records.type = 'NS' THEN 1
			WHEN records.name = domains.name THEN 2
			ELSE 3 END,
			` + sortCol + ` ` + sortDir + `, records.id ASC`
	if q.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := db.query(ctx, db.conn, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.DomainID, &r.Name, &r.Type, &r.Content,
			&r.TTL, &r.Prio, &r.Disabled, &r.Comment); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

func (db *DB) falseLiteral() string {
	if db.dialect == Postgres {
		return "FALSE"
	}
	return "0"
}

// CountZoneRecords returns the number of records GetRecordsFromDomainID
// would return without paging.
func (db *DB) CountZoneRecords(ctx context.Context, q RecordQuery) (int, error) {
	where, args := recordFilter(q)
	var n int
	if err := db.queryRow(ctx, db.conn, "SELECT COUNT(*) FROM records"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// GetRecordFromID returns a single record.
func (db *DB) GetRecordFromID(ctx context.Context, id int64) (*Record, error) {
	var r Record
	err := db.queryRow(ctx, db.conn, `
		SELECT id, domain_id, name, type, content, COALESCE(ttl, 0), COALESCE(prio, 0), COALESCE(disabled, `+db.falseLiteral()+`)
		FROM records WHERE id = ? AND type IS NOT NULL`, id).
		Scan(&r.ID, &r.DomainID, &r.Name, &r.Type, &r.Content, &r.TTL, &r.Prio, &r.Disabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &r, nil
}

// RecordExists reports whether an identical record already exists in the zone.
func (db *DB) RecordExists(ctx context.Context, domainID int64, name, rtype, content string) (bool, error) {
	var n int
	err := db.queryRow(ctx, db.conn,
		"SELECT COUNT(id) FROM records WHERE domain_id = ? AND name = ? AND type = ? AND content = ?",
		domainID, name, rtype, content).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check record: %w", err)
	}
	return n > 0, nil
}

// HasSimilarRecords reports whether other records share name and type.
func (db *DB) HasSimilarRecords(ctx context.Context, domainID int64, name, rtype string, excludeID int64) (bool, error) {
	var n int
	err := db.queryRow(ctx, db.conn,
		"SELECT COUNT(id) FROM records WHERE domain_id = ? AND name = ? AND type = ? AND id <> ?",
		domainID, name, rtype, excludeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check similar records: %w", err)
	}
	return n > 0, nil
}

// GetSOARecord returns the SOA content of a zone, or "" when there is none.
func (db *DB) GetSOARecord(ctx context.Context, domainID int64) (string, error) {
	return db.soaContent(ctx, db.conn, domainID)
}

// GetSerialByZoneID returns the current SOA serial of a zone, or "".
func (db *DB) GetSerialByZoneID(ctx context.Context, domainID int64) (string, error) {
	content, err := db.GetSOARecord(ctx, domainID)
	if err != nil {
		return "", err
	}
	return SerialFromSOA(content), nil
}

func (db *DB) soaContent(ctx context.Context, q queryer, domainID int64) (string, error) {
	var content string
	err := db.queryRow(ctx, q, "SELECT content FROM records WHERE domain_id = ? AND type = 'SOA'", domainID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get SOA record: %w", err)
	}
	return content, nil
}

// AddRecord inserts a record and optional comment and bumps the zone serial.
func (db *DB) AddRecord(ctx context.Context, r Record) (int64, error) {
	var id int64
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = db.insertID(ctx, tx,
			"INSERT INTO records (domain_id, name, type, content, ttl, prio, disabled) VALUES (?, ?, ?, ?, ?, ?, ?)",
			r.DomainID, r.Name, r.Type, r.Content, r.TTL, r.Prio, r.Disabled)
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
		if err := db.setComment(ctx, tx, r); err != nil {
			return err
		}
		if r.Type == "SOA" {
			return nil
		}
		return db.bumpSerial(ctx, tx, r.DomainID)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// EditRecord updates a record in place and bumps the zone serial.
func (db *DB) EditRecord(ctx context.Context, r Record) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := db.exec(ctx, tx,
			"UPDATE records SET name = ?, type = ?, content = ?, ttl = ?, prio = ?, disabled = ? WHERE id = ? AND domain_id = ?",
			r.Name, r.Type, r.Content, r.TTL, r.Prio, r.Disabled, r.ID, r.DomainID)
		if err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		if err := db.setComment(ctx, tx, r); err != nil {
			return err
		}
		if r.Type == "SOA" {
			return nil
		}
		return db.bumpSerial(ctx, tx, r.DomainID)
	})
}

// DeleteRecord removes a record and bumps the zone serial.
func (db *DB) DeleteRecord(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var domainID int64
		err := db.queryRow(ctx, tx, "SELECT domain_id FROM records WHERE id = ?", id).Scan(&domainID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up record: %w", err)
		}
		if _, err := db.exec(ctx, tx, "DELETE FROM records WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}
		if _, err := db.exec(ctx, tx, "DELETE FROM records_zone_templ WHERE record_id = ?", id); err != nil {
			return fmt.Errorf("failed to unlink template record: %w", err)
		}
		return db.bumpSerial(ctx, tx, domainID)
	})
}

// setComment replaces the comment for (domain, name, type). An empty
// comment removes it.
func (db *DB) setComment(ctx context.Context, tx *sql.Tx, r Record) error {
	if _, err := db.exec(ctx, tx,
		"DELETE FROM comments WHERE domain_id = ? AND name = ? AND type = ?",
		r.DomainID, r.Name, r.Type); err != nil {
		return fmt.Errorf("failed to clear comment: %w", err)
	}
	if r.Comment == "" {
		return nil
	}
	if _, err := db.exec(ctx, tx,
		"INSERT INTO comments (domain_id, name, type, modified_at, comment) VALUES (?, ?, ?, ?, ?)",
		r.DomainID, r.Name, r.Type, timeNow().Unix(), r.Comment); err != nil {
		return fmt.Errorf("failed to store comment: %w", err)
	}
	return nil
}

// bumpSerial advances the SOA serial of a zone. Zones without SOA are left alone.
func (db *DB) bumpSerial(ctx context.Context, tx *sql.Tx, domainID int64) error {
	content, err := db.soaContent(ctx, tx, domainID)
	if err != nil || content == "" {
		return err
	}
	fields := strings.Fields(content)
	if len(fields) < 3 {
		return nil
	}
	next := NextSerial(fields[2], timeNow())
	if next == fields[2] {
		return nil
	}
	fields[2] = next
	if _, err := db.exec(ctx, tx,
		"UPDATE records SET content = ? WHERE domain_id = ? AND type = 'SOA'",
		strings.Join(fields, " "), domainID); err != nil {
		return fmt.Errorf("failed to update SOA serial: %w", err)
	}
	return nil
}

// NextSerial returns the serial following current.
//
// A zero serial is left to the server (autoserial). Serials below
// 1979999999 are plain counters. Date based serials use YYYYMMDDnn: the
// revision is incremented for today's (or a future) date and rolls into the
// next day after 99; older dates restart at today's 00.
func NextSerial(current string, now time.Time) string {
	n, err := strconv.ParseUint(current, 10, 64)
	if err != nil {
		return current
	}
	switch {
	case n == 0:
		return "0"
	case n < 1979999999:
		return strconv.FormatUint(n+1, 10)
	case n == 1979999999:
		return "1"
	}

	today := now.Format("20060102")
	if len(current) != 10 {
		return today + "00"
	}
	serDate := current[:8]
	revision, _ := strconv.Atoi(current[8:])

	switch {
	case serDate == today || serDate > today:
		if revision >= 99 {
			d, err := time.Parse("20060102", serDate)
			if err != nil {
				return today + "00"
			}
			return d.AddDate(0, 0, 1).Format("20060102") + "00"
		}
		return fmt.Sprintf("%s%02d", serDate, revision+1)
	default:
		return today + "00"
	}
}

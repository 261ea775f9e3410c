package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// View scopes resolved from the caller's permissions.
const (
	ScopeAll  = "all"
	ScopeOwn  = "own"
	ScopeNone = "none"
)

// Zone is a domains row joined with ownership and aggregate data.
type Zone struct {
	ID          int64
	Name        string
	Type        string
	Master      string
	RecordCount int
	OwnerIDs    []int64
	Owners      []string
	OwnerNames  []string
	Secured     bool
	Serial      string
}

// ZoneQuery filters and orders GetZones.
type ZoneQuery struct {
	Scope          string
	UserID         int64
	Letter         string
	Offset         int
	Limit          int
	SortBy         string
	SortDir        string
	ExcludeReverse bool
	WithDNSSEC     bool
	WithSerial     bool
}

// SOADefaults are used for the SOA record of zones created without a template.
type SOADefaults struct {
	NS1        string
	Hostmaster string
	TTL        int
	Refresh    int
	Retry      int
	Expire     int
	Minimum    int
}

// NewDomain describes a zone to create.
type NewDomain struct {
	Name       string
	Type       string
	Master     string
	OwnerID    int64
	TemplateID int64 // 0 means no template
	SOA        SOADefaults
}

var zoneSortColumns = map[string]string{
	"name":          "domains.name",
	"type":          "domains.type",
	"count_records": "count_records",
	"owner":         "owner_name",
}

// timeNow is replaced in tests.
var timeNow = time.Now

// InitialSerial returns the YYYYMMDD00 serial used for new zones.
func InitialSerial() string {
	return timeNow().Format("20060102") + "00"
}

// zoneFilter builds the shared WHERE clause for GetZones/CountZones.
// ok is false when the scope grants no visibility at all.
func zoneFilter(q ZoneQuery) (where string, args []any, ok bool) {
	var conds []string
	switch q.Scope {
	case ScopeAll:
	case ScopeOwn:
		conds = append(conds, "EXISTS (SELECT 1 FROM zones WHERE zones.domain_id = domains.id AND zones.owner = ?)")
		args = append(args, q.UserID)
	default:
		return "", nil, false
	}

	letter := strings.ToLower(strings.TrimSpace(q.Letter))
	switch {
	case letter == "" || letter == "all":
	case letter == "1":
		conds = append(conds, "substr(domains.name, 1, 1) BETWEEN '0' AND '9'")
	default:
		conds = append(conds, `lower(domains.name) LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(letter)+"%")
	}

	if q.ExcludeReverse {
		conds = append(conds, "domains.name NOT LIKE '%.arpa'")
	}

	if len(conds) == 0 {
		return "", args, true
	}
	return " WHERE " + strings.Join(conds, " AND "), args, true
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// GetZones returns the zones visible under q.Scope, one row per zone,
// annotated with record count, owners and optionally DNSSEC state and serial.
func (db *DB) GetZones(ctx context.Context, q ZoneQuery) ([]Zone, error) {
	where, args, ok := zoneFilter(q)
	if !ok {
		return []Zone{}, nil
	}

	sortCol, found := zoneSortColumns[q.SortBy]
	if !found {
		sortCol = "domains.name"
	}
	sortDir := "ASC"
	if strings.EqualFold(q.SortDir, "DESC") {
		sortDir = "DESC"
	}

	query := `
		SELECT domains.id, domains.name, domains.type, COALESCE(domains.master, ''),
			(SELECT COUNT(*) FROM records WHERE records.domain_id = domains.id AND records.type IS NOT NULL) AS count_records,
			(SELECT MIN(users.username) FROM zones JOIN users ON users.id = zones.owner WHERE zones.domain_id = domains.id) AS owner_name
		FROM domains` + where + `
		ORDER BY ` + sortCol + ` ` + sortDir + `, domains.name ASC`
	if q.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := db.query(ctx, db.conn, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones: %w", err)
	}
	defer rows.Close()

	zones := []Zone{}
	for rows.Next() {
		var (
			z     Zone
			owner sql.NullString
		)
		if err := rows.Scan(&z.ID, &z.Name, &z.Type, &z.Master, &z.RecordCount, &owner); err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating zones: %w", err)
	}

	if err := db.annotateZones(ctx, zones, q.WithDNSSEC, q.WithSerial); err != nil {
		return nil, err
	}
	return zones, nil
}

// CountZones returns the number of zones GetZones would return without paging.
func (db *DB) CountZones(ctx context.Context, q ZoneQuery) (int, error) {
	where, args, ok := zoneFilter(q)
	if !ok {
		return 0, nil
	}
	var n int
	if err := db.queryRow(ctx, db.conn, "SELECT COUNT(*) FROM domains"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count zones: %w", err)
	}
	return n, nil
}

// annotateZones fills owners, DNSSEC state and serial for the given zones.
func (db *DB) annotateZones(ctx context.Context, zones []Zone, withDNSSEC, withSerial bool) error {
	if len(zones) == 0 {
		return nil
	}
	ids := make([]int64, len(zones))
	byID := make(map[int64]*Zone, len(zones))
	for i := range zones {
		ids[i] = zones[i].ID
		byID[zones[i].ID] = &zones[i]
	}
	in := placeholders(len(ids))

	rows, err := db.query(ctx, db.conn, `
		SELECT zones.domain_id, users.id, users.username, users.fullname
		FROM zones JOIN users ON users.id = zones.owner
		WHERE zones.domain_id IN (`+in+`)
		ORDER BY users.username`, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("failed to query zone owners: %w", err)
	}
	for rows.Next() {
		var (
			domainID, userID   int64
			username, fullname string
		)
		if err := rows.Scan(&domainID, &userID, &username, &fullname); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan zone owner: %w", err)
		}
		if z := byID[domainID]; z != nil {
			z.OwnerIDs = append(z.OwnerIDs, userID)
			z.Owners = append(z.Owners, username)
			z.OwnerNames = append(z.OwnerNames, fullname)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating zone owners: %w", err)
	}

	if withDNSSEC {
		args := append(int64Args(ids), true)
		args = append(args, int64Args(ids)...)
		secured, err := db.query(ctx, db.conn, `
			SELECT domain_id FROM cryptokeys WHERE domain_id IN (`+in+`) AND active = ?
			UNION
			SELECT domain_id FROM domainmetadata WHERE domain_id IN (`+in+`) AND kind = 'PRESIGNED' AND content = '1'`,
			args...)
		if err != nil {
			return fmt.Errorf("failed to query dnssec state: %w", err)
		}
		for secured.Next() {
			var id int64
			if err := secured.Scan(&id); err != nil {
				secured.Close()
				return fmt.Errorf("failed to scan dnssec state: %w", err)
			}
			if z := byID[id]; z != nil {
				z.Secured = true
			}
		}
		secured.Close()
		if err := secured.Err(); err != nil {
			return fmt.Errorf("error iterating dnssec state: %w", err)
		}
	}

	if withSerial {
		soa, err := db.query(ctx, db.conn,
			`SELECT domain_id, content FROM records WHERE type = 'SOA' AND domain_id IN (`+in+`)`, int64Args(ids)...)
		if err != nil {
			return fmt.Errorf("failed to query serials: %w", err)
		}
		for soa.Next() {
			var (
				id      int64
				content string
			)
			if err := soa.Scan(&id, &content); err != nil {
				soa.Close()
				return fmt.Errorf("failed to scan serial: %w", err)
			}
			if z := byID[id]; z != nil {
				z.Serial = SerialFromSOA(content)
			}
		}
		soa.Close()
		if err := soa.Err(); err != nil {
			return fmt.Errorf("error iterating serials: %w", err)
		}
	}
	return nil
}

// SerialFromSOA returns the third field of SOA content, or "".
func SerialFromSOA(content string) string {
	fields := strings.Fields(content)
	if len(fields) < 3 {
		return ""
	}
	return fields[2]
}

// GetZoneInfoFromID returns a single zone. A "none" scope yields (nil, nil).
func (db *DB) GetZoneInfoFromID(ctx context.Context, scope string, id int64) (*Zone, error) {
	zones, err := db.GetZoneInfoFromIDs(ctx, scope, []int64{id})
	if err != nil {
		return nil, err
	}
	if scope == ScopeNone {
		return nil, nil
	}
	if len(zones) == 0 {
		return nil, ErrNotFound
	}
	return &zones[0], nil
}

// GetZoneInfoFromIDs returns the zones for ids in id order, skipping ids
// that do not exist. A "none" scope yields an empty slice.
func (db *DB) GetZoneInfoFromIDs(ctx context.Context, scope string, ids []int64) ([]Zone, error) {
	if scope == ScopeNone || len(ids) == 0 {
		return []Zone{}, nil
	}

	rows, err := db.query(ctx, db.conn, `
		SELECT domains.id, domains.name, domains.type, COALESCE(domains.master, ''),
			(SELECT COUNT(*) FROM records WHERE records.domain_id = domains.id AND records.type IS NOT NULL)
		FROM domains
		WHERE domains.id IN (`+placeholders(len(ids))+`)`, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query zone info: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]Zone, len(ids))
	for rows.Next() {
		var z Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.Type, &z.Master, &z.RecordCount); err != nil {
			return nil, fmt.Errorf("failed to scan zone info: %w", err)
		}
		found[z.ID] = z
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating zone info: %w", err)
	}

	zones := make([]Zone, 0, len(found))
	for _, id := range ids {
		if z, ok := found[id]; ok {
			zones = append(zones, z)
			delete(found, id)
		}
	}
	if err := db.annotateZones(ctx, zones, false, false); err != nil {
		return nil, err
	}
	return zones, nil
}

// reverseMatchStart bounds the match position; the longest ip6.arpa name is 72 characters.
const reverseMatchStart = 72

// GetBestMatchingZoneIDFromName finds the reverse zone that should hold a PTR
// for domain. Reverse zones are scanned longest name first and the zone whose
// name occurs earliest (case-insensitively) in domain wins; on equal positions
// the earlier, longer zone is kept. Returns -1 when nothing matches.
func (db *DB) GetBestMatchingZoneIDFromName(ctx context.Context, domain string) (int64, error) {
	rows, err := db.query(ctx, db.conn,
		"SELECT id, name FROM domains WHERE name LIKE '%.arpa' ORDER BY length(name) DESC")
	if err != nil {
		return -1, fmt.Errorf("failed to query reverse zones: %w", err)
	}
	defer rows.Close()

	target := strings.ToLower(domain)
	match := reverseMatchStart
	var foundID int64 = -1
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return -1, fmt.Errorf("failed to scan reverse zone: %w", err)
		}
		pos := strings.Index(target, strings.ToLower(name))
		if pos >= 0 && pos < match {
			match = pos
			foundID = id
		}
	}
	if err := rows.Err(); err != nil {
		return -1, fmt.Errorf("error iterating reverse zones: %w", err)
	}
	return foundID, nil
}

// DomainExists reports whether a zone with the given name exists.
func (db *DB) DomainExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := db.queryRow(ctx, db.conn, "SELECT COUNT(id) FROM domains WHERE lower(name) = lower(?)", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check domain %s: %w", name, err)
	}
	return n > 0, nil
}

// GetDomainIDByName returns the zone id for name.
func (db *DB) GetDomainIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := db.queryRow(ctx, db.conn, "SELECT id FROM domains WHERE lower(name) = lower(?)", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get domain id: %w", err)
	}
	return id, nil
}

// GetDomainNameByID returns the zone name for id.
func (db *DB) GetDomainNameByID(ctx context.Context, id int64) (string, error) {
	var name string
	err := db.queryRow(ctx, db.conn, "SELECT name FROM domains WHERE id = ?", id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get domain name: %w", err)
	}
	return name, nil
}

// UserOwnsZone reports whether userID is listed as an owner of zoneID.
func (db *DB) UserOwnsZone(ctx context.Context, userID, zoneID int64) (bool, error) {
	var n int
	err := db.queryRow(ctx, db.conn,
		"SELECT COUNT(*) FROM zones WHERE zones.owner = ? AND zones.domain_id = ?", userID, zoneID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check zone ownership: %w", err)
	}
	return n > 0, nil
}

// AddDomain creates a zone with its ownership row and either the default SOA
// record or the records of the selected template, in one transaction.
func (db *DB) AddDomain(ctx context.Context, d NewDomain) (int64, error) {
	var domainID int64
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var master any
		if d.Type == "SLAVE" {
			master = d.Master
		}
		id, err := db.insertID(ctx, tx, "INSERT INTO domains (name, type, master) VALUES (?, ?, ?)", d.Name, d.Type, master)
		if err != nil {
			return fmt.Errorf("failed to insert domain %s: %w", d.Name, err)
		}
		domainID = id

		if _, err := db.exec(ctx, tx,
			"INSERT INTO zones (domain_id, owner, zone_templ_id) VALUES (?, ?, ?)",
			domainID, d.OwnerID, d.TemplateID); err != nil {
			return fmt.Errorf("failed to insert zone owner: %w", err)
		}

		if d.Type == "SLAVE" {
			return nil
		}
		if d.TemplateID == 0 {
			return db.insertDefaultSOA(ctx, tx, domainID, d)
		}
		return db.applyTemplate(ctx, tx, domainID, d)
	})
	if err != nil {
		return 0, err
	}
	return domainID, nil
}

func (db *DB) insertDefaultSOA(ctx context.Context, tx *sql.Tx, domainID int64, d NewDomain) error {
	content := fmt.Sprintf("%s %s %s %d %d %d %d",
		d.SOA.NS1, d.SOA.Hostmaster, InitialSerial(),
		d.SOA.Refresh, d.SOA.Retry, d.SOA.Expire, d.SOA.Minimum)
	_, err := db.exec(ctx, tx,
		"INSERT INTO records (domain_id, name, content, type, ttl, prio) VALUES (?, ?, ?, ?, ?, ?)",
		domainID, d.Name, content, "SOA", d.SOA.TTL, 0)
	if err != nil {
		return fmt.Errorf("failed to insert SOA record: %w", err)
	}
	return nil
}

func (db *DB) applyTemplate(ctx context.Context, tx *sql.Tx, domainID int64, d NewDomain) error {
	records, err := db.templateRecords(ctx, tx, d.TemplateID)
	if err != nil {
		return err
	}
	reverse := strings.Contains(strings.ToLower(d.Name), "in-addr.arpa")
	for _, r := range records {
		if reverse && r.Type != "NS" && r.Type != "SOA" {
			continue
		}
		ttl := r.TTL
		if ttl == 0 {
			ttl = d.SOA.TTL
		}
		recordID, err := db.insertID(ctx, tx,
			"INSERT INTO records (domain_id, name, type, content, ttl, prio) VALUES (?, ?, ?, ?, ?, ?)",
			domainID, ParseTemplateValue(r.Name, d.Name), r.Type, ParseTemplateValue(r.Content, d.Name), ttl, r.Prio)
		if err != nil {
			return fmt.Errorf("failed to insert template record: %w", err)
		}
		if _, err := db.exec(ctx, tx,
			"INSERT INTO records_zone_templ (domain_id, record_id, zone_templ_id) VALUES (?, ?, ?)",
			domainID, recordID, d.TemplateID); err != nil {
			return fmt.Errorf("failed to link template record: %w", err)
		}
	}
	return nil
}

// ParseTemplateValue substitutes [ZONE] and [SERIAL] in a template field.
func ParseTemplateValue(value, zone string) string {
	return strings.NewReplacer("[ZONE]", zone, "[SERIAL]", InitialSerial()).Replace(value)
}

// DeleteZone removes a zone and everything that hangs off it.
func (db *DB) DeleteZone(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := db.exec(ctx, tx, "DELETE FROM domains WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete domain: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		for _, stmt := range []string{
			"DELETE FROM records WHERE domain_id = ?",
			"DELETE FROM comments WHERE domain_id = ?",
			"DELETE FROM zones WHERE domain_id = ?",
			"DELETE FROM records_zone_templ WHERE domain_id = ?",
			"DELETE FROM domainmetadata WHERE domain_id = ?",
			"DELETE FROM cryptokeys WHERE domain_id = ?",
		} {
			if _, err := db.exec(ctx, tx, stmt, id); err != nil {
				return fmt.Errorf("failed to delete zone data: %w", err)
			}
		}
		return nil
	})
}

// ChangeZoneOwner replaces all owners of a zone with ownerID.
func (db *DB) ChangeZoneOwner(ctx context.Context, zoneID, ownerID int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var templID int64
		err := db.queryRow(ctx, tx,
			"SELECT COALESCE(MAX(zone_templ_id), 0) FROM zones WHERE domain_id = ?", zoneID).Scan(&templID)
		if err != nil {
			return fmt.Errorf("failed to read zone template: %w", err)
		}
		if _, err := db.exec(ctx, tx, "DELETE FROM zones WHERE domain_id = ?", zoneID); err != nil {
			return fmt.Errorf("failed to clear zone owners: %w", err)
		}
		if _, err := db.exec(ctx, tx,
			"INSERT INTO zones (domain_id, owner, zone_templ_id) VALUES (?, ?, ?)", zoneID, ownerID, templID); err != nil {
			return fmt.Errorf("failed to set zone owner: %w", err)
		}
		return nil
	})
}

// ChangeZoneType sets the zone type; master is only kept for SLAVE zones.
func (db *DB) ChangeZoneType(ctx context.Context, zoneID int64, zoneType, master string) error {
	var m any
	if zoneType == "SLAVE" {
		m = master
	}
	res, err := db.exec(ctx, db.conn, "UPDATE domains SET type = ?, master = ? WHERE id = ?", zoneType, m, zoneID)
	if err != nil {
		return fmt.Errorf("failed to change zone type: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetDomainType returns the zone type (NATIVE, MASTER or SLAVE).
func (db *DB) GetDomainType(ctx context.Context, id int64) (string, error) {
	var t string
	err := db.queryRow(ctx, db.conn, "SELECT type FROM domains WHERE id = ?", id).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get domain type: %w", err)
	}
	return t, nil
}

// GetZoneOwners returns the user ids owning a zone.
func (db *DB) GetZoneOwners(ctx context.Context, zoneID int64) ([]int64, error) {
	rows, err := db.query(ctx, db.conn, "SELECT owner FROM zones WHERE domain_id = ? ORDER BY owner", zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to query zone owners: %w", err)
	}
	defer rows.Close()

	owners := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan zone owner: %w", err)
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

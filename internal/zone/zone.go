// Package zone renders stored zones in RFC 1035 master file format.
package zone

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jroosing/pdnsadmin/internal/database"
	"github.com/jroosing/pdnsadmin/internal/helpers"
	"github.com/miekg/dns"
)

// Record is a stored record in the shape needed for rendering. Content is
// the PowerDNS content column, without the priority of MX and SRV records.
type Record struct {
	Name     string
	Type     string
	TTL      uint32
	Content  string
	Prio     int
	Disabled bool
}

// Zone is an origin with its records.
type Zone struct {
	Origin     string
	DefaultTTL uint32
	Records    []Record
}

// FromRecords builds a Zone from database rows. The default TTL is taken
// from the SOA record when present.
func FromRecords(origin string, rows []database.Record) *Zone {
	z := &Zone{Origin: strings.TrimSuffix(strings.ToLower(origin), "."), DefaultTTL: 3600}
	for _, r := range rows {
		rec := Record{
			Name:     r.Name,
			Type:     strings.ToUpper(r.Type),
			TTL:      helpers.ClampIntToUint32(r.TTL),
			Content:  r.Content,
			Prio:     r.Prio,
			Disabled: r.Disabled,
		}
		if rec.Type == "SOA" {
			z.DefaultTTL = rec.TTL
		}
		z.Records = append(z.Records, rec)
	}
	return z
}

// rdataText returns the presentation rdata of r, prefixing the priority for
// MX and SRV.
func (r Record) rdataText() string {
	switch r.Type {
	case "MX", "SRV":
		return fmt.Sprintf("%d %s", r.Prio, r.Content)
	default:
		return r.Content
	}
}

// RR converts r into a dns.RR.
func (r Record) RR() (dns.RR, error) {
	text := fmt.Sprintf("%s %d IN %s %s", dns.Fqdn(r.Name), r.TTL, r.Type, r.rdataText())
	rr, err := dns.NewRR(text)
	if err != nil {
		return nil, fmt.Errorf("record %s %s: %w", r.Name, r.Type, err)
	}
	if rr == nil {
		return nil, fmt.Errorf("record %s %s: empty rdata", r.Name, r.Type)
	}
	return rr, nil
}

// sorted returns the records with SOA first, then NS, then by name and type.
func (z *Zone) sorted() []Record {
	recs := append([]Record(nil), z.Records...)
	rank := func(r Record) int {
		switch r.Type {
		case "SOA":
			return 0
		case "NS":
			if strings.EqualFold(r.Name, z.Origin) {
				return 1
			}
		}
		return 2
	}
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra < rb
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Content < b.Content
	})
	return recs
}

// WriteTo writes the zone in master file format. Disabled records and
// records miekg/dns can not parse are written as comments.
func (z *Zone) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: bufio.NewWriter(w)}
	fmt.Fprintf(cw, "$ORIGIN %s\n", dns.Fqdn(z.Origin))
	fmt.Fprintf(cw, "$TTL %d\n", z.DefaultTTL)

	for _, r := range z.sorted() {
		rr, err := r.RR()
		switch {
		case err != nil:
			fmt.Fprintf(cw, "; invalid: %s %d IN %s %s\n", r.Name, r.TTL, r.Type, r.rdataText())
		case r.Disabled:
			fmt.Fprintf(cw, "; disabled: %s\n", rr.String())
		default:
			fmt.Fprintln(cw, rr.String())
		}
	}
	if cw.err != nil {
		return cw.n, cw.err
	}
	return cw.n, cw.w.Flush()
}

type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}

// Render returns the zone as master file text.
func (z *Zone) Render() (string, error) {
	var sb strings.Builder
	if _, err := z.WriteTo(&sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

package validation

import (
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// Record is the user-supplied part of a record before it is stored.
type Record struct {
	Name    string
	Type    string
	Content string
	TTL     int
	Prio    int
}

// RecordValidator validates record content per type. Hostname-valued
// fields reuse the zone name rules.
type RecordValidator struct {
	Hostnames *HostnameValidator
}

// Validate normalizes r in place (upper-case type, trimmed content,
// zero prio for types without one) and returns a *Error on failure.
func (v *RecordValidator) Validate(r *Record) error {
	r.Type = strings.ToUpper(strings.TrimSpace(r.Type))
	r.Content = strings.TrimSpace(r.Content)

	if _, ok := dns.StringToType[r.Type]; !ok {
		return failure("Unknown record type %q.", r.Type)
	}
	if r.TTL < 0 || r.TTL > math.MaxInt32 {
		return failure("Invalid value for TTL field. It should be numeric.")
	}
	if r.Content == "" {
		return failure("Record content can not be empty.")
	}

	allowWildcard := r.Type != "SOA" && r.Type != "NS"
	name, err := v.Hostnames.Validate(r.Name, allowWildcard)
	if err != nil {
		return err
	}
	r.Name = name

	switch r.Type {
	case "MX", "SRV":
		if r.Prio < 0 || r.Prio > math.MaxUint16 {
			return failure("Invalid value for prio field. It should be numeric.")
		}
	default:
		r.Prio = 0
	}

	switch r.Type {
	case "A":
		addr, err := netip.ParseAddr(r.Content)
		if err != nil || !addr.Is4() {
			return failure("This is not a valid IPv4 address.")
		}
	case "AAAA":
		addr, err := netip.ParseAddr(r.Content)
		if err != nil || !addr.Is6() || addr.Is4In6() {
			return failure("This is not a valid IPv6 address.")
		}
	case "CNAME", "NS", "PTR", "MX", "DNAME":
		if _, err := v.Hostnames.Validate(r.Content, false); err != nil {
			return err
		}
	case "SRV":
		return validateSRV(r.Content, v.Hostnames)
	case "SOA":
		return validateSOA(r.Content, v.Hostnames)
	case "TXT", "SPF":
		if strings.ContainsAny(r.Content, "\n\r") {
			return failure("Line breaks are not allowed in TXT records.")
		}
	default:
		if _, err := dns.NewRR(fmt.Sprintf("%s. %d IN %s %s", r.Name, r.TTL, r.Type, r.Content)); err != nil {
			return failure("Invalid %s record content: %v", r.Type, err)
		}
	}
	return nil
}

// validateSRV checks "weight port target"; the priority lives in prio.
func validateSRV(content string, hv *HostnameValidator) error {
	fields := strings.Fields(content)
	if len(fields) != 3 {
		return failure("Invalid SRV content. Use format: weight port target.")
	}
	for _, f := range fields[:2] {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 || n > math.MaxUint16 {
			return failure("Invalid SRV weight or port.")
		}
	}
	if fields[2] == "." {
		return nil
	}
	_, err := hv.Validate(fields[2], false)
	return err
}

// validateSOA checks "primary hostmaster serial refresh retry expire minimum".
func validateSOA(content string, hv *HostnameValidator) error {
	fields := strings.Fields(content)
	if len(fields) != 7 {
		return failure("Invalid SOA content. Expected 7 fields.")
	}
	for _, f := range fields[:2] {
		if _, err := hv.Validate(f, false); err != nil {
			return err
		}
	}
	for _, f := range fields[2:] {
		if _, err := strconv.ParseUint(f, 10, 32); err != nil {
			return failure("Invalid SOA timer or serial %q.", f)
		}
	}
	return nil
}

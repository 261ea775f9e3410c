// Package validation checks zone names, record names and record content
// before they reach the database.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Error carries one or more user-facing validation messages.
type Error struct {
	Messages []string
}

func (e *Error) Error() string {
	return strings.Join(e.Messages, "; ")
}

func failure(format string, args ...any) error {
	return &Error{Messages: []string{fmt.Sprintf(format, args...)}}
}

// IsValidationError reports whether err (or anything it wraps) is an *Error.
func IsValidationError(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

const maxHostnameLength = 253

var (
	labelRE         = regexp.MustCompile(`^[\w\-/]+$`)
	wildcardLabelRE = regexp.MustCompile(`^(\*|[\w\-/]+)$`)
)

// HostnameValidator validates fully qualified names, including RFC 2317
// classless reverse zones such as 0/26.1.168.192.in-addr.arpa.
type HostnameValidator struct {
	// TopLevelCheck rejects single-label names.
	TopLevelCheck bool
	// StrictTLDCheck rejects names whose last label is not an ICANN TLD.
	StrictTLDCheck bool
}

// Validate checks hostname and returns it without a trailing dot.
// "." and "@" are accepted unchanged.
func (v *HostnameValidator) Validate(hostname string, allowWildcard bool) (string, error) {
	if hostname == "." || hostname == "@" || strings.HasPrefix(hostname, "@.") {
		return hostname, nil
	}

	name := strings.TrimSuffix(hostname, ".")
	if len(name) > maxHostnameLength {
		return "", failure("The hostname is too long.")
	}

	labels := strings.Split(name, ".")
	if v.TopLevelCheck && len(labels) == 1 {
		return "", failure("Single-label hostnames are not allowed.")
	}

	var msgs []string
	add := func(msg string) {
		for _, m := range msgs {
			if m == msg {
				return
			}
		}
		msgs = append(msgs, msg)
	}

	for i, label := range labels {
		re := labelRE
		if allowWildcard && i == 0 {
			re = wildcardLabelRE
		}
		if !re.MatchString(label) {
			add("You have invalid characters in your zone name.")
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			add("A hostname can not start or end with a dash.")
		}
		if len(label) < 1 || len(label) > 63 {
			add("Given hostname or one of the labels is too short or too long.")
		}
	}
	if len(msgs) > 0 {
		return "", &Error{Messages: msgs}
	}

	if labels[len(labels)-1] == "arpa" {
		if err := validateClassless(labels); err != nil {
			return "", err
		}
	} else if strings.Contains(name, "/") {
		return "", failure("Given hostname has too many slashes.")
	}

	if v.StrictTLDCheck && !IsKnownTLD(name) {
		return "", failure("You are using an invalid top level domain.")
	}

	return name, nil
}

// validateClassless checks the slash label of an RFC 2317 reverse zone.
func validateClassless(labels []string) error {
	slashLabel := ""
	for _, label := range labels {
		if !strings.Contains(label, "/") {
			continue
		}
		if slashLabel != "" {
			return failure("Multiple slashes in different labels are not allowed in ARPA zones.")
		}
		slashLabel = label
	}
	if slashLabel == "" {
		return nil
	}

	parts := strings.Split(slashLabel, "/")
	if len(parts) != 2 {
		return failure("Invalid RFC 2317 format. Use format: subnet/prefix (e.g., 0/26).")
	}
	subnet, prefixText := parts[0], parts[1]

	family := ""
	if len(labels) >= 2 {
		family = labels[len(labels)-2]
	}

	var subnetValue int64
	switch family {
	case "in-addr":
		n, err := strconv.ParseInt(subnet, 10, 64)
		if err != nil || n < 0 || n > 255 {
			return failure("Invalid subnet number in RFC 2317 notation. Must be 0-255 for IPv4.")
		}
		subnetValue = n
	case "ip6":
		if !isHex(subnet) {
			return failure("Invalid subnet in RFC 2317 notation. Must be hexadecimal (0-9, a-f) for IPv6.")
		}
	default:
		if !isHex(subnet) {
			return failure("Invalid subnet in RFC 2317 notation. Must be numeric or hexadecimal.")
		}
	}

	prefix, err := strconv.Atoi(prefixText)
	if err != nil {
		return failure("Invalid prefix length in RFC 2317 notation. Must be numeric.")
	}

	switch family {
	case "in-addr":
		if prefix < 24 || prefix > 32 {
			return failure("Invalid IPv4 prefix length for RFC 2317. Typically 24-32 (classless delegation usually 25-31).")
		}
		block := int64(1) << (32 - prefix)
		if subnetValue%block != 0 {
			return failure("Subnet %d is not aligned with prefix /%d. Should be multiple of %d.", subnetValue, prefix, block)
		}
	case "ip6":
		if prefix < 0 || prefix > 128 {
			return failure("Invalid IPv6 prefix length. Must be 0-128.")
		}
	default:
		if prefix < 0 || prefix > 128 {
			return failure("Invalid prefix length. Must be 0-128.")
		}
	}
	return nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// IsKnownTLD reports whether the last label of name is an ICANN-managed
// top level domain according to the public suffix list.
func IsKnownTLD(name string) bool {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	tld := name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		tld = name[i+1:]
	}
	if tld == "" {
		return false
	}
	suffix, icann := publicsuffix.PublicSuffix(tld)
	return icann && suffix == tld
}

// IsReverseZone reports whether name lies under in-addr.arpa or ip6.arpa.
func IsReverseZone(name string) bool {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	return strings.HasSuffix(name, ".in-addr.arpa") || strings.HasSuffix(name, ".ip6.arpa")
}

// QualifyName expands a record name relative to zone. An empty name or "@"
// becomes the apex; names not already inside the zone get the zone appended.
func QualifyName(name, zone string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	zone = strings.TrimSuffix(zone, ".")
	if name == "" || name == "@" {
		return zone
	}
	lower, lowerZone := strings.ToLower(name), strings.ToLower(zone)
	if lower == lowerZone || strings.HasSuffix(lower, "."+lowerZone) {
		return name
	}
	return name + "." + zone
}

package zones

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jroosing/pdnsadmin/internal/auth"
	"github.com/jroosing/pdnsadmin/internal/database"
	"github.com/jroosing/pdnsadmin/internal/metrics"
	"github.com/jroosing/pdnsadmin/internal/validation"
)

var (
	// ErrReverseDisabled is returned when interface.add_reverse_record is off.
	ErrReverseDisabled = errors.New("reverse record creation is not allowed")
	// ErrNoReverseZone is returned when no reverse zone covers the network.
	ErrNoReverseZone = errors.New("no matching reverse zone found for this network prefix")
)

// PTRBatchRequest creates PTR records for a whole IPv4 /24.
type PTRBatchRequest struct {
	NetworkPrefix string // three octets, e.g. "192.168.1"
	HostPrefix    string // PTR targets are <HostPrefix>-<n>.<Domain>
	Domain        string
	TTL           int
	Comment       string
}

// PTRBatchResult counts the outcome of a batch.
type PTRBatchResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// ReverseName converts an IPv4 address to its in-addr.arpa name.
func ReverseName(ip string) string {
	octets := strings.Split(ip, ".")
	for i, j := 0, len(octets)-1; i < j; i, j = i+1, j-1 {
		octets[i], octets[j] = octets[j], octets[i]
	}
	return strings.Join(octets, ".") + ".in-addr.arpa"
}

func parseNetworkPrefix(prefix string) error {
	octets := strings.Split(strings.TrimSpace(prefix), ".")
	if len(octets) != 3 {
		return &validation.Error{Messages: []string{`Network prefix must consist of 3 octets (e.g., "192.168.1").`}}
	}
	for _, o := range octets {
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 || n > 255 {
			return &validation.Error{Messages: []string{"Invalid network prefix. Each octet must be between 0 and 255."}}
		}
	}
	return nil
}

// CreatePTRBatch creates PTR records for hosts 0..255 of an IPv4 /24.
// Each record goes into the best matching reverse zone; identical
// existing records are skipped.
func (s *Service) CreatePTRBatch(ctx context.Context, id *auth.Identity, req PTRBatchRequest) (*PTRBatchResult, error) {
	if !s.opts.AddReverseRecord {
		return nil, ErrReverseDisabled
	}
	if id == nil {
		return nil, auth.ErrForbidden
	}
	prefix := strings.TrimSpace(req.NetworkPrefix)
	if err := parseNetworkPrefix(prefix); err != nil {
		return nil, err
	}
	hostPrefix := strings.TrimSpace(req.HostPrefix)
	if hostPrefix == "" {
		return nil, &validation.Error{Messages: []string{"A host prefix is required."}}
	}
	domain, err := s.opts.Hostnames.Validate(strings.TrimSpace(req.Domain), false)
	if err != nil {
		return nil, err
	}
	if _, err := s.opts.Hostnames.Validate(hostPrefix+"-0."+domain, false); err != nil {
		return nil, err
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = s.opts.SOA.TTL
	}

	first, err := s.store.GetBestMatchingZoneIDFromName(ctx, ReverseName(prefix+".0"))
	if err != nil {
		return nil, err
	}
	if first == -1 {
		return nil, ErrNoReverseZone
	}

	editable := map[int64]error{}
	canEdit := func(zoneID int64) error {
		if err, ok := editable[zoneID]; ok {
			return err
		}
		_, err := s.editableZone(ctx, id, zoneID)
		editable[zoneID] = err
		return err
	}
	if err := canEdit(first); err != nil {
		return nil, err
	}

	res := &PTRBatchResult{}
	for i := 0; i < 256; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ip := fmt.Sprintf("%s.%d", prefix, i)
		name := ReverseName(ip)
		target := fmt.Sprintf("%s-%d.%s", hostPrefix, i, domain)

		zoneID, err := s.store.GetBestMatchingZoneIDFromName(ctx, name)
		if err != nil {
			return res, err
		}
		if zoneID == -1 {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("No reverse zone for %s", ip))
			continue
		}
		if err := canEdit(zoneID); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to create PTR record for %s: %v", ip, err))
			continue
		}

		exists, err := s.store.RecordExists(ctx, zoneID, name, "PTR", target)
		if err != nil {
			return res, err
		}
		if exists {
			res.Skipped++
			continue
		}

		if _, err := s.store.AddRecord(ctx, database.Record{
			DomainID: zoneID, Name: name, Type: "PTR", Content: target, TTL: ttl, Comment: req.Comment,
		}); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to create PTR record for %s: %v", ip, err))
			continue
		}
		res.Created++
	}

	if res.Created == 0 && res.Skipped == 0 {
		return nil, batchFailure(res.Errors)
	}

	metrics.ZoneOperations.WithLabelValues("ptr_batch").Inc()
	s.logger.Info("ptr batch created", "user_id", id.UserID, "network", prefix, "domain", domain,
		"created", res.Created, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// batchFailure reports a batch in which no record was created or skipped,
// quoting the first few per-host errors.
func batchFailure(errs []string) error {
	msg := "Failed to create any PTR records."
	if len(errs) > 0 {
		msg += " " + strings.Join(errs[:min(3, len(errs))], " ")
		if len(errs) > 3 {
			msg += "..."
		}
	}
	return &validation.Error{Messages: []string{msg}}
}

// Message summarizes a batch result for display.
func (r *PTRBatchResult) Message() string {
	msg := fmt.Sprintf("Created %d PTR records successfully", r.Created)
	if r.Skipped > 0 {
		msg += fmt.Sprintf(" (%d skipped as they already exist)", r.Skipped)
	}
	if r.Failed > 0 {
		msg += fmt.Sprintf(" (%d failed)", r.Failed)
	}
	return msg
}

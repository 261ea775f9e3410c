// Package bulk registers many zones from a newline separated list.
package bulk

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jroosing/pdnsadmin/internal/auth"
	"github.com/jroosing/pdnsadmin/internal/metrics"
	"github.com/jroosing/pdnsadmin/internal/validation"
	"github.com/jroosing/pdnsadmin/internal/zones"
)

// Line outcomes.
const (
	StatusCreated  = "created"
	StatusSkipped  = "skipped"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
)

// Request is a batch of zone names sharing owner, type, master and template.
type Request struct {
	Names      string // newline separated
	Type       string
	Master     string
	OwnerID    int64
	TemplateID int64
}

// LineResult is the outcome of one non-blank input line.
type LineResult struct {
	Line    int    `json:"line"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	ZoneID  int64  `json:"zone_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Result is the per-line table plus aggregate counts.
type Result struct {
	Lines    []LineResult `json:"lines"`
	Created  int          `json:"created"`
	Skipped  int          `json:"skipped"`
	Rejected int          `json:"rejected"`
	Failed   int          `json:"failed"`
}

// Creator creates a single zone.
type Creator interface {
	Create(ctx context.Context, id *auth.Identity, req zones.CreateRequest) (int64, error)
}

// Registrar processes bulk registration batches.
type Registrar struct {
	zones  Creator
	logger *slog.Logger
}

// NewRegistrar creates a Registrar. logger may be nil.
func NewRegistrar(z Creator, logger *slog.Logger) *Registrar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registrar{zones: z, logger: logger}
}

// SplitNames returns the trimmed non-blank lines of input together with
// their 1-based line numbers.
func SplitNames(input string) ([]string, []int) {
	var (
		names []string
		lines []int
	)
	for i, raw := range strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		names = append(names, name)
		lines = append(lines, i+1)
	}
	return names, lines
}

// Register creates the zones of req one by one. Problems with a single line
// are reported in the result; an error is returned only when the zone type
// is unknown, the caller may not create zones of that type or ctx is
// cancelled.
func (r *Registrar) Register(ctx context.Context, id *auth.Identity, req Request) (*Result, error) {
	if err := zones.ValidateType(req.Type); err != nil {
		return nil, err
	}
	if err := zones.CheckCreate(id, req.Type); err != nil {
		return nil, err
	}

	names, lines := SplitNames(req.Names)
	res := &Result{Lines: make([]LineResult, 0, len(names))}

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		line := LineResult{Line: lines[i], Name: name}
		zoneID, err := r.zones.Create(ctx, id, zones.CreateRequest{
			Name:       name,
			Type:       req.Type,
			Master:     req.Master,
			OwnerID:    req.OwnerID,
			TemplateID: req.TemplateID,
		})

		var verr *validation.Error
		switch {
		case err == nil:
			line.Status = StatusCreated
			line.ZoneID = zoneID
			res.Created++
		case errors.Is(err, zones.ErrZoneExists):
			line.Status = StatusSkipped
			line.Message = "Zone already exists."
			res.Skipped++
		case errors.As(err, &verr):
			line.Status = StatusRejected
			line.Message = verr.Error()
			res.Rejected++
		case errors.Is(err, auth.ErrForbidden):
			// Owner assignment is the same for every line.
			return nil, err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return res, err
		default:
			line.Status = StatusFailed
			line.Message = err.Error()
			res.Failed++
		}
		metrics.BulkLines.WithLabelValues(line.Status).Inc()
		res.Lines = append(res.Lines, line)
	}

	r.logger.Info("bulk registration finished", "user_id", id.UserID,
		"created", res.Created, "skipped", res.Skipped, "rejected", res.Rejected, "failed", res.Failed)
	return res, nil
}

package services

import (
	"context"
	"fmt"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/maxaizer/talent-intake/internal/logger"
	"github.com/maxaizer/talent-intake/internal/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"regexp"
)

var (
	ErrAllocationFailed = errors.New("id allocation failed")
	ErrInvalidCount     = errors.New("id count must be positive")
)

var externalIDPattern = regexp.MustCompile(`^[A-Z]{1,2}\d{5,6}$`)

func IsValidExternalID(id string) bool {
	return externalIDPattern.MatchString(id)
}

// Namespace describes one family of external ids.
type Namespace struct {
	Sequence string
	Prefix   string
	Width    int
}

var (
	CandidateNamespace        = Namespace{Sequence: models.CandidateSequence, Prefix: "C", Width: 5}
	EmploymentRecordNamespace = Namespace{Sequence: models.EmploymentRecordSequence, Prefix: "ER", Width: 6}
)

func (ns Namespace) Format(number int64) (string, error) {
	id := fmt.Sprintf("%s%0*d", ns.Prefix, ns.Width, number)
	if number <= 0 || !IsValidExternalID(id) {
		return "", fmt.Errorf("%w: %d does not fit namespace %s", ErrAllocationFailed, number, ns.Sequence)
	}
	return id, nil
}

type SequenceReserver interface {
	Reserve(ctx context.Context, name string, count int) (int64, error)
}

// IDAllocator hands out blocks of sequential ids. It keeps no state of its
// own; uniqueness comes from the reserver's atomic increment.
type IDAllocator struct {
	reserver SequenceReserver
}

func NewIDAllocator(reserver SequenceReserver) *IDAllocator {
	return &IDAllocator{reserver: reserver}
}

// ReserveIDs reserves [start, start+count) in the namespace and returns start.
func (a *IDAllocator) ReserveIDs(ctx context.Context, ns Namespace, count int) (int64, error) {
	if count <= 0 {
		return 0, ErrInvalidCount
	}

	start, err := a.reserver.Reserve(ctx, ns.Sequence, count)
	if err == nil && start <= 0 {
		err = fmt.Errorf("reserver returned non-positive start %d", start)
	}
	if err != nil {
		metrics.AllocationFailures.WithLabelValues(ns.Sequence).Inc()
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeAllocator).
			Errorf("failed to reserve %d ids in %s: %v", count, ns.Sequence, err)
		return 0, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}

	metrics.ReservedIDs.WithLabelValues(ns.Sequence).Add(float64(count))
	return start, nil
}

// Allocate reserves count ids and formats them.
func (a *IDAllocator) Allocate(ctx context.Context, ns Namespace, count int) ([]string, error) {
	start, err := a.ReserveIDs(ctx, ns, count)
	if err != nil {
		return nil, err
	}
	return FormatRange(ns, start, count)
}

func FormatRange(ns Namespace, start int64, count int) ([]string, error) {
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id, err := ns.Format(start + int64(i))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

package service

import (
	"context"
	"time"

	"github.com/mzDeaThly/data-spf/internal/registry/store"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

const (
	// CandidateLimit caps rows fetched before the freshness filter.
	CandidateLimit = 20
	// DisplayLimit caps rows shown to the user after filtering.
	DisplayLimit = 10
)

// RegistrySearch finds fresh vehicle records by plate substring.
type RegistrySearch struct {
	vehicles store.VehicleStore
	loc      *time.Location
	now      func() time.Time
}

// NewRegistrySearch builds a search whose "today" is computed in loc. now
// defaults to time.Now.
func NewRegistrySearch(vs store.VehicleStore, loc *time.Location, now func() time.Time) *RegistrySearch {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &RegistrySearch{vehicles: vs, loc: loc, now: now}
}

// Today is the current calendar date in the configured zone.
func (s *RegistrySearch) Today() types.Date {
	return types.Today(s.now(), s.loc)
}

// Search matches query against license plates ignoring case and separators,
// newest created first, and keeps records whose recorded date is set and at
// most maxAgeDays old. Records with no recorded date are never returned.
func (s *RegistrySearch) Search(ctx context.Context, query string, maxAgeDays int) ([]types.Vehicle, error) {
	candidates, err := s.vehicles.SearchPlates(ctx, types.NormalizePlate(query), CandidateLimit)
	if err != nil {
		return nil, err
	}

	today := s.Today()
	fresh := make([]types.Vehicle, 0, len(candidates))
	for _, v := range candidates {
		if v.RecordedDate == nil {
			continue
		}
		if v.RecordedDate.DaysSince(today) > maxAgeDays {
			continue
		}
		fresh = append(fresh, v)
		if len(fresh) == DisplayLimit {
			break
		}
	}
	return fresh, nil
}

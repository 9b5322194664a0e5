package admission

import (
	"context"
	"log"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// SyncReport summarizes a synchronize-with-tool-usage run.
type SyncReport struct {
	Total    int `json:"total"`
	Unlocked int `json:"unlocked"`
	Locked   int `json:"locked"`
	Failed   int `json:"failed"`
}

// SynchronizeInterlocks drives every tool-attached interlock to the
// state its tool's usage implies: energized while a usage event is
// open, de-energized otherwise.  Run after controller power cycles or
// network outages, when physical relay state can no longer be trusted.
// Door interlocks are left alone; they follow badge activity.
func (s *Service) SynchronizeInterlocks(ctx context.Context) (SyncReport, error) {
	interlocks, inUse, err := s.interlocks.ToolAttached(ctx)
	if err != nil {
		return SyncReport{}, err
	}
	var report SyncReport
	report.Total = len(interlocks)
	for i, il := range interlocks {
		if inUse[i] {
			err = s.locker.Unlock(ctx, il)
		} else {
			err = s.locker.Lock(ctx, il)
		}
		if err != nil {
			// Keep going: one dead controller must not strand the rest.
			log.Printf("admission: synchronizing interlock %d: %v", il.ID, err)
			report.Failed++
			continue
		}
		if inUse[i] {
			report.Unlocked++
		} else {
			report.Locked++
		}
	}
	return report, nil
}

// SetInterlock drives a single interlock to the requested state,
// bypassing usage bookkeeping.  Maintenance use only; the HTTP layer
// restricts it to staff.
func (s *Service) SetInterlock(ctx context.Context, interlockID uint64, lock bool) (model.Interlock, error) {
	il, err := s.interlocks.GetByID(ctx, interlockID)
	if err != nil {
		return model.Interlock{}, err
	}
	if lock {
		err = s.locker.Lock(ctx, il)
	} else {
		err = s.locker.Unlock(ctx, il)
	}
	if err != nil {
		return model.Interlock{}, err
	}
	return s.interlocks.GetByID(ctx, interlockID)
}

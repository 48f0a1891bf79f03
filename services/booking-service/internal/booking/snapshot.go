package booking

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
)

// QueueSnapshot returns the waiting entries of one service-day in service order.
// A cached snapshot is served when present; a miss is computed from the store
// and cached unless a write landed while it was being read.
func (s *Service) QueueSnapshot(ctx context.Context, providerID, serviceID string, date model.Date) ([]model.QueueEntry, error) {
	if providerID == "" || serviceID == "" {
		return nil, fmt.Errorf("%w: provider id and service id required", model.ErrInvalidRequest)
	}
	key := model.PartitionKey{ProviderID: providerID, ServiceID: serviceID, Date: date}

	fill := false
	var version int64
	if s.cache != nil {
		entries, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("queue cache read failed", "partition", key.String(), "err", err)
		case ok:
			return entries, nil
		default:
			if version, err = s.cache.Version(ctx, key); err != nil {
				s.logger.Warn("queue cache version read failed", "partition", key.String(), "err", err)
			} else {
				fill = true
			}
		}
	}

	appts, err := s.store.LoadAppointments(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	entries := s.seq.Resequence(serviceID, date, appts)
	if fill {
		stored, err := s.cache.Fill(ctx, key, version, entries)
		if err != nil {
			s.logger.Warn("queue cache fill failed", "partition", key.String(), "err", err)
		} else if !stored {
			s.logger.Debug("queue cache fill skipped after concurrent write", "partition", key.String())
		}
	}
	return entries, nil
}

package store

import (
	"context"
	"fmt"

	"takjil/internal/registry"
	"takjil/internal/venues"
)

// Submit sends a new venue for moderation. The record only shows up locally
// once the backend includes it in a snapshot.
func (s *Store) Submit(ctx context.Context, d venues.Draft) (string, error) {
	d.Menu = venues.CleanMenu(d.Menu)
	if err := venues.Validate(d); err != nil {
		return "", fmt.Errorf("%w: %v", registry.ErrValidation, err)
	}

	if d.Image == "" && s.images != nil {
		if len(d.ImageData) > 0 {
			url, err := s.images.Upload(ctx, d.ImageData)
			if err != nil {
				return "", fmt.Errorf("upload image: %w", err)
			}
			d.Image = url
		} else {
			d.Image = s.images.Placeholder()
		}
	}

	r := d.Record(s.now().UnixMilli())
	id, err := s.remote.Create(ctx, r)
	if err != nil {
		s.logger.Warnw("venue submission failed", "name", d.Name, "error", err)
		return "", err
	}

	s.logger.Infow("venue submitted", "id", id, "name", d.Name)
	return id, nil
}

// SetStatus moderates a venue. The local copy changes at once; a failed
// backend write is returned but not undone locally.
func (s *Store) SetStatus(ctx context.Context, id string, status venues.Status) error {
	return s.mutate(ctx, id, func(r *venues.Record) (venues.Patch, error) {
		if !r.Status.CanTransition(status) {
			return venues.Patch{}, fmt.Errorf("%w: %s -> %s", venues.ErrInvalidTransition, r.Status, status)
		}
		r.Status = status
		return venues.Patch{Status: &status}, nil
	})
}

// BumpRating adds one vote to a venue's thumbs up or thumbs down counter.
// The value sent is the backend's last delivered counter plus one, so a
// retry after a failed write does not count the vote twice.
func (s *Store) BumpRating(ctx context.Context, id string, isUp bool) error {
	return s.mutate(ctx, id, func(r *venues.Record) (venues.Patch, error) {
		base := s.confirmedLocked(id, *r)
		if isUp {
			n := base.ThumbsUp + 1
			r.ThumbsUp = n
			return venues.Patch{ThumbsUp: &n}, nil
		}
		n := base.ThumbsDown + 1
		r.ThumbsDown = n
		return venues.Patch{ThumbsDown: &n}, nil
	})
}

// confirmedLocked returns the backend's version of a record, or local when
// the backend has not delivered it.
func (s *Store) confirmedLocked(id string, local venues.Record) venues.Record {
	if i := s.confirmed.Get(&venues.Record{ID: id}); i != nil {
		return *i.(*venues.Record)
	}
	return local
}

// mutate applies change to the local record, then sends the resulting patch.
// change runs with s.mu held.
func (s *Store) mutate(ctx context.Context, id string, change func(r *venues.Record) (venues.Patch, error)) error {
	s.mu.Lock()
	i := s.index.Get(&venues.Record{ID: id})
	if i == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", registry.ErrNotFound, id)
	}

	updated := venues.Clone(*i.(*venues.Record))
	patch, err := change(&updated)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.index.Set(&updated)
	s.refreshLocked()
	s.mu.Unlock()

	if err := s.remote.Update(ctx, id, patch); err != nil {
		s.logger.Warnw("optimistic update not confirmed, keeping local value until next snapshot",
			"id", id, "fields", patch.Fields(), "error", err)
		return err
	}
	return nil
}

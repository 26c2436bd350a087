// Package sponsor keeps the sponsor list as one JSON array under one key of
// the local key-value store.
package sponsor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/maruel/ksid"

	"github.com/carbonware/bookexchange/internal/entity"
	storeerrors "github.com/carbonware/bookexchange/internal/errors"
	"github.com/carbonware/bookexchange/internal/storage/kv"
)

const (
	// DefaultKey is the storage key of the sponsor array.
	DefaultKey = "carbonware:sponsors"
	// DefaultTopLimit is the number of sponsors GetTop callers show by default.
	DefaultTopLimit = 3

	maxAttempts = 3
)

// Defaults are the sponsors written to an empty store.
var Defaults = []entity.SponsorInput{
	{
		Name:    "GitHub",
		Website: "https://github.com",
		Logo:    "https://picsum.photos/seed/github/300/200",
		Message: "Supporting community-driven projects",
	},
	{
		Name:    "Vercel",
		Website: "https://vercel.com",
		Logo:    "https://picsum.photos/seed/vercel/300/200",
		Message: "Empowering fast, modern web apps",
	},
	{
		Name:    "Supabase",
		Website: "https://supabase.com",
		Logo:    "https://picsum.photos/seed/supabase/300/200",
		Message: "Open-source data layer for developers",
	},
}

// Store reads and writes the sponsor list.
type Store struct {
	kv    *kv.Store
	key   string
	now   func() time.Time
	seeds []entity.SponsorInput

	// mu serializes read-modify-write cycles within the process. Writers in
	// other processes are caught by CompareAndSet.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithKey sets the storage key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithClock overrides the time source of new sponsors.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSeeds replaces the sponsors written to an empty store. Pass nil to
// disable seeding.
func WithSeeds(seeds []entity.SponsorInput) Option {
	return func(s *Store) { s.seeds = seeds }
}

// NewStore returns a sponsor store backed by kvs.
func NewStore(kvs *kv.Store, opts ...Option) *Store {
	s := &Store{kv: kvs, key: DefaultKey, now: time.Now, seeds: Defaults}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ParseSponsors decodes a stored sponsor array.
func ParseSponsors(raw string) ([]entity.Sponsor, error) {
	var out []entity.Sponsor
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, storeerrors.MalformedData("sponsor list", err)
	}
	if out == nil {
		out = []entity.Sponsor{}
	}
	return out, nil
}

// GetAll returns the stored sponsors, seeding the defaults first when the key
// is absent or empty. Unreadable data is logged and read as an empty list.
func (s *Store) GetAll(ctx context.Context) []entity.Sponsor {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, _ := s.loadLocked(ctx)
	return all
}

// GetTop returns up to limit sponsors, most recently created first. Sponsors
// created at the same instant keep their stored order.
func (s *Store) GetTop(ctx context.Context, limit int) []entity.Sponsor {
	if limit <= 0 {
		return []entity.Sponsor{}
	}
	all := s.GetAll(ctx)
	slices.SortStableFunc(all, func(a, b entity.Sponsor) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// Add stores a new sponsor at the front of the list and returns it.
func (s *Store) Add(ctx context.Context, in entity.SponsorInput) (entity.Sponsor, error) {
	if err := ctx.Err(); err != nil {
		return entity.Sponsor{}, err
	}
	sp := entity.Sponsor{
		ID:        entity.NewID(),
		Name:      strings.TrimSpace(in.Name),
		Website:   strings.TrimSpace(in.Website),
		Logo:      strings.TrimSpace(in.Logo),
		Message:   strings.TrimSpace(in.Message),
		CreatedAt: entity.Timestamp(s.now()),
	}
	if err := sp.Validate(); err != nil {
		return entity.Sponsor{}, storeerrors.ValidationFailed("invalid sponsor").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		all, rev := s.loadLocked(ctx)
		all = slices.Insert(all, 0, sp)
		if err = s.storeLocked(rev, all); err == nil {
			slog.DebugContext(ctx, "sponsor: added", "id", sp.ID, "name", sp.Name)
			return sp, nil
		}
		if !errors.Is(err, kv.ErrConflict) {
			break
		}
		slog.DebugContext(ctx, "sponsor: concurrent write, retrying", "attempt", attempt)
		if _, rerr := s.kv.Reload(); rerr != nil {
			err = rerr
			break
		}
	}
	return entity.Sponsor{}, storeerrors.StorageUnavailable(fmt.Sprintf("sponsor list %q", s.key), err)
}

// loadLocked reads the list and the revision it was read at, seeding it when
// empty. It never fails.
func (s *Store) loadLocked(ctx context.Context) ([]entity.Sponsor, ksid.ID) {
	raw, rev, ok := s.kv.Get(s.key)
	if !ok || raw == "" {
		if len(s.seeds) == 0 {
			return []entity.Sponsor{}, rev
		}
		seeded := s.seedList()
		if err := s.storeLocked(rev, seeded); err != nil {
			slog.WarnContext(ctx, "sponsor: seeding failed", "key", s.key, "err", err)
			if errors.Is(err, kv.ErrConflict) {
				return s.parseLocked(ctx)
			}
			return seeded, rev
		}
		slog.InfoContext(ctx, "sponsor: seeded defaults", "key", s.key, "count", len(seeded))
		return seeded, s.kv.Revision(s.key)
	}
	all, err := ParseSponsors(raw)
	if err != nil {
		slog.WarnContext(ctx, "sponsor: ignoring stored list", "key", s.key, "err", err)
		return []entity.Sponsor{}, rev
	}
	return all, rev
}

// parseLocked reads what another writer stored, without seeding again.
func (s *Store) parseLocked(ctx context.Context) ([]entity.Sponsor, ksid.ID) {
	raw, rev, _ := s.kv.Get(s.key)
	all, err := ParseSponsors(raw)
	if err != nil {
		slog.WarnContext(ctx, "sponsor: ignoring stored list", "key", s.key, "err", err)
		return []entity.Sponsor{}, rev
	}
	return all, rev
}

func (s *Store) storeLocked(rev ksid.ID, all []entity.Sponsor) error {
	data, err := json.Marshal(all)
	if err != nil {
		return err
	}
	_, err = s.kv.CompareAndSet(s.key, rev, string(data))
	return err
}

func (s *Store) seedList() []entity.Sponsor {
	now := entity.Timestamp(s.now())
	out := make([]entity.Sponsor, 0, len(s.seeds))
	for _, in := range s.seeds {
		out = append(out, entity.Sponsor{
			ID:        entity.NewID(),
			Name:      in.Name,
			Website:   in.Website,
			Logo:      in.Logo,
			Message:   in.Message,
			CreatedAt: now,
		})
	}
	return out
}

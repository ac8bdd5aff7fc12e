package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"preciobot/internal"
	"preciobot/internal/config"
	"preciobot/internal/storage"
)

type cachedSheet struct {
	index     *Index
	fetchedAt time.Time
}

// Service serves sheet indexes from a TTL cache in front of the live source.
// When the source fails it falls back to the last good copy in memory, then
// to the sqlite snapshot written by Sync.
type Service struct {
	client   *Client
	db       *storage.DB
	ttl      time.Duration
	standard string
	recompra string
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	cache   map[string]cachedSheet
	fetches map[string]*sync.Mutex
}

func NewService(cfg config.Config, client *Client, db *storage.DB, log zerolog.Logger) *Service {
	return &Service{
		client:   client,
		db:       db,
		ttl:      cfg.CatalogCacheTTL,
		standard: cfg.ValoresWorksheet,
		recompra: cfg.RecompraSheet,
		log:      log.With().Str("component", "catalog").Logger(),
		now:      time.Now,
		cache:    map[string]cachedSheet{},
		fetches:  map[string]*sync.Mutex{},
	}
}

func (s *Service) StandardSheet() string { return s.standard }
func (s *Service) RecompraSheet() string { return s.recompra }

func (s *Service) required(sheet string) []string {
	if sheet == s.recompra {
		return RecompraHeaders
	}
	return StandardHeaders
}

// Index returns the current index of sheet. Fetches of one sheet are
// serialized, so a burst of lookups after expiry costs one upstream call;
// other sheets keep serving from the cache meanwhile.
func (s *Service) Index(ctx context.Context, sheet string) (*Index, error) {
	fetch := s.fetchLock(sheet)
	fetch.Lock()
	defer fetch.Unlock()

	cached, ok := s.cached(sheet)
	if ok && s.now().Sub(cached.fetchedAt) < s.ttl {
		return cached.index, nil
	}

	records, err := s.client.FetchRecords(ctx, sheet, s.required(sheet))
	if err == nil {
		idx := BuildIndex(sheet, records)
		s.store(sheet, idx)
		s.storeSnapshot(sheet, records)
		return idx, nil
	}

	s.log.Error().Err(err).Str("sheet", sheet).Msg("catalog fetch failed")
	if ok {
		s.log.Warn().Str("sheet", sheet).Time("fetchedAt", cached.fetchedAt).Msg("serving stale catalog")
		return cached.index, nil
	}
	if idx := s.loadSnapshot(sheet); idx != nil {
		s.store(sheet, idx)
		return idx, nil
	}
	return nil, fmt.Errorf("%w: %w", internal.ErrCatalogUnavailable, err)
}

func (s *Service) fetchLock(sheet string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.fetches[sheet]
	if !ok {
		l = &sync.Mutex{}
		s.fetches[sheet] = l
	}
	return l
}

func (s *Service) cached(sheet string) (cachedSheet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cache[sheet]
	return c, ok
}

func (s *Service) store(sheet string, idx *Index) {
	s.mu.Lock()
	s.cache[sheet] = cachedSheet{index: idx, fetchedAt: s.now()}
	s.mu.Unlock()
}

// Sync refreshes every catalog sheet from the source and rewrites the
// snapshot. It returns the record count per sheet.
func (s *Service) Sync(ctx context.Context) (map[string]int, error) {
	if s.db == nil {
		return nil, errors.New("catalog sync requires storage")
	}

	counts := map[string]int{}
	for _, sheet := range []string{s.standard, s.recompra} {
		records, err := s.client.FetchRecords(ctx, sheet, s.required(sheet))
		if err != nil {
			return counts, err
		}
		if err := s.db.ReplaceCatalog(sheet, records); err != nil {
			return counts, fmt.Errorf("store snapshot %s: %w", sheet, err)
		}
		if err := s.db.SetMetadata("catalog.last_sync."+sheet, s.now().UTC().Format(time.RFC3339)); err != nil {
			s.log.Warn().Err(err).Str("sheet", sheet).Msg("sync watermark write failed")
		}
		s.store(sheet, BuildIndex(sheet, records))

		counts[sheet] = len(records)
		s.log.Info().Str("sheet", sheet).Int("records", len(records)).Msg("catalog synced")
	}
	return counts, nil
}

// Invalidate drops cached sheets so the next lookup refetches.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cache = map[string]cachedSheet{}
	s.mu.Unlock()
}

func (s *Service) storeSnapshot(sheet string, records []internal.CatalogRecord) {
	if s.db == nil {
		return
	}
	if err := s.db.ReplaceCatalog(sheet, records); err != nil {
		s.log.Warn().Err(err).Str("sheet", sheet).Msg("snapshot write failed")
	}
}

func (s *Service) loadSnapshot(sheet string) *Index {
	if s.db == nil {
		return nil
	}
	records, err := s.db.ListCatalog(sheet)
	if err != nil {
		s.log.Warn().Err(err).Str("sheet", sheet).Msg("snapshot read failed")
		return nil
	}
	if len(records) == 0 {
		return nil
	}
	s.log.Warn().Str("sheet", sheet).Int("records", len(records)).Msg("serving catalog snapshot")
	return BuildIndex(sheet, records)
}

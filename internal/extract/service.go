// Package extract wires the OCR backends into the HTTP surface: upload
// validation happens in middleware, this package handles preprocessing,
// result caching, backend invocation and history persistence.
package extract

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/chikingsley/kreuzberg/internal/cache"
	"github.com/chikingsley/kreuzberg/internal/img"
	"github.com/chikingsley/kreuzberg/internal/ocr"
	"github.com/chikingsley/kreuzberg/internal/telemetry"
)

// resultCache is the slice of the Redis result cache the service uses;
// extracted so tests can substitute an in-memory fake.
type resultCache interface {
	Get(ctx context.Context, key string) *ocr.ExtractionResult
	Set(ctx context.Context, key string, res *ocr.ExtractionResult) error
}

type Service struct {
	backend ocr.Backend
	results resultCache
	store   *Store

	maxW        int
	quality     int
	gray        bool
	timeout     time.Duration
	maxParallel int
}

// Item is one uploaded image.
type Item struct {
	Filename string
	Data     []byte
}

// FileResult pairs one upload with its extraction output.
type FileResult struct {
	Filename  string                `json:"filename"`
	Cached    bool                  `json:"cached"`
	LatencyMS int                   `json:"latency_ms"`
	Result    *ocr.ExtractionResult `json:"result"`
}

// ProcessUpload runs OCR over a batch of uploads, fanning out across files.
// The first failure cancels the batch.
func (s *Service) ProcessUpload(ctx context.Context, requestID string, items []Item, language string) ([]FileResult, error) {
	out := make([]FileResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	limit := s.maxParallel
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, item := range items {
		g.Go(func() error {
			res, err := s.processOne(gctx, requestID, item, language)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) processOne(ctx context.Context, requestID string, item Item, language string) (FileResult, error) {
	start := time.Now()
	log := telemetry.L().With().Str("req_id", requestID).Str("file", item.Filename).Logger()

	prep, err := img.PrepareForOCR(item.Data, s.maxW, s.quality, s.gray)
	if err != nil {
		log.Error().Err(err).Msg("ocr_prep_fail")
		return FileResult{}, err
	}

	key := cache.Key(s.backend.Name(), strings.ToLower(language), prep.Bytes)
	if s.results != nil {
		if res := s.results.Get(ctx, key); res != nil {
			log.Info().Int("len", len(res.Content)).Msg("ocr_cache_hit")
			fr := FileResult{
				Filename:  item.Filename,
				Cached:    true,
				LatencyMS: int(time.Since(start) / time.Millisecond),
				Result:    res,
			}
			s.persist(requestID, fr)
			return fr, nil
		}
	}

	octx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		octx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	res, err := s.backend.ProcessImage(octx, prep.Bytes, language)
	if err != nil {
		log.Error().Err(err).Msg("ocr_fail")
		return FileResult{}, err
	}
	log.Info().
		Int("len", len(res.Content)).
		Int("regions", res.Metadata.TextRegions).
		Msg("ocr_done")

	if s.results != nil && res.Content != "" {
		if err := s.results.Set(ctx, key, res); err != nil {
			log.Warn().Err(err).Msg("ocr_cache_set_err")
		}
	}

	fr := FileResult{
		Filename:  item.Filename,
		LatencyMS: int(time.Since(start) / time.Millisecond),
		Result:    res,
	}
	s.persist(requestID, fr)
	return fr, nil
}

// persist records the extraction in history, best-effort.
func (s *Service) persist(requestID string, fr FileResult) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(Record{
		RequestID:   requestID,
		Filename:    fr.Filename,
		Backend:     fr.Result.Metadata.Backend,
		Language:    fr.Result.Metadata.Language,
		Confidence:  fr.Result.Metadata.Confidence,
		TextRegions: fr.Result.Metadata.TextRegions,
		Content:     fr.Result.Content,
		Cached:      fr.Cached,
		LatencyMS:   fr.LatencyMS,
	}); err != nil {
		log := telemetry.L()
		log.Warn().Err(err).Msg("extraction_history_save_err")
	}
}

// NewService builds the processing pipeline around one backend. db and
// results may be nil; the corresponding steps are skipped.
func NewService(backend ocr.Backend, results resultCache, db *sqlx.DB, maxW, quality int, gray bool, timeout time.Duration, maxParallel int) *Service {
	var store *Store
	if db != nil {
		store = &Store{db: db}
	}
	return &Service{
		backend:     backend,
		results:     results,
		store:       store,
		maxW:        maxW,
		quality:     quality,
		gray:        gray,
		timeout:     timeout,
		maxParallel: maxParallel,
	}
}

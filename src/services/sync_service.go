package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/username/poolcosts/backend/src/extraction"
	"github.com/username/poolcosts/backend/src/logger"
	"github.com/username/poolcosts/backend/src/metrics"
	"github.com/username/poolcosts/backend/src/model"
	"github.com/username/poolcosts/backend/src/models"
	"github.com/username/poolcosts/backend/src/paperless"
	"golang.org/x/sync/errgroup"
)

// SyncOptions mirrors the SYNC_* and POOL_TAG_NAME settings.
type SyncOptions struct {
	PoolTagName  string
	PageSize     int
	LookbackDays int
	Workers      int
}

type syncServiceImpl struct {
	db        *sql.DB
	source    DocumentSource
	extractor *extraction.Extractor
	validator *extraction.TraceValidator
	costs     CostService
	opts      SyncOptions
	now       func() time.Time

	running sync.Mutex
}

func NewSyncService(
	db *sql.DB,
	source DocumentSource,
	extractor *extraction.Extractor,
	validator *extraction.TraceValidator,
	costs CostService,
	opts SyncOptions,
) SyncService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &syncServiceImpl{
		db:        db,
		source:    source,
		extractor: extractor,
		validator: validator,
		costs:     costs,
		opts:      opts,
		now:       time.Now,
	}
}

type extractedDocument struct {
	doc    model.Document
	result extraction.Result
}

// Run performs one sync. A second call while one is running fails with ErrSyncInProgress.
func (s *syncServiceImpl) Run(ctx context.Context) (*models.SyncResponse, error) {
	if !s.running.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.running.Unlock()

	start := time.Now()
	resp, err := s.run(ctx)
	metrics.SyncDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SyncRunsTotal.WithLabelValues("ok").Inc()
	return resp, nil
}

func (s *syncServiceImpl) run(ctx context.Context) (*models.SyncResponse, error) {
	log := logger.FromContext(ctx)

	tagID, err := s.source.FindTagID(ctx, s.opts.PoolTagName)
	if err != nil {
		return nil, fmt.Errorf("find pool tag: %w", err)
	}

	listOpts := paperless.ListOptions{PageSize: s.opts.PageSize}
	if s.opts.LookbackDays > 0 {
		since := s.now().UTC().AddDate(0, 0, -s.opts.LookbackDays)
		listOpts.CreatedAfter = &since
	}
	docs, err := s.source.ListDocuments(ctx, tagID, listOpts)
	if err != nil {
		return nil, fmt.Errorf("list pool documents: %w", err)
	}
	log.Info("Sync: documents fetched", "poolTagID", tagID, "count", len(docs))

	extracted, err := s.extractAll(ctx, docs)
	if err != nil {
		return nil, err
	}

	resp := &models.SyncResponse{Synced: len(docs), PoolTagID: tagID}
	if err := s.store(ctx, extracted, resp); err != nil {
		return nil, err
	}
	if resp.Inserted+resp.Updated > 0 && s.costs != nil {
		s.costs.InvalidateSummaries()
	}

	metrics.SyncDocumentsTotal.WithLabelValues(model.OutcomeInserted.String()).Add(float64(resp.Inserted))
	metrics.SyncDocumentsTotal.WithLabelValues(model.OutcomeUpdated.String()).Add(float64(resp.Updated))
	metrics.SyncDocumentsTotal.WithLabelValues(model.OutcomeSkipped.String()).Add(float64(resp.Skipped))
	log.Info("Sync finished", "synced", resp.Synced, "inserted", resp.Inserted,
		"updated", resp.Updated, "skipped", resp.Skipped)
	return resp, nil
}

// extractAll runs the engine over docs on a bounded worker pool, keeping input order.
func (s *syncServiceImpl) extractAll(ctx context.Context, docs []paperless.Document) ([]extractedDocument, error) {
	out := make([]extractedDocument, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d := docs[i]
			res := s.extractor.Extract(d.Content, d.Correspondent)
			metrics.ObserveExtraction(res.Confidence, res.NeedsReview)
			if s.validator != nil {
				if err := s.validator.Validate(res.Debug.JSON()); err != nil {
					metrics.TraceSchemaMismatches.Inc()
					logger.FromContext(gctx).Warn("Debug trace does not match schema", "docID", d.ID, "error", err)
				}
			}
			out[i] = extractedDocument{
				doc: model.Document{
					ID:            d.ID,
					Content:       d.Content,
					Correspondent: d.Correspondent,
					Created:       d.Created,
					Title:         d.Title,
					DocumentType:  d.DocumentType,
				},
				result: res,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extract documents: %w", err)
	}
	return out, nil
}

func (s *syncServiceImpl) store(ctx context.Context, extracted []extractedDocument, resp *models.SyncResponse) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	for _, e := range extracted {
		if e.doc.ID <= 0 {
			continue
		}
		outcome, err := model.ApplyExtraction(ctx, tx, e.doc, e.result, now)
		if err != nil {
			return fmt.Errorf("store document %d: %w", e.doc.ID, err)
		}
		switch outcome {
		case model.OutcomeInserted:
			resp.Inserted++
		case model.OutcomeUpdated:
			resp.Updated++
		default:
			resp.Skipped++
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sync transaction: %w", err)
	}
	return nil
}

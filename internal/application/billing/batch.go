package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
)

// DispatchedBatch lote aceptado por la SET.
type DispatchedBatch struct {
	BatchID      string   `json:"batch_id"`
	ControlCodes []string `json:"control_codes"`
}

// FailedChunk grupo de documentos que volvió a SIGNED porque el envío falló.
type FailedChunk struct {
	ControlCodes []string `json:"control_codes"`
	Error        string   `json:"error"`
	Retryable    bool     `json:"retryable"`
}

// SubmitSummary resultado de SubmitBatch.
type SubmitSummary struct {
	Batches []DispatchedBatch `json:"batches"`
	Failed  []FailedChunk     `json:"failed,omitempty"`
}

// SubmitBatch toma los documentos SIGNED pendientes, los agrupa en lotes de cfg.BatchSize
// y los entrega al transporte. Cada documento pasa por DISPATCHING antes del envío; con el
// número de lote queda RECEIVED y si el envío falla vuelve a SIGNED.
func (s *Service) SubmitBatch(ctx context.Context) (*SubmitSummary, error) {
	if s.transport == nil {
		return nil, fmt.Errorf("%w: transporte SIFEN", domain.ErrNotConfigured)
	}
	claimed, err := s.claimForBatch(ctx, s.cfg.BatchSize*s.cfg.SubmitConcurrency)
	if err != nil {
		return nil, err
	}
	summary := &SubmitSummary{Batches: []DispatchedBatch{}}
	if len(claimed) == 0 {
		return summary, nil
	}

	var (
		mu          sync.Mutex
		transportEs []error
		g           errgroup.Group
	)
	g.SetLimit(s.cfg.SubmitConcurrency)

	for _, chunk := range chunkDocuments(claimed, s.cfg.BatchSize) {
		g.Go(func() error {
			items := make([]BatchItem, len(chunk))
			codes := make([]string, len(chunk))
			for i, d := range chunk {
				items[i] = BatchItem{ControlCode: d.ControlCode, SignedXML: []byte(d.SignedXML)}
				codes[i] = d.ControlCode
			}

			var batchID string
			sendErr := s.withRetry(ctx, "envío de lote", func(ctx context.Context) error {
				var err error
				batchID, err = s.transport.Submit(ctx, items)
				return err
			})
			if sendErr != nil {
				s.log.Error().Err(sendErr).Int("documents", len(chunk)).Msg("envío de lote fallido, documentos devueltos a SIGNED")
				if err := s.revertDispatch(context.WithoutCancel(ctx), chunk); err != nil {
					return fmt.Errorf("revertir lote no enviado: %w", err)
				}
				mu.Lock()
				transportEs = append(transportEs, sendErr)
				summary.Failed = append(summary.Failed, FailedChunk{ControlCodes: codes, Error: sendErr.Error(), Retryable: domain.IsRetryable(sendErr)})
				mu.Unlock()
				return nil
			}

			// El lote ya está en la SET: registrar el número aunque el llamador cancele.
			if err := s.markReceived(context.WithoutCancel(ctx), chunk, batchID); err != nil {
				s.log.Error().Err(err).Str("batch_id", batchID).Msg("lote enviado pero no registrado")
				return fmt.Errorf("registrar lote %s: %w", batchID, err)
			}
			s.log.Info().Str("batch_id", batchID).Int("documents", len(chunk)).Msg("lote recibido por la SET")
			mu.Lock()
			summary.Batches = append(summary.Batches, DispatchedBatch{BatchID: batchID, ControlCodes: codes})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}
	if len(summary.Batches) == 0 && len(transportEs) > 0 {
		return summary, errors.Join(transportEs...)
	}
	return summary, nil
}

// claimForBatch marca como DISPATCHING hasta limit documentos SIGNED sin lote.
func (s *Service) claimForBatch(ctx context.Context, limit int) ([]*entity.Document, error) {
	var claimed []*entity.Document
	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		ready, err := repos.Documents.ListReadyForBatch(ctx, limit)
		if err != nil {
			return err
		}
		now := s.now()
		for _, doc := range ready {
			doc.Status = entity.StatusSubmitted
			doc.BatchState = entity.BatchDispatching
			doc.SubmittedAt = &now
			doc.UpdatedAt = now
			ok, err := repos.Documents.UpdateIfStatus(ctx, doc, entity.StatusSigned)
			if err != nil {
				return err
			}
			if ok {
				claimed = append(claimed, doc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *Service) markReceived(ctx context.Context, chunk []*entity.Document, batchID string) error {
	return s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		for _, d := range chunk {
			doc, err := repos.Documents.GetForUpdate(ctx, d.ID)
			if err != nil {
				return err
			}
			if doc == nil || doc.BatchState != entity.BatchDispatching {
				s.log.Warn().Str("document_id", d.ID).Msg("documento fuera de DISPATCHING al registrar lote")
				continue
			}
			doc.BatchID = batchID
			doc.BatchState = entity.BatchReceived
			doc.UpdatedAt = s.now()
			if err := repos.Documents.Update(ctx, doc); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) revertDispatch(ctx context.Context, chunk []*entity.Document) error {
	return s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		for _, d := range chunk {
			doc, err := repos.Documents.GetForUpdate(ctx, d.ID)
			if err != nil {
				return err
			}
			if doc == nil || doc.BatchState != entity.BatchDispatching {
				continue
			}
			if err := s.backToSigned(ctx, repos, doc); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) backToSigned(ctx context.Context, repos repository.Repositories, doc *entity.Document) error {
	doc.Status = entity.StatusSigned
	doc.BatchState = entity.BatchNone
	doc.BatchID = ""
	doc.SubmittedAt = nil
	doc.UpdatedAt = s.now()
	return repos.Documents.Update(ctx, doc)
}

// ResetStuckBatch devuelve a SIGNED los documentos que quedaron en DISPATCHING más allá
// del período de gracia (la SET no confirmó ningún lote), para que puedan reenviarse.
func (s *Service) ResetStuckBatch(ctx context.Context) (int, error) {
	var reset int
	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		stuck, err := repos.Documents.ListStuck(ctx, s.now().Add(-s.cfg.StuckGrace))
		if err != nil {
			return err
		}
		for _, doc := range stuck {
			if err := s.backToSigned(ctx, repos, doc); err != nil {
				return err
			}
			s.log.Warn().Str("document_id", doc.ID).Str("cdc", doc.ControlCode).Msg("lote trabado: documento devuelto a SIGNED")
			reset++
		}
		return nil
	})
	return reset, err
}

// ListPendingBatches devuelve los lotes aún sin resultado final.
func (s *Service) ListPendingBatches(ctx context.Context) ([]string, error) {
	return s.store.Repositories().Documents.ListPendingBatchIDs(ctx)
}

func chunkDocuments(docs []*entity.Document, size int) [][]*entity.Document {
	var chunks [][]*entity.Document
	for size < len(docs) {
		docs, chunks = docs[size:], append(chunks, docs[:size])
	}
	return append(chunks, docs)
}

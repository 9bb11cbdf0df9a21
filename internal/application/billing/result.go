package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
)

// PollResult consulta el lote en la SET y aplica su estado a los documentos.
func (s *Service) PollResult(ctx context.Context, batchID string) (*BatchStatus, error) {
	if s.transport == nil {
		return nil, fmt.Errorf("%w: transporte SIFEN", domain.ErrNotConfigured)
	}
	var status *BatchStatus
	err := s.withRetry(ctx, "consulta de lote", func(ctx context.Context) error {
		var err error
		status, err = s.transport.Query(ctx, batchID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("consultar lote %s: %w", batchID, err)
	}

	switch status.State {
	case BatchQueryProcessing:
		if err := s.markProcessing(ctx, batchID); err != nil {
			return nil, err
		}
	case BatchQueryConcluded:
		if err := s.OnBatchResult(ctx, batchID, status.Results); err != nil {
			return nil, err
		}
	case BatchQueryNonexistent:
		s.log.Warn().Str("batch_id", batchID).Msg("la SET no reconoce el lote")
	}
	return status, nil
}

func (s *Service) markProcessing(ctx context.Context, batchID string) error {
	return s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		docs, err := repos.Documents.ListByBatch(ctx, batchID)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if doc.BatchState != entity.BatchReceived {
				continue
			}
			doc.BatchState = entity.BatchProcessing
			doc.UpdatedAt = s.now()
			if err := repos.Documents.Update(ctx, doc); err != nil {
				return err
			}
		}
		return nil
	})
}

// OnBatchResult aplica el resultado final de un lote: cada documento con resultado pasa a
// RESOLVED (aprobado o rechazado) y el lote queda CONCLUDED. Los documentos del lote sin
// resultado vuelven a SIGNED para reenviarse en el próximo lote.
// Reaplicar el mismo resultado no tiene efecto.
func (s *Service) OnBatchResult(ctx context.Context, batchID string, results []DocumentResult) error {
	byCDC := make(map[string]DocumentResult, len(results))
	for _, r := range results {
		byCDC[r.ControlCode] = r
	}

	var approved, rejected, missing int
	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		docs, err := repos.Documents.ListByBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return fmt.Errorf("lote %s: %w", batchID, domain.ErrNotFound)
		}
		now := s.now()
		seen := make(map[string]bool, len(docs))
		for _, doc := range docs {
			seen[doc.ControlCode] = true
			if doc.Status == entity.StatusResolved || doc.Status == entity.StatusVoided {
				continue
			}
			res, ok := byCDC[doc.ControlCode]
			if !ok {
				missing++
				s.log.Warn().Str("batch_id", batchID).Str("cdc", doc.ControlCode).Msg("lote concluido sin resultado: documento devuelto a SIGNED")
				if err := s.backToSigned(ctx, repos, doc); err != nil {
					return err
				}
				continue
			}
			doc.BatchState = entity.BatchConcluded
			doc.Status = entity.StatusResolved
			doc.AuthorityCode = res.Code
			doc.AuthorityMessage = res.Message
			doc.ResolvedAt = &now
			doc.UpdatedAt = now
			if res.Approved {
				doc.AuthorityState = entity.AuthorityApproved
				approved++
			} else {
				doc.AuthorityState = entity.AuthorityRejected
				rejected++
			}
			if err := repos.Documents.Update(ctx, doc); err != nil {
				return err
			}
		}
		for cdc := range byCDC {
			if !seen[cdc] {
				s.log.Warn().Str("batch_id", batchID).Str("cdc", cdc).Msg("resultado para un CDC que no pertenece al lote")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("batch_id", batchID).Int("approved", approved).Int("rejected", rejected).Int("missing", missing).Msg("resultado de lote aplicado")
	return nil
}

package billing

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Poller recorre periódicamente los lotes pendientes: primero recupera documentos trabados
// en DISPATCHING y luego consulta cada lote. Una sola goroutine; nunca se solapa consigo mismo.
type Poller struct {
	svc      *Service
	interval time.Duration
	log      zerolog.Logger
}

// NewPoller crea el poller. interval <= 0 usa un minuto.
func NewPoller(svc *Service, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{svc: svc, interval: interval, log: log.With().Str("component", "poller").Logger()}
}

// Run bloquea hasta que ctx se cancela.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info().Dur("interval", p.interval).Msg("poller de lotes iniciado")
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("poller de lotes detenido")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick ejecuta una pasada completa. Los errores se registran y no detienen la pasada.
func (p *Poller) Tick(ctx context.Context) {
	if n, err := p.svc.ResetStuckBatch(ctx); err != nil {
		p.log.Error().Err(err).Msg("reset de lotes trabados")
	} else if n > 0 {
		p.log.Warn().Int("documents", n).Msg("documentos devueltos a SIGNED")
	}

	batches, err := p.svc.ListPendingBatches(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("listar lotes pendientes")
		return
	}
	for _, id := range batches {
		if ctx.Err() != nil {
			return
		}
		status, err := p.svc.PollResult(ctx, id)
		if err != nil {
			p.log.Error().Err(err).Str("batch_id", id).Msg("consulta de lote")
			continue
		}
		p.log.Debug().Str("batch_id", id).Str("state", string(status.State)).Msg("lote consultado")
	}
}

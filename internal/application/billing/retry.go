package billing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
)

// withRetry reintenta fn sólo ante errores transitorios, esperando cfg.RetryDelays entre intentos.
// Nunca debe llamarse con una transacción abierta.
func (s *Service) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, domain.ErrTransient) || attempt >= len(s.cfg.RetryDelays) {
			return err
		}
		delay := s.cfg.RetryDelays[attempt]
		s.log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Dur("retry_delay", delay).Msg("falla transitoria, reintentando")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s cancelado durante reintento: %w", op, ctx.Err())
		case <-s.sleep(delay):
		}
	}
}

var securityCodeSpace = big.NewInt(1_000_000_000)

// randomSecurityCode genera dCodSeg: 9 dígitos aleatorios.
func randomSecurityCode() (string, error) {
	n, err := rand.Int(rand.Reader, securityCodeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%09d", n.Int64()), nil
}

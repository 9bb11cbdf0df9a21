// Package billing implementa el ciclo de vida del documento electrónico SIFEN:
//
//	Draft → Numbered → Signed → Submitted(lote) → Resolved(Aprobado/Rechazado) | Voided
//
// Las operaciones que tocan el talonario corren en una transacción del repository.Store;
// la firma y el transporte se invocan siempre fuera de ella.
package billing

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/facturacion-sifen/internal/application/numbering"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
	"github.com/jhoicas/facturacion-sifen/internal/domain/tax"
	"github.com/jhoicas/facturacion-sifen/pkg/sifen"
)

// Config parámetros del ciclo de vida.
type Config struct {
	BatchSize            int
	SubmitConcurrency    int
	StuckGrace           time.Duration
	VoidByCreditAfter    time.Duration
	RoundingUnit         decimal.Decimal // sólo PYG
	SecurityCodeAttempts int
	RetryDelays          []time.Duration
	Rates                tax.Rates
	EmissionType         int
}

// DefaultConfig valores por defecto.
func DefaultConfig() Config {
	return Config{
		BatchSize:            20,
		SubmitConcurrency:    4,
		StuckGrace:           10 * time.Minute,
		VoidByCreditAfter:    48 * time.Hour,
		RoundingUnit:         decimal.NewFromInt(50),
		SecurityCodeAttempts: 10,
		RetryDelays:          []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		Rates:                tax.DefaultRates(),
		EmissionType:         sifen.EmissionNormal,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.BatchSize > sifen.MaxBatchSize {
		c.BatchSize = sifen.MaxBatchSize
	}
	if c.SubmitConcurrency <= 0 {
		c.SubmitConcurrency = def.SubmitConcurrency
	}
	if c.StuckGrace <= 0 {
		c.StuckGrace = def.StuckGrace
	}
	if c.VoidByCreditAfter <= 0 {
		c.VoidByCreditAfter = def.VoidByCreditAfter
	}
	if c.SecurityCodeAttempts <= 0 {
		c.SecurityCodeAttempts = def.SecurityCodeAttempts
	}
	if c.Rates.R5.IsZero() && c.Rates.R10.IsZero() {
		c.Rates = def.Rates
	}
	if c.EmissionType == 0 {
		c.EmissionType = def.EmissionType
	}
	return c
}

// Service es el Document Lifecycle Manager.
type Service struct {
	store     repository.Store
	allocator *numbering.Allocator
	tax       TaxLineComputer
	cdc       ControlCodeGenerator
	signer    XMLSigner
	transport BatchTransport
	cfg       Config
	log       zerolog.Logger

	now             func() time.Time
	newSecurityCode func() (string, error)
	sleep           func(d time.Duration) <-chan time.Time
}

// Deps colaboradores del servicio. Transport puede ser nil (modo dev: no se envían lotes).
type Deps struct {
	Store     repository.Store
	Allocator *numbering.Allocator
	Tax       TaxLineComputer
	CDC       ControlCodeGenerator
	Signer    XMLSigner
	Transport BatchTransport
}

// NewService construye el servicio.
func NewService(deps Deps, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		store:           deps.Store,
		allocator:       deps.Allocator,
		tax:             deps.Tax,
		cdc:             deps.CDC,
		signer:          deps.Signer,
		transport:       deps.Transport,
		cfg:             cfg.normalized(),
		log:             log.With().Str("component", "billing").Logger(),
		now:             time.Now,
		newSecurityCode: randomSecurityCode,
		sleep:           time.After,
	}
}

// WithClock reemplaza el reloj (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithSecurityCodeSource reemplaza el generador de códigos de seguridad (tests).
func (s *Service) WithSecurityCodeSource(fn func() (string, error)) *Service {
	s.newSecurityCode = fn
	return s
}

// WithSleep reemplaza la espera entre reintentos (tests).
func (s *Service) WithSleep(fn func(d time.Duration) <-chan time.Time) *Service {
	s.sleep = fn
	return s
}

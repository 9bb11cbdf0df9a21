package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacion-sifen/internal/application/dto"
	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
	"github.com/jhoicas/facturacion-sifen/pkg/sifen"
)

const validityLayout = "2006-01-02"

// AuthorizationUseCase alta administrativa de timbrados y establecimientos.
type AuthorizationUseCase struct {
	store repository.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewAuthorizationUseCase construye el caso de uso con el puerto de persistencia.
func NewAuthorizationUseCase(store repository.Store, log zerolog.Logger) *AuthorizationUseCase {
	return &AuthorizationUseCase{
		store: store,
		log:   log.With().Str("component", "setup").Logger(),
		now:   time.Now,
	}
}

// Create registra un timbrado activo. El DV del RUC se calcula si no viene informado
// y se rechaza si no coincide.
func (uc *AuthorizationUseCase) Create(ctx context.Context, in dto.CreateAuthorizationRequest) (*dto.AuthorizationResponse, error) {
	number, dv := sifen.SplitRUC(in.RUC)
	if in.RUCCheckDigit != "" {
		dv = in.RUCCheckDigit
	}
	if dv == "" && number != "" {
		dv = fmt.Sprintf("%d", sifen.CheckDigit(number))
	}
	if err := sifen.ValidateRUC(number, dv); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if in.TaxpayerType != 1 && in.TaxpayerType != 2 {
		return nil, fmt.Errorf("%w: tipo de contribuyente debe ser 1 o 2", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.BusinessName) == "" {
		return nil, fmt.Errorf("%w: razón social requerida", domain.ErrInvalidInput)
	}
	if len(in.Number) != 8 || strings.Trim(in.Number, "0123456789") != "" {
		return nil, fmt.Errorf("%w: el timbrado debe tener 8 dígitos", domain.ErrInvalidInput)
	}
	from, err := time.Parse(validityLayout, in.ValidFrom)
	if err != nil {
		return nil, fmt.Errorf("%w: valid_from: %v", domain.ErrInvalidInput, err)
	}
	to, err := time.Parse(validityLayout, in.ValidTo)
	if err != nil {
		return nil, fmt.Errorf("%w: valid_to: %v", domain.ErrInvalidInput, err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: vigencia invertida", domain.ErrInvalidInput)
	}
	if (in.CSC1 == "") != (in.CSCID == "") {
		return nil, fmt.Errorf("%w: csc_id y csc1 van juntos", domain.ErrInvalidInput)
	}

	now := uc.now()
	auth := &entity.FiscalAuthorization{
		ID:            uuid.New().String(),
		RUC:           number,
		RUCCheckDigit: dv,
		TaxpayerType:  in.TaxpayerType,
		BusinessName:  strings.TrimSpace(in.BusinessName),
		Number:        in.Number,
		ValidFrom:     from,
		ValidTo:       to,
		CSCID:         in.CSCID,
		CSC1:          in.CSC1,
		CSC2:          in.CSC2,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.store.Repositories().Authorizations.Create(ctx, auth); err != nil {
		return nil, err
	}
	uc.log.Info().Str("authorization_id", auth.ID).Str("ruc", auth.RUC).Str("timbrado", auth.Number).Msg("timbrado registrado")
	return toAuthorizationResponse(auth), nil
}

// GetByID obtiene un timbrado por ID.
func (uc *AuthorizationUseCase) GetByID(ctx context.Context, id string) (*dto.AuthorizationResponse, error) {
	auth, err := uc.store.Repositories().Authorizations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if auth == nil {
		return nil, fmt.Errorf("timbrado %s: %w", id, domain.ErrNotFound)
	}
	return toAuthorizationResponse(auth), nil
}

// Deactivate desactiva el timbrado; los documentos nuevos dejan de validarse contra él.
func (uc *AuthorizationUseCase) Deactivate(ctx context.Context, id string) error {
	return uc.store.RunInTx(ctx, func(repos repository.Repositories) error {
		auth, err := repos.Authorizations.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if auth == nil {
			return fmt.Errorf("timbrado %s: %w", id, domain.ErrNotFound)
		}
		auth.IsActive = false
		auth.UpdatedAt = uc.now()
		return repos.Authorizations.Update(ctx, auth)
	})
}

// AddEstablishment agrega un establecimiento al timbrado. Devuelve domain.ErrDuplicate si
// el código ya existe bajo el mismo timbrado.
func (uc *AuthorizationUseCase) AddEstablishment(ctx context.Context, authorizationID string, in dto.CreateEstablishmentRequest) (*dto.EstablishmentResponse, error) {
	if !isCode3(in.Code) {
		return nil, fmt.Errorf("%w: código de establecimiento %q", domain.ErrInvalidInput, in.Code)
	}
	if len(in.ExpeditionCodes) == 0 {
		return nil, fmt.Errorf("%w: al menos un punto de expedición", domain.ErrInvalidInput)
	}
	for _, c := range in.ExpeditionCodes {
		if !isCode3(c) {
			return nil, fmt.Errorf("%w: punto de expedición %q", domain.ErrInvalidInput, c)
		}
	}

	var est *entity.Establishment
	err := uc.store.RunInTx(ctx, func(repos repository.Repositories) error {
		auth, err := repos.Authorizations.GetByID(ctx, authorizationID)
		if err != nil {
			return err
		}
		if auth == nil {
			return fmt.Errorf("timbrado %s: %w", authorizationID, domain.ErrNotFound)
		}
		existing, err := repos.Establishments.GetByCode(ctx, authorizationID, in.Code)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("establecimiento %s: %w", in.Code, domain.ErrDuplicate)
		}
		est = &entity.Establishment{
			ID:              uuid.New().String(),
			AuthorizationID: authorizationID,
			Code:            in.Code,
			Name:            in.Name,
			Address:         in.Address,
			ExpeditionCodes: in.ExpeditionCodes,
			CreatedAt:       uc.now(),
		}
		return repos.Establishments.Create(ctx, est)
	})
	if err != nil {
		return nil, err
	}
	return toEstablishmentResponse(est), nil
}

// ListEstablishments lista los establecimientos del timbrado.
func (uc *AuthorizationUseCase) ListEstablishments(ctx context.Context, authorizationID string) ([]dto.EstablishmentResponse, error) {
	list, err := uc.store.Repositories().Establishments.ListByAuthorization(ctx, authorizationID)
	if err != nil {
		return nil, err
	}
	items := make([]dto.EstablishmentResponse, 0, len(list))
	for _, e := range list {
		items = append(items, *toEstablishmentResponse(e))
	}
	return items, nil
}

func isCode3(s string) bool {
	return len(s) == 3 && strings.Trim(s, "0123456789") == ""
}

func toAuthorizationResponse(a *entity.FiscalAuthorization) *dto.AuthorizationResponse {
	return &dto.AuthorizationResponse{
		ID:           a.ID,
		RUC:          a.RUC + "-" + a.RUCCheckDigit,
		BusinessName: a.BusinessName,
		Number:       a.Number,
		ValidFrom:    a.ValidFrom,
		ValidTo:      a.ValidTo,
		HasCSC:       a.CSC1 != "",
		IsActive:     a.IsActive,
	}
}

func toEstablishmentResponse(e *entity.Establishment) *dto.EstablishmentResponse {
	return &dto.EstablishmentResponse{
		ID:              e.ID,
		AuthorizationID: e.AuthorizationID,
		Code:            e.Code,
		Name:            e.Name,
		Address:         e.Address,
		ExpeditionCodes: e.ExpeditionCodes,
	}
}

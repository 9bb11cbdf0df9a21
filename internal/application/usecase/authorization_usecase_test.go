package usecase_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacion-sifen/internal/application/dto"
	"github.com/jhoicas/facturacion-sifen/internal/application/usecase"
	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/infrastructure/memory"
)

func validRequest() dto.CreateAuthorizationRequest {
	return dto.CreateAuthorizationRequest{
		RUC:          "80012345",
		TaxpayerType: 2,
		BusinessName: "Comercial Asunción S.A.",
		Number:       "12345678",
		ValidFrom:    "2024-01-01",
		ValidTo:      "2030-12-31",
		CSCID:        "0001",
		CSC1:         "ABCD0000000000000000000000000000",
	}
}

func TestAuthorizationUseCase_Create(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	uc := usecase.NewAuthorizationUseCase(store, zerolog.Nop())

	resp, err := uc.Create(ctx, validRequest())
	require.NoError(t, err)
	assert.Equal(t, "80012345-0", resp.RUC, "el DV se calcula cuando no viene")
	assert.True(t, resp.HasCSC)
	assert.True(t, resp.IsActive)

	stored, err := store.Repositories().Authorizations.GetByID(ctx, resp.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "0", stored.RUCCheckDigit)
	assert.Equal(t, "ABCD0000000000000000000000000000", stored.CSC1)
}

func TestAuthorizationUseCase_CreateValidaciones(t *testing.T) {
	uc := usecase.NewAuthorizationUseCase(memory.New(), zerolog.Nop())
	cases := map[string]func(r *dto.CreateAuthorizationRequest){
		"dv incorrecto":      func(r *dto.CreateAuthorizationRequest) { r.RUC = "80012345-7" },
		"tipo contribuyente": func(r *dto.CreateAuthorizationRequest) { r.TaxpayerType = 3 },
		"timbrado corto":     func(r *dto.CreateAuthorizationRequest) { r.Number = "123" },
		"fecha":              func(r *dto.CreateAuthorizationRequest) { r.ValidFrom = "01/01/2024" },
		"vigencia invertida": func(r *dto.CreateAuthorizationRequest) { r.ValidTo = "2023-01-01" },
		"csc sin id":         func(r *dto.CreateAuthorizationRequest) { r.CSCID = "" },
		"sin razón social":   func(r *dto.CreateAuthorizationRequest) { r.BusinessName = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			mutate(&req)
			_, err := uc.Create(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestAuthorizationUseCase_Establecimientos(t *testing.T) {
	ctx := context.Background()
	uc := usecase.NewAuthorizationUseCase(memory.New(), zerolog.Nop())
	auth, err := uc.Create(ctx, validRequest())
	require.NoError(t, err)

	in := dto.CreateEstablishmentRequest{Code: "001", Name: "Casa Central", ExpeditionCodes: []string{"001", "002"}}
	est, err := uc.AddEstablishment(ctx, auth.ID, in)
	require.NoError(t, err)
	assert.Equal(t, auth.ID, est.AuthorizationID)

	_, err = uc.AddEstablishment(ctx, auth.ID, in)
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = uc.AddEstablishment(ctx, "no-existe", in)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = uc.AddEstablishment(ctx, auth.ID, dto.CreateEstablishmentRequest{Code: "1", ExpeditionCodes: []string{"001"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = uc.AddEstablishment(ctx, auth.ID, dto.CreateEstablishmentRequest{Code: "002"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	list, err := uc.ListEstablishments(ctx, auth.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAuthorizationUseCase_Deactivate(t *testing.T) {
	ctx := context.Background()
	uc := usecase.NewAuthorizationUseCase(memory.New(), zerolog.Nop())
	auth, err := uc.Create(ctx, validRequest())
	require.NoError(t, err)

	require.NoError(t, uc.Deactivate(ctx, auth.ID))
	got, err := uc.GetByID(ctx, auth.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = uc.GetByID(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

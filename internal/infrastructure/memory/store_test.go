package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
	"github.com/jhoicas/facturacion-sifen/internal/infrastructure/memory"
)

func TestRunInTx_RollbackDeshaceCambios(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	boom := errors.New("boom")

	err := store.RunInTx(ctx, func(repos repository.Repositories) error {
		require.NoError(t, repos.Documents.Create(ctx, &entity.Document{ID: "doc-1", Status: entity.StatusDraft}))
		_, err := repos.Numbers.InsertRange(ctx, []*entity.NumberRecord{
			{ID: "n-1", EstablishmentID: "est", DocType: entity.DocTypeInvoice, SequenceNumber: 1, State: entity.NumberStateFree},
		})
		require.NoError(t, err)
		require.NoError(t, repos.SecurityCodes.Insert(ctx, &entity.SecurityCodeRecord{Code: "000000001"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	repos := store.Repositories()
	doc, err := repos.Documents.GetByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Nil(t, doc, "el documento no debe sobrevivir al rollback")

	free, reserved, err := repos.Numbers.Stats(ctx, repository.NumberPoolKey{EstablishmentID: "est", DocType: entity.DocTypeInvoice})
	require.NoError(t, err)
	assert.Zero(t, free)
	assert.Zero(t, reserved)

	assert.NoError(t, repos.SecurityCodes.Insert(ctx, &entity.SecurityCodeRecord{Code: "000000001"}),
		"el código debe quedar libre tras el rollback")
}

func TestRunInTx_RollbackRestauraActualizacion(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repos := store.Repositories()
	require.NoError(t, repos.Documents.Create(ctx, &entity.Document{ID: "doc-1", Status: entity.StatusDraft}))

	_ = store.RunInTx(ctx, func(tx repository.Repositories) error {
		doc, _ := tx.Documents.GetForUpdate(ctx, "doc-1")
		doc.Status = entity.StatusNumbered
		require.NoError(t, tx.Documents.Update(ctx, doc))
		return domain.ErrConflict
	})

	doc, err := repos.Documents.GetByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDraft, doc.Status)
}

func TestRunInTx_RollbackNoPisaEscrituraPosterior(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repos := store.Repositories()
	require.NoError(t, repos.Documents.Create(ctx, &entity.Document{ID: "doc-1", Status: entity.StatusNumbered}))

	_ = store.RunInTx(ctx, func(tx repository.Repositories) error {
		doc, _ := tx.Documents.GetForUpdate(ctx, "doc-1")
		doc.VoidReason = "temporal"
		require.NoError(t, tx.Documents.Update(ctx, doc))

		// Escritura sin transacción mientras la transacción sigue abierta.
		signed, _ := repos.Documents.GetByID(ctx, "doc-1")
		signed.Status = entity.StatusSigned
		ok, err := repos.Documents.UpdateIfStatus(ctx, signed, entity.StatusNumbered)
		require.NoError(t, err)
		require.True(t, ok)
		return domain.ErrConflict
	})

	doc, err := repos.Documents.GetByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSigned, doc.Status, "el rollback no debe deshacer una escritura ajena")
}

func TestNumbers_TransitionCAS(t *testing.T) {
	ctx := context.Background()
	repos := memory.New().Repositories()
	_, err := repos.Numbers.InsertRange(ctx, []*entity.NumberRecord{
		{ID: "n-1", EstablishmentID: "est", DocType: entity.DocTypeInvoice, SequenceNumber: 1, State: entity.NumberStateFree},
	})
	require.NoError(t, err)

	now := time.Now()
	ok, err := repos.Numbers.Transition(ctx, "n-1", entity.NumberStateFree, entity.NumberStateReserved, "doc-1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repos.Numbers.Transition(ctx, "n-1", entity.NumberStateFree, entity.NumberStateReserved, "doc-2", now)
	require.NoError(t, err)
	assert.False(t, ok, "un número reservado no puede reservarse otra vez")

	rec, err := repos.Numbers.GetByID(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", rec.DocumentID)
}

func TestNumbers_InsertRangeDuplicado(t *testing.T) {
	ctx := context.Background()
	repos := memory.New().Repositories()
	rec := func(id string, seq int64) *entity.NumberRecord {
		return &entity.NumberRecord{ID: id, EstablishmentID: "est", DocType: entity.DocTypeInvoice, Series: "A", SequenceNumber: seq, State: entity.NumberStateFree}
	}
	_, err := repos.Numbers.InsertRange(ctx, []*entity.NumberRecord{rec("a", 1), rec("b", 2)})
	require.NoError(t, err)

	_, err = repos.Numbers.InsertRange(ctx, []*entity.NumberRecord{rec("c", 2), rec("d", 3)})
	assert.ErrorIs(t, err, domain.ErrDuplicateRange)

	n, err := repos.Numbers.CountExisting(ctx, repository.NumberPoolKey{EstablishmentID: "est", DocType: entity.DocTypeInvoice}, "A", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "la inserción fallida no debe dejar registros parciales")
}

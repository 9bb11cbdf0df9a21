package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacion-sifen/internal/application/numbering"
	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
	"github.com/jhoicas/facturacion-sifen/internal/infrastructure/postgres"
	"github.com/jhoicas/facturacion-sifen/pkg/config"
)

// setupTestDB conecta a TEST_DATABASE_URL y aplica las migraciones. Sin la variable el test se saltea.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL no definido: se omite el test de integración")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: dbURL})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = postgres.Migrate(ctx, pool, zerolog.Nop())
	require.NoError(t, err)
	return pool
}

// seed crea un timbrado y un establecimiento con ids únicos para aislar cada test.
func seed(t *testing.T, store *postgres.Store) (authID, estID string) {
	t.Helper()
	ctx := context.Background()
	repos := store.Repositories()
	authID, estID = uuid.NewString(), uuid.NewString()
	now := time.Now().UTC()
	require.NoError(t, repos.Authorizations.Create(ctx, &entity.FiscalAuthorization{
		ID: authID, RUC: "80012345", RUCCheckDigit: "0", TaxpayerType: 2, BusinessName: "Test S.A.",
		Number: authID[:8], ValidFrom: now.AddDate(-1, 0, 0), ValidTo: now.AddDate(1, 0, 0), IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, repos.Establishments.Create(ctx, &entity.Establishment{
		ID: estID, AuthorizationID: authID, Code: "001", ExpeditionCodes: []string{"001", "002"}, CreatedAt: now,
	}))
	return authID, estID
}

func TestMigrate_Idempotente(t *testing.T) {
	pool := setupTestDB(t)
	n, err := postgres.Migrate(context.Background(), pool, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEstablishments_CodigoUnico(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewStore(pool)
	authID, estID := seed(t, store)
	ctx := context.Background()

	est, err := store.Repositories().Establishments.GetByCode(ctx, authID, "001")
	require.NoError(t, err)
	require.NotNil(t, est)
	assert.Equal(t, estID, est.ID)
	assert.Equal(t, []string{"001", "002"}, est.ExpeditionCodes)

	err = store.Repositories().Establishments.Create(ctx, &entity.Establishment{
		ID: uuid.NewString(), AuthorizationID: authID, Code: "001", CreatedAt: time.Now(),
	})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestNumbers_AsignacionConcurrente(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewStore(pool)
	authID, estID := seed(t, store)
	ctx := context.Background()

	alloc := numbering.NewAllocator(store, zerolog.Nop())
	_, err := alloc.GenerateRange(ctx, numbering.GenerateRangeInput{
		AuthorizationID: authID, EstablishmentID: estID, DocType: entity.DocTypeInvoice, Start: 1, End: 20,
	})
	require.NoError(t, err)

	_, err = alloc.GenerateRange(ctx, numbering.GenerateRangeInput{
		AuthorizationID: authID, EstablishmentID: estID, DocType: entity.DocTypeInvoice, Start: 15, End: 30,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateRange)

	const workers = 30
	var (
		mu   sync.Mutex
		seen = map[int64]bool{}
		wg   sync.WaitGroup
		exh  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var rec *entity.NumberRecord
			err := store.RunInTx(ctx, func(repos repository.Repositories) error {
				var err error
				rec, err = alloc.ReserveNextInTx(ctx, repos, estID, entity.DocTypeInvoice, uuid.NewString())
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrPoolExhausted)
				exh++
				return
			}
			assert.False(t, seen[rec.SequenceNumber], "número %d asignado dos veces", rec.SequenceNumber)
			seen[rec.SequenceNumber] = true
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 20)
	assert.Equal(t, workers-20, exh)
}

func TestDocuments_UpdateIfStatusYSecurityCode(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewStore(pool)
	authID, estID := seed(t, store)
	ctx := context.Background()
	repos := store.Repositories()

	now := time.Now().UTC().Truncate(time.Microsecond)
	doc := &entity.Document{
		ID: uuid.NewString(), DocType: entity.DocTypeInvoice, AuthorizationID: authID, EstablishmentID: estID,
		EstablishmentCode: "001", ExpeditionCode: "001", IssueDate: now, Currency: "PYG",
		Counterparty: entity.Counterparty{Name: "Cliente"},
		Base10:       decimal.NewFromInt(10000), VAT10: decimal.NewFromInt(1000),
		RawTotal: decimal.NewFromInt(11000), Total: decimal.NewFromInt(11000), RemainingBalance: decimal.NewFromInt(11000),
		Status: entity.StatusNumbered, BatchState: entity.BatchNone, AuthorityState: entity.AuthorityNone,
		VoidKind: entity.VoidNone, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repos.Documents.Create(ctx, doc))
	require.NoError(t, repos.Documents.CreateLines(ctx, []*entity.DocumentLine{{
		ID: uuid.NewString(), DocumentID: doc.ID, LineNo: 1, Description: "Servicio",
		Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(11000), Percent10: decimal.NewFromInt(100),
		Total: decimal.NewFromInt(11000), Base10: decimal.NewFromInt(10000), VAT10: decimal.NewFromInt(1000),
	}}))

	doc.Status = entity.StatusSigned
	ok, err := repos.Documents.UpdateIfStatus(ctx, doc, entity.StatusNumbered)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repos.Documents.UpdateIfStatus(ctx, doc, entity.StatusNumbered)
	require.NoError(t, err)
	assert.False(t, ok, "el estado ya no es NUMBERED")

	got, err := repos.Documents.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSigned, got.Status)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(11000)))
	assert.Nil(t, got.SequenceNumber)

	lines, err := repos.Documents.GetLines(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Base10.Equal(decimal.NewFromInt(10000)))

	code := uuid.NewString()[:9]
	require.NoError(t, repos.SecurityCodes.Insert(ctx, &entity.SecurityCodeRecord{Code: code, DocumentID: doc.ID, CreatedAt: now}))
	assert.ErrorIs(t, repos.SecurityCodes.Insert(ctx, &entity.SecurityCodeRecord{Code: code, DocumentID: doc.ID, CreatedAt: now}), domain.ErrDuplicate)
}

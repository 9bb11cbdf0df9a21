package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
)

// KuDEUseCase genera la representación gráfica (KuDE) de un documento electrónico.
// Solo se permite si el documento ya tiene CDC (firmado o posterior).
type KuDEUseCase struct {
	store    repository.Store
	renderer DocumentRenderer
}

// NewKuDEUseCase construye el caso de uso.
func NewKuDEUseCase(store repository.Store, renderer DocumentRenderer) *KuDEUseCase {
	return &KuDEUseCase{store: store, renderer: renderer}
}

// Download devuelve el PDF y un nombre de archivo sugerido.
//
// Retorna:
//   - domain.ErrNotFound     si el documento no existe.
//   - domain.ErrInvalidInput si el documento aún no tiene CDC.
func (uc *KuDEUseCase) Download(ctx context.Context, id string) (pdfBytes []byte, filename string, err error) {
	repos := uc.store.Repositories()

	// ── 1. Documento ──────────────────────────────────────────────────────────
	doc, err := repos.Documents.GetByID(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("kude: obtener documento: %w", err)
	}
	if doc == nil {
		return nil, "", domain.ErrNotFound
	}
	if doc.ControlCode == "" {
		return nil, "", fmt.Errorf("%w: el documento está en %s, fírmelo antes de descargar el KuDE",
			domain.ErrInvalidInput, doc.Status)
	}

	// ── 2. Timbrado, establecimiento y líneas ─────────────────────────────────
	auth, err := repos.Authorizations.GetByID(ctx, doc.AuthorizationID)
	if err != nil || auth == nil {
		return nil, "", fmt.Errorf("kude: obtener timbrado: %w", orNotFound(err))
	}
	est, err := repos.Establishments.GetByID(ctx, doc.EstablishmentID)
	if err != nil || est == nil {
		return nil, "", fmt.Errorf("kude: obtener establecimiento: %w", orNotFound(err))
	}
	lines, err := repos.Documents.GetLines(ctx, doc.ID)
	if err != nil {
		return nil, "", fmt.Errorf("kude: obtener líneas: %w", err)
	}

	// ── 3. Generar PDF ────────────────────────────────────────────────────────
	pdfBytes, err = uc.renderer.Render(ctx, RenderInput{
		Document:      doc,
		Lines:         lines,
		Authorization: auth,
		Establishment: est,
		QRLink:        doc.QRLink,
	})
	if err != nil {
		return nil, "", fmt.Errorf("kude: generación fallida: %w", err)
	}
	return pdfBytes, fmt.Sprintf("kude_%s.pdf", doc.ControlCode), nil
}

func orNotFound(err error) error {
	if err != nil {
		return err
	}
	return domain.ErrNotFound
}

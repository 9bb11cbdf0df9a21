package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implementación de DocumentRepository (usable con pool o tx).
type DocumentRepo struct {
	q Querier
}

// NewDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

// documentColumns en el orden de documentArgs y scanDocument. id va primero.
var documentColumns = []string{
	"id", "doc_type", "authorization_id", "establishment_id", "establishment_code", "expedition_code",
	"series", "sequence_number", "number_record_id", "issue_date", "currency",
	"cp_name", "cp_ruc", "cp_ruc_check_digit", "cp_document_number", "cp_email", "cp_address",
	"exempt", "base5", "vat5", "base10", "vat10", "raw_total", "rounding_adjustment", "total", "remaining_balance",
	"status", "batch_state", "authority_state",
	"security_code", "control_code", "signed_ref", "signed_xml", "qr_link", "batch_id", "submitted_at",
	"authority_code", "authority_message", "resolved_at",
	"related_document_id", "void_kind", "void_reason", "voided_at",
	"created_at", "updated_at",
}

var (
	selectDocument = `SELECT ` + selectList(documentColumns) + ` FROM documents`
	insertDocument = `INSERT INTO documents (` + strings.Join(documentColumns, ", ") + `) VALUES (` + placeholders(1, len(documentColumns)) + `)`
	updateDocument = `UPDATE documents SET (` + strings.Join(documentColumns[1:], ", ") + `) = (` + placeholders(2, len(documentColumns)-1) + `) WHERE id = $1`
)

func selectList(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		switch c {
		case "number_record_id", "related_document_id":
			out[i] = "COALESCE(" + c + ", '')"
		default:
			out[i] = c
		}
	}
	return strings.Join(out, ", ")
}

func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}

func documentArgs(d *entity.Document) []any {
	cp := d.Counterparty
	return []any{
		d.ID, int16(d.DocType), d.AuthorizationID, d.EstablishmentID, d.EstablishmentCode, d.ExpeditionCode,
		d.Series, d.SequenceNumber, nullIfEmpty(d.NumberRecordID), d.IssueDate, d.Currency,
		cp.Name, cp.RUC, cp.RUCCheckDigit, cp.DocumentNumber, cp.Email, cp.Address,
		d.Exempt, d.Base5, d.VAT5, d.Base10, d.VAT10, d.RawTotal, d.RoundingAdjustment, d.Total, d.RemainingBalance,
		string(d.Status), string(d.BatchState), string(d.AuthorityState),
		d.SecurityCode, d.ControlCode, d.SignedRef, d.SignedXML, d.QRLink, d.BatchID, d.SubmittedAt,
		d.AuthorityCode, d.AuthorityMessage, d.ResolvedAt,
		nullIfEmpty(d.RelatedDocumentID), string(d.VoidKind), d.VoidReason, d.VoidedAt,
		d.CreatedAt, d.UpdatedAt,
	}
}

func scanDocument(row pgx.Row) (*entity.Document, error) {
	var (
		d                                        entity.Document
		docType                                  int16
		status, batchState, authState, voidKind string
	)
	cp := &d.Counterparty
	err := row.Scan(
		&d.ID, &docType, &d.AuthorizationID, &d.EstablishmentID, &d.EstablishmentCode, &d.ExpeditionCode,
		&d.Series, &d.SequenceNumber, &d.NumberRecordID, &d.IssueDate, &d.Currency,
		&cp.Name, &cp.RUC, &cp.RUCCheckDigit, &cp.DocumentNumber, &cp.Email, &cp.Address,
		&d.Exempt, &d.Base5, &d.VAT5, &d.Base10, &d.VAT10, &d.RawTotal, &d.RoundingAdjustment, &d.Total, &d.RemainingBalance,
		&status, &batchState, &authState,
		&d.SecurityCode, &d.ControlCode, &d.SignedRef, &d.SignedXML, &d.QRLink, &d.BatchID, &d.SubmittedAt,
		&d.AuthorityCode, &d.AuthorityMessage, &d.ResolvedAt,
		&d.RelatedDocumentID, &voidKind, &d.VoidReason, &d.VoidedAt,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.DocType = entity.DocumentType(docType)
	d.Status = entity.DocumentStatus(status)
	d.BatchState = entity.BatchState(batchState)
	d.AuthorityState = entity.AuthorityState(authState)
	d.VoidKind = entity.VoidKind(voidKind)
	return &d, nil
}

func (r *DocumentRepo) queryDocuments(ctx context.Context, query string, args ...any) ([]*entity.Document, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var list []*entity.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

func (r *DocumentRepo) getOne(ctx context.Context, query string, id string) (*entity.Document, error) {
	d, err := scanDocument(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// Create persiste la cabecera del documento.
func (r *DocumentRepo) Create(ctx context.Context, d *entity.Document) error {
	if _, err := r.q.Exec(ctx, insertDocument, documentArgs(d)...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("documento %s: %w", d.ID, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

var lineColumns = []string{
	"id", "document_id", "line_no", "code", "description", "quantity", "unit_price",
	"exempt_percent", "percent5", "percent10", "total", "exempt", "base5", "vat5", "base10", "vat10",
}

// CreateLines inserta las líneas con COPY.
func (r *DocumentRepo) CreateLines(ctx context.Context, lines []*entity.DocumentLine) error {
	if len(lines) == 0 {
		return nil
	}
	_, err := r.q.CopyFrom(ctx, pgx.Identifier{"document_lines"}, lineColumns,
		pgx.CopyFromSlice(len(lines), func(i int) ([]any, error) {
			l := lines[i]
			return []any{l.ID, l.DocumentID, l.LineNo, l.Code, l.Description, l.Quantity, l.UnitPrice,
				l.ExemptPercent, l.Percent5, l.Percent10, l.Total, l.Exempt, l.Base5, l.VAT5, l.Base10, l.VAT10}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy document_lines: %w", err)
	}
	return nil
}

// ReplaceLines borra las líneas del documento e inserta las nuevas.
func (r *DocumentRepo) ReplaceLines(ctx context.Context, documentID string, lines []*entity.DocumentLine) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM document_lines WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete document_lines: %w", err)
	}
	return r.CreateLines(ctx, lines)
}

// GetByID obtiene un documento. (nil, nil) si no existe.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	return r.getOne(ctx, selectDocument+` WHERE id = $1`, id)
}

// GetForUpdate obtiene el documento con SELECT ... FOR UPDATE.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, id string) (*entity.Document, error) {
	return r.getOne(ctx, selectDocument+` WHERE id = $1 FOR UPDATE`, id)
}

// GetLines devuelve las líneas en orden.
func (r *DocumentRepo) GetLines(ctx context.Context, documentID string) ([]*entity.DocumentLine, error) {
	rows, err := r.q.Query(ctx, `SELECT `+strings.Join(lineColumns, ", ")+` FROM document_lines WHERE document_id = $1 ORDER BY line_no`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list document_lines: %w", err)
	}
	defer rows.Close()

	var list []*entity.DocumentLine
	for rows.Next() {
		var l entity.DocumentLine
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.LineNo, &l.Code, &l.Description, &l.Quantity, &l.UnitPrice,
			&l.ExemptPercent, &l.Percent5, &l.Percent10, &l.Total, &l.Exempt, &l.Base5, &l.VAT5, &l.Base10, &l.VAT10); err != nil {
			return nil, fmt.Errorf("scan document_line: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}

// Update persiste todos los campos del documento.
func (r *DocumentRepo) Update(ctx context.Context, d *entity.Document) error {
	tag, err := r.q.Exec(ctx, updateDocument, documentArgs(d)...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("documento %s: %w", d.ID, domain.ErrNotFound)
	}
	return nil
}

// UpdateIfStatus persiste sólo si el estado almacenado sigue siendo expected.
func (r *DocumentRepo) UpdateIfStatus(ctx context.Context, d *entity.Document, expected entity.DocumentStatus) (bool, error) {
	args := append(documentArgs(d), string(expected))
	query := updateDocument + fmt.Sprintf(` AND status = $%d`, len(args))
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update document: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListReadyForBatch bloquea y devuelve documentos SIGNED sin lote; filas ya tomadas por otra
// transacción se saltean.
func (r *DocumentRepo) ListReadyForBatch(ctx context.Context, limit int) ([]*entity.Document, error) {
	return r.queryDocuments(ctx, selectDocument+`
		WHERE status = 'SIGNED' AND batch_state = 'NONE'
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
}

// ListByBatch devuelve los documentos del lote.
func (r *DocumentRepo) ListByBatch(ctx context.Context, batchID string) ([]*entity.Document, error) {
	return r.queryDocuments(ctx, selectDocument+` WHERE batch_id = $1 ORDER BY created_at, id`, batchID)
}

// ListPendingBatchIDs devuelve los lotes con documentos en RECEIVED o PROCESSING.
func (r *DocumentRepo) ListPendingBatchIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT DISTINCT batch_id FROM documents
		WHERE batch_id <> '' AND batch_state IN ('RECEIVED', 'PROCESSING')
		ORDER BY batch_id`)
	if err != nil {
		return nil, fmt.Errorf("list pending batches: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ListStuck devuelve documentos en DISPATCHING enviados antes de before.
func (r *DocumentRepo) ListStuck(ctx context.Context, before time.Time) ([]*entity.Document, error) {
	return r.queryDocuments(ctx, selectDocument+`
		WHERE batch_state = 'DISPATCHING' AND submitted_at < $1
		ORDER BY submitted_at
		FOR UPDATE SKIP LOCKED`, before)
}

package memory

import (
	"context"
	"time"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
)

type documentRepo struct {
	s  *Store
	tx *txn
}

func cloneDocument(d *entity.Document) *entity.Document {
	cp := *d
	if d.SequenceNumber != nil {
		n := *d.SequenceNumber
		cp.SequenceNumber = &n
	}
	cp.SubmittedAt = cloneTime(d.SubmittedAt)
	cp.ResolvedAt = cloneTime(d.ResolvedAt)
	cp.VoidedAt = cloneTime(d.VoidedAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneLines(lines []*entity.DocumentLine) []*entity.DocumentLine {
	out := make([]*entity.DocumentLine, len(lines))
	for i, l := range lines {
		cp := *l
		out[i] = &cp
	}
	return out
}

func (r *documentRepo) Create(_ context.Context, d *entity.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.documents[d.ID]; ok {
		return domain.ErrDuplicate
	}
	r.s.documents[d.ID] = cloneDocument(d)
	id := d.ID
	r.tx.record(func() { delete(r.s.documents, id) })
	return nil
}

func (r *documentRepo) CreateLines(_ context.Context, lines []*entity.DocumentLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, l := range lines {
		docID := l.DocumentID
		prev := r.s.lines[docID]
		r.s.lines[docID] = append(cloneLines(prev), cloneLines([]*entity.DocumentLine{l})...)
		r.tx.record(func() { r.s.lines[docID] = prev })
	}
	return nil
}

func (r *documentRepo) ReplaceLines(_ context.Context, documentID string, lines []*entity.DocumentLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev := r.s.lines[documentID]
	r.s.lines[documentID] = cloneLines(lines)
	r.tx.record(func() { r.s.lines[documentID] = prev })
	return nil
}

func (r *documentRepo) GetByID(_ context.Context, id string) (*entity.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.documents[id]
	if !ok {
		return nil, nil
	}
	return cloneDocument(d), nil
}

// GetForUpdate equivale a GetByID: las transacciones ya son exclusivas.
func (r *documentRepo) GetForUpdate(ctx context.Context, id string) (*entity.Document, error) {
	return r.GetByID(ctx, id)
}

func (r *documentRepo) GetLines(_ context.Context, documentID string) ([]*entity.DocumentLine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := cloneLines(r.s.lines[documentID])
	sortBy(out, func(a, b *entity.DocumentLine) bool { return a.LineNo < b.LineNo })
	return out, nil
}

func (r *documentRepo) Update(_ context.Context, d *entity.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.replaceLocked(d)
}

func (r *documentRepo) UpdateIfStatus(_ context.Context, d *entity.Document, expected entity.DocumentStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.documents[d.ID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if cur.Status != expected {
		return false, nil
	}
	return true, r.replaceLocked(d)
}

func (r *documentRepo) replaceLocked(d *entity.Document) error {
	prev, ok := r.s.documents[d.ID]
	if !ok {
		return domain.ErrNotFound
	}
	written := cloneDocument(d)
	r.s.documents[d.ID] = written
	id := d.ID
	// Sólo se restaura si nadie escribió el documento después (p.ej. la firma, que corre fuera de transacción).
	r.tx.record(func() {
		if r.s.documents[id] == written {
			r.s.documents[id] = prev
		}
	})
	return nil
}

func (r *documentRepo) filter(keep func(d *entity.Document) bool) []*entity.Document {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.Document
	for _, d := range r.s.documents {
		if keep(d) {
			out = append(out, cloneDocument(d))
		}
	}
	sortBy(out, func(a, b *entity.Document) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func (r *documentRepo) ListReadyForBatch(_ context.Context, limit int) ([]*entity.Document, error) {
	out := r.filter(func(d *entity.Document) bool {
		return d.Status == entity.StatusSigned && d.BatchState == entity.BatchNone
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *documentRepo) ListByBatch(_ context.Context, batchID string) ([]*entity.Document, error) {
	return r.filter(func(d *entity.Document) bool { return d.BatchID == batchID }), nil
}

func (r *documentRepo) ListPendingBatchIDs(_ context.Context) ([]string, error) {
	docs := r.filter(func(d *entity.Document) bool {
		return d.BatchID != "" && (d.BatchState == entity.BatchReceived || d.BatchState == entity.BatchProcessing)
	})
	seen := make(map[string]bool)
	var ids []string
	for _, d := range docs {
		if !seen[d.BatchID] {
			seen[d.BatchID] = true
			ids = append(ids, d.BatchID)
		}
	}
	return ids, nil
}

func (r *documentRepo) ListStuck(_ context.Context, before time.Time) ([]*entity.Document, error) {
	return r.filter(func(d *entity.Document) bool {
		return d.BatchState == entity.BatchDispatching && d.SubmittedAt != nil && d.SubmittedAt.Before(before)
	}), nil
}

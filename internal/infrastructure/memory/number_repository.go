package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
)

type numberRepo struct {
	s  *Store
	tx *txn
}

func numberKey(estID string, docType entity.DocumentType, series string, seq int64) string {
	return fmt.Sprintf("%s|%d|%s|%d", estID, docType, series, seq)
}

func cloneNumber(n *entity.NumberRecord) *entity.NumberRecord {
	cp := *n
	if n.ReservedAt != nil {
		t := *n.ReservedAt
		cp.ReservedAt = &t
	}
	if n.ReleasedAt != nil {
		t := *n.ReleasedAt
		cp.ReleasedAt = &t
	}
	return &cp
}

func (r *numberRepo) InsertRange(_ context.Context, records []*entity.NumberRecord) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, rec := range records {
		if _, ok := r.s.numberKeys[numberKey(rec.EstablishmentID, rec.DocType, rec.Series, rec.SequenceNumber)]; ok {
			return 0, fmt.Errorf("%w: número %d", domain.ErrDuplicateRange, rec.SequenceNumber)
		}
	}
	for _, rec := range records {
		key := numberKey(rec.EstablishmentID, rec.DocType, rec.Series, rec.SequenceNumber)
		id := rec.ID
		r.s.numbers[id] = cloneNumber(rec)
		r.s.numberKeys[key] = id
		r.tx.record(func() {
			delete(r.s.numbers, id)
			delete(r.s.numberKeys, key)
		})
	}
	return len(records), nil
}

func (r *numberRepo) CountExisting(_ context.Context, key repository.NumberPoolKey, series string, start, end int64) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, rec := range r.s.numbers {
		if rec.EstablishmentID == key.EstablishmentID && rec.DocType == key.DocType && rec.Series == series &&
			rec.SequenceNumber >= start && rec.SequenceNumber <= end {
			n++
		}
	}
	return n, nil
}

// LockPool no hace nada: las transacciones en memoria ya son exclusivas.
func (r *numberRepo) LockPool(context.Context, repository.NumberPoolKey) error { return nil }

func (r *numberRepo) ListFree(_ context.Context, key repository.NumberPoolKey, limit int) ([]*entity.NumberRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var free []*entity.NumberRecord
	for _, rec := range r.s.numbers {
		if rec.EstablishmentID == key.EstablishmentID && rec.DocType == key.DocType && rec.IsFree() {
			free = append(free, rec)
		}
	}
	sort.Slice(free, func(i, j int) bool {
		if free[i].SequenceNumber != free[j].SequenceNumber {
			return free[i].SequenceNumber < free[j].SequenceNumber
		}
		return free[i].Series < free[j].Series
	})
	if limit > 0 && len(free) > limit {
		free = free[:limit]
	}
	out := make([]*entity.NumberRecord, len(free))
	for i, rec := range free {
		out[i] = cloneNumber(rec)
	}
	return out, nil
}

func (r *numberRepo) GetByID(_ context.Context, id string) (*entity.NumberRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.numbers[id]
	if !ok {
		return nil, nil
	}
	return cloneNumber(rec), nil
}

func (r *numberRepo) Transition(_ context.Context, id, from, to, documentID string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.numbers[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if rec.State != from {
		return false, nil
	}
	prev := cloneNumber(rec)
	next := cloneNumber(rec)
	next.State = to
	next.DocumentID = documentID
	stamp := at
	if to == entity.NumberStateReserved {
		next.ReservedAt = &stamp
	} else {
		next.ReleasedAt = &stamp
	}
	r.s.numbers[id] = next
	r.tx.record(func() {
		if r.s.numbers[id] == next {
			r.s.numbers[id] = prev
		}
	})
	return true, nil
}

func (r *numberRepo) Stats(_ context.Context, key repository.NumberPoolKey) (int, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var free, reserved int
	for _, rec := range r.s.numbers {
		if rec.EstablishmentID != key.EstablishmentID || rec.DocType != key.DocType {
			continue
		}
		if rec.IsFree() {
			free++
		} else {
			reserved++
		}
	}
	return free, reserved, nil
}

type securityCodeRepo struct {
	s  *Store
	tx *txn
}

func (r *securityCodeRepo) Insert(_ context.Context, rec *entity.SecurityCodeRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.securityCodes[rec.Code]; ok {
		return domain.ErrDuplicate
	}
	cp := *rec
	r.s.securityCodes[rec.Code] = &cp
	r.tx.record(func() { delete(r.s.securityCodes, rec.Code) })
	return nil
}

func sortBy[T any](items []T, less func(a, b T) bool) {
	sort.Slice(items, func(i, j int) bool { return less(items[i], items[j]) })
}

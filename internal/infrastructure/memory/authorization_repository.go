package memory

import (
	"context"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
)

type authorizationRepo struct {
	s  *Store
	tx *txn
}

func (r *authorizationRepo) Create(_ context.Context, a *entity.FiscalAuthorization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.authorizations[a.ID]; ok {
		return domain.ErrDuplicate
	}
	cp := *a
	r.s.authorizations[a.ID] = &cp
	r.tx.record(func() { delete(r.s.authorizations, a.ID) })
	return nil
}

func (r *authorizationRepo) GetByID(_ context.Context, id string) (*entity.FiscalAuthorization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.authorizations[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *authorizationRepo) Update(_ context.Context, a *entity.FiscalAuthorization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.authorizations[a.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cp := *a
	r.s.authorizations[a.ID] = &cp
	r.tx.record(func() { r.s.authorizations[a.ID] = prev })
	return nil
}

type establishmentRepo struct {
	s  *Store
	tx *txn
}

func cloneEstablishment(e *entity.Establishment) *entity.Establishment {
	cp := *e
	cp.ExpeditionCodes = append([]string(nil), e.ExpeditionCodes...)
	return &cp
}

func (r *establishmentRepo) Create(_ context.Context, e *entity.Establishment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.establishments[e.ID]; ok {
		return domain.ErrDuplicate
	}
	for _, other := range r.s.establishments {
		if other.AuthorizationID == e.AuthorizationID && other.Code == e.Code {
			return domain.ErrDuplicate
		}
	}
	r.s.establishments[e.ID] = cloneEstablishment(e)
	r.tx.record(func() { delete(r.s.establishments, e.ID) })
	return nil
}

func (r *establishmentRepo) GetByID(_ context.Context, id string) (*entity.Establishment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.establishments[id]
	if !ok {
		return nil, nil
	}
	return cloneEstablishment(e), nil
}

func (r *establishmentRepo) GetByCode(_ context.Context, authorizationID, code string) (*entity.Establishment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, e := range r.s.establishments {
		if e.AuthorizationID == authorizationID && e.Code == code {
			return cloneEstablishment(e), nil
		}
	}
	return nil, nil
}

func (r *establishmentRepo) ListByAuthorization(_ context.Context, authorizationID string) ([]*entity.Establishment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.Establishment
	for _, e := range r.s.establishments {
		if e.AuthorizationID == authorizationID {
			out = append(out, cloneEstablishment(e))
		}
	}
	sortBy(out, func(a, b *entity.Establishment) bool { return a.Code < b.Code })
	return out, nil
}

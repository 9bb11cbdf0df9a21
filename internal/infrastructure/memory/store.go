// Package memory implementa los repositorios en memoria. Se usa en tests y con STORAGE_DRIVER=memory.
// Las transacciones se serializan entre sí y registran un log de deshacer que se aplica ante error.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
)

var _ repository.Store = (*Store)(nil)

// Store guarda todo el estado detrás de un único mutex.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	authorizations map[string]*entity.FiscalAuthorization
	establishments map[string]*entity.Establishment
	numbers        map[string]*entity.NumberRecord
	numberKeys     map[string]string // clave única → id
	securityCodes  map[string]*entity.SecurityCodeRecord
	documents      map[string]*entity.Document
	lines          map[string][]*entity.DocumentLine
}

// New crea un store vacío.
func New() *Store {
	return &Store{
		authorizations: make(map[string]*entity.FiscalAuthorization),
		establishments: make(map[string]*entity.Establishment),
		numbers:        make(map[string]*entity.NumberRecord),
		numberKeys:     make(map[string]string),
		securityCodes:  make(map[string]*entity.SecurityCodeRecord),
		documents:      make(map[string]*entity.Document),
		lines:          make(map[string][]*entity.DocumentLine),
	}
}

// txn acumula las operaciones inversas de una transacción en curso.
type txn struct {
	undo []func()
}

func (t *txn) record(fn func()) {
	if t != nil {
		t.undo = append(t.undo, fn)
	}
}

// Repositories devuelve repositorios sin transacción.
func (s *Store) Repositories() repository.Repositories {
	return s.bind(nil)
}

// RunInTx ejecuta fn de forma exclusiva respecto de otras transacciones.
func (s *Store) RunInTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &txn{}
	if err := fn(s.bind(tx)); err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) bind(tx *txn) repository.Repositories {
	return repository.Repositories{
		Authorizations: &authorizationRepo{s: s, tx: tx},
		Establishments: &establishmentRepo{s: s, tx: tx},
		Numbers:        &numberRepo{s: s, tx: tx},
		SecurityCodes:  &securityCodeRepo{s: s, tx: tx},
		Documents:      &documentRepo{s: s, tx: tx},
	}
}

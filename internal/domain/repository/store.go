package repository

import "context"

// Repositories agrupa los puertos que comparten una misma conexión o transacción.
type Repositories struct {
	Authorizations AuthorizationRepository
	Establishments EstablishmentRepository
	Numbers        NumberRepository
	SecurityCodes  SecurityCodeRepository
	Documents      DocumentRepository
}

// Store entrega repositorios fuera de transacción y ejecuta callbacks transaccionales.
// Si fn devuelve error se hace rollback y ningún cambio queda visible.
type Store interface {
	Repositories() Repositories
	RunInTx(ctx context.Context, fn func(repos Repositories) error) error
}

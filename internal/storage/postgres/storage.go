package postgres

import "database/sql"

// Storage bundles the postgres-backed repositories behind one value so
// the wiring in cmd can hand a single storage.Storage to the service
// layer.
type Storage struct {
	db *sql.DB
	*UserRepository
	*TokenRepository
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		db:              db,
		UserRepository:  NewUserRepository(db),
		TokenRepository: NewTokenRepository(db),
	}
}

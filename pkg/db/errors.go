package db

import "errors"

var (
	ErrEmptyConnectionURL       = errors.New("db: DATABASE_URL is empty")
	ErrFailedToParseDBConfig    = errors.New("db: invalid pool configuration")
	ErrFailedToOpenDBConnection = errors.New("db: unable to connect to postgres")
	ErrHealthcheckFailed        = errors.New("db: ping failed")

	// Migration errors. goose only manages the mailcast tables.
	ErrSetDialect      = errors.New("db: goose rejected the postgres dialect")
	ErrApplyMigrations = errors.New("db: mailcast migrations failed")
)

package models

import "fmt"

var (
	// ErrBusinessIdRequired is returned when the context lacks a business id.
	ErrBusinessIdRequired = fmt.Errorf("business id is required")
	// ErrDBNotInitialized is returned when the DB connection has not been established.
	ErrDBNotInitialized = fmt.Errorf("database not initialized")
)

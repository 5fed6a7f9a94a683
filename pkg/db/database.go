package db

// Database is the common part of template and test databases as reported by the pooling service.
type Database struct {
	TemplateHash string         `json:"templateHash"`
	Config       DatabaseConfig `json:"config"`
}

// TestDatabase is a disposable copy of a finalized template, identified by (TemplateHash, ID).
type TestDatabase struct {
	Database `json:"database"`

	ID int `json:"id"`
}

// TemplateDatabase is the database a fingerprint's schema and seed data get applied to once.
type TemplateDatabase struct {
	Database `json:"database"`
}

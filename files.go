package identity

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

//go:embed data/templates
var templatesFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// GetTemplatesFS returns the email templates shipped with this package
func GetTemplatesFS() embed.FS {
	return templatesFS
}

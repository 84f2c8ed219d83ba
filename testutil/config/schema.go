package config

import "fmt"

// SchemaStatements returns the DDL for the catalog tables, each name carrying
// the given table prefix.
//
// The tables carry no foreign keys: favorites may outlive the book row they
// point at, and loans keep their own snapshot of the book title.
func SchemaStatements(tablePrefix string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %sbooks (
			id                 text PRIMARY KEY,
			title              text NOT NULL,
			authors            text[] NOT NULL DEFAULT '{}',
			first_publish_year integer,
			isbns              text[] NOT NULL DEFAULT '{}',
			metadata           jsonb NOT NULL DEFAULT '{}',
			quantity           integer,
			available_quantity integer,
			created_at         timestamptz NOT NULL DEFAULT now(),
			last_accessed_at   timestamptz NOT NULL DEFAULT now()
		)`, tablePrefix),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]sbooks_title ON %[1]sbooks (title, created_at, id)`, tablePrefix),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %sloans (
			id                   text PRIMARY KEY,
			book_id              text NOT NULL,
			book_title           text NOT NULL,
			admin_id             text NOT NULL,
			admin_name           text NOT NULL,
			admin_email          text NOT NULL,
			borrower_name        text NOT NULL,
			borrower_national_id text NOT NULL,
			loaned_at            timestamptz NOT NULL DEFAULT now(),
			due_at               timestamptz NOT NULL,
			status               text NOT NULL,
			returned_at          timestamptz,
			created_at           timestamptz NOT NULL DEFAULT now()
		)`, tablePrefix),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]sloans_admin ON %[1]sloans (admin_id, created_at DESC)`, tablePrefix),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]sloans_status ON %[1]sloans (status, created_at DESC)`, tablePrefix),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %sfavorites (
			user_id      text NOT NULL,
			book_id      text NOT NULL,
			favorited_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, book_id)
		)`, tablePrefix),
	}
}

// DropSchemaStatements returns the DDL dropping the catalog tables.
func DropSchemaStatements(tablePrefix string) []string {
	return []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %sbooks`, tablePrefix),
		fmt.Sprintf(`DROP TABLE IF EXISTS %sloans`, tablePrefix),
		fmt.Sprintf(`DROP TABLE IF EXISTS %sfavorites`, tablePrefix),
	}
}

// TruncateStatements returns statements emptying the catalog tables between
// test cases.
func TruncateStatements(tablePrefix string) []string {
	return []string{
		fmt.Sprintf(`TRUNCATE TABLE %sbooks`, tablePrefix),
		fmt.Sprintf(`TRUNCATE TABLE %sloans`, tablePrefix),
		fmt.Sprintf(`TRUNCATE TABLE %sfavorites`, tablePrefix),
	}
}

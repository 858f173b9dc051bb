package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsureSchemaMSSQL creates dbo.posts and dbo.linkedin_credentials for SQL Server if they do not exist.
func EnsureSchemaMSSQL(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	createIfMissing := func(table, ddl string) error {
		q := fmt.Sprintf(`IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'%s') AND type in (N'U'))
BEGIN
%s
END`, table, ddl)
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create %s (mssql): %w", table, err)
		}
		return nil
	}

	if err := createIfMissing("dbo.posts", `    CREATE TABLE dbo.[posts] (
        id NVARCHAR(64) NOT NULL PRIMARY KEY,
        user_id NVARCHAR(128) NOT NULL,
        content NVARCHAR(MAX) NOT NULL,
        topic NVARCHAR(255) NOT NULL DEFAULT '',
        tone NVARCHAR(32) NOT NULL DEFAULT 'professional',
        keywords NVARCHAR(MAX) NOT NULL DEFAULT '[]',
        created_at DATETIME2 NOT NULL,
        is_scheduled BIT NOT NULL DEFAULT 0,
        scheduled_for DATETIME2 NULL,
        timezone NVARCHAR(64) NULL,
        is_published BIT NOT NULL DEFAULT 0,
        published_at DATETIME2 NULL,
        linkedin_post_id NVARCHAR(255) NULL,
        status NVARCHAR(32) NULL,
        error NVARCHAR(MAX) NULL,
        likes INT NOT NULL DEFAULT 0,
        comments INT NOT NULL DEFAULT 0,
        shares INT NOT NULL DEFAULT 0
    );
    CREATE INDEX IX_posts_due ON dbo.[posts](is_scheduled, is_published, scheduled_for);
    CREATE INDEX IX_posts_user_created ON dbo.[posts](user_id, created_at);`); err != nil {
		return err
	}
	return createIfMissing("dbo.linkedin_credentials", `    CREATE TABLE dbo.[linkedin_credentials] (
        id NVARCHAR(64) NOT NULL PRIMARY KEY,
        user_id NVARCHAR(128) NOT NULL,
        access_token NVARCHAR(MAX) NOT NULL,
        refresh_token NVARCHAR(MAX) NULL,
        expires_at DATETIME2 NOT NULL,
        profile NVARCHAR(MAX) NULL,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE UNIQUE INDEX UX_linkedin_credentials_user ON dbo.[linkedin_credentials](user_id);`)
}

package persistence

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"linkedpost/infrastructure/configuration"

	_ "github.com/lib/pq"
)

// NewPostgreSQLDB opens the PostgreSQL pool described by configuration.C.Database.Psql.
func NewPostgreSQLDB() (*sql.DB, error) {
	cfg := configuration.C.Database.Psql
	db, err := sql.Open("postgres", postgresDSN(cfg))
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func postgresDSN(cfg configuration.Db) string {
	q := url.Values{}
	q.Set("sslmode", "disable")
	if cfg.Host != "localhost" && cfg.Host != "127.0.0.1" && cfg.Host != "" {
		q.Set("sslmode", "require")
	}
	u := &url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}

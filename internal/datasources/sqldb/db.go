package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

const mysqlParamStr string = "?parseTime=true"

// Connect opens and pings a database for the given driver, "mysql" or
// "postgres".
func Connect(ctx context.Context, driver, uri string) (*sql.DB, error) {
	if driver == "mysql" {
		uri += mysqlParamStr
	}

	db, err := sql.Open(driver, uri)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s DB: %w", driver, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	err = db.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking %s DB connection: %w", driver, err)
	}

	return db, nil
}

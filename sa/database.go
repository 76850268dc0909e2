// Package sa implements CredentialStore (component G): durable
// storage of parties, credentials, status lists, and the idempotency
// cache, over MySQL via borp.
package sa

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/letsencrypt/borp"

	"github.com/88448844/self-sovereign-identity-SSI/log"
)

var dialectMap = map[string]borp.Dialect{
	"mysql": borp.MySQLDialect{Engine: "InnoDB", Encoding: "UTF8MB4"},
}

// NewDbMap opens driver/dsn, pings it, and returns a borp.DbMap with
// every table this package owns mapped onto it.
func NewDbMap(driver, dsn string, logger log.Logger) (*borp.DbMap, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sa: opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sa: pinging database: %w", err)
	}
	logger.Info(fmt.Sprintf("sa: connected to %s database", driver))

	dialect, ok := dialectMap[driver]
	if !ok {
		return nil, fmt.Errorf("sa: no dialect registered for driver %q", driver)
	}

	dbMap := &borp.DbMap{Db: db, Dialect: dialect, TypeConverter: jsonTypeConverter{}}
	initTables(dbMap)
	return dbMap, nil
}

// initTables constructs borp's table map. Call CreateTablesIfNotExists
// on the returned DbMap (or run an external migration) to materialize
// the schema; this package never does that itself in production.
func initTables(dbMap *borp.DbMap) {
	dbMap.AddTableWithName(partyModel{}, "parties").SetKeys(true, "ID")
	dbMap.AddTableWithName(credentialModel{}, "credentials").SetKeys(false, "ID")
	dbMap.AddTableWithName(statusListModel{}, "statuslists").SetKeys(false, "ListID")
	dbMap.AddTableWithName(idempotencyModel{}, "idempotency_entries").SetKeys(true, "ID")
}

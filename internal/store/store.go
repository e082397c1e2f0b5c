// Package store implements the indexed key-value store described in spec
// §4.6: named collections of JSON documents, secondary indexes declared by
// JSON path, ordered range queries, and three transaction flavors.
//
// It is built directly on go.mau.fi/util/dbutil, the same thin SQL wrapper
// the teacher repo uses for its own persistence (pkg/connector/memorystore.go,
// pkg/simpleruntime/bridge_state_backend.go), backed by mattn/go-sqlite3.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/util/dbutil"

	"github.com/rs/zerolog"
)

// Index declares a secondary index on a collection: a name, the JSON path
// into each stored document whose value is indexed, and whether the index
// enforces uniqueness.
type Index struct {
	Name   string
	Path   string
	Unique bool
}

// CollectionSpec declares a collection's name and its secondary indexes.
type CollectionSpec struct {
	Name    string
	Indexes []Index
}

// Database is a versioned set of collections, each an indexed JSON document
// table, opened against a single SQLite file (or :memory:).
type Database struct {
	raw     *dbutil.Database
	log     zerolog.Logger
	specs   map[string]CollectionSpec
	version int
}

// Open opens (creating if necessary) the database at path, running an
// upgrade transaction if the stored schema version is below version.
// path may be ":memory:" for ephemeral/test databases.
func Open(ctx context.Context, path string, version int, specs []CollectionSpec, log zerolog.Logger) (*Database, error) {
	rawDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	wrapped, err := dbutil.NewWithDB(rawDB, "sqlite3")
	if err != nil {
		return nil, fmt.Errorf("store: wrap sqlite: %w", err)
	}
	d := &Database{
		raw:     wrapped,
		log:     log,
		specs:   make(map[string]CollectionSpec, len(specs)),
		version: version,
	}
	for _, spec := range specs {
		d.specs[spec.Name] = spec
	}
	if err := d.upgrade(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Database) upgrade(ctx context.Context) error {
	if _, err := d.raw.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_meta (id INTEGER PRIMARY KEY CHECK (id=0), version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("store: ensure schema_meta: %w", err)
	}
	current := 0
	row := d.raw.QueryRow(ctx, `SELECT version FROM schema_meta WHERE id=0`)
	if err := row.Scan(&current); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("store: read schema version: %w", err)
	}
	if current >= d.version {
		return nil
	}
	d.log.Info().Int("from", current).Int("to", d.version).Msg("running store upgrade transaction")
	err := d.raw.DoTxn(ctx, nil, func(ctx context.Context) error {
		for name, spec := range d.specs {
			if err := d.createCollection(ctx, name, spec); err != nil {
				return err
			}
		}
		_, err := d.raw.Exec(ctx,
			`INSERT INTO schema_meta (id, version) VALUES (0, $1)
			 ON CONFLICT (id) DO UPDATE SET version=excluded.version`,
			d.version,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("store: upgrade transaction: %w", err)
	}
	return nil
}

func tableName(collection string) string { return "collection_" + collection }

func (d *Database) createCollection(ctx context.Context, name string, spec CollectionSpec) error {
	table := tableName(name)
	_, err := d.raw.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, value BLOB NOT NULL)`, table))
	if err != nil {
		return fmt.Errorf("store: create collection %s: %w", name, err)
	}
	for _, idx := range spec.Indexes {
		col := indexColumn(idx.Name)
		if _, err := d.raw.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s TEXT`, table, col)); err != nil {
			// SQLite has no "ADD COLUMN IF NOT EXISTS"; ignore the duplicate-column error.
			if !isDuplicateColumn(err) {
				return fmt.Errorf("store: add index column %s.%s: %w", name, idx.Name, err)
			}
		}
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		ddl := fmt.Sprintf(`CREATE %sINDEX IF NOT EXISTS idx_%s_%s ON %s (%s)`, unique, name, idx.Name, table, col)
		if _, err := d.raw.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("store: create index %s.%s: %w", name, idx.Name, err)
		}
	}
	return nil
}

func indexColumn(name string) string { return "idx_" + name }

func isDuplicateColumn(err error) bool {
	return err != nil && (containsFold(err.Error(), "duplicate column") || containsFold(err.Error(), "already exists"))
}

func containsFold(s, substr string) bool {
	return len(s) >= len(substr) && indexFold(s, substr) >= 0
}

func indexFold(s, substr string) int {
	// small helper to avoid importing strings.Contains twice in hot path files
	n := len(s) - len(substr)
	for i := 0; i <= n; i++ {
		if equalFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Tx is a transaction opened against an explicit set of collections. A
// collection accessed outside that set returns ErrCollectionNotOpened.
type Tx struct {
	ctx     context.Context
	db      *Database
	allowed map[string]bool
	readonly bool
}

// ErrCollectionNotOpened is returned when a Tx accesses a collection it was
// not opened against.
var ErrCollectionNotOpened = fmt.Errorf("store: collection not opened in this transaction")

// ErrKeyExists is returned by Collection.Set when the key is already present.
var ErrKeyExists = fmt.Errorf("store: key already exists")

// View opens a read-only transaction against the named collections. Callers
// may run any number of Views concurrently.
func (d *Database) View(ctx context.Context, collections []string, fn func(tx *Tx) error) error {
	return d.runTxn(ctx, collections, true, fn)
}

// Update opens a read-write transaction against the named collections,
// serializable against other Updates on this database.
func (d *Database) Update(ctx context.Context, collections []string, fn func(tx *Tx) error) error {
	return d.runTxn(ctx, collections, false, fn)
}

func (d *Database) runTxn(ctx context.Context, collections []string, readonly bool, fn func(tx *Tx) error) error {
	allowed := make(map[string]bool, len(collections))
	for _, c := range collections {
		allowed[c] = true
	}
	return d.raw.DoTxn(ctx, nil, func(txCtx context.Context) error {
		tx := &Tx{ctx: txCtx, db: d, allowed: allowed, readonly: readonly}
		return fn(tx)
	})
}

// Collection returns a handle scoped to this transaction.
func (tx *Tx) Collection(name string) (*Collection, error) {
	if !tx.allowed[name] {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotOpened, name)
	}
	spec, ok := tx.db.specs[name]
	if !ok {
		return nil, fmt.Errorf("store: unknown collection %s", name)
	}
	return &Collection{tx: tx, name: name, spec: spec}, nil
}

// Collection is a handle to one collection's documents within a Tx.
type Collection struct {
	tx   *Tx
	name string
	spec CollectionSpec
}

func (c *Collection) table() string { return tableName(c.name) }

// Get returns the raw JSON value stored at key.
func (c *Collection) Get(key string) ([]byte, bool, error) {
	row := c.tx.db.raw.QueryRow(c.tx.ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key=$1`, c.table()), key)
	var value []byte
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

// Contains reports whether key is present.
func (c *Collection) Contains(key string) (bool, error) {
	_, ok, err := c.Get(key)
	return ok, err
}

// AllKeys returns every key in the collection.
func (c *Collection) AllKeys() ([]string, error) {
	rows, err := c.tx.db.raw.Query(c.tx.ctx, fmt.Sprintf(`SELECT key FROM %s ORDER BY key`, c.table()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Set inserts value at key, failing if key already exists.
func (c *Collection) Set(key string, value []byte) error {
	if c.tx.readonly {
		return fmt.Errorf("store: Set called in a read-only transaction")
	}
	if err := c.checkUniqueIndexes(key, value, false); err != nil {
		return err
	}
	_, err := c.tx.db.raw.Exec(c.tx.ctx,
		fmt.Sprintf(`INSERT INTO %s (key, value%s) VALUES ($1, $2%s)`, c.table(), c.indexColumnList(), c.indexPlaceholderList(3)),
		append([]any{key, value}, c.indexValues(value)...)...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrKeyExists
		}
		return err
	}
	return nil
}

// Put inserts or replaces value at key.
func (c *Collection) Put(key string, value []byte) error {
	if c.tx.readonly {
		return fmt.Errorf("store: Put called in a read-only transaction")
	}
	if err := c.checkUniqueIndexes(key, value, true); err != nil {
		return err
	}
	cols := "key, value" + c.indexColumnList()
	placeholders := "$1, $2" + c.indexPlaceholderList(3)
	updates := "value=excluded.value" + c.indexUpdateList()
	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (key) DO UPDATE SET %s`,
		c.table(), cols, placeholders, updates,
	)
	_, err := c.tx.db.raw.Exec(c.tx.ctx, query, append([]any{key, value}, c.indexValues(value)...)...)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("store: unique index violation on put: %w", err)
	}
	return err
}

// Delete removes key, if present.
func (c *Collection) Delete(key string) error {
	if c.tx.readonly {
		return fmt.Errorf("store: Delete called in a read-only transaction")
	}
	_, err := c.tx.db.raw.Exec(c.tx.ctx, fmt.Sprintf(`DELETE FROM %s WHERE key=$1`, c.table()), key)
	return err
}

// Truncate removes every entry from the collection.
func (c *Collection) Truncate() error {
	if c.tx.readonly {
		return fmt.Errorf("store: Truncate called in a read-only transaction")
	}
	_, err := c.tx.db.raw.Exec(c.tx.ctx, fmt.Sprintf(`DELETE FROM %s`, c.table()))
	return err
}

// GetAll returns the values matching query, ordered by direction, capped at
// limit (0 means unlimited).
func (c *Collection) GetAll(q Query, direction Direction, limit int) ([][]byte, error) {
	return c.GetAllFiltered(q, direction, limit, nil)
}

// GetAllFiltered is GetAll with an additional in-process predicate applied
// after decoding each row but before it counts against limit.
func (c *Collection) GetAllFiltered(q Query, direction Direction, limit int, predicate func([]byte) bool) ([][]byte, error) {
	column := "key"
	if q.index != "" {
		column = indexColumn(q.index)
	}
	n := 0
	placeholder := func() string {
		n++
		return fmt.Sprintf("$%d", n)
	}
	where, args := q.whereClause(column, placeholder)
	order := "ASC"
	if direction == Backward {
		order = "DESC"
	}
	query := fmt.Sprintf(`SELECT value FROM %s WHERE %s ORDER BY %s %s`, c.table(), where, column, order)
	rows, err := c.tx.db.raw.Query(c.tx.ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out [][]byte
	for rows.Next() {
		var value []byte
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		if predicate != nil && !predicate(value) {
			continue
		}
		out = append(out, value)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

func (c *Collection) indexColumnList() string {
	var s string
	for _, idx := range c.spec.Indexes {
		s += ", " + indexColumn(idx.Name)
	}
	return s
}

func (c *Collection) indexPlaceholderList(start int) string {
	var s string
	for i := range c.spec.Indexes {
		s += fmt.Sprintf(", $%d", start+i)
	}
	return s
}

func (c *Collection) indexUpdateList() string {
	var s string
	for _, idx := range c.spec.Indexes {
		col := indexColumn(idx.Name)
		s += fmt.Sprintf(", %s=excluded.%s", col, col)
	}
	return s
}

func (c *Collection) indexValues(value []byte) []any {
	values := make([]any, len(c.spec.Indexes))
	for i, idx := range c.spec.Indexes {
		result := gjson.GetBytes(value, idx.Path)
		if result.Exists() {
			values[i] = result.String()
		} else {
			values[i] = nil
		}
	}
	return values
}

// checkUniqueIndexes performs an application-level pre-check for unique
// index violations so Set/Put can return a clear error; the UNIQUE SQL
// index remains the source of truth and catches any race.
func (c *Collection) checkUniqueIndexes(key string, value []byte, allowSelf bool) error {
	for _, idx := range c.spec.Indexes {
		if !idx.Unique {
			continue
		}
		result := gjson.GetBytes(value, idx.Path)
		if !result.Exists() {
			continue
		}
		col := indexColumn(idx.Name)
		row := c.tx.db.raw.QueryRow(c.tx.ctx,
			fmt.Sprintf(`SELECT key FROM %s WHERE %s=$1`, c.table(), col), result.String())
		var existing string
		err := row.Scan(&existing)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return err
		}
		if allowSelf && existing == key {
			continue
		}
		return fmt.Errorf("store: unique index %s violated by value %q", idx.Name, result.String())
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && containsFold(err.Error(), "unique")
}

// SetIndexedField is a convenience for repositories that need to patch a
// single JSON field of an existing document without a full read-modify-write,
// using sjson to splice the path in place.
func SetIndexedField(value []byte, path string, v any) ([]byte, error) {
	return sjson.SetBytes(value, path, v)
}

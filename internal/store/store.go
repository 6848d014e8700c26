// Package store persists extracted records as JSON elements in a SQLite
// database. Every element carries an id of the form "<kind>--<uuid>" and a
// "type" field naming its kind. Elements of a known kind are validated
// against a JSON schema before they are inserted.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/fatih/structs"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/qri-io/jsonschema"
	"github.com/stoewer/go-strcase"
	"github.com/tidwall/gjson"
	_ "modernc.org/sqlite" // database/sql driver "sqlite"

	"github.com/joshuapare/hiveartifacts/internal/sink"
)

const (
	discriminator = "type"
	idField       = "id"

	// applicationID marks the database file as an artifact store.
	applicationID = 0x48415254
	schemaVersion = 1

	timeFormat = "2006-01-02T15:04:05.000Z"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Element is one stored record in its JSON form.
type Element []byte

// Get returns the field at the gjson path p.
func (e Element) Get(p string) gjson.Result { return gjson.GetBytes(e, p) }

// ID returns the element id.
func (e Element) ID() string { return e.Get(idField).String() }

// Kind returns the element type.
func (e Element) Kind() string { return e.Get(discriminator).String() }

// ValidationError lists the schema violations of a rejected element.
type ValidationError struct {
	Kind  string
	Flaws []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s element: %s", e.Kind, strings.Join(e.Flaws, "; "))
}

// Store is an open element database. It is safe for concurrent use.
type Store struct {
	db *sql.DB

	// mu guards schemas, which are not safe for concurrent validation, and
	// closed.
	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
	closed  bool
}

// Open opens or creates the database at dbPath.
func Open(dbPath string) (*Store, error) {
	schemas, err := loadSchemas()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, schemas: schemas}
	if err := s.setup(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) setup() error {
	stmts := []string{
		fmt.Sprintf("PRAGMA application_id = %d", applicationID),
		fmt.Sprintf("PRAGMA user_version = %d", schemaVersion),
		`CREATE TABLE IF NOT EXISTS elements (
			id          TEXT PRIMARY KEY NOT NULL,
			type        TEXT NOT NULL,
			json        TEXT NOT NULL,
			insert_time TEXT NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS elements_type ON elements (type)",
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "setup: %s", strings.Fields(stmt)[0])
		}
	}
	return nil
}

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, errors.Wrap(err, "read schemas")
	}
	out := make(map[string]*jsonschema.Schema, len(entries))
	for _, entry := range entries {
		content, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, errors.Wrap(err, "read schema")
		}
		schema := &jsonschema.Schema{}
		if err := json.Unmarshal(content, schema); err != nil {
			return nil, errors.Wrapf(err, "parse schema %s", entry.Name())
		}
		out[strings.TrimSuffix(entry.Name(), ".json")] = schema
	}
	return out, nil
}

// Insert stores rec and returns its id. Struct field names become snake_case
// keys; a `structs` tag overrides the name.
func (s *Store) Insert(ctx context.Context, rec sink.Record) (string, error) {
	kind := rec.Kind()
	m := structs.Map(rec)
	fields := make(map[string]interface{}, len(m)+2)
	for k, v := range m {
		fields[strcase.SnakeCase(k)] = v
	}
	id := kind + "--" + uuid.New().String()
	fields[idField] = id
	fields[discriminator] = kind

	element, err := json.Marshal(fields)
	if err != nil {
		return "", errors.Wrap(err, "marshal element")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", sink.ErrClosed
	}
	if err := s.validate(ctx, kind, element); err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO elements (id, type, json, insert_time) VALUES (?, ?, ?, ?)",
		id, kind, string(element), time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return "", errors.Wrapf(err, "insert %s", id)
	}
	return id, nil
}

func (s *Store) validate(ctx context.Context, kind string, element []byte) error {
	schema, ok := s.schemas[kind]
	if !ok {
		return nil
	}
	errs, err := schema.ValidateBytes(ctx, element)
	if err != nil {
		return errors.Wrapf(err, "validate %s", kind)
	}
	if len(errs) == 0 {
		return nil
	}
	verr := &ValidationError{Kind: kind}
	for _, e := range errs {
		verr.Flaws = append(verr.Flaws, e.Error())
	}
	return verr
}

// Get returns the element with the given id.
func (s *Store) Get(ctx context.Context, id string) (Element, error) {
	elements, err := s.query(ctx, "SELECT json FROM elements WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, errors.Errorf("element %s does not exist", id)
	}
	return elements[0], nil
}

// Select returns every element of kind in insertion order. An empty kind
// selects all elements.
func (s *Store) Select(ctx context.Context, kind string) ([]Element, error) {
	if kind == "" {
		return s.query(ctx, "SELECT json FROM elements ORDER BY rowid")
	}
	return s.query(ctx, "SELECT json FROM elements WHERE type = ? ORDER BY rowid", kind)
}

// Count returns the number of elements of each kind.
func (s *Store) Count(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT type, COUNT(*) FROM elements GROUP BY type")
	if err != nil {
		return nil, errors.Wrap(err, "count elements")
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, errors.Wrap(err, "scan count")
		}
		out[kind] = n
	}
	return out, errors.Wrap(rows.Err(), "count elements")
}

func (s *Store) query(ctx context.Context, q string, args ...interface{}) ([]Element, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query elements")
	}
	defer rows.Close()

	elements := []Element{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, errors.Wrap(err, "scan element")
		}
		elements = append(elements, Element(text))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "query elements")
	}
	return elements, nil
}

// Close closes the database. Further inserts fail with sink.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return errors.Wrap(s.db.Close(), "close database")
}

// Table returns a sink.Table that inserts into s. Closing the table leaves
// the store open so several extractions can share it.
func (s *Store) Table(ctx context.Context) sink.Table {
	return &table{ctx: ctx, s: s}
}

type table struct {
	ctx context.Context
	s   *Store
}

func (t *table) Write(rec sink.Record) error {
	_, err := t.s.Insert(t.ctx, rec)
	return err
}

func (t *table) Close() error { return nil }

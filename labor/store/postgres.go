package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/acme-health/labor/core/csql"
	"github.com/acme-health/labor/core/logger"
	"github.com/acme-health/labor/labor"
)

// Postgres keeps laboratory records in a single table: the aggregate as a
// JSONB document, the owner and the version as plain columns. The version
// column is authoritative for optimistic locking.
type Postgres struct {
	db       *csql.DB
	timeouts Timeouts
}

// NewPostgres creates the labor table if it does not exist yet.
func NewPostgres(db *csql.DB, timeouts Timeouts) (*Postgres, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + db.Schema + `."labor"
(labor_id uuid NOT NULL DEFAULT uuid_generate_v4(),
version INTEGER NOT NULL DEFAULT 0,
username varchar NOT NULL DEFAULT '',
document json NOT NULL,
created_at timestamp NOT NULL DEFAULT now(),
updated_at timestamp NOT NULL DEFAULT now(),
PRIMARY KEY(labor_id)
);`)
	if err != nil {
		return nil, err
	}
	return &Postgres{db: db, timeouts: timeouts}, nil
}

func (p *Postgres) table() string {
	return p.db.Schema + `."labor"`
}

func marshalDocument(l *labor.Labor) ([]byte, error) {
	doc := *l
	doc.Username = ""
	doc.User = nil
	return json.Marshal(doc)
}

func scanLabor(row interface{ Scan(...any) error }) (*labor.Labor, error) {
	var (
		id       uuid.UUID
		version  int
		username string
		document []byte
		created  time.Time
		updated  time.Time
	)
	if err := row.Scan(&id, &version, &username, &document, &created, &updated); err != nil {
		return nil, err
	}
	var l labor.Labor
	if err := json.Unmarshal(document, &l); err != nil {
		return nil, err
	}
	l.ID = id
	l.Version = version
	l.Username = username
	l.Erzeugt = created
	l.Aktualisiert = updated
	return &l, nil
}

const laborColumns = `labor_id, version, username, document, created_at, updated_at`

// FindByID returns the record or ErrNotFound.
func (p *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*labor.Labor, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Short)
	defer cancel()

	row := p.db.QueryRowContext(ctx, `SELECT `+laborColumns+` FROM `+p.table()+` WHERE labor_id = $1;`, id)
	l, err := scanLabor(row)
	if err == csql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, asStoreError(err)
	}
	return l, nil
}

// FindAll returns every record.
func (p *Postgres) FindAll(ctx context.Context) ([]labor.Labor, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Short)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `SELECT `+laborColumns+` FROM `+p.table()+` ORDER BY created_at;`)
	if err != nil {
		return nil, asStoreError(err)
	}
	defer rows.Close()
	return collectLabore(rows)
}

// FindByCriteria returns every record matching all criteria. The criteria
// expressions are postgres regular expressions on JSON document fields.
func (p *Postgres) FindByCriteria(ctx context.Context, criteria []Criterion) ([]labor.Labor, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Long)
	defer cancel()

	var conditions []string
	var args []any
	for _, criterion := range criteria {
		column := documentField(criterion.Field)
		if column == "" {
			return []labor.Labor{}, nil
		}
		operator := "~"
		if criterion.IgnoreCase {
			operator = "~*"
		}
		args = append(args, criterion.Expr)
		conditions = append(conditions, fmt.Sprintf("%s %s $%d", column, operator, len(args)))
	}
	query := `SELECT ` + laborColumns + ` FROM ` + p.table()
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at;`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, asStoreError(err)
	}
	defer rows.Close()
	return collectLabore(rows)
}

// documentField maps a criterion field to its JSON path in the document
// column. Unknown fields map to the empty string.
func documentField(field string) string {
	switch field {
	case FieldName:
		return `document->>'name'`
	case FieldTelefonnummer:
		return `document->>'telefonnummer'`
	case FieldFax:
		return `document->>'fax'`
	case FieldPlz:
		return `document->'adresse'->>'plz'`
	case FieldOrt:
		return `document->'adresse'->>'ort'`
	}
	return ""
}

// Insert persists a new record with version 0.
func (p *Postgres) Insert(ctx context.Context, l *labor.Labor) (*labor.Labor, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Short)
	defer cancel()

	document, err := marshalDocument(l)
	if err != nil {
		return nil, err
	}
	id := l.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	created := *l
	created.ID = id
	err = p.db.QueryRowContext(ctx, `INSERT INTO `+p.table()+`(labor_id, username, document)
VALUES($1, $2, $3)
RETURNING version, created_at, updated_at;`,
		id, l.Username, document).Scan(&created.Version, &created.Erzeugt, &created.Aktualisiert)
	if err != nil {
		return nil, asStoreError(err)
	}
	created.User = nil
	logger.FromContext(ctx).Debugf("insert labor %s version %d", created.ID, created.Version)
	return &created, nil
}

// Update writes the record if the stored version matches expectedVersion.
// A version mismatch on an existing record yields ErrVersionOutdated.
func (p *Postgres) Update(ctx context.Context, l *labor.Labor, expectedVersion int) (*labor.Labor, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Short)
	defer cancel()

	document, err := marshalDocument(l)
	if err != nil {
		return nil, err
	}

	updated := *l
	err = p.db.QueryRowContext(ctx, `UPDATE `+p.table()+` SET
version = version + 1, username = $3, document = $4, updated_at = now()
WHERE labor_id = $1 AND version = $2
RETURNING version, created_at, updated_at;`,
		l.ID, expectedVersion, l.Username, document).Scan(&updated.Version, &updated.Erzeugt, &updated.Aktualisiert)
	if err == csql.ErrNoRows {
		exists, existsErr := p.Exists(ctx, l.ID)
		if existsErr != nil {
			return nil, asStoreError(existsErr)
		}
		if exists {
			return nil, ErrVersionOutdated
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, asStoreError(err)
	}
	updated.User = nil
	logger.FromContext(ctx).Debugf("update labor %s version %d", updated.ID, updated.Version)
	return &updated, nil
}

// DeleteByID removes the record and returns the number of records removed.
func (p *Postgres) DeleteByID(ctx context.Context, id uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Short)
	defer cancel()

	res, err := p.db.ExecContext(ctx, `DELETE FROM `+p.table()+` WHERE labor_id = $1;`, id)
	if err != nil {
		return 0, asStoreError(err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists reports whether a record exists for the id.
func (p *Postgres) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Short)
	defer cancel()

	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM `+p.table()+` WHERE labor_id = $1);`, id).Scan(&exists)
	if err != nil {
		return false, asStoreError(err)
	}
	return exists, nil
}

// DistinctNamesByPrefix returns the distinct laboratory names starting
// with the prefix, case-insensitively.
func (p *Postgres) DistinctNamesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Long)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT document->>'name' FROM `+p.table()+`
WHERE document->>'name' ~* $1 ORDER BY 1;`, "^"+regexp.QuoteMeta(prefix))
	if err != nil {
		return nil, asStoreError(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, asStoreError(rows.Err())
}

// VersionByID returns the current version of the record or ErrNotFound.
func (p *Postgres) VersionByID(ctx context.Context, id uuid.UUID) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Short)
	defer cancel()

	var version int
	err := p.db.QueryRowContext(ctx, `SELECT version FROM `+p.table()+` WHERE labor_id = $1;`, id).Scan(&version)
	if err == csql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, asStoreError(err)
	}
	return version, nil
}

func collectLabore(rows *sql.Rows) ([]labor.Labor, error) {
	result := []labor.Labor{}
	for rows.Next() {
		l, err := scanLabor(rows)
		if err != nil {
			return nil, asStoreError(err)
		}
		result = append(result, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, asStoreError(err)
	}
	return result, nil
}

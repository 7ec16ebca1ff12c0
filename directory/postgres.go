package directory

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/acme-health/labor/core/csql"
)

// Postgres keeps accounts in an account table with a jsonb roles column.
type Postgres struct {
	db *csql.DB
}

// NewPostgres creates the account table if it does not exist yet.
func NewPostgres(db *csql.DB) (*Postgres, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + db.Schema + `."account"
(account_id uuid NOT NULL DEFAULT uuid_generate_v4(),
username varchar NOT NULL,
password varchar NOT NULL,
roles json NOT NULL DEFAULT '[]'::json,
created_at timestamp NOT NULL DEFAULT now(),
PRIMARY KEY(account_id),
UNIQUE(username)
);`)
	if err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) table() string {
	return p.db.Schema + `."account"`
}

// FindByUsername returns the account or ErrNotFound.
func (p *Postgres) FindByUsername(ctx context.Context, username string) (*Account, error) {
	account := Account{}
	var roles []byte
	err := p.db.QueryRowContext(ctx, `SELECT account_id, username, password, roles, created_at
FROM `+p.table()+` WHERE username = $1;`, CanonicalUsername(username)).
		Scan(&account.ID, &account.Username, &account.Password, &roles, &account.Created)
	if err == csql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(roles, &account.Roles); err != nil {
		return nil, err
	}
	return &account, nil
}

// Create stores a new account or returns ErrUsernameTaken.
func (p *Postgres) Create(ctx context.Context, username, password string, roles []string) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []string{}
	}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return nil, err
	}

	account := Account{
		ID:       uuid.New(),
		Username: CanonicalUsername(username),
		Password: string(hash),
		Roles:    roles,
	}
	err = p.db.QueryRowContext(ctx, `INSERT INTO `+p.table()+`(account_id, username, password, roles)
VALUES($1, $2, $3, $4)
RETURNING created_at;`,
		account.ID, account.Username, account.Password, rolesJSON).Scan(&account.Created)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

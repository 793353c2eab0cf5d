package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver registration.
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"autoreply/internal/model"
	"autoreply/migrations"
)

// Supported values for the database driver setting.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	botColumns     = `id, owner_id, name, account_id, username, access_token, is_active, created_at, updated_at`
	keywordColumns = `id, bot_id, trigger_text, response, is_active, created_at`
	messageColumns = `id, bot_id, sender_id, sender_username, message_text, bot_response, matched_keyword, created_at`
)

// Store implements Storage on top of SQLite or PostgreSQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New opens the database identified by driver and dsn and runs pending migrations.
func New(driver, dsn string) (*Store, error) {
	var (
		db      *sqlx.DB
		dialect string
		err     error
	)

	switch driver {
	case DriverSQLite:
		db, err = sqlx.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// One connection keeps :memory: databases shared and serialises writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
		dialect = migrations.DialectSQLite
	case DriverPostgres:
		db, err = sqlx.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
		dialect = migrations.DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrations.Run(db.DB, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*Store, error) {
	return New(DriverSQLite, dsn)
}

// sqliteDSN appends the connection parameters every SQLite connection needs.
func sqliteDSN(dsn string) string {
	params := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Maintain runs housekeeping statements appropriate for the driver.
func (s *Store) Maintain(ctx context.Context) error {
	var stmts []string
	switch s.driver {
	case DriverSQLite:
		stmts = []string{"PRAGMA optimize", "PRAGMA wal_checkpoint(TRUNCATE)"}
	case DriverPostgres:
		stmts = []string{"ANALYZE bots", "ANALYZE keywords", "ANALYZE messages"}
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("maintenance %q: %w", stmt, err)
		}
	}
	return nil
}

// CreateOperator inserts a new operator and populates its ID and CreatedAt.
func (s *Store) CreateOperator(ctx context.Context, op *model.Operator) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var taken int
	if err := tx.GetContext(ctx, &taken,
		tx.Rebind(`SELECT COUNT(*) FROM operators WHERE username = ?`), op.Username); err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if taken > 0 {
		return ErrUsernameTaken
	}
	if err := tx.GetContext(ctx, &taken,
		tx.Rebind(`SELECT COUNT(*) FROM operators WHERE email = ?`), op.Email); err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken > 0 {
		return ErrEmailTaken
	}

	now := time.Now().UTC()
	if err := tx.QueryRowxContext(ctx,
		tx.Rebind(`INSERT INTO operators (username, email, password_hash, created_at)
		 VALUES (?, ?, ?, ?) RETURNING id`),
		op.Username, op.Email, op.PasswordHash, now,
	).Scan(&op.ID); err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("insert operator: %w", err)
	}
	op.CreatedAt = now

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetOperator returns a single operator by its ID.
func (s *Store) GetOperator(ctx context.Context, id int64) (*model.Operator, error) {
	var op model.Operator
	err := s.db.GetContext(ctx, &op,
		s.db.Rebind(`SELECT id, username, email, password_hash, created_at FROM operators WHERE id = ?`), id)
	if err != nil {
		return nil, notFound("get operator", err)
	}
	return &op, nil
}

// GetOperatorByUsername returns the operator registered under username.
func (s *Store) GetOperatorByUsername(ctx context.Context, username string) (*model.Operator, error) {
	var op model.Operator
	err := s.db.GetContext(ctx, &op,
		s.db.Rebind(`SELECT id, username, email, password_hash, created_at FROM operators WHERE username = ?`), username)
	if err != nil {
		return nil, notFound("get operator", err)
	}
	return &op, nil
}

// CreateBot inserts a new bot and populates its ID and timestamps.
func (s *Store) CreateBot(ctx context.Context, bot *model.Bot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var taken int
	if err := tx.GetContext(ctx, &taken,
		tx.Rebind(`SELECT COUNT(*) FROM bots WHERE account_id = ?`), bot.AccountID); err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	if taken > 0 {
		return ErrAccountTaken
	}

	now := time.Now().UTC()
	if err := tx.QueryRowxContext(ctx,
		tx.Rebind(`INSERT INTO bots (owner_id, name, account_id, username, access_token, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		bot.OwnerID, bot.Name, bot.AccountID, bot.Username, bot.AccessToken, bot.IsActive, now, now,
	).Scan(&bot.ID); err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("insert bot: %w", err)
	}
	bot.CreatedAt = now
	bot.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetBot returns the bot with the given ID if it belongs to ownerID.
func (s *Store) GetBot(ctx context.Context, ownerID, id int64) (*model.Bot, error) {
	var bot model.Bot
	err := s.db.GetContext(ctx, &bot,
		s.db.Rebind(`SELECT `+botColumns+` FROM bots WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return nil, notFound("get bot", err)
	}
	return &bot, nil
}

// ListBots returns all bots belonging to ownerID.
func (s *Store) ListBots(ctx context.Context, ownerID int64) ([]model.Bot, error) {
	var bots []model.Bot
	err := s.db.SelectContext(ctx, &bots,
		s.db.Rebind(`SELECT `+botColumns+` FROM bots WHERE owner_id = ? ORDER BY id`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("query bots: %w", err)
	}
	return bots, nil
}

// GetActiveBotByAccountID returns the active bot attached to the external account id.
func (s *Store) GetActiveBotByAccountID(ctx context.Context, accountID string) (*model.Bot, error) {
	var bot model.Bot
	err := s.db.GetContext(ctx, &bot,
		s.db.Rebind(`SELECT `+botColumns+` FROM bots WHERE account_id = ? AND is_active = ?`), accountID, true)
	if err != nil {
		return nil, notFound("get bot by account", err)
	}
	return &bot, nil
}

// UpdateBot persists changes to an existing bot and refreshes UpdatedAt.
func (s *Store) UpdateBot(ctx context.Context, bot *model.Bot) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE bots SET name = ?, username = ?, access_token = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`),
		bot.Name, bot.Username, bot.AccessToken, bot.IsActive, now, bot.ID,
	)
	if err != nil {
		return fmt.Errorf("update bot: %w", err)
	}
	if err := requireRow(res, "update bot"); err != nil {
		return err
	}
	bot.UpdatedAt = now
	return nil
}

// DeleteBot removes a bot together with its keywords and message records.
func (s *Store) DeleteBot(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM messages WHERE bot_id = ?`), id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM keywords WHERE bot_id = ?`), id); err != nil {
		return fmt.Errorf("delete keywords: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM bots WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete bot: %w", err)
	}
	if err := requireRow(res, "delete bot"); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateKeyword inserts a new keyword and populates its ID and CreatedAt.
func (s *Store) CreateKeyword(ctx context.Context, kw *model.Keyword) error {
	now := time.Now().UTC()
	if err := s.db.QueryRowxContext(ctx,
		s.db.Rebind(`INSERT INTO keywords (bot_id, trigger_text, response, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		kw.BotID, kw.Trigger, kw.Response, kw.IsActive, now,
	).Scan(&kw.ID); err != nil {
		return fmt.Errorf("insert keyword: %w", err)
	}
	kw.CreatedAt = now
	return nil
}

// GetKeyword returns the keyword with the given ID if its bot belongs to ownerID.
func (s *Store) GetKeyword(ctx context.Context, ownerID, id int64) (*model.Keyword, error) {
	var kw model.Keyword
	err := s.db.GetContext(ctx, &kw,
		s.db.Rebind(`SELECT k.id, k.bot_id, k.trigger_text, k.response, k.is_active, k.created_at
		 FROM keywords k JOIN bots b ON b.id = k.bot_id
		 WHERE k.id = ? AND b.owner_id = ?`), id, ownerID)
	if err != nil {
		return nil, notFound("get keyword", err)
	}
	return &kw, nil
}

// ListKeywords returns every keyword of a bot in creation order.
func (s *Store) ListKeywords(ctx context.Context, botID int64) ([]model.Keyword, error) {
	var kws []model.Keyword
	err := s.db.SelectContext(ctx, &kws,
		s.db.Rebind(`SELECT `+keywordColumns+` FROM keywords WHERE bot_id = ? ORDER BY id`), botID)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	return kws, nil
}

// ListActiveKeywords returns the active keywords of a bot in creation order.
func (s *Store) ListActiveKeywords(ctx context.Context, botID int64) ([]model.Keyword, error) {
	var kws []model.Keyword
	err := s.db.SelectContext(ctx, &kws,
		s.db.Rebind(`SELECT `+keywordColumns+` FROM keywords WHERE bot_id = ? AND is_active = ? ORDER BY id`),
		botID, true)
	if err != nil {
		return nil, fmt.Errorf("query active keywords: %w", err)
	}
	return kws, nil
}

// UpdateKeyword persists changes to an existing keyword.
func (s *Store) UpdateKeyword(ctx context.Context, kw *model.Keyword) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE keywords SET trigger_text = ?, response = ?, is_active = ? WHERE id = ?`),
		kw.Trigger, kw.Response, kw.IsActive, kw.ID,
	)
	if err != nil {
		return fmt.Errorf("update keyword: %w", err)
	}
	return requireRow(res, "update keyword")
}

// DeleteKeyword removes a keyword by its ID.
func (s *Store) DeleteKeyword(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM keywords WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete keyword: %w", err)
	}
	return requireRow(res, "delete keyword")
}

// CreateMessage appends a message record and populates its ID and CreatedAt.
func (s *Store) CreateMessage(ctx context.Context, msg *model.MessageRecord) error {
	now := time.Now().UTC()
	if err := s.db.QueryRowxContext(ctx,
		s.db.Rebind(`INSERT INTO messages (bot_id, sender_id, sender_username, message_text, bot_response, matched_keyword, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		msg.BotID, msg.SenderID, msg.SenderUsername, msg.MessageText, msg.BotResponse, msg.MatchedKeyword, now,
	).Scan(&msg.ID); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	msg.CreatedAt = now
	return nil
}

// ListMessages returns up to limit records of a bot, newest first.
// A positive beforeID restricts the page to records older than that id.
func (s *Store) ListMessages(ctx context.Context, botID int64, limit int, beforeID int64) ([]model.MessageRecord, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE bot_id = ?`
	args := []any{botID}
	if beforeID > 0 {
		query += ` AND id < ?`
		args = append(args, beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	var msgs []model.MessageRecord
	if err := s.db.SelectContext(ctx, &msgs, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return msgs, nil
}

func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// uniqueViolation maps a driver unique-constraint error to the conflict
// sentinel for the offending column. It returns nil for any other error.
// Inserts that race past the pre-checks end up here.
func uniqueViolation(err error) error {
	var (
		detail  string
		pgErr   *pgconn.PgError
		liteErr *sqlite.Error
	)
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		detail = pgErr.ConstraintName
	case errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		detail = liteErr.Error()
	default:
		return nil
	}

	switch {
	case strings.Contains(detail, "account_id"):
		return ErrAccountTaken
	case strings.Contains(detail, "username"):
		return ErrUsernameTaken
	case strings.Contains(detail, "email"):
		return ErrEmailTaken
	default:
		return ErrConflict
	}
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

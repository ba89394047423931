package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-accounts/internal/logger"
	"github.com/sbilibin2017/gw-accounts/internal/models"
)

// ErrDuplicate is returned when a write hits the unique index on username or email.
var ErrDuplicate = errors.New("username or email already exists")

// ErrUnknownColumn is returned when a uniqueness probe names a column that is not unique.
var ErrUnknownColumn = errors.New("unknown unique column")

const uniqueViolation = "23505"

const userColumns = `id, username, email, first_name, last_name, hashed_password, is_superuser, is_active`

// uniqueColumns lists the columns backed by a unique index.
var uniqueColumns = map[string]bool{
	"username": true,
	"email":    true,
}

// TxGetter returns the transaction bound to ctx, or nil.
type TxGetter func(ctx context.Context) *sqlx.Tx

func executor(ctx context.Context, db *sqlx.DB, txGetter TxGetter) sqlx.ExtContext {
	if txGetter != nil {
		if tx := txGetter(ctx); tx != nil {
			return tx
		}
	}
	return db
}

func logQuery(ctx context.Context, query string, args []any, result any, err error) {
	logger.FromContext(ctx).Infow("query",
		"sql", strings.Join(strings.Fields(query), " "),
		"args", args,
		"result", result,
		"error", err,
	)
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// UserReadRepository handles user read operations.
type UserReadRepository struct {
	db       *sqlx.DB
	txGetter TxGetter
}

func NewUserReadRepository(db *sqlx.DB, txGetter TxGetter) *UserReadRepository {
	return &UserReadRepository{db: db, txGetter: txGetter}
}

// GetByID returns the user with the given id, or nil if there is none.
func (r *UserReadRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM "user" WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByUsername returns the user with the given username, or nil if there is none.
func (r *UserReadRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM "user" WHERE username = $1`
	return r.getOne(ctx, query, username)
}

// GetByEmail returns the user with the given email, or nil if there is none.
func (r *UserReadRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM "user" WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *UserReadRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &user, query, arg)
	logQuery(ctx, query, []any{arg}, user.ID, err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns users ordered by id. A zero limit means no limit.
func (r *UserReadRepository) List(ctx context.Context, skip, limit int) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM "user" ORDER BY id OFFSET $1`
	args := []any{skip}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	users := []models.User{}
	err := sqlx.SelectContext(ctx, executor(ctx, r.db, r.txGetter), &users, query, args...)
	logQuery(ctx, query, args, len(users), err)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// ExistsAny reports whether a user other than excludeID has any of the given
// column values. Columns are OR-ed in a single probe.
func (r *UserReadRepository) ExistsAny(ctx context.Context, fields map[string]any, excludeID *int64) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}

	columns := make([]string, 0, len(fields))
	for column := range fields {
		if !uniqueColumns[column] {
			return false, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	conds := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns)+1)
	for _, column := range columns {
		args = append(args, fields[column])
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	where := "(" + strings.Join(conds, " OR ") + ")"
	if excludeID != nil {
		args = append(args, *excludeID)
		where += fmt.Sprintf(" AND id <> $%d", len(args))
	}
	query := `SELECT EXISTS (SELECT 1 FROM "user" WHERE ` + where + `)`

	var exists bool
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &exists, query, args...)
	logQuery(ctx, query, args, exists, err)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Ping checks the database connection.
func (r *UserReadRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// UserWriteRepository handles user write operations.
type UserWriteRepository struct {
	db       *sqlx.DB
	txGetter TxGetter
}

func NewUserWriteRepository(db *sqlx.DB, txGetter TxGetter) *UserWriteRepository {
	return &UserWriteRepository{db: db, txGetter: txGetter}
}

// Create inserts a user and returns the stored row with its assigned id.
func (r *UserWriteRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	const query = `
		INSERT INTO "user" (username, email, first_name, last_name, hashed_password, is_superuser, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns

	args := []any{user.Username, user.Email, user.FirstName, user.LastName,
		user.HashedPassword, user.IsSuperuser, user.IsActive}

	var created models.User
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &created, query, args...)
	logQuery(ctx, query, redactDigest(args, 4), created.ID, err)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &created, nil
}

// Update writes the fields present in patch to the user with the given id and
// returns the updated row, or nil if the user does not exist. A present name
// without a value is written as NULL.
func (r *UserWriteRepository) Update(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error) {
	var (
		sets     []string
		args     []any
		digestAt = -1
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Username != nil {
		set("username", *patch.Username)
	}
	if patch.Email != nil {
		set("email", *patch.Email)
	}
	if patch.FirstName.Set {
		set("first_name", patch.FirstName.Value)
	}
	if patch.LastName.Set {
		set("last_name", patch.LastName.Value)
	}
	if patch.HashedPassword != nil {
		set("hashed_password", *patch.HashedPassword)
		digestAt = len(args) - 1
	}
	if patch.IsSuperuser != nil {
		set("is_superuser", *patch.IsSuperuser)
	}
	if patch.IsActive != nil {
		set("is_active", *patch.IsActive)
	}

	if len(sets) == 0 {
		return NewUserReadRepository(r.db, r.txGetter).GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE "user" SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	var updated models.User
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &updated, query, args...)
	logQuery(ctx, query, redactDigest(args, digestAt), updated.ID, err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &updated, nil
}

// Delete removes the user with the given id. It reports whether a row was deleted.
func (r *UserWriteRepository) Delete(ctx context.Context, id int64) (bool, error) {
	const query = `DELETE FROM "user" WHERE id = $1`

	res, err := executor(ctx, r.db, r.txGetter).ExecContext(ctx, query, id)
	var rowsAffected int64
	if res != nil {
		rowsAffected, _ = res.RowsAffected()
	}
	logQuery(ctx, query, []any{id}, rowsAffected, err)
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func redactDigest(args []any, i int) []any {
	if i < 0 || i >= len(args) {
		return args
	}
	out := make([]any, len(args))
	copy(out, args)
	out[i] = "[REDACTED]"
	return out
}

package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/user"
)

var (
	userColumns = columns{
		"id", "person_id", "name", "username", "email", "is_active", "roles", "password_hash",
		"must_change_password", "failed_logins", "locked_at", "last_login", "theme", "language", "created_at",
		"updated_at",
	}
	permissionColumns = columns{"id", "user_id", "module", "ops", "created_at"}

	// API field -> column
	userOrderings = map[string]string{
		"name":       "name",
		"username":   "username",
		"email":      "email",
		"created_at": "created_at",
		"last_login": "last_login",
	}
)

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{repository{db: db}}
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email, excludeID string, exec ...core.DBExecutor) error {
	var w where
	w.add("(username = ? OR email = ?)", username, email)
	if validID(excludeID) {
		w.add("id <> ?", excludeID)
	}
	var found []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &found, "SELECT username, email FROM users"+w.String(), w.args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, f := range found {
		if f.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(found) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, u user.User, exec ...core.DBExecutor) (user.User, error) {
	u.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), userColumns.insert("users"), u); err != nil {
		return user.User{}, trapUniqueErr(err, "inserting user")
	}
	return u, nil
}

func (repo userRepository) getUser(ctx context.Context, exec []core.DBExecutor, cond string, arg interface{}) (user.User, error) {
	var u user.User
	err := sqlx.GetContext(ctx, repo.getExec(exec), &u, userColumns.selectFrom("users")+" WHERE "+cond, arg)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return u, nil
}

func (repo userRepository) GetUser(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error) {
	if !validID(id) {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, exec, "id = $1", id)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getUser(ctx, exec, "email = $1", email)
}

func (repo userRepository) GetUserByLogin(ctx context.Context, login string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getUser(ctx, exec, "(username = $1 OR email = $1)", login)
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	var w where
	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", val, val, val)
		}
		// users with any of the provided roles
		if len(filter.Roles) > 0 {
			w.add("roles && ?::TEXT[]", pq.Array(filter.Roles))
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	users := make([]user.User, 0)
	q := userColumns.selectFrom("users") + w.String() + " ORDER BY " + core.OrderBy(ordering, userOrderings, "name ASC")
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &users, q, w.args...)
	return users, errors.Wrap(err, "querying users")
}

func (repo userRepository) UpdateUser(ctx context.Context, u user.User, exec ...core.DBExecutor) (user.User, error) {
	if err := namedExec(ctx, repo.getExec(exec), userColumns.update("users"), u); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "updating user")
	}
	return u, nil
}

func (repo userRepository) DeleteUsers(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	_, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM users WHERE id = ANY ($1::UUID[])", pq.Array(valid))
	return errors.Wrap(err, "deleting users")
}

func (repo userRepository) QueryPermissions(ctx context.Context, userID string, exec ...core.DBExecutor) ([]user.Permission, error) {
	perms := make([]user.Permission, 0)
	if !validID(userID) {
		return perms, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &perms,
		permissionColumns.selectFrom("user_permissions")+" WHERE user_id = $1 ORDER BY module", userID)
	return perms, errors.Wrap(err, "querying permissions")
}

func (repo userRepository) ReplacePermissions(ctx context.Context, userID string, perms []user.Permission, exec ...core.DBExecutor) ([]user.Permission, error) {
	e := repo.getExec(exec)
	if _, err := e.ExecContext(ctx, "DELETE FROM user_permissions WHERE user_id = $1", userID); err != nil {
		return nil, errors.Wrap(err, "deleting permissions")
	}
	saved := make([]user.Permission, 0, len(perms))
	for _, p := range perms {
		p.ID = uuid.NewString()
		p.UserID = userID
		if err := namedExec(ctx, e, permissionColumns.insert("user_permissions"), p); err != nil {
			return nil, trapUniqueErr(err, "inserting permission")
		}
		saved = append(saved, p)
	}
	return saved, nil
}

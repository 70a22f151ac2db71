package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email, excludeID string, _ ...core.DBExecutor) error {
	for _, u := range repo.db.users.filter(func(u user.User) bool { return u.ID != excludeID }) {
		if u.Username == username {
			return user.ErrUsernameExists
		}
		if u.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, u user.User, _ ...core.DBExecutor) (user.User, error) {
	if err := repo.CheckUniqueness(ctx, u.Username, u.Email, ""); err != nil {
		return user.User{}, err
	}
	u.ID = uuid.NewString()
	repo.db.users.insert(u.ID, u)
	return u, nil
}

func (repo *userRepository) GetUser(_ context.Context, id string, _ ...core.DBExecutor) (user.User, error) {
	if u, ok := repo.db.users.get(id); ok {
		return u, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string, _ ...core.DBExecutor) (user.User, error) {
	if u, ok := repo.db.users.find(func(u user.User) bool { return u.Email == email }); ok {
		return u, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByLogin(_ context.Context, login string, _ ...core.DBExecutor) (user.User, error) {
	if u, ok := repo.db.users.find(func(u user.User) bool { return u.Username == login || u.Email == login }); ok {
		return u, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	users := repo.db.users.filter(func(u user.User) bool {
		if filter == nil {
			return true
		}
		if filter.Search != "" && !contains(u.Name, filter.Search) && !contains(u.Username, filter.Search) && !contains(u.Email, filter.Search) {
			return false
		}
		if len(filter.Roles) > 0 && !anyRole(u, filter.Roles) {
			return false
		}
		return (filter.IsActive == nil || u.IsActive == *filter.IsActive) &&
			(filter.CreatedFrom.IsZero() || !u.CreatedAt.Before(filter.CreatedFrom)) &&
			(filter.CreatedTo.IsZero() || !u.CreatedAt.After(filter.CreatedTo))
	})
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	return sortBy(users, func(a, b user.User) bool {
		for _, ord := range ordering {
			if c := compareUsers(a, b, ord.Field); c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return false
	}), nil
}

func anyRole(u user.User, roles []string) bool {
	for _, r := range roles {
		if u.Roles.Contains(r) {
			return true
		}
	}
	return false
}

func compareUsers(a, b user.User, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "username":
		return strings.Compare(a.Username, b.Username)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "last_login":
		return a.LastLogin.Time.Compare(b.LastLogin.Time)
	}
	return 0
}

func (repo *userRepository) UpdateUser(ctx context.Context, u user.User, _ ...core.DBExecutor) (user.User, error) {
	if err := repo.CheckUniqueness(ctx, u.Username, u.Email, u.ID); err != nil {
		return user.User{}, err
	}
	if !repo.db.users.update(u.ID, u) {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (repo *userRepository) DeleteUsers(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.users.delete(ids...)
	for _, id := range ids {
		userID := id
		repo.db.permissions.deleteWhere(
			func(p user.Permission) bool { return p.UserID == userID },
			func(p user.Permission) string { return p.ID },
		)
	}
	return nil
}

func (repo *userRepository) QueryPermissions(_ context.Context, userID string, _ ...core.DBExecutor) ([]user.Permission, error) {
	perms := repo.db.permissions.filter(func(p user.Permission) bool { return p.UserID == userID })
	return sortBy(perms, func(a, b user.Permission) bool { return a.Module < b.Module }), nil
}

func (repo *userRepository) ReplacePermissions(_ context.Context, userID string, perms []user.Permission, _ ...core.DBExecutor) ([]user.Permission, error) {
	repo.db.permissions.deleteWhere(
		func(p user.Permission) bool { return p.UserID == userID },
		func(p user.Permission) string { return p.ID },
	)
	saved := make([]user.Permission, 0, len(perms))
	seen := make(map[core.Module]bool, len(perms))
	for _, p := range perms {
		if seen[p.Module] {
			return nil, core.NewUniqueViolation("module")
		}
		seen[p.Module] = true
		p.ID = uuid.NewString()
		p.UserID = userID
		repo.db.permissions.insert(p.ID, p)
		saved = append(saved, p)
	}
	return saved, nil
}

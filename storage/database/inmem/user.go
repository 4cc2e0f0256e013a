package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/Shiv1431/MedAR/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.query() {
		if usr.Email == email && !isExcluded(usr, excludedUsers) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.query() {
		if usr.Email == email {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByResetTokenHash(ctx context.Context, hash string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.query() {
		if usr.ResetTokenHash.Valid && usr.ResetTokenHash.String == hash {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := repo.query()

	if filter.Search != "" {
		var filtered []user.User
		search := strings.ToLower(filter.Search)
		for _, u := range users {
			if strings.Contains(strings.ToLower(u.FirstName), search) ||
				strings.Contains(strings.ToLower(u.LastName), search) ||
				strings.Contains(strings.ToLower(u.Email), search) {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}
	if users != nil && filter.Role != "" {
		var filtered []user.User
		for _, u := range users {
			if u.Role == filter.Role {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}
	if users != nil && filter.Approval != "" {
		var filtered []user.User
		for _, u := range users {
			if u.Approval == filter.Approval {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}
	if users != nil && filter.Verified != nil {
		var filtered []user.User
		for _, u := range users {
			if u.Verified == *filter.Verified {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}
	if users != nil && !filter.CreatedFrom.IsZero() {
		var filtered []user.User
		timeUTC := filter.CreatedFrom.UTC()
		for _, u := range users {
			if u.CreatedAt.Equal(timeUTC) || u.CreatedAt.After(timeUTC) {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}
	if users != nil && !filter.CreatedTo.IsZero() {
		var filtered []user.User
		timeUTC := filter.CreatedTo.UTC()
		for _, u := range users {
			if u.CreatedAt.Before(timeUTC) || u.CreatedAt.Equal(timeUTC) {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}

	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.Revision = orig.Revision + 1
	usr.CreatedAt = orig.CreatedAt
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) SetUserApproval(ctx context.Context, id string, revision int, status string, remarks null.String) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if orig.Revision != revision {
		return user.User{}, user.ErrStaleUpdate
	}
	orig.Approval = status
	orig.Remarks = remarks
	orig.Revision++
	return *orig, nil
}

func (repo *userRepository) UpsertDetails(ctx context.Context, det user.Details) (user.Details, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for uid, d := range repo.db.details {
		if uid != det.UserID && d.Phone == det.Phone {
			return user.Details{}, user.ErrPhoneExists
		}
	}
	if orig, ok := repo.db.details[det.UserID]; ok {
		det.ID = orig.ID
	} else if det.ID == "" {
		det.ID = uuid.New().String()
	}
	repo.db.details[det.UserID] = &det
	return det, nil
}

func (repo *userRepository) GetDetailsByUserID(ctx context.Context, userID string) (user.Details, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if det, ok := repo.db.details[userID]; ok {
		return *det, nil
	}
	return user.Details{}, user.ErrNotFound
}

func (repo *userRepository) GetDetailsByPhone(ctx context.Context, phone string) (user.Details, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, det := range repo.db.details {
		if det.Phone == phone {
			return *det, nil
		}
	}
	return user.Details{}, user.ErrNotFound
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, excl := range excludedUsers {
		if excl.ID == usr.ID {
			return true
		}
	}
	return false
}

package database

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Shiv1431/MedAR/core/user"
)

const userColumns = `id, role, first_name, last_name, email, password_hash, verified, approval, remarks,
profile_image, refresh_token_hash, reset_token_hash, reset_token_expiry, revision, created_at, updated_at, last_login`

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	exclIDs := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		exclIDs = append(exclIDs, usr.ID)
	}

	var count int
	err := repo.db.GetContext(
		ctx, &count,
		`SELECT COUNT(*) FROM users WHERE email = $1 AND id != ALL($2)`,
		email, pq.Array(exclIDs),
	)
	if err != nil {
		return errors.Wrap(err, "counting users by email")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(
		ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (:id, :role, :first_name, :last_name, :email, :password_hash, :verified, :approval, :remarks,
		         :profile_image, :refresh_token_hash, :reset_token_hash, :reset_token_expiry, :revision,
		         :created_at, :updated_at, :last_login)`,
		usr,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (repo *userRepository) GetUserByResetTokenHash(ctx context.Context, hash string) (user.User, error) {
	return repo.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE reset_token_hash = $1`, hash)
}

func (repo *userRepository) getUser(ctx context.Context, query string, args ...interface{}) (user.User, error) {
	var usr user.User
	if err := repo.db.GetContext(ctx, &usr, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return usr, nil
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE true`
	args := make([]interface{}, 0, 6)

	addArg := func(clause string, arg interface{}) {
		args = append(args, arg)
		query += clause + "$" + strconv.Itoa(len(args))
	}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := "$" + strconv.Itoa(len(args))
		query += ` AND (first_name ILIKE ` + n + ` OR last_name ILIKE ` + n + ` OR email ILIKE ` + n + `)`
	}
	if filter.Role != "" {
		addArg(` AND role = `, filter.Role)
	}
	if filter.Approval != "" {
		addArg(` AND approval = `, filter.Approval)
	}
	if filter.Verified != nil {
		addArg(` AND verified = `, *filter.Verified)
	}
	if !filter.CreatedFrom.IsZero() {
		addArg(` AND created_at >= `, filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		addArg(` AND created_at <= `, filter.CreatedTo.UTC())
	}
	query += ` ORDER BY created_at DESC`

	users := make([]user.User, 0)
	if err := repo.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.UpdatedAt = time.Now().UTC()
	row := repo.db.QueryRowxContext(
		ctx,
		`UPDATE users
		 SET first_name = $1, last_name = $2, email = $3, password_hash = $4, verified = $5, approval = $6,
		     remarks = $7, profile_image = $8, refresh_token_hash = $9, reset_token_hash = $10,
		     reset_token_expiry = $11, updated_at = $12, last_login = $13, revision = revision + 1
		 WHERE id = $14
		 RETURNING `+userColumns,
		usr.FirstName, usr.LastName, usr.Email, usr.PasswordHash, usr.Verified, usr.Approval,
		usr.Remarks, usr.ProfileImage, usr.RefreshTokenHash, usr.ResetTokenHash,
		usr.ResetTokenExpiry, usr.UpdatedAt, usr.LastLogin, usr.ID,
	)
	var updated user.User
	if err := row.StructScan(&updated); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return updated, nil
}

func (repo *userRepository) SetUserApproval(
	ctx context.Context,
	id string,
	revision int,
	status string,
	remarks null.String,
) (user.User, error) {
	row := repo.db.QueryRowxContext(
		ctx,
		`UPDATE users
		 SET approval = $1, remarks = $2, updated_at = $3, revision = revision + 1
		 WHERE id = $4 AND revision = $5
		 RETURNING `+userColumns,
		status, remarks, time.Now().UTC(), id, revision,
	)
	var updated user.User
	if err := row.StructScan(&updated); err != nil {
		if err == sql.ErrNoRows {
			// either gone or a concurrent write bumped the revision
			if _, gerr := repo.GetUserByID(ctx, id); gerr == user.ErrNotFound {
				return user.User{}, user.ErrNotFound
			}
			return user.User{}, user.ErrStaleUpdate
		}
		return user.User{}, errors.Wrap(err, "setting user approval")
	}
	return updated, nil
}

func (repo *userRepository) UpsertDetails(ctx context.Context, det user.Details) (user.Details, error) {
	now := time.Now().UTC()
	det.UpdatedAt = now
	if det.ID == "" {
		det.ID = uuid.New().String()
		det.CreatedAt = now
	}
	row := repo.db.QueryRowxContext(
		ctx,
		`INSERT INTO user_details (id, user_id, phone, address, highest_education, secondary_school, higher_school,
		                           secondary_marks, higher_marks, aadhaar_url, secondary_url, higher_url,
		                           created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (user_id) DO UPDATE
		 SET phone = EXCLUDED.phone, address = EXCLUDED.address, highest_education = EXCLUDED.highest_education,
		     secondary_school = EXCLUDED.secondary_school, higher_school = EXCLUDED.higher_school,
		     secondary_marks = EXCLUDED.secondary_marks, higher_marks = EXCLUDED.higher_marks,
		     aadhaar_url = EXCLUDED.aadhaar_url, secondary_url = EXCLUDED.secondary_url,
		     higher_url = EXCLUDED.higher_url, updated_at = EXCLUDED.updated_at
		 RETURNING id, user_id, phone, address, highest_education, secondary_school, higher_school,
		           secondary_marks, higher_marks, aadhaar_url, secondary_url, higher_url, created_at, updated_at`,
		det.ID, det.UserID, det.Phone, det.Address, det.HighestEducation, det.SecondarySchool, det.HigherSchool,
		det.SecondaryMarks, det.HigherMarks, det.AadhaarURL, det.SecondaryURL, det.HigherURL,
		det.CreatedAt, det.UpdatedAt,
	)
	var saved user.Details
	if err := row.StructScan(&saved); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return user.Details{}, user.ErrPhoneExists
		}
		return user.Details{}, errors.Wrap(err, "upserting user details")
	}
	return saved, nil
}

func (repo *userRepository) GetDetailsByUserID(ctx context.Context, userID string) (user.Details, error) {
	return repo.getDetails(ctx, `SELECT * FROM user_details WHERE user_id = $1`, userID)
}

func (repo *userRepository) GetDetailsByPhone(ctx context.Context, phone string) (user.Details, error) {
	return repo.getDetails(ctx, `SELECT * FROM user_details WHERE phone = $1`, phone)
}

func (repo *userRepository) getDetails(ctx context.Context, query string, args ...interface{}) (user.Details, error) {
	var det user.Details
	if err := repo.db.GetContext(ctx, &det, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.Details{}, user.ErrNotFound
		}
		return user.Details{}, errors.Wrap(err, "getting user details")
	}
	return det, nil
}

package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/Shiv1431/MedAR/core"
)

// Roles. Every account belongs to exactly one portal.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

var AllRoles = []string{RoleStudent, RoleTeacher, RoleAdmin}

func ValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Approval statuses of the document-verification workflow.
//
// pending -> approved
// pending -> rejected
// pending -> reupload -> pending (on document resubmission)
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusReupload = "reupload"
)

var approvalTransitions = map[string][]string{
	StatusPending:  {StatusApproved, StatusRejected, StatusReupload},
	StatusReupload: {StatusPending},
}

func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected, StatusReupload:
		return true
	}
	return false
}

// CanTransition reports whether the approval workflow allows moving
// from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range approvalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type User struct {
	ID               string      `json:"id" db:"id"`
	Role             string      `json:"role" db:"role"`
	FirstName        string      `json:"first_name" db:"first_name"`
	LastName         string      `json:"last_name" db:"last_name"`
	Email            string      `json:"email" db:"email"`
	PasswordHash     []byte      `json:"-" db:"password_hash"`
	Verified         bool        `json:"verified" db:"verified"`
	Approval         string      `json:"approval" db:"approval"`
	Remarks          null.String `json:"remarks,omitempty" db:"remarks"`
	ProfileImage     null.String `json:"profile_image,omitempty" db:"profile_image"`
	RefreshTokenHash null.String `json:"-" db:"refresh_token_hash"`
	ResetTokenHash   null.String `json:"-" db:"reset_token_hash"`
	ResetTokenExpiry null.Time   `json:"-" db:"reset_token_expiry"`
	Revision         int         `json:"revision" db:"revision"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"` // UTC
	LastLogin        null.Time   `json:"last_login,omitempty" db:"last_login"`

	// Details is the lazily-created role-specific detail record; nil
	// until documents are submitted.
	Details *Details `json:"details,omitempty" db:"-"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) Name() string {
	return u.FirstName + " " + u.LastName
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// Details holds the identity/education documents submitted for
// verification. Document fields hold externally-hosted asset URLs.
type Details struct {
	ID               string    `json:"id" db:"id"`
	UserID           string    `json:"-" db:"user_id"`
	Phone            string    `json:"phone" db:"phone"`
	Address          string    `json:"address" db:"address"`
	HighestEducation string    `json:"highest_education" db:"highest_education"`
	SecondarySchool  string    `json:"secondary_school" db:"secondary_school"`
	HigherSchool     string    `json:"higher_school" db:"higher_school"`
	SecondaryMarks   float64   `json:"secondary_marks" db:"secondary_marks"`
	HigherMarks      float64   `json:"higher_marks" db:"higher_marks"`
	AadhaarURL       string    `json:"aadhaar_url" db:"aadhaar_url"`
	SecondaryURL     string    `json:"secondary_url" db:"secondary_url"`
	HigherURL        string    `json:"higher_url" db:"higher_url"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// NewUser contains information needed to sign a new User up.
type NewUser struct {
	Role            string `json:"role" validate:"required,role"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc Service) error {
	nu.FirstName = core.CapitalizeName(nu.FirstName)
	nu.LastName = core.CapitalizeName(nu.LastName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(nu.Email)
}

// UpdateProfile defines what information may be provided to modify an
// existing User's profile.
type UpdateProfile struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	ProfileImage string `json:"profile_image"`
}

func (up *UpdateProfile) Validate(origUsr User, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(up.FirstName); name != "" {
		up.FirstName = core.CapitalizeName(name)
	} else {
		up.FirstName = origUsr.FirstName
	}

	if name := core.CleanString(up.LastName); name != "" {
		up.LastName = core.CapitalizeName(name)
	} else {
		up.LastName = origUsr.LastName
	}

	if email := core.CleanString(up.Email, true /* lower */); email != "" {
		up.Email = email
	} else {
		up.Email = origUsr.Email
	}

	if err := validate.Struct(up); err != nil {
		return err
	}
	if up.Email != origUsr.Email {
		return svc.CheckEmailUniqueness(up.Email, origUsr)
	}
	return nil
}

// NewDetails contains the identity/education documents submitted for
// verification. The document URLs come from the upload service.
type NewDetails struct {
	Phone            string  `json:"phone" validate:"required"`
	Address          string  `json:"address" validate:"required"`
	HighestEducation string  `json:"highest_education" validate:"required"`
	SecondarySchool  string  `json:"secondary_school" validate:"required"`
	HigherSchool     string  `json:"higher_school" validate:"required"`
	SecondaryMarks   float64 `json:"secondary_marks" validate:"required"`
	HigherMarks      float64 `json:"higher_marks" validate:"required"`
	AadhaarURL       string  `json:"aadhaar_url" validate:"required,url"`
	SecondaryURL     string  `json:"secondary_url" validate:"required,url"`
	HigherURL        string  `json:"higher_url" validate:"required,url"`
}

func (nd *NewDetails) Validate(validate *validator.Validate) error {
	nd.Phone = core.CleanString(nd.Phone)
	nd.Address = core.CleanString(nd.Address)
	return validate.Struct(nd)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// ApprovalDecision is an admin's verdict on a pending account.
type ApprovalDecision struct {
	Status   string `json:"status" validate:"required,approvalstatus"`
	Remarks  string `json:"remarks"`
	Revision *int   `json:"revision" validate:"required"`
}

func (ad *ApprovalDecision) Validate(validate *validator.Validate) error {
	ad.Remarks = core.CleanString(ad.Remarks)
	return validate.Struct(ad)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Role        string    `query:"role"`
	Approval    string    `query:"approval"`
	Verified    *bool     `query:"verified"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.Approval == "" && qf.Verified == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
	qf.Approval = core.CleanString(qf.Approval, true /* lower */)
}

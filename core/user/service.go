package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Shiv1431/MedAR/core"
)

var (
	// errors
	ErrNotFound          = errors.New("account not found")
	ErrEmailExists       = errors.New("an account with this email already exists")
	ErrPhoneExists       = errors.New("an account with this phone number already exists")
	ErrNotVerified       = errors.New("email is not verified")
	ErrBadPassword       = errors.New("password is incorrect")
	ErrStaleUpdate       = errors.New("the account was modified by someone else; refresh and retry")
	ErrInvalidTransition = errors.New("approval status transition not allowed")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByResetTokenHash(ctx context.Context, hash string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// User.FirstName, User.LastName or User.Email.
		FilterUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		// UpdateUser persists usr and bumps its revision.
		UpdateUser(ctx context.Context, usr User) (User, error)
		// SetUserApproval is a compare-and-swap on the approval status: the
		// write only lands if the stored revision still equals revision;
		// otherwise ErrStaleUpdate is returned.
		SetUserApproval(ctx context.Context, id string, revision int, status string, remarks null.String) (User, error)
		UpsertDetails(ctx context.Context, det Details) (Details, error)
		GetDetailsByUserID(ctx context.Context, userID string) (Details, error)
		GetDetailsByPhone(ctx context.Context, phone string) (Details, error)
	}

	Service interface {
		CheckEmailUniqueness(email string, excludedUsers ...User) error
		Register(ctx context.Context, nu NewUser) (User, error)
		ConfirmEmail(ctx context.Context, id string) (User, error)
		Authenticate(ctx context.Context, role, email, pwd string) (User, error)
		SetRefreshToken(ctx context.Context, usr User, token string) (User, error)
		CheckRefreshToken(usr User, token string) error
		ClearRefreshToken(ctx context.Context, usr User) error
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Query(ctx context.Context, filter *QueryFilter) ([]User, error)
		UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error)
		SubmitDocuments(ctx context.Context, usr User, nd NewDetails) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
		SetApproval(ctx context.Context, role, id string, decision ApprovalDecision) (User, error)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *service) CheckEmailUniqueness(email string, excludedUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, excludedUsers...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register signs a new account up: approval starts out pending, the email
// unverified, and a verification mail goes out.
func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Role:      nu.Role,
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		Email:     nu.Email,
		Approval:  StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	svc.sendVerificationMail(usr)
	return usr, nil
}

func (svc *service) ConfirmEmail(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if usr.Verified {
		return usr, nil
	}
	usr.Verified = true
	return svc.repo.UpdateUser(ctx, usr)
}

// Authenticate checks the credentials for the given role's portal and stamps
// the last login. An unverified email fails before the password is ever
// compared against.
func (svc *service) Authenticate(ctx context.Context, role, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return User{}, err
	}
	if usr.Role != role {
		return User{}, ErrNotFound
	}
	if !usr.Verified {
		return User{}, ErrNotVerified
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrBadPassword
	}
	usr.LastLogin.SetValid(time.Now().UTC())
	return svc.repo.UpdateUser(ctx, usr)
}

// SetRefreshToken stores the hash of the freshly minted refresh token,
// overwriting any previous one: at most one live refresh token per account.
func (svc *service) SetRefreshToken(ctx context.Context, usr User, token string) (User, error) {
	usr.RefreshTokenHash.SetValid(HashToken(token))
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) CheckRefreshToken(usr User, token string) error {
	if !usr.RefreshTokenHash.Valid || HashToken(token) != usr.RefreshTokenHash.String {
		return errInvalidToken
	}
	return nil
}

func (svc *service) ClearRefreshToken(ctx context.Context, usr User) error {
	usr.RefreshTokenHash = null.String{}
	_, err := svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	return svc.withDetails(ctx, usr)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]User, error) {
	return svc.repo.FilterUsers(ctx, *filter)
}

func (svc *service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error) {
	usr.FirstName = up.FirstName
	usr.LastName = up.LastName
	usr.Email = up.Email
	if up.ProfileImage != "" {
		usr.ProfileImage.SetValid(up.ProfileImage)
	}
	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}

	if up.Phone != "" || up.Address != "" {
		det, err := svc.repo.GetDetailsByUserID(ctx, usr.ID)
		if err != nil && err != ErrNotFound {
			return User{}, err
		}
		det.UserID = usr.ID
		if up.Phone != "" {
			det.Phone = up.Phone
		}
		if up.Address != "" {
			det.Address = up.Address
		}
		if _, err = svc.repo.UpsertDetails(ctx, det); err != nil {
			return User{}, err
		}
	}
	return svc.withDetails(ctx, usr)
}

// SubmitDocuments links a detail record to the account and (re)enters the
// approval queue: a reupload request flips back to pending, a first
// submission stays pending.
func (svc *service) SubmitDocuments(ctx context.Context, usr User, nd NewDetails) (User, error) {
	if existing, err := svc.repo.GetDetailsByPhone(ctx, nd.Phone); err == nil && existing.UserID != usr.ID {
		return User{}, core.NewValidationError(ErrPhoneExists, core.FieldError{Field: "phone", Error: ErrPhoneExists.Error()})
	} else if err != nil && err != ErrNotFound {
		return User{}, err
	}

	det, err := svc.repo.GetDetailsByUserID(ctx, usr.ID)
	if err != nil && err != ErrNotFound {
		return User{}, err
	}
	det.UserID = usr.ID
	det.Phone = nd.Phone
	det.Address = nd.Address
	det.HighestEducation = nd.HighestEducation
	det.SecondarySchool = nd.SecondarySchool
	det.HigherSchool = nd.HigherSchool
	det.SecondaryMarks = nd.SecondaryMarks
	det.HigherMarks = nd.HigherMarks
	det.AadhaarURL = nd.AadhaarURL
	det.SecondaryURL = nd.SecondaryURL
	det.HigherURL = nd.HigherURL
	det, err = svc.repo.UpsertDetails(ctx, det)
	if err != nil {
		return User{}, err
	}

	if usr.Approval == StatusReupload {
		usr.Approval = StatusPending
		usr.Remarks = null.String{}
	}
	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	usr.Details = &det
	return usr, nil
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	token, err := MakeResetToken(&usr, svc.conf.Server.PasswordResetTimeout)
	if err != nil {
		return pkgerrors.Wrap(err, "making reset token")
	}
	if _, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	svc.sendPasswordResetMail(usr, token)
	return nil
}

// ResetPassword consumes a reset token: the stored secret changes and the
// token is cleared so a second use fails.
func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	usr, err := svc.repo.GetUserByResetTokenHash(ctx, HashToken(rp.Token))
	if err != nil {
		if err == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err = CheckResetToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return err
	}
	usr.ResetTokenHash = null.String{}
	usr.ResetTokenExpiry = null.Time{}
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// SetApproval applies an admin's decision on a target account. The status
// mutation is a compare-and-swap on the account revision so that two
// concurrent decisions cannot silently overwrite each other. The decision
// mail goes out after the commit and cannot fail the request.
func (svc *service) SetApproval(ctx context.Context, role, id string, decision ApprovalDecision) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if usr.Role != role {
		return User{}, ErrNotFound
	}
	if !CanTransition(usr.Approval, decision.Status) {
		return User{}, core.NewValidationError(
			ErrInvalidTransition,
			core.FieldError{
				Field: "status",
				Error: fmt.Sprintf("cannot move from %q to %q", usr.Approval, decision.Status),
			},
		)
	}

	var remarks null.String
	if decision.Remarks != "" {
		remarks.SetValid(decision.Remarks)
	}
	usr, err = svc.repo.SetUserApproval(ctx, id, *decision.Revision, decision.Status, remarks)
	if err != nil {
		return User{}, err
	}

	if decision.Status == StatusApproved || decision.Status == StatusRejected {
		svc.sendDecisionMail(usr)
	}
	return usr, nil
}

func (svc *service) withDetails(ctx context.Context, usr User) (User, error) {
	det, err := svc.repo.GetDetailsByUserID(ctx, usr.ID)
	if err != nil {
		if err == ErrNotFound {
			return usr, nil
		}
		return User{}, err
	}
	usr.Details = &det
	return usr, nil
}

// Mails

func (svc *service) sendVerificationMail(usr User) {
	svc.mailSvc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name(), Address: usr.Email}},
			Subject:      "Verify your E-mail",
			TemplateName: "verify_email",
			TemplateData: struct {
				Name string
				Role string
				ID   string
			}{usr.FirstName, usr.Role, usr.ID},
		},
	)
}

func (svc *service) sendPasswordResetMail(usr User, token string) {
	svc.mailSvc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name(), Address: usr.Email}},
			Subject:      "Password Reset",
			TemplateName: "password_reset",
			TemplateData: struct {
				Name  string
				Role  string
				Token string
			}{usr.FirstName, usr.Role, token},
		},
	)
}

func (svc *service) sendDecisionMail(usr User) {
	svc.mailSvc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name(), Address: usr.Email}},
			Subject:      "Verification " + usr.Approval,
			TemplateName: "approval_decision",
			TemplateData: struct {
				Name    string
				Status  string
				Remarks string
			}{usr.FirstName, usr.Approval, usr.Remarks.String},
		},
	)
}

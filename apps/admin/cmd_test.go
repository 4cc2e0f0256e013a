package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/Shiv1431/MedAR/core/user"
	inmemdb "github.com/Shiv1431/MedAR/storage/database/inmem"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	usrRepo = inmemdb.NewUserRepository(db)

	// start CLI
	return &commandLine{usrRepo: usrRepo}
}

func createUser(t *testing.T, role, first, last, email, pwd string, verified bool, approval string) user.User {
	now := time.Now().UTC()
	usr := user.User{
		Role:      role,
		FirstName: first,
		LastName:  last,
		Email:     email,
		Verified:  verified,
		Approval:  approval,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	migrateRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_addAdmin(t *testing.T) {
	cli := setup(t)

	student := createUser(t, user.RoleStudent, "Hero", "Mwenze", "hero@test.cd", "mdr", false, user.StatusPending)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"addadmin"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"addadmin", "-email", "boss@test.cd", "-first", "Big", "-last", "Boss"}, wantErr: errHelp},
		{name: "create admin", args: []string{"addadmin", "-email", "boss@test.cd", "-first", "big", "-last", "boss"}, extra: extra{pwd: "lol"}},
		{name: "promote existing account", args: []string{"addadmin", "-email", student.Email, "-first", "Hero", "-last", "Mwenze"}, extra: extra{pwd: "lol"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				email := args[3]
				usr, err := usrRepo.GetUserByEmail(context.Background(), email)
				if err != nil {
					t.Fatalf("GetUserByEmail() failed: %v", err)
				}
				if usr.Role != user.RoleAdmin {
					t.Errorf("Role = %q, want %q", usr.Role, user.RoleAdmin)
				}
				if !usr.Verified || usr.Approval != user.StatusApproved {
					t.Error("admin accounts must skip the verification workflow")
				}
				if usr.FirstName != "Big" && usr.FirstName != "Hero" {
					t.Errorf("FirstName = %q not capitalized", usr.FirstName)
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := createUser(t, user.RoleStudent, "Hero", "Mwenze", "hero@test.cd", "mdr", true, user.StatusPending)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "account not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, extra: extra{pwd: "lol"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := usrRepo.GetUserByID(context.Background(), usr.ID)
				if err != nil {
					t.Fatalf("GetUserByID() failed: %v", err)
				}
				if bytes.Equal(refreshed.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_approve(t *testing.T) {
	cli := setup(t)

	teacher := createUser(t, user.RoleTeacher, "Prof", "Kalima", "prof@test.cd", "mdr", true, user.StatusPending)
	admin := createUser(t, user.RoleAdmin, "Admin", "Mkubwa", "admin@test.cd", "mdr", true, user.StatusApproved)

	tests := []cliTest{
		{name: "no args", args: []string{"approve"}, wantErr: errHelp},
		{name: "missing status", args: []string{"approve", "-role", "teacher", "-id", teacher.ID}, wantErr: errHelp},
		{name: "unknown role", args: []string{"approve", "-role", "wizard", "-id", teacher.ID, "-status", "approved"}, wantErrStr: "\"wizard\": no such role"},
		{name: "admins are not approvable", args: []string{"approve", "-role", "admin", "-id", admin.ID, "-status", "approved"}, wantErrStr: "\"admin\": no such role"},
		{name: "account not found", args: []string{"approve", "-role", "teacher", "-id", "lol", "-status", "approved"}, wantErr: user.ErrNotFound},
		{name: "role mismatch", args: []string{"approve", "-role", "student", "-id", teacher.ID, "-status", "approved"}, wantErr: user.ErrNotFound},
		{name: "invalid transition", args: []string{"approve", "-role", "teacher", "-id", teacher.ID, "-status", "pending"}, wantErrStr: "cannot move from \"pending\" to \"pending\""},
		{name: "reupload with remarks", args: []string{"approve", "-role", "teacher", "-id", teacher.ID, "-status", "reupload", "-remarks", "incomplete Aadhaar"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := usrRepo.GetUserByID(context.Background(), teacher.ID)
				if err != nil {
					t.Fatalf("GetUserByID() failed: %v", err)
				}
				if refreshed.Approval != user.StatusReupload {
					t.Errorf("Approval = %q, want %q", refreshed.Approval, user.StatusReupload)
				}
				if !refreshed.Remarks.Valid || refreshed.Remarks.String != "incomplete Aadhaar" {
					t.Errorf("Remarks = %v, want %q", refreshed.Remarks, "incomplete Aadhaar")
				}
				return
			}
			if tt.wantErrStr != "" {
				if err.Error() != tt.wantErrStr {
					t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

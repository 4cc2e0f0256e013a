package main

import (
	"context"
	"fmt"

	"github.com/volatiletech/null/v8"

	"github.com/Shiv1431/MedAR/core"
	"github.com/Shiv1431/MedAR/core/user"
)

// approve decides on a pending account from the command line, honoring the
// same transition rules as the API.
func (cli *commandLine) approve(role, id, status, remarksStr string) error {
	ctx := context.Background()
	role = core.CleanString(role, true /* lower */)
	status = core.CleanString(status, true /* lower */)

	if !user.ValidRole(role) || role == user.RoleAdmin {
		return fmt.Errorf("%q: no such role", role)
	}

	usr, err := cli.usrRepo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if usr.Role != role {
		return user.ErrNotFound
	}
	if !user.CanTransition(usr.Approval, status) {
		return fmt.Errorf("cannot move from %q to %q", usr.Approval, status)
	}

	var remarks null.String
	if remarksStr != "" {
		remarks.SetValid(remarksStr)
	}
	_, err = cli.usrRepo.SetUserApproval(ctx, id, usr.Revision, status, remarks)
	return err
}

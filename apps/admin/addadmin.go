package main

import (
	"context"
	"time"

	"github.com/Shiv1431/MedAR/core"
	"github.com/Shiv1431/MedAR/core/user"
)

// addAdmin promotes an existing account or creates a fresh one. Admin
// accounts skip the verification/approval workflow.
func (cli *commandLine) addAdmin(email, first, last, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	usr.Role = user.RoleAdmin
	usr.FirstName = core.CapitalizeName(first)
	usr.LastName = core.CapitalizeName(last)
	usr.Verified = true
	usr.Approval = user.StatusApproved
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	if usr.ID == "" {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	return err
}

package main

import (
	"fmt"

	echoapi "github.com/trezcool/masomo-results/apps/api/echo"
	"github.com/trezcool/masomo-results/core"
	"github.com/trezcool/masomo-results/core/result"
)

func rolesList() []string {
	return echoapi.Roles
}

// token prints a signed API token for the given user.
func (cli *commandLine) token(uname, name, email, role, index string) error {
	uname = core.CleanString(uname, true /* lower */)
	role = core.CleanString(role, true /* lower */)
	index = core.CleanString(index)

	known := false
	for _, r := range echoapi.Roles {
		known = known || r == role
	}
	if !known {
		return fmt.Errorf("unknown role %q", role)
	}
	if role == echoapi.RoleStudent && !result.IsStudentIndex(index) {
		return fmt.Errorf("students need a valid index (got %q)", index)
	}

	actor := core.Actor{
		ID:           uname,
		Username:     uname,
		Name:         core.CleanString(name),
		Email:        core.CleanString(email, true /* lower */),
		StudentIndex: index,
		Roles:        []string{role},
	}
	token, err := echoapi.GenerateToken(echoapi.NewClaims(actor, cli.conf), cli.conf.SecretKey)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

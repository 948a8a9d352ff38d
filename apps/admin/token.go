package main

import (
	"fmt"

	echoapi "github.com/trezcool/shala/apps/api/echo"
	"github.com/trezcool/shala/core/identity"
)

type tokenParams struct {
	userID, name, role, schoolID, class, section string
}

// token prints a signed bearer token for local testing of the dashboard API.
func (cli *commandLine) token(params tokenParams) error {
	p := identity.Principal{
		UserID:   params.userID,
		Name:     params.name,
		Role:     identity.Role(params.role),
		SchoolID: params.schoolID,
		Class:    params.class,
		Section:  params.section,
	}
	if !p.Role.Valid() {
		return fmt.Errorf("invalid role %q, expected principal or teacher", params.role)
	}

	token, err := echoapi.GenerateToken(echoapi.NewClaims(p, cli.conf), cli.conf)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cli.stdout(), token)
	return err
}

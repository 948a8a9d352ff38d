package main

import (
	"bytes"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/shala/apps/api/echo"
	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/identity"
	"github.com/trezcool/shala/tests"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	out := new(bytes.Buffer)
	return &commandLine{
		conf:   core.NewTestConfig(),
		logger: testutil.NewLogger(t),
		out:    out,
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_run(t *testing.T) {
	cli, _ := setup(t)

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	})
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var gotDir string
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		gotDir = dir
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	})
	assert.Equal(t, "migrations", gotDir)
}

func Test_commandLine_token(t *testing.T) {
	cli, out := setup(t)

	runCLITests(t, cli, []cliTest{
		{name: "no flags", args: []string{"token"}, wantErr: errHelp},
		{name: "missing school", args: []string{"token", "-user", "u1", "-role", "teacher"}, wantErr: errHelp},
		{
			name:       "unknown role",
			args:       []string{"token", "-user", "u1", "-role", "parent", "-school", "sch1"},
			wantErrStr: `invalid role "parent", expected principal or teacher`,
		},
	})
	assert.Empty(t, out.String())

	err := cli.run([]string{"admin", "token", "-user", "t1", "-name", "Neema", "-role", "teacher", "-school", "sch1", "-class", "5", "-section", "A"})
	require.NoError(t, err)

	claims := new(echoapi.Claims)
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out.String()), claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cli.conf.SecretKey), nil
	})
	require.NoError(t, err)
	assert.Equal(t, identity.Principal{
		UserID:   "t1",
		Name:     "Neema",
		Role:     identity.RoleTeacher,
		SchoolID: "sch1",
		Class:    "5",
		Section:  "A",
	}, claims.Principal())
}

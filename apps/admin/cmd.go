package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/trezcool/shala/core"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db     *sql.DB
	conf   *core.Config
	logger core.Logger
	out    io.Writer
}

func (cli *commandLine) stdout() io.Writer {
	if cli.out != nil {
		return cli.out
	}
	return os.Stdout
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, fix)")
	fmt.Println("  token -user ID -role principal|teacher -school ID [-name NAME] [-class CLASS] [-section SECTION] - mint a dashboard token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenUser := tokenCmd.String("user", "", "The user's ID.")
	tokenName := tokenCmd.String("name", "", "The user's display name.")
	tokenRole := tokenCmd.String("role", "", "principal or teacher.")
	tokenSchool := tokenCmd.String("school", "", "The school's ID.")
	tokenClass := tokenCmd.String("class", "", "The teacher's class.")
	tokenSection := tokenCmd.String("section", "", "The teacher's section.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenUser == "" || *tokenRole == "" || *tokenSchool == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(tokenParams{
			userID:   *tokenUser,
			name:     *tokenName,
			role:     *tokenRole,
			schoolID: *tokenSchool,
			class:    *tokenClass,
			section:  *tokenSection,
		})

	default:
		cli.printUsage()
		return errHelp
	}
}

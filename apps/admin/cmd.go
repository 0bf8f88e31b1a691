package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/user"
	"github.com/trezcool/elimu/storage/database"
	"github.com/trezcool/elimu/storage/database/sqlxrepo"
)

var (
	readPasswordFunc = term.ReadPassword     // mockable
	gooseRunFunc     = database.RunMigration // mockable

	errEmptyPassword = errors.New("password cannot be empty")
)

type commandLine struct {
	db         *sqlx.DB
	translator ut.Translator
	validate   *validator.Validate
	usrSvc     user.Service
	catalogSvc catalog.Service
	out        io.Writer
}

func newCommandLine(db *sqlx.DB, logger core.Logger, out io.Writer) *commandLine {
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)

	return &commandLine{
		db:         db,
		translator: translator,
		validate:   validate,
		usrSvc:     user.NewService(sqlxrepo.NewUserRepository(db)),
		catalogSvc: catalog.NewService(sqlxrepo.NewCatalogRepository(db), logger),
		out:        out,
	}
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Elimu administration tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	root.AddCommand(
		cli.migrateCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.reconcileCmd(),
		cli.importTestCmd(),
	)
	return root
}

// run executes the command line; args include the program name.
func (cli *commandLine) run(ctx context.Context, args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args[1:])
	return root.ExecuteContext(ctx)
}

func (cli *commandLine) promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Enter password:")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errEmptyPassword
	}
	return string(pwd), nil
}

// invalid flattens validation errors into a single readable error.
func (cli *commandLine) invalid(err error) error {
	vErrs, ok := errors.Cause(err).(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(vErrs))
	for _, vErr := range vErrs {
		msgs = append(msgs, vErr.Field()+": "+vErr.Translate(cli.translator))
	}
	return errors.Errorf("invalid input: %s", strings.Join(msgs, "; "))
}

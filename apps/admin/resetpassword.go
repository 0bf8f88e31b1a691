package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/elimu/core/user"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The new password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")

			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			usr, err := cli.usrSvc.GetByEmail(ctx, email)
			if err != nil {
				return err
			}
			uu := user.UpdateUser{Password: pwd, PasswordConfirm: pwd}
			if err = uu.Validate(usr, cli.validate); err != nil {
				return cli.invalid(err)
			}
			if _, err = cli.usrSvc.ResetPassword(ctx, usr.Email, pwd); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password of %q reset\n", usr.Email)
			return nil
		},
	}
	cmd.Flags().String("email", "", "the user's email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

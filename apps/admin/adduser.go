package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/elimu/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user. The password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			uname, _ := cmd.Flags().GetString("username")
			role, _ := cmd.Flags().GetString("role")

			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}

			nu := user.NewUser{
				Email:           email,
				Username:        uname,
				Password:        pwd,
				PasswordConfirm: pwd,
				Role:            role,
			}
			if err = nu.Validate(cli.validate); err != nil {
				return cli.invalid(err)
			}
			usr, err := cli.usrSvc.Create(cmd.Context(), nu)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %q created: %s\n", usr.Role, usr.Email, usr.ID)
			return nil
		},
	}
	cmd.Flags().String("email", "", "the user's email")
	cmd.Flags().String("username", "", "the user's username")
	cmd.Flags().String("role", user.RoleStudent, "student or instructor")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

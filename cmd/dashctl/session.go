package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"assetdesk-client/internal/domain/auth/model"
)

func newLoginCmd(c *cli) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				var err error
				if password, err = readSecret(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			res := c.app.Session.Login(cmd.Context(), map[string]any{
				"username": username,
				"password": password,
			})
			return reportResult(cmd.OutOrStdout(), res, "logged in")
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newRegisterCmd(c *cli) *cobra.Command {
	var username, email, department, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account; logs in when the backend returns tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				var err error
				if password, err = readSecret(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			data := map[string]any{
				"username":  username,
				"email":     email,
				"password1": password,
				"password2": password,
			}
			if department != "" {
				data["department"] = department
			}
			res := c.app.Session.Register(cmd.Context(), data)
			if res.Success && !c.app.Session.IsAuthenticated() {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "registered; log in to continue")
				return err
			}
			return reportResult(cmd.OutOrStdout(), res, "registered and logged in")
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&email, "email", "e", "", "e-mail address")
	cmd.Flags().StringVar(&department, "department", "", "department")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.app.Session.Logout(cmd.Context())
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return err
		},
	}
}

type whoamiOutput struct {
	Status    model.Status  `json:"status"`
	User      model.Profile `json:"user,omitempty"`
	ExpiresAt string        `json:"access_expires_at,omitempty"`
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Verify the stored session and print the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session := c.app.Session
			session.Bootstrap(cmd.Context())

			snap := session.Snapshot()
			out := whoamiOutput{Status: snap.Status, User: snap.User}
			if exp, ok := session.AccessTokenExpiry(cmd.Context()); ok {
				out.ExpiresAt = exp.UTC().Format(time.RFC3339)
			}
			data, err := sonic.ConfigStd.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(data)); err != nil {
				return err
			}
			if snap.Status != model.StatusAuthenticated {
				return errors.New("not logged in")
			}
			return nil
		},
	}
}

func reportResult(w io.Writer, res model.Result, okMsg string) error {
	if !res.Success {
		return errors.New(res.Error)
	}
	if name := res.User.Username(); name != "" {
		_, err := fmt.Fprintf(w, "%s as %s\n", okMsg, name)
		return err
	}
	_, err := fmt.Fprintln(w, okMsg)
	return err
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("password required")
	}
	return secret, nil
}

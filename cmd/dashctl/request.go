package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"assetdesk-client/internal/transport/http/apiclient"
)

func newRequestCmd(c *cli) *cobra.Command {
	var (
		data     string
		headers  []string
		skipAuth bool
	)
	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send an authenticated request and print the response",
		Example: `  dashctl request GET /api/assets/
  dashctl request POST /api/assets/ -d '{"asset_tag":"IT-0100","name":"Dock"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc := apiclient.Descriptor{
				Method:   strings.ToUpper(args[0]),
				Path:     args[1],
				SkipAuth: skipAuth,
				Headers:  http.Header{},
			}
			for _, h := range headers {
				name, value, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("invalid header %q, want Name: value", h)
				}
				desc.Headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
			}
			if data != "" {
				if !sonic.ConfigStd.Valid([]byte(data)) {
					return fmt.Errorf("--data is not valid JSON")
				}
				desc.Body = strings.NewReader(data)
			}

			payload, err := c.app.Client.Send(cmd.Context(), desc)
			if err != nil {
				return err
			}
			return printPayload(cmd, payload)
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "extra header, repeatable (Name: value)")
	cmd.Flags().BoolVar(&skipAuth, "skip-auth", false, "send without stored credentials")
	return cmd
}

func printPayload(cmd *cobra.Command, payload apiclient.Payload) error {
	out := cmd.OutOrStdout()
	switch payload.Kind() {
	case apiclient.PayloadNull:
		_, err := fmt.Fprintln(out, "null")
		return err
	case apiclient.PayloadJSON:
		v, err := payload.Value()
		if err != nil {
			return err
		}
		pretty, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(pretty))
		return err
	default:
		_, err := fmt.Fprintln(out, payload.Text())
		return err
	}
}

func newDownloadCmd(c *cli) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "download PATH",
		Short: "Download a file with the stored credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			saved, err := c.app.Client.Blobs().SaveBlob(cmd.Context(), args[0], dir)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), saved)
			return err
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "o", ".", "output directory")
	return cmd
}

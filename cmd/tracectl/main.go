package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"agenttrace-backend/internal/format"
	"agenttrace-backend/internal/sanitize"
	"agenttrace-backend/internal/shared/auth"
	"agenttrace-backend/internal/traces"
)

var rootCmd = &cobra.Command{
	Use:           "tracectl",
	Short:         "Inspect and prepare agent traces locally",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newNormalizeCmd())
	rootCmd.AddCommand(newSanitizeCmd())
	rootCmd.AddCommand(newTokenCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tracectl: %v\n", err)
		os.Exit(1)
	}
}

func newNormalizeCmd() *cobra.Command {
	var (
		asJSON     bool
		formatFlag string
	)
	cmd := &cobra.Command{
		Use:   "normalize <file|->",
		Short: "Sanitize and normalize a trace file, then print its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if err := traces.ValidatePayload(payload); err != nil {
				return err
			}
			trace, err := traces.NewNormalizer().Normalize(sanitize.Sanitize(payload))
			if err != nil {
				return err
			}
			if asJSON {
				formatFlag = "json"
			}
			return format.WriteTrace(cmd.OutOrStdout(), trace, formatFlag, isTerminal(cmd.OutOrStdout()))
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the normalized trace as JSON")
	cmd.Flags().StringVar(&formatFlag, "format", "table", "output format: table, plain or json")
	return cmd
}

func newSanitizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sanitize <file|->",
		Short: "Redact credentials from a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sanitize.Sanitize(payload))
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		sub    string
		email  string
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if strings.TrimSpace(secret) == "" {
				return errors.New("JWT_SECRET is not set; pass --secret")
			}
			if strings.TrimSpace(sub) == "" {
				return errors.New("--sub is required")
			}
			now := time.Now()
			token, err := auth.SignJWT(secret, auth.Claims{
				Sub:   sub,
				Email: email,
				Iat:   now.Unix(),
				Exp:   now.Add(ttl).Unix(),
			}, now)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "subject (user id)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func readPayload(stdin io.Reader, path string) (any, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		if err := traces.ValidateFile(path, 0); err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	body, err := io.ReadAll(io.LimitReader(r, traces.MaxFileBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > traces.MaxFileBytes {
		return nil, traces.ErrFileTooLarge
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return payload, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	clouddb "github.com/cloud-db/client-go"
)

type globalFlags struct {
	token      string
	baseURL    string
	autoRetry  bool
	maxRetries int
	timeout    time.Duration
	verbose    bool
}

// EntryOutput is the JSON form of a key-value entry.
type EntryOutput struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ResultOutput is the JSON form of a Cloud-DB result.
type ResultOutput struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Number  *int64        `json:"number,omitempty"`
	Data    []EntryOutput `json:"data,omitempty"`
}

func newResultOutput(r *clouddb.Result) ResultOutput {
	out := ResultOutput{
		Success: r.Success,
		Message: r.Message,
		Number:  r.Number,
	}
	for _, e := range r.Data() {
		out.Data = append(out.Data, EntryOutput{Name: e.Name, Value: e.Value})
	}
	return out
}

func newRootCmd(stdout, stderr io.Writer, getenv func(string) string) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "clouddb",
		Short:         "Read and write Cloud-DB keys",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.token, "token", "", "database token (default $"+envToken+")")
	pf.StringVar(&flags.baseURL, "base-url", "", "API base URL (default $"+envBaseURL+" or https://cloud-db.ml)")
	pf.BoolVar(&flags.autoRetry, "auto-retry", false, "wait and retry when the token is on cooldown")
	pf.IntVar(&flags.maxRetries, "max-retries", 5, "maximum cooldown retries with --auto-retry")
	pf.DurationVar(&flags.timeout, "timeout", 30*time.Second, "HTTP request timeout")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log requests to stderr")

	connect := func() (*clouddb.Client, error) {
		return newClient(flags, stderr, getenv)
	}

	root.AddCommand(
		newGetCmd(connect, stdout),
		newSetCmd(connect, stdout),
		newDeleteCmd(connect, stdout),
		newAllCmd(connect, stdout),
		newAddCmd(connect, stdout, false),
		newAddCmd(connect, stdout, true),
	)
	return root
}

func newClient(flags *globalFlags, stderr io.Writer, getenv func(string) string) (*clouddb.Client, error) {
	token := flags.token
	if token == "" {
		token = getenv(envToken)
	}
	if token == "" {
		return nil, errors.New("no token: pass --token or set " + envToken)
	}

	opts := []clouddb.Option{
		clouddb.WithAutoRetry(flags.autoRetry),
		clouddb.WithMaxCooldownRetries(flags.maxRetries),
		clouddb.WithTimeout(flags.timeout),
	}

	baseURL := flags.baseURL
	if baseURL == "" {
		baseURL = getenv(envBaseURL)
	}
	if baseURL != "" {
		opts = append(opts, clouddb.WithBaseURL(baseURL))
	}

	if flags.verbose {
		logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, clouddb.WithLogger(logger))
	}

	return clouddb.New(token, opts...)
}

type connectFunc func() (*clouddb.Client, error)

func newGetCmd(connect connectFunc, stdout io.Writer) *cobra.Command {
	var valueOnly bool

	cmd := &cobra.Command{
		Use:   "get NAME",
		Short: "Print the entry stored under NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			if valueOnly {
				value, err := client.GetValue(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(stdout, value)
			}

			result, err := client.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(stdout, newResultOutput(result))
		},
	}
	cmd.Flags().BoolVar(&valueOnly, "value-only", false, "print only the stored value")
	return cmd
}

func newSetCmd(connect connectFunc, stdout io.Writer) *cobra.Command {
	var returnData bool

	cmd := &cobra.Command{
		Use:   "set NAME VALUE",
		Short: "Store VALUE under NAME",
		Long:  "Store VALUE under NAME. VALUE is stored as JSON when it parses as JSON, otherwise as a string.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			value := parseValue(args[1])

			if returnData {
				result, err := client.SetAndGet(cmd.Context(), args[0], value)
				if err != nil {
					return err
				}
				return writeJSON(stdout, newResultOutput(result))
			}

			ok, err := client.Set(cmd.Context(), args[0], value)
			if err != nil {
				return err
			}
			return writeJSON(stdout, map[string]bool{"success": ok})
		},
	}
	cmd.Flags().BoolVar(&returnData, "return-data", false, "read the entry back after writing it")
	return cmd
}

func newDeleteCmd(connect connectFunc, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete the entry stored under NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			ok, err := client.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(stdout, map[string]bool{"success": ok})
		},
	}
}

func newAllCmd(connect connectFunc, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Print every stored entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			result, err := client.All(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(stdout, newResultOutput(result))
		},
	}
}

func newAddCmd(connect connectFunc, stdout io.Writer, subtract bool) *cobra.Command {
	use, short := "add NAME N", "Add the integer N to the value stored under NAME"
	if subtract {
		use, short = "subtract NAME N", "Subtract the integer N from the value stored under NAME"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			op := client.Add
			if subtract {
				op = client.Subtract
			}
			result, err := op(cmd.Context(), args[0], json.Number(args[1]))
			if err != nil {
				return err
			}
			return writeJSON(stdout, newResultOutput(result))
		},
	}
}

// parseValue decodes s as JSON, keeping numbers exact, and falls back to
// the raw string.
func parseValue(s string) any {
	if !json.Valid([]byte(s)) {
		return s
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return s
	}
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Command clouddb reads and writes Cloud-DB keys from the command line.
//
// The token is taken from --token or CLOUDDB_TOKEN, and the API origin from
// --base-url or CLOUDDB_URL. Both variables may also be set in a .env file
// in the working directory. Results are printed to stdout as JSON.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

// Environment variables read by the command.
const (
	envToken   = "CLOUDDB_TOKEN"
	envBaseURL = "CLOUDDB_URL"
)

// Config holds the process dependencies of the command.
type Config struct {
	Stdout io.Writer
	Stderr io.Writer
	// Getenv looks up environment variables. Values from EnvFile are used
	// for variables it reports as empty.
	Getenv  func(string) string
	EnvFile string
}

// DefaultConfig returns a Config bound to the process streams and environment.
func DefaultConfig() Config {
	return Config{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Getenv:  os.Getenv,
		EnvFile: ".env",
	}
}

// lookupEnv resolves environment variables from the process first and the
// dotenv file second.
func (c Config) lookupEnv() (func(string) string, error) {
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if c.EnvFile == "" {
		return getenv, nil
	}

	fileEnv, err := godotenv.Read(c.EnvFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return getenv, nil
		}
		return nil, fmt.Errorf("load %s: %w", c.EnvFile, err)
	}

	return func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fileEnv[key]
	}, nil
}

func run(args []string, cfg Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	getenv, err := cfg.lookupEnv()
	if err != nil {
		return err
	}

	cmd := newRootCmd(cfg.Stdout, cfg.Stderr, getenv)
	if len(args) > 0 {
		args = args[1:]
	}
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	apiclient "github.com/splax/tasktrack/pkg/api/client"
	"golang.org/x/term"
)

const requestTimeout = 15 * time.Second

type credentialFlags struct {
	email    *string
	password *string
	apiBase  *string
}

func parseCredentialFlags(name string, args []string) (credentialFlags, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	flags := credentialFlags{
		email:    fs.String("email", "", "Email address"),
		password: fs.String("password", "", "Password (supply to avoid prompt)"),
		apiBase:  fs.String("api", "", "API base URL (default "+apiclient.DefaultBaseURL+")"),
	}
	fs.Parse(args)
	if strings.TrimSpace(*flags.email) == "" {
		return credentialFlags{}, errors.New("--email is required")
	}
	return flags, nil
}

func readSecret(value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Print("Password: ")
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytes), nil
}

// authenticate runs register or login and persists the returned token.
func authenticate(name string, args []string, call func(*apiclient.Client, context.Context, string, string) (apiclient.AuthResponse, error)) error {
	flags, err := parseCredentialFlags(name, args)
	if err != nil {
		return err
	}
	secret, err := readSecret(*flags.password)
	if err != nil {
		return err
	}

	cfg, _ := loadConfig()
	if strings.TrimSpace(*flags.apiBase) != "" {
		cfg.APIBaseURL = *flags.apiBase
	} else if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL()
	}

	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	resp, err := call(client, ctx, *flags.email, secret)
	if err != nil {
		return err
	}
	cfg.APIBaseURL = client.BaseURL()
	cfg.AccessToken = resp.Token
	cfg.Email = resp.User.Email
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println(strings.ToLower(resp.Message))
	return nil
}

func commandRegister(args []string) error {
	return authenticate("register", args, (*apiclient.Client).Register)
}

func commandLogin(args []string) error {
	return authenticate("login", args, (*apiclient.Client).Login)
}

func commandWhoami(args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	fs.Parse(args)

	client, cfg, err := newClient()
	if err != nil {
		return err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return errors.New("please login first using 'todo login'")
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	user, err := client.Validate(ctx, token)
	if err != nil {
		if apiclient.IsStatus(err, http.StatusUnauthorized) {
			return errors.New("session expired, please login again")
		}
		return err
	}
	fmt.Printf("%s (%s)\n", user.Email, user.ID)
	return nil
}

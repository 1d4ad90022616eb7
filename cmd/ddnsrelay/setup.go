package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/Travis-Britz/ddnsrelay/internal/config"
	"github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"
	"golang.org/x/term"
)

// runSetup asks for the Cloudflare token, zone and relay credentials and writes them to path.
func runSetup(logger logr.Logger, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file \"%s\" already exists", path)
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return errors.New("setup needs an interactive terminal")
	}
	in := bufio.NewReader(os.Stdin)
	cfg := config.Default()

	key, err := readPassword("Enter Cloudflare API Token: ")
	if err != nil {
		return err
	}
	api, err := cloudflare.NewWithAPIToken(key)
	if err != nil {
		return fmt.Errorf("error creating api client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("verifying token")
	result, err := api.VerifyAPIToken(ctx)
	if err != nil {
		return fmt.Errorf("unable to verify api token: %w", err)
	}
	if result.Status != "active" {
		return fmt.Errorf("expected api token status to be \"active\"; got \"%s\"", result.Status)
	}
	logger.Info("token verified successfully")
	cfg.Cloudflare.APIToken = key

	zone, err := prompt(in, "Zone name (e.g. example.com): ", "")
	if err != nil {
		return err
	}
	cfg.Cloudflare.ZoneID, err = api.ZoneIDByName(zone)
	if err != nil {
		return fmt.Errorf("unable to get zone ID for %s: %w", zone, err)
	}
	cfg.Cloudflare.ZoneName = zone
	logger.Info("got zone ID", "zone", zone, "zoneID", cfg.Cloudflare.ZoneID)

	if cfg.Credentials.Username, err = prompt(in, "Relay username ["+config.DefaultUsername+"]: ", config.DefaultUsername); err != nil {
		return err
	}
	if cfg.Credentials.Password, err = readPassword("Relay password: "); err != nil {
		return err
	}
	if cfg.Credentials.Password == "" {
		return errors.New("relay password cannot be empty")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Info("writing config file", "path", path)
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	logger.Info("config written", "path", path)
	return nil
}

func readPassword(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("error reading from stdin: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func prompt(in *bufio.Reader, label, defaultvalue string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := in.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("error reading from stdin: %w", err)
	}
	if line = strings.TrimSpace(line); line == "" {
		return defaultvalue, nil
	}
	return line, nil
}

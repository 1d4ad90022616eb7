// Command ddnsrelay-client reports this machine's address to a ddnsrelay server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Travis-Britz/ddnsrelay/internal/config"
	"github.com/Travis-Britz/ddnsrelay/reporter"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var flags = struct {
	Server    string
	Domain    string
	Username  string
	KeyFile   string
	Resolvers string
	Interface string
	Interval  time.Duration
	Once      bool
	Verbose   bool
}{}

func init() {
	flag.StringVar(&flags.Server, "s", env("DDNS_SERVER", ""), "Relay URL, e.g. https://relay.example.com/")
	flag.StringVar(&flags.Domain, "d", "", "DNS entry to update")
	flag.StringVar(&flags.Username, "u", env("DDNS_USERNAME", config.DefaultUsername), "Relay username")
	flag.StringVar(&flags.KeyFile, "k", filepath.Join(os.Getenv("HOME"), ".ddnsrelay"), "Path to the relay password file")
	flag.StringVar(&flags.Resolvers, "r", "https://checkip.amazonaws.com/,https://ipv4.icanhazip.com/,https://ipinfo.io/ip", "Comma separated IP echo services used to detect address changes; empty reports every interval")
	flag.StringVar(&flags.Interface, "iface", "", "Detect address changes from this network interface instead of echo services")
	flag.DurationVar(&flags.Interval, "i", 5*time.Minute, "Duration to wait between IP checks")
	flag.BoolVar(&flags.Once, "once", false, "Report once and exit")
	flag.BoolVar(&flags.Verbose, "v", false, "Enable verbose logging")
}

func main() {
	flag.Parse()

	var zl *zap.Logger
	var err error
	if flags.Verbose {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("error creating logger: %s", err)
	}
	defer zl.Sync()

	if err := run(zapr.NewLogger(zl)); err != nil {
		zl.Sugar().Errorf("%s", err)
		zl.Sync()
		os.Exit(1)
	}
}

func run(logger logr.Logger) error {
	if err := validate(logger); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	password, err := config.ReadSecret(flags.KeyFile)
	if err != nil {
		return fmt.Errorf("error reading key: %w", err)
	}
	logger.V(1).Info("successfully read password from key file")

	var resolver reporter.Resolver
	switch {
	case flags.Interface != "":
		resolver = reporter.InterfaceResolver(flags.Interface)
	case flags.Resolvers != "":
		if resolver, err = reporter.WebResolver(strings.Split(flags.Resolvers, ",")...); err != nil {
			return fmt.Errorf("error creating resolver: %w", err)
		}
	}

	client, err := reporter.New(flags.Server, flags.Domain,
		reporter.WithCredentials(flags.Username, password),
		reporter.WithLogger(logger),
		reporter.UsingResolver(resolver),
	)
	if err != nil {
		return fmt.Errorf("error creating reporter: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.RunDDNS(ctx); err != nil {
		if flags.Once {
			return err
		}
		logger.Error(err, "initial update failed")
	}
	if flags.Once {
		return nil
	}

	reporter.RunDaemon(ctx, client, flags.Interval, logger)
	<-ctx.Done()
	return nil
}

func validate(logger logr.Logger) error {
	if flags.Server == "" {
		return errors.New("relay URL cannot be empty")
	}
	if flags.Domain == "" {
		return errors.New("domain cannot be empty")
	}
	if !strings.Contains(flags.Domain, ".") {
		return errors.New("domain must have at least one dot")
	}

	_, err := os.Stat(flags.KeyFile)
	if os.IsNotExist(err) {
		logger.Info("key file does not exist", "path", flags.KeyFile)
		if err := runSetup(logger); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}
	return config.VerifyPermissions(flags.KeyFile)
}

// runSetup prompts for the relay password and stores it in the key file.
func runSetup(logger logr.Logger) error {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return errors.New("no key file and no terminal to ask for the password")
	}
	time.Sleep(200 * time.Millisecond) // dirty timer hack to try to get stderr and stdout output lines to display in order
	fmt.Printf("Enter relay password for %s: \n", flags.Username)
	b, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("runSetup: error reading from stdin: %w", err)
	}
	if len(b) == 0 {
		return errors.New("runSetup: password cannot be empty")
	}

	logger.Info("creating key file", "path", flags.KeyFile)
	if err := config.WriteSecret(flags.KeyFile, string(b)); err != nil {
		return err
	}
	logger.Info("password written", "path", flags.KeyFile)
	return nil
}

func env(envvar string, defaultvalue string) string {
	e, found := os.LookupEnv(envvar)
	if found {
		return e
	}
	return defaultvalue
}

package config

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"

	"go.yaml.in/yaml/v3"
)

// VerifyPermissions fails unless path is readable by its owner only.
func VerifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking file permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	// The file might be provided by some secrets managing software as readonly.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", path, fs.FileMode(perms))
	}
	return nil
}

// ReadSecret returns the first line of the file at path after checking its permissions.
func ReadSecret(path string) (string, error) {
	if err := VerifyPermissions(path); err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error reading secret: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	line, _, err := r.ReadLine()
	if err != nil {
		return "", fmt.Errorf("error reading line: %w", err)
	}
	return string(line), nil
}

// WriteSecret creates path with mode 0600 and writes secret to it.
// It refuses to overwrite an existing file.
func WriteSecret(path, secret string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create \"%s\": %w", path, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, secret); err != nil {
		return fmt.Errorf("unable to write \"%s\": %w", path, err)
	}
	return nil
}

// Save writes cfg to a new file at path with mode 0600.
// It refuses to overwrite an existing file.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create \"%s\": %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("unable to write \"%s\": %w", path, err)
	}
	return nil
}

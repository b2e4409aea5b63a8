package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// loadDotEnvFiles applies .env files without overriding variables that are
// already set. Earlier files win: envFile, then <dataDir>/.env, then ./.env.
func loadDotEnvFiles(envFile, dataDir string) error {
	var paths []string
	if strings.TrimSpace(envFile) != "" {
		paths = append(paths, envFile)
	}
	if strings.TrimSpace(dataDir) != "" {
		paths = append(paths, filepath.Join(dataDir, ".env"))
	}
	paths = append(paths, ".env")

	var lastErr error
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err == nil {
			if seen[abs] {
				continue
			}
			seen[abs] = true
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := loadDotEnvFile(p); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func loadDotEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		key, val, ok := parseDotEnvLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	return scanner.Err()
}

// parseDotEnvLine splits KEY=value, honouring an "export " prefix and
// quoting. Unquoted values drop a trailing " # comment".
func parseDotEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	key, val, ok := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", false
	}
	val = strings.TrimSpace(val)
	if n := len(val); n >= 2 && (val[0] == '"' || val[0] == '\'') && val[n-1] == val[0] {
		return key, val[1 : n-1], true
	}
	if i := strings.Index(val, " #"); i >= 0 {
		val = strings.TrimSpace(val[:i])
	}
	return key, val, true
}

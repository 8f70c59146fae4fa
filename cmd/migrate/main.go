package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

// Applies schema migrations for the sessions database.
//
//	migrate [-dir path] [up|down|step N|force V|version]
func main() {
	dir := flag.String("dir", "", "migrations directory (default: nearest ./migrations)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DB_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	path := *dir
	if path == "" {
		found, err := locateMigrations()
		if err != nil {
			log.Fatalf("Migrations directory not found: %v", err)
		}
		path = found
	}

	m, err := migrate.New("file://"+path, dbURL)
	if err != nil {
		log.Fatalf("Opening migrator: %v", err)
	}
	defer m.Close()

	args := flag.Args()
	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "up":
		runAndReport(m, m.Up(), "up")
	case "down":
		runAndReport(m, m.Down(), "down")
	case "step":
		if len(args) < 2 {
			log.Fatal("step requires a count, e.g. step -1")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Invalid step count %q: %v", args[1], err)
		}
		runAndReport(m, m.Steps(n), "step")
	case "force":
		if len(args) < 2 {
			log.Fatal("force requires a version")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Invalid version %q: %v", args[1], err)
		}
		runAndReport(m, m.Force(v), "force")
	case "version":
		printVersion(m)
	default:
		log.Fatalf("Unknown command %q (want up, down, step, force or version)", cmd)
	}
}

func runAndReport(m *migrate.Migrate, err error, cmd string) {
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration %s failed: %v", cmd, err)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Printf("Migration %s: no change", cmd)
	} else {
		log.Printf("Migration %s successful", cmd)
	}
	printVersion(m)
}

func printVersion(m *migrate.Migrate) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Println("Schema version: none")
		return
	}
	if err != nil {
		log.Fatalf("Reading schema version: %v", err)
	}
	if dirty {
		log.Printf("Schema version: %d (dirty)", version)
	} else {
		log.Printf("Schema version: %d", version)
	}
}

// locateMigrations walks from the working directory toward the
// filesystem root and falls back to the executable's directory, so the
// tool works from the repo root, a package dir, or an installed binary.
func locateMigrations() (string, error) {
	var candidates []string

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for current := cwd; ; current = filepath.Dir(current) {
		candidates = append(candidates, filepath.Join(current, "migrations"))
		if filepath.Dir(current) == current || len(candidates) >= 6 {
			break
		}
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(exeDir, "migrations"),
			filepath.Join(exeDir, "..", "migrations"),
		)
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
	}
	return "", errors.New("no migrations directory near " + cwd)
}

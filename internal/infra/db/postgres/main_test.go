//go:build integration

package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
)

var testPool *pgxpool.Pool

// findProjectRoot walks up from the working directory to the directory holding go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root containing go.mod")
}

// startPostgres launches a throwaway postgres:14 container and returns its
// DSN and container id.
func startPostgres() (string, string, error) {
	const (
		dbName     = "meal-planner-test"
		dbUser     = "user"
		dbPassword = "password"
	)
	cmd := exec.Command("docker", "run", "-d", "--rm",
		"--network", "host",
		"-e", "POSTGRES_DB="+dbName,
		"-e", "POSTGRES_USER="+dbUser,
		"-e", "POSTGRES_PASSWORD="+dbPassword,
		"postgres:14",
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", "", fmt.Errorf("could not start postgres container: %w. Is Docker running?", err)
	}
	id := strings.TrimSpace(out.String())
	if len(id) > 12 {
		id = id[:12]
	}
	dsn := fmt.Sprintf("postgres://%s:%s@localhost:5432/%s?sslmode=disable", dbUser, dbPassword, dbName)
	return dsn, id, nil
}

func TestMain(m *testing.M) {
	ctx := context.Background()

	// TEST_DATABASE_URL points at an existing empty database and skips docker.
	dsn := os.Getenv("TEST_DATABASE_URL")
	containerID := ""
	if dsn == "" {
		var err error
		dsn, containerID, err = startPostgres()
		if err != nil {
			log.Fatal(err)
		}
	}
	stop := func() {
		if containerID == "" {
			return
		}
		if err := exec.Command("docker", "stop", containerID).Run(); err != nil {
			log.Printf("could not stop postgres container %s: %v", containerID, err)
		}
	}

	var err error
	const maxRetries = 15
	for i := 0; i < maxRetries; i++ {
		testPool, err = pgxpool.Connect(ctx, dsn)
		if err == nil {
			err = testPool.Ping(ctx)
		}
		if err == nil {
			break
		}
		log.Printf("waiting for database (attempt %d/%d)", i+1, maxRetries)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		stop()
		log.Fatalf("unable to connect to test database: %v", err)
	}

	root, err := findProjectRoot()
	if err != nil {
		stop()
		log.Fatalf("find project root: %v", err)
	}
	schema, err := os.ReadFile(filepath.Join(root, "deploy", "postgres", "init.sql"))
	if err != nil {
		stop()
		log.Fatalf("read init.sql: %v", err)
	}
	if _, err := testPool.Exec(ctx, string(schema)); err != nil {
		stop()
		log.Fatalf("apply schema: %v", err)
	}

	code := m.Run()

	testPool.Close()
	stop()
	os.Exit(code)
}

func cleanup(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `
		TRUNCATE meal_plan_jobs, meal_plans, user_preferences, user_notifications
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("failed to clean up database: %v", err)
	}
}

package clickhouse

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const clickhouseImage = "clickhouse/clickhouse-server:24.1-alpine"

// setupTestDB starts a throwaway ClickHouse, applies the schema and returns
// a connection plus a cleanup func. Skipped with -short.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("clickhouse container test skipped in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        clickhouseImage,
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"CLICKHOUSE_DB":       "execlab",
				"CLICKHOUSE_USER":     "default",
				"CLICKHOUSE_PASSWORD": "",
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("Ready for connections").WithStartupTimeout(60*time.Second),
				wait.ForListeningPort("9000/tcp"),
			),
		},
		Started: true,
	})
	require.NoError(t, err, "start clickhouse container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	conn, err := NewConn(ctx, fmt.Sprintf("clickhouse://%s:%s/execlab", host, port.Port()))
	require.NoError(t, err)
	applySchema(t, ctx, conn)

	return conn, func() {
		conn.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate clickhouse container: %v", err)
		}
	}
}

// applySchema executes ../migrations/clickhouse/*.sql one statement at a
// time. The migrations package imports this one, so the files are read
// from disk.
func applySchema(t *testing.T, ctx context.Context, conn *Conn) {
	t.Helper()
	fsys := os.DirFS("../migrations")
	files, err := fs.Glob(fsys, "clickhouse/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files, "no clickhouse migrations found")

	for _, f := range files {
		sql, err := fs.ReadFile(fsys, f)
		require.NoError(t, err)
		for _, stmt := range statements(string(sql)) {
			require.NoError(t, conn.Exec(ctx, stmt), "apply %s", f)
		}
	}
}

func statements(sql string) []string {
	var out []string
	for _, part := range strings.Split(sql, ";") {
		var body []string
		for _, line := range strings.Split(part, "\n") {
			if !strings.HasPrefix(strings.TrimSpace(line), "--") {
				body = append(body, line)
			}
		}
		if stmt := strings.TrimSpace(strings.Join(body, "\n")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

package cli

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for one writer goroutine and a polling
// reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// execCLI runs the root command with a config path that does not exist, so
// every test starts from the defaults.
func execCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	out, errOut := &syncBuffer{}, &syncBuffer{}
	err = execCLIContext(t, context.Background(), out, errOut, args...)
	return out.String(), errOut.String(), err
}

func execCLIContext(t *testing.T, ctx context.Context, out, errOut *syncBuffer, args ...string) error {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	full := append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...)
	cmd.SetArgs(full)
	return cmd.ExecuteContext(ctx)
}

// otherDatabase creates a SQLite file that is not a campaign save.
func otherDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "other.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE settings (key TEXT)`)
	require.NoError(t, err)
	return path
}

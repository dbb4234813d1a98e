package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/ndlib/ioxstore/ident"
	"github.com/ndlib/ioxstore/iox"
	"github.com/ndlib/ioxstore/store"
)

// run executes the command line args with stdin as standard input, and
// returns what was written to standard output.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd, a := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(ioutil.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := a.execute(context.Background(), cmd)
	return out.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	base := []string{"-l", dir, "-s", "1", "-d", "clouds", "--log-level", "error"}
	cmd := func(args ...string) []string {
		return append(append([]string{}, args...), base...)
	}

	out, err := run(t, "", cmd("paths")...)
	require.NoError(t, err)
	assert.Equal(t, "root 1/clouds/\ndata 1/clouds/data/\ncatalog 1/clouds/transactions/\n", out)

	_, err = run(t, "hello", cmd("put", "data/a")...)
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "b")
	require.NoError(t, ioutil.WriteFile(file, []byte("from a file"), 0644))
	_, err = run(t, "", cmd("put", "data/b", file)...)
	require.NoError(t, err)

	out, err = run(t, "", cmd("get", "data/a")...)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	out, err = run(t, "", cmd("get", "/data/b")...)
	require.NoError(t, err)
	assert.Equal(t, "from a file", out)

	out, err = run(t, "", cmd("ls")...)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"data/a", "data/b"}, lines(out))

	id := uuid.MustParse("6f9a7b52-3c1d-4c8e-9a4f-0d5b2e7c1a33")
	_, err = run(t, "txn", cmd("put", iox.TransactionPath(5, id, iox.Delta).String())...)
	require.NoError(t, err)
	out, err = run(t, "", cmd("transactions")...)
	require.NoError(t, err)
	assert.Equal(t, "5\tdelta\t"+id.String()+"\n", out)

	out, err = run(t, "", cmd("verify")...)
	require.NoError(t, err)
	assert.Contains(t, out, "3 objects\n")
	assert.Contains(t, out, "1 transactions\n")
	assert.Contains(t, out, "0 outside the database\n")

	_, err = run(t, "", cmd("rm", "data/a", "data/never")...)
	require.NoError(t, err)
	_, err = run(t, "", cmd("get", "data/a")...)
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))

	// another database on the same server sees nothing
	out, err = run(t, "", "ls", "-l", dir, "-s", "1", "-d", "rain", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestCommandConfigFile(t *testing.T) {
	dir := t.TempDir()
	config := writeConfig(t, `
location = "`+dir+`"
server_id = 7
database = "rain"
log_level = "error"
`)
	out, err := run(t, "", "paths", "-c", config)
	require.NoError(t, err)
	assert.Contains(t, out, "root 7/rain/\n")

	// flags win over the file
	out, err = run(t, "", "paths", "-c", config, "-d", "snow")
	require.NoError(t, err)
	assert.Contains(t, out, "root 7/snow/\n")
}

func TestCommandErrors(t *testing.T) {
	_, err := run(t, "", "paths", "-d", "clouds", "--log-level", "error")
	assert.Equal(t, ident.ErrZeroServerID, err)

	_, err = run(t, "", "paths", "-s", "1", "-d", "bad name", "--log-level", "error")
	assert.Error(t, err)

	_, err = run(t, "", "put", "", "-s", "1", "-d", "clouds", "--log-level", "error")
	assert.Equal(t, iox.ErrEmptyPath, err)

	_, err = run(t, "", "rm", "/", "-s", "1", "-d", "clouds", "--log-level", "error")
	assert.Equal(t, iox.ErrEmptyPath, err)
}

func TestCommandClosesStoreAfterError(t *testing.T) {
	db := filepath.Join(t.TempDir(), "objects.db")
	cmd := func(args ...string) []string {
		return append(args, "-l", "bolt:"+db, "-s", "1", "-d", "clouds", "--log-level", "error")
	}

	_, err := run(t, "", cmd("get", "data/missing")...)
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err), "got %v", err)

	// bolt holds a lock on the file while it is open, so this times out
	// if the failed command left the store open
	b, err := store.OpenBolt(db, &bbolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = run(t, "stored", cmd("put", "data/a")...)
	require.NoError(t, err)
	out, err := run(t, "", cmd("get", "data/a")...)
	require.NoError(t, err)
	assert.Equal(t, "stored", out)
}

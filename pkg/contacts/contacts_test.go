package contacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperOutput = `{
  "Jane Doe": "+1 (555) 010-2000",
  "alex Kim": "555.010.3000",
  "Sam": "",
  "  ": "+15550104000"
}`

func TestReadDirectory(t *testing.T) {
	d, err := ReadDirectory(strings.NewReader(helperOutput))
	require.NoError(t, err)

	assert.Equal(t, 2, d.Len())
	assert.Equal(t, []string{"Jane Doe", "alex Kim"}, d.Names())

	n, ok := d.Lookup("Jane Doe")
	require.True(t, ok)
	assert.Equal(t, "+15550102000", n)

	n, ok = d.Lookup("ALEX kim")
	require.True(t, ok)
	assert.Equal(t, "5550103000", n)

	_, ok = d.Lookup("Sam")
	assert.False(t, ok)
}

func TestReadDirectoryRejectsGarbage(t *testing.T) {
	_, err := ReadDirectory(strings.NewReader("Access to contacts was denied."))
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	d := NewDirectory(map[string]string{
		"Jane Doe":  "+15550102000",
		"Janet Roe": "+15550102001",
		"Bob":       "+15550102002",
	})
	assert.Equal(t, []string{"Jane Doe", "Janet Roe"}, d.Filter("JAN"))
	assert.Equal(t, []string{"Bob", "Jane Doe", "Janet Roe"}, d.Filter("  "))
	assert.Empty(t, d.Filter("zed"))
}

func TestLoadDirectoryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.json")
	require.NoError(t, os.WriteFile(path, []byte(helperOutput), 0o600))

	d, err := LoadDirectoryFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())

	_, err = LoadDirectoryFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadDirectoryCommand(t *testing.T) {
	var gotName string
	var gotArgs []string
	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte(helperOutput), nil
	}

	d, err := LoadDirectoryCommand(context.Background(), run, []string{"./FetchContacts", "--json"})
	require.NoError(t, err)
	assert.Equal(t, "./FetchContacts", gotName)
	assert.Equal(t, []string{"--json"}, gotArgs)
	assert.Equal(t, 2, d.Len())

	_, err = LoadDirectoryCommand(context.Background(), run, nil)
	assert.Error(t, err)

	failing := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	_, err = LoadDirectoryCommand(context.Background(), failing, []string{"helper"})
	assert.ErrorContains(t, err, "failed to run contacts helper")
}

func TestIsAddress(t *testing.T) {
	for _, s := range []string{"+15550102000", "(555) 010-2000", "jane@example.com"} {
		assert.True(t, IsAddress(s), s)
	}
	for _, s := range []string{"Jane Doe", "Mom", "123", "jane@"} {
		assert.False(t, IsAddress(s), s)
	}
}

func TestDirectoryResolver(t *testing.T) {
	r := DirectoryResolver{Directory: NewDirectory(map[string]string{"Jane Doe": "+15550102000"})}
	ctx := context.Background()

	addr, err := r.Resolve(ctx, "jane doe")
	require.NoError(t, err)
	assert.Equal(t, "+15550102000", addr)

	addr, err = r.Resolve(ctx, "+1 555 010 9999")
	require.NoError(t, err)
	assert.Equal(t, "+15550109999", addr)

	addr, err = r.Resolve(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", addr)

	_, err = r.Resolve(ctx, "Nobody")
	assert.ErrorIs(t, err, ErrContactNotFound)

	_, err = DirectoryResolver{}.Resolve(ctx, "Jane Doe")
	assert.ErrorIs(t, err, ErrContactNotFound)
}

func TestScriptResolver(t *testing.T) {
	var gotArgs []string
	r := &ScriptResolver{
		ScriptDir: "/opt/scripts",
		Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			assert.Equal(t, "osascript", name)
			gotArgs = args
			return []byte("+1 (555) 010-2000\n"), nil
		},
	}

	addr, err := r.Resolve(context.Background(), "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "+15550102000", addr)
	assert.Equal(t, []string{filepath.Join("/opt/scripts", resolveScript), "Jane Doe"}, gotArgs)
}

func TestScriptResolverFailures(t *testing.T) {
	ctx := context.Background()
	failing := &ScriptResolver{Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("execution error: Can't get person")
	}}
	_, err := failing.Resolve(ctx, "Jane Doe")
	assert.ErrorIs(t, err, ErrContactNotFound)

	blank := &ScriptResolver{Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("\n"), nil
	}}
	_, err = blank.Resolve(ctx, "Jane Doe")
	assert.ErrorIs(t, err, ErrContactNotFound)
}

type resolverFunc func(ctx context.Context, name string) (string, error)

func (f resolverFunc) Resolve(ctx context.Context, name string) (string, error) { return f(ctx, name) }

func TestChain(t *testing.T) {
	ctx := context.Background()
	dir := DirectoryResolver{Directory: NewDirectory(map[string]string{"Jane Doe": "+15550102000"})}
	calledScript := false
	script := resolverFunc(func(ctx context.Context, name string) (string, error) {
		calledScript = true
		if name == "Alex Kim" {
			return "+15550103000", nil
		}
		return "", ErrContactNotFound
	})
	chain := Chain{dir, script}

	addr, err := chain.Resolve(ctx, "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "+15550102000", addr)
	assert.False(t, calledScript)

	addr, err = chain.Resolve(ctx, "Alex Kim")
	require.NoError(t, err)
	assert.Equal(t, "+15550103000", addr)

	_, err = chain.Resolve(ctx, "Nobody")
	assert.ErrorIs(t, err, ErrContactNotFound)

	_, err = Chain{}.Resolve(ctx, "Nobody")
	assert.ErrorIs(t, err, ErrContactNotFound)

	boom := errors.New("boom")
	_, err = Chain{resolverFunc(func(context.Context, string) (string, error) { return "", boom }), dir}.Resolve(ctx, "Jane Doe")
	assert.ErrorIs(t, err, boom)
}

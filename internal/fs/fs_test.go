package fs

import (
	"context"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecureDirAlreadyHere(t *testing.T) {
	tmpPath := path.Join(t.TempDir(), "keys")

	fpath, err := CreateSecureFolder(context.Background(), tmpPath)
	require.NoError(t, err)

	npath, err := CreateSecureFolder(context.Background(), tmpPath)
	require.NoError(t, err)
	require.Equal(t, fpath, npath)

	b, e := Exists(npath)
	require.True(t, b)
	require.NoError(t, e)

	b, e = Exists(path.Join(tmpPath, "absent"))
	require.False(t, b)
	require.NoError(t, e)

	file := path.Join(tmpPath, "secured")
	f, err := CreateSecureFile(file)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	info, err := os.Stat(file)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	files, err := Files(tmpPath)
	require.NoError(t, err)
	require.Equal(t, []string{file}, files)
}

func TestReadableFolderAccepted(t *testing.T) {
	tmpPath := path.Join(t.TempDir(), "shared")
	require.NoError(t, os.MkdirAll(tmpPath, 0755))
	require.NoError(t, os.Chmod(tmpPath, 0755))

	fpath, err := CreateSecureFolder(context.Background(), tmpPath)
	require.NoError(t, err)
	require.Equal(t, tmpPath, fpath)
}

func TestWorldWritableFolderRejected(t *testing.T) {
	tmpPath := path.Join(t.TempDir(), "open")
	require.NoError(t, os.MkdirAll(tmpPath, 0777))
	require.NoError(t, os.Chmod(tmpPath, 0777))

	_, err := CreateSecureFolder(context.Background(), tmpPath)
	require.Error(t, err)
}

// Package fs holds some utilities for manipulating the file system
package fs

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/zkcred/zkcred/common/log"
)

const (
	defaultDirectoryPermission = 0740
	secureFilePermission       = 0600
)

// CreateSecureFolder creates the folder with owner-only write rights if it
// does not exist yet. An existing folder others can write to is rejected; one
// that is merely broader than the default is used as is and reported.
func CreateSecureFolder(ctx context.Context, folder string) (string, error) {
	exists, err := Exists(folder)
	if err != nil {
		return "", err
	}
	if !exists {
		if err := os.MkdirAll(folder, defaultDirectoryPermission); err != nil {
			return "", fmt.Errorf("creating folder %s: %w", folder, err)
		}
		return folder, nil
	}

	info, err := os.Lstat(folder)
	if err != nil {
		return "", fmt.Errorf("checking folder %s: %w", folder, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a folder", folder)
	}
	perm := info.Mode().Perm()
	if perm&0002 != 0 {
		return "", fmt.Errorf("folder %s is world writable: %#o", folder, perm)
	}
	if perm != defaultDirectoryPermission {
		log.FromContextOrDefault(ctx).Warnw("folder has different permission", "folder", folder, "perm", fmt.Sprintf("%#o", perm), "expected", fmt.Sprintf("%#o", defaultDirectoryPermission))
	}
	return folder, nil
}

// Exists returns whether the given file or directory exists.
func Exists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return true, err
}

// CreateSecureFile creates (or truncates) a file readable and writable by the
// user only and returns the file handle.
func CreateSecureFile(file string) (*os.File, error) {
	fd, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_TRUNC, secureFilePermission)
	if err != nil {
		return nil, err
	}
	if err := fd.Chmod(secureFilePermission); err != nil {
		_ = fd.Close()
		return nil, err
	}
	return fd, nil
}

// Files returns the list of file names included in the given path or error if
// any.
func Files(folderPath string) ([]string, error) {
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, path.Join(folderPath, e.Name()))
		}
	}
	return files, nil
}

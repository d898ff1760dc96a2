// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package stagingdir builds files in a temporary location and moves them into
// place once they are complete.
package stagingdir

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// D manages a staging directory.
//
// While D is active, it resides in a temporary location. Once finished, a
// file within D can be committed, atomically moving it to its destination, or
// D can be destroyed along with all of its contents.
type D struct {
	// tempDir is the temporary directory to use for staging.
	tempDir string

	// path is the path of the staging directory.
	path string
}

// New creates a new staging directory underneath of tempDir.
//
// The directory will be created with the specified prefix. If tempDir is
// empty, the system temporary directory is used.
func New(tempDir, prefix string) (*D, error) {
	stagingPath, err := ioutil.TempDir(tempDir, prefix)
	if err != nil {
		return nil, err
	}

	return &D{
		tempDir: tempDir,
		path:    stagingPath,
	}, nil
}

// Path returns the path of name within the staging directory.
func (sd *D) Path(name string) string {
	if sd.path == "" {
		panic("staging directory has been destroyed")
	}
	return filepath.Join(sd.path, name)
}

// Destroy purges the staging directory and its contents.
func (sd *D) Destroy() error {
	if sd.path == "" {
		// There is nothing to destroy.
		return nil
	}

	if err := os.RemoveAll(sd.path); err != nil {
		return err
	}

	sd.path = "" // Destroyed.
	return nil
}

// CommitFile moves the staged file name to dest, replacing anything already
// there, then destroys the staging directory.
//
// The rename is atomic if the staging directory and dest are on the same
// filesystem.
func (sd *D) CommitFile(name, dest string) error {
	if sd.path == "" {
		return errors.New("invalid staging directory")
	}

	src := sd.Path(name)
	if err := os.Rename(src, dest); err != nil {
		// Rename fails across filesystems. Fall back to copying into place.
		if err := copyFile(src, dest); err != nil {
			return errors.Wrapf(err, "moving staged file into place (%q => %q)", src, dest)
		}
	}
	return sd.Destroy()
}

func copyFile(src, dest string) error {
	data, err := ioutil.ReadFile(src)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(dest, data, 0644)
}

// Package download walks Google Drive file and folder trees and transfers
// their contents to local storage, with resumable transfers, a tree-wide
// concurrency ceiling and ordered lifecycle callbacks.
package download

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/gdget/gdget/gdrive"
)

// Options configure a single-file download.
type Options struct {
	// OutputDir is the directory the file is saved into. Defaults to ".".
	OutputDir string

	// Force re-downloads the file even when the destination already exists.
	// Without it an existing destination is skipped, content unchecked.
	Force bool

	// Callback receives the file lifecycle events. Nil means no-op.
	Callback FileCallback
}

// FolderOptions configure a folder-tree download.
type FolderOptions struct {
	OutputDir string
	Force     bool

	// MaxConcurrency bounds the number of file transfers in flight across
	// the whole tree. Zero means unlimited; negative values are rejected.
	// Folder recursion itself is never gated, only leaf transfers.
	MaxConcurrency int

	// Callback receives the folder and file lifecycle events. Nil means
	// no-op.
	Callback FolderCallback
}

// File resolves a file ID or URL and downloads it into opts.OutputDir under
// its remote name. Resolution failures abort before any filesystem side
// effect.
func File(ctx context.Context, c *gdrive.Client, idOrURL string, opts Options) error {
	file, err := gdrive.RetrieveFile(ctx, c, idOrURL)
	if err != nil {
		return err
	}
	return FileNode(ctx, c, file, opts)
}

// FileNode downloads an already-resolved file.
func FileNode(ctx context.Context, c *gdrive.Client, file *gdrive.File, opts Options) error {
	cb := opts.Callback
	if cb == nil {
		cb = NopFileCallback{}
	}

	dest := filepath.Join(outputDir(opts.OutputDir), file.Name)
	if err := checkFilePath(dest); err != nil {
		return err
	}
	return downloadFile(ctx, c, file, dest, opts.Force, nil, cb)
}

// Folder resolves a folder ID or URL, builds its full tree and downloads it
// into opts.OutputDir under its remote name. Resolution failures abort
// before any filesystem side effect.
func Folder(ctx context.Context, c *gdrive.Client, idOrURL string, opts FolderOptions) error {
	if err := checkConcurrency(opts.MaxConcurrency); err != nil {
		return err
	}
	folder, err := gdrive.RetrieveFolder(ctx, c, idOrURL)
	if err != nil {
		return err
	}
	return FolderNode(ctx, c, folder, opts)
}

// FolderNode downloads an already-built folder tree. Only the items present
// in the tree are downloaded, so a caller may prune the tree before passing
// it in.
func FolderNode(ctx context.Context, c *gdrive.Client, folder *gdrive.Folder, opts FolderOptions) (err error) {
	if err := checkConcurrency(opts.MaxConcurrency); err != nil {
		return err
	}
	cb := opts.Callback
	if cb == nil {
		cb = NopFolderCallback{}
	}

	root := filepath.Join(outputDir(opts.OutputDir), folder.Name)
	if err := checkFolderPath(folder, root); err != nil {
		return err
	}

	var gate *semaphore.Weighted
	if opts.MaxConcurrency > 0 {
		gate = semaphore.NewWeighted(int64(opts.MaxConcurrency))
	}

	success := false
	defer func() {
		if cerr := cb.OnFolderCleanup(folder, success); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err = cb.OnFolderSetup(folder, root); err != nil {
		return err
	}
	if err = downloadFolder(ctx, c, folder, root, opts.Force, gate, cb); err != nil {
		return err
	}
	success = true
	return nil
}

// downloadFolder drives one folder: start pre-order, children concurrently,
// complete post-order; a child failure is reported through OnFolderFail
// after the whole group has settled and then re-raised unchanged.
func downloadFolder(ctx context.Context, c *gdrive.Client, folder *gdrive.Folder, dir string, force bool, gate *semaphore.Weighted, cb FolderCallback) error {
	if err := runFolder(ctx, c, folder, dir, force, gate, cb); err != nil {
		// The original child error stays the one propagated; the fail
		// hook cannot override it.
		_ = cb.OnFolderFail(folder, err)
		return err
	}
	return cb.OnFolderComplete(folder)
}

func runFolder(ctx context.Context, c *gdrive.Client, folder *gdrive.Folder, dir string, force bool, gate *semaphore.Weighted, cb FolderCallback) error {
	if err := cb.OnFolderStart(folder); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create directory %s", dir)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, child := range folder.Children {
		switch child.Kind {
		case gdrive.KindFolder:
			sub := child.Folder
			g.Go(func() error {
				return downloadFolder(gctx, c, sub, filepath.Join(dir, sub.Name), force, gate, cb)
			})
		case gdrive.KindFile:
			file := child.File
			g.Go(func() error {
				return downloadFile(gctx, c, file, filepath.Join(dir, file.Name), force, gate, cb)
			})
		default:
			kind := child.Kind
			g.Go(func() error {
				return errors.Wrapf(ErrInvalidArgument, "folder %q holds a node of unknown kind %v", folder.ID, kind)
			})
		}
	}
	return g.Wait()
}

// downloadFile applies the skip/force policy, then transfers the file while
// holding the admission gate. The gate is taken immediately before the
// transfer and released on its exit, never across folder recursion.
func downloadFile(ctx context.Context, c *gdrive.Client, file *gdrive.File, dest string, force bool, gate *semaphore.Weighted, cb FileCallback) error {
	if _, err := os.Stat(dest); err == nil {
		if !force {
			return cb.OnFileSkip(file, dest)
		}
		if err := os.Remove(dest); err != nil {
			return errors.Wrapf(err, "remove stale destination %s", dest)
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "stat destination %s", dest)
	}

	if gate != nil {
		if err := gate.Acquire(ctx, 1); err != nil {
			return err
		}
		defer gate.Release(1)
	}
	return transfer(ctx, c, file, dest, cb)
}

// checkFilePath verifies a prospective file destination: it must be absent
// or an existing regular file.
func checkFilePath(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "stat %s", path)
	}
	if !st.Mode().IsRegular() {
		return errors.Wrapf(ErrInvalidPath, "output path %q is not a file", path)
	}
	return nil
}

// checkFolderPath walks the prospective destination tree before any byte is
// transferred: every folder path must be absent or an existing directory,
// every file path absent or an existing regular file.
func checkFolderPath(folder *gdrive.Folder, dir string) error {
	st, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "stat %s", dir)
	}
	if !st.IsDir() {
		return errors.Wrapf(ErrInvalidPath, "output path %q is not a directory", dir)
	}

	for _, child := range folder.Children {
		switch child.Kind {
		case gdrive.KindFolder:
			if err := checkFolderPath(child.Folder, filepath.Join(dir, child.Folder.Name)); err != nil {
				return err
			}
		case gdrive.KindFile:
			if err := checkFilePath(filepath.Join(dir, child.File.Name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkConcurrency(n int) error {
	if n < 0 {
		return errors.Wrapf(ErrInvalidArgument, "max concurrency must be positive, got %d", n)
	}
	return nil
}

func outputDir(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/gdget/gdget/gdrive"
)

// partSuffix is appended to the destination name while bytes are in flight.
// The artifact never collides with the final name, and its size is the
// resume offset after a crash or an interrupted run.
const partSuffix = ".part"

const copyChunkSize = 32 * 1024

// transfer downloads one file to dest, driving the file lifecycle events on
// cb. A pre-existing temp artifact resumes the transfer from its size.
func transfer(ctx context.Context, c *gdrive.Client, file *gdrive.File, dest string, cb FileCallback) (err error) {
	success := false
	defer func() {
		if cerr := cb.OnFileCleanup(file, success); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err = doTransfer(ctx, c, file, dest, cb); err != nil {
		// The cause already aborts the transfer; a failing fail-hook
		// cannot make that any worse, so its error is not consulted.
		_ = cb.OnFileFail(file, err)
		return err
	}
	success = true
	return nil
}

func doTransfer(ctx context.Context, c *gdrive.Client, file *gdrive.File, dest string, cb FileCallback) error {
	if err := cb.OnFileSetup(file, dest); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, "create parent directory for %s", dest)
	}
	tmp := dest + partSuffix
	if err := touch(tmp); err != nil {
		return errors.Wrapf(err, "create temp artifact %s", tmp)
	}

	resp, err := c.Get(ctx, c.DownloadURL(file.ID), nil)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		os.Remove(tmp)
		return errors.Wrapf(ErrTransferFailed, "download probe for file %q returned status %d", file.ID, resp.StatusCode)
	}

	var downloaded int64
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		// Interstitial confirmation page instead of raw bytes: resubmit
		// its form to reach the real stream, resuming from the temp size.
		resp, downloaded, err = confirmAndResume(ctx, c, file, resp, tmp)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	total := downloaded
	if resp.ContentLength > 0 {
		total += resp.ContentLength
	}

	if downloaded == 0 {
		err = cb.OnFileStart(file, total)
	} else {
		err = cb.OnFileResume(file, downloaded, total)
	}
	if err != nil {
		return err
	}

	if err := stream(ctx, resp.Body, tmp, file, downloaded, total, cb); err != nil {
		return err
	}

	if err := os.Rename(tmp, dest); err != nil {
		return errors.Wrapf(err, "finalize %s", dest)
	}
	return cb.OnFileComplete(file, total)
}

// confirmAndResume parses the interstitial page held in resp, computes the
// resume offset from the temp artifact and issues the ranged follow-up
// request. It consumes and closes resp.
func confirmAndResume(ctx context.Context, c *gdrive.Client, file *gdrive.File, resp *http.Response, tmp string) (*http.Response, int64, error) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, 0, errors.Wrapf(ErrTransferFailed, "read confirmation page for file %q: %v", file.ID, err)
	}

	form, err := gdrive.ParseConfirmation(body)
	if err != nil {
		os.Remove(tmp)
		return nil, 0, errors.Wrapf(ErrTransferFailed, "file %q: %v", file.ID, err)
	}

	st, err := os.Stat(tmp)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "stat temp artifact %s", tmp)
	}
	downloaded := st.Size()

	var header http.Header
	if downloaded > 0 {
		header = http.Header{}
		header.Set("Range", fmt.Sprintf("bytes=%d-", downloaded))
	}

	// Note: the follow-up response is not checked for 206 or for the byte
	// offset it actually starts at; a server ignoring Range would make the
	// appended bytes wrong.
	follow, err := c.Get(ctx, formURL(form), header)
	if err != nil {
		return nil, 0, err
	}
	if follow.StatusCode < 200 || follow.StatusCode > 299 {
		follow.Body.Close()
		return nil, 0, errors.Wrapf(ErrTransferFailed, "download of file %q returned status %d", file.ID, follow.StatusCode)
	}
	return follow, downloaded, nil
}

// stream appends the response body to the temp artifact chunk by chunk,
// reporting progress after every chunk and at least once overall.
func stream(ctx context.Context, body io.Reader, tmp string, file *gdrive.File, downloaded, total int64, cb FileCallback) error {
	flags := os.O_WRONLY | os.O_APPEND
	if downloaded == 0 {
		// starting over: stale bytes in the artifact must not survive
		flags = os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(tmp, flags, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open temp artifact %s", tmp)
	}

	buf := make([]byte, copyChunkSize)
	progressed := false
	for {
		select {
		case <-ctx.Done():
			f.Close()
			return ctx.Err()
		default:
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				return errors.Wrapf(werr, "write temp artifact %s", tmp)
			}
			downloaded += int64(n)
			progressed = true
			if err := cb.OnFileProgress(file, downloaded, total); err != nil {
				f.Close()
				return err
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			f.Close()
			return errors.Wrapf(ErrTransferFailed, "stream for file %q: %v", file.ID, rerr)
		}
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close temp artifact %s", tmp)
	}

	if !progressed {
		// a zero-byte body still reports progress once
		return cb.OnFileProgress(file, downloaded, total)
	}
	return nil
}

// formURL merges the confirmation form's hidden fields into its action URL.
func formURL(form *gdrive.ConfirmForm) string {
	if len(form.Fields) == 0 {
		return form.Action
	}
	sep := "?"
	if strings.Contains(form.Action, "?") {
		sep = "&"
	}
	return form.Action + sep + form.Fields.Encode()
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

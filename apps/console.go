package apps

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/gdget/gdget/download"
	"github.com/gdget/gdget/gdrive"
	"github.com/gdget/gdget/misc"
)

// clearLine rewinds the cursor and erases the current progress line.
const clearLine = "\r\033[K"

const drawInterval = 200 * time.Millisecond

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ConsoleFileCallback renders a single file transfer as one line that is
// rewritten in place on a terminal. On a non-terminal writer only the
// start/end events are printed.
type ConsoleFileCallback struct {
	download.NopFileCallback

	out io.Writer
	tty bool

	mu       sync.Mutex
	stats    *misc.ProgressStats
	last     int64
	lastDraw time.Time
}

func NewConsoleFileCallback(out io.Writer) *ConsoleFileCallback {
	return &ConsoleFileCallback{
		out: out,
		tty: isTerminal(out),
	}
}

func (c *ConsoleFileCallback) OnFileSetup(file *gdrive.File, path string) error {
	fmt.Fprintf(c.out, "Downloading '%s' to '%s'\n", file.Name, path)
	return nil
}

func (c *ConsoleFileCallback) OnFileStart(file *gdrive.File, total int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = misc.NewProgressStats()
	c.last = 0
	return nil
}

func (c *ConsoleFileCallback) OnFileResume(file *gdrive.File, downloaded, total int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = misc.NewProgressStats()
	c.last = downloaded
	fmt.Fprintf(c.out, "Resuming at %s of %s\n", misc.FormatBytes(downloaded), misc.FormatBytes(total))
	return nil
}

func (c *ConsoleFileCallback) OnFileProgress(file *gdrive.File, downloaded, total int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Update(downloaded - c.last)
	c.last = downloaded

	now := time.Now()
	if !c.tty || now.Sub(c.lastDraw) < drawInterval {
		return nil
	}
	c.lastDraw = now

	res := c.stats.Stats(now, false)
	if total > 0 {
		fmt.Fprintf(c.out, "%s%s / %s (%.1f%%) %s/s",
			clearLine, misc.FormatBytes(downloaded), misc.FormatBytes(total),
			float64(downloaded)/float64(total)*100, misc.FormatBytes(int64(res.SpeedBps)))
	} else {
		fmt.Fprintf(c.out, "%s%s %s/s",
			clearLine, misc.FormatBytes(downloaded), misc.FormatBytes(int64(res.SpeedBps)))
	}
	return nil
}

func (c *ConsoleFileCallback) OnFileComplete(file *gdrive.File, total int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tty {
		fmt.Fprint(c.out, clearLine)
	}
	fmt.Fprintf(c.out, "Download complete (%s)\n", misc.FormatBytes(total))
	return nil
}

func (c *ConsoleFileCallback) OnFileFail(file *gdrive.File, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tty {
		fmt.Fprint(c.out, clearLine)
	}
	fmt.Fprintf(c.out, "Download of '%s' failed: %v\n", file.Name, err)
	return nil
}

func (c *ConsoleFileCallback) OnFileSkip(file *gdrive.File, path string) error {
	fmt.Fprintf(c.out, "Skipping '%s' (already exists)\n", file.Name)
	return nil
}

// ConsoleFolderCallback renders a folder download as a running summary line:
// files settled out of the total, bytes transferred and current speed.
type ConsoleFolderCallback struct {
	download.NopFolderCallback

	out io.Writer
	tty bool

	mu         sync.Mutex
	stats      *misc.ProgressStats
	perFile    map[string]int64
	totalFiles int
	done       int
	skipped    int
	failed     int
	lastDraw   time.Time
}

func NewConsoleFolderCallback(out io.Writer) *ConsoleFolderCallback {
	return &ConsoleFolderCallback{
		out:     out,
		tty:     isTerminal(out),
		perFile: map[string]int64{},
	}
}

func (c *ConsoleFolderCallback) OnFolderSetup(folder *gdrive.Folder, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = misc.NewProgressStats()
	c.totalFiles = countFiles(folder)
	fmt.Fprintf(c.out, "Downloading folder '%s' to '%s' (%d files)\n", folder.Name, path, c.totalFiles)
	return nil
}

func (c *ConsoleFolderCallback) OnFileResume(file *gdrive.File, downloaded, total int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.perFile[file.ID] = downloaded
	return nil
}

func (c *ConsoleFolderCallback) OnFileProgress(file *gdrive.File, downloaded, total int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Update(downloaded - c.perFile[file.ID])
	c.perFile[file.ID] = downloaded
	c.draw(false)
	return nil
}

func (c *ConsoleFolderCallback) OnFileComplete(file *gdrive.File, total int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done++
	delete(c.perFile, file.ID)
	if !c.tty {
		fmt.Fprintf(c.out, "Downloaded '%s' (%s)\n", file.Name, misc.FormatBytes(total))
	}
	c.draw(false)
	return nil
}

func (c *ConsoleFolderCallback) OnFileSkip(file *gdrive.File, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done++
	c.skipped++
	if !c.tty {
		fmt.Fprintf(c.out, "Skipping '%s' (already exists)\n", file.Name)
	}
	c.draw(false)
	return nil
}

func (c *ConsoleFolderCallback) OnFileFail(file *gdrive.File, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed++
	if c.tty {
		fmt.Fprint(c.out, clearLine)
	}
	fmt.Fprintf(c.out, "Download of '%s' failed: %v\n", file.Name, err)
	return nil
}

func (c *ConsoleFolderCallback) OnFolderCleanup(folder *gdrive.Folder, success bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draw(true)
	res := c.stats.Stats(time.Now(), true)
	if success {
		fmt.Fprintf(c.out, "Download complete: %d files (%d skipped), %s\n",
			c.done, c.skipped, misc.FormatBytes(res.TotalBytes))
	} else {
		fmt.Fprintf(c.out, "Download failed: %d of %d files done, %d failed\n",
			c.done, c.totalFiles, c.failed)
	}
	return nil
}

// draw refreshes the summary line, rate-limited. Callers hold c.mu.
func (c *ConsoleFolderCallback) draw(final bool) {
	if !c.tty {
		return
	}
	now := time.Now()
	if !final && now.Sub(c.lastDraw) < drawInterval {
		return
	}
	c.lastDraw = now

	res := c.stats.Stats(now, final)
	fmt.Fprintf(c.out, "%s * %d/%d files (%s) %s/s ",
		clearLine, c.done, c.totalFiles,
		misc.FormatBytes(res.TotalBytes), misc.FormatBytes(int64(res.SpeedBps)))
	if final {
		fmt.Fprintln(c.out)
	}
}

func countFiles(folder *gdrive.Folder) int {
	n := 0
	for _, child := range folder.Children {
		switch child.Kind {
		case gdrive.KindFile:
			n++
		case gdrive.KindFolder:
			n += countFiles(child.Folder)
		}
	}
	return n
}

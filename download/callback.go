package download

import "github.com/gdget/gdget/gdrive"

// FileCallback receives the lifecycle events of file transfers. Per file the
// sequence is strictly ordered: Setup, then Start or Resume, one or more
// Progress, then Complete or Fail, and finally Cleanup. Skip replaces the
// whole sequence when a file is not transferred at all.
//
// Every hook may return an error; a non-nil return aborts the surrounding
// download exactly like a transfer failure. Callbacks are invoked from the
// goroutine driving the corresponding file and must be safe for concurrent
// use across files.
type FileCallback interface {
	OnFileSetup(file *gdrive.File, path string) error
	OnFileStart(file *gdrive.File, total int64) error
	OnFileResume(file *gdrive.File, downloaded, total int64) error
	OnFileProgress(file *gdrive.File, downloaded, total int64) error
	OnFileComplete(file *gdrive.File, total int64) error
	OnFileFail(file *gdrive.File, err error) error
	OnFileCleanup(file *gdrive.File, success bool) error
	OnFileSkip(file *gdrive.File, path string) error
}

// FolderCallback composes the file-level events with folder lifecycle
// events. OnFolderSetup and OnFolderCleanup fire exactly once, for the root;
// OnFolderStart fires pre-order for every folder, OnFolderComplete and
// OnFolderFail post-order after all of a folder's children have settled.
type FolderCallback interface {
	FileCallback

	OnFolderSetup(folder *gdrive.Folder, path string) error
	OnFolderStart(folder *gdrive.Folder) error
	OnFolderComplete(folder *gdrive.Folder) error
	OnFolderFail(folder *gdrive.Folder, err error) error
	OnFolderCleanup(folder *gdrive.Folder, success bool) error
}

// NopFileCallback implements FileCallback with no-ops. Embed it to override
// only the hooks you care about.
type NopFileCallback struct{}

func (NopFileCallback) OnFileSetup(*gdrive.File, string) error          { return nil }
func (NopFileCallback) OnFileStart(*gdrive.File, int64) error           { return nil }
func (NopFileCallback) OnFileResume(*gdrive.File, int64, int64) error   { return nil }
func (NopFileCallback) OnFileProgress(*gdrive.File, int64, int64) error { return nil }
func (NopFileCallback) OnFileComplete(*gdrive.File, int64) error        { return nil }
func (NopFileCallback) OnFileFail(*gdrive.File, error) error            { return nil }
func (NopFileCallback) OnFileCleanup(*gdrive.File, bool) error          { return nil }
func (NopFileCallback) OnFileSkip(*gdrive.File, string) error           { return nil }

// NopFolderCallback implements FolderCallback with no-ops.
type NopFolderCallback struct{ NopFileCallback }

func (NopFolderCallback) OnFolderSetup(*gdrive.Folder, string) error { return nil }
func (NopFolderCallback) OnFolderStart(*gdrive.Folder) error         { return nil }
func (NopFolderCallback) OnFolderComplete(*gdrive.Folder) error      { return nil }
func (NopFolderCallback) OnFolderFail(*gdrive.Folder, error) error   { return nil }
func (NopFolderCallback) OnFolderCleanup(*gdrive.Folder, bool) error { return nil }

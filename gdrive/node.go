package gdrive

import "fmt"

// NodeKind discriminates the two variants a folder tree can hold.
type NodeKind int

const (
	KindFile NodeKind = iota
	KindFolder
)

func (k NodeKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// File is a single Google Drive file. Instances are created once during
// discovery and never mutated afterwards. Name may contain path-unsafe
// characters and is treated as an opaque path segment.
type File struct {
	ID   string
	Name string
}

// Folder is a Google Drive folder. Children keeps scrape order; the order
// carries no download semantics but must be preserved for deterministic
// tree rendering.
type Folder struct {
	ID       string
	Name     string
	Children []Node
}

// Node is a tagged union of File and Folder. Exactly the field selected by
// Kind is non-nil; traversal code switches on Kind exhaustively.
type Node struct {
	Kind   NodeKind
	File   *File
	Folder *Folder
}

// FileNode wraps f into a Node.
func FileNode(f *File) Node { return Node{Kind: KindFile, File: f} }

// FolderNode wraps f into a Node.
func FolderNode(f *Folder) Node { return Node{Kind: KindFolder, Folder: f} }

// Name returns the display name of either variant.
func (n Node) Name() string {
	switch n.Kind {
	case KindFile:
		return n.File.Name
	case KindFolder:
		return n.Folder.Name
	default:
		return ""
	}
}

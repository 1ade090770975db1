package gdrive

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// UnlimitedDepth disables the recursion cap of BuildFolderDepth.
const UnlimitedDepth = -1

// RetrieveFile resolves a file ID or URL into a File with its remote name.
func RetrieveFile(ctx context.Context, c *Client, idOrURL string) (*File, error) {
	id := idOrURL
	if IsURL(idOrURL) {
		var err error
		if id, err = ExtractFileID(idOrURL); err != nil {
			return nil, err
		}
	}
	return (&HTMLScraper{Client: c}).ScrapeFile(ctx, id)
}

// RetrieveFolder resolves a folder ID or URL into a fully expanded tree.
func RetrieveFolder(ctx context.Context, c *Client, idOrURL string) (*Folder, error) {
	id := idOrURL
	if IsURL(idOrURL) {
		var err error
		if id, err = ExtractFolderID(idOrURL); err != nil {
			return nil, err
		}
	}
	return BuildFolder(ctx, &HTMLScraper{Client: c}, id)
}

// BuildFolder expands a folder ID into a fully resolved tree: every folder
// reachable from the result has its children populated. Expansion is
// all-or-nothing; if any subfolder anywhere in the tree cannot be scraped,
// the whole call fails and in-flight sibling scrapes are cancelled.
func BuildFolder(ctx context.Context, s Scraper, id string) (*Folder, error) {
	return BuildFolderDepth(ctx, s, id, UnlimitedDepth)
}

// BuildFolderDepth is BuildFolder with a recursion cap. depth counts the
// folder levels expanded below the root: with depth 0 the root's subfolders
// stay unexpanded stubs with empty children. This deliberately relaxes the
// fully-resolved invariant; use BuildFolder when a complete tree is required.
func BuildFolderDepth(ctx context.Context, s Scraper, id string, depth int) (*Folder, error) {
	folder, err := fetchShallow(ctx, s, id)
	if err != nil {
		return nil, err
	}
	if err := expandChildren(ctx, s, folder, depth); err != nil {
		return nil, err
	}
	return folder, nil
}

// fetchShallow scrapes one folder page into a Folder whose subfolders are
// still stubs.
func fetchShallow(ctx context.Context, s Scraper, id string) (*Folder, error) {
	listing, err := s.ScrapeFolder(ctx, id)
	if err != nil {
		return nil, err
	}

	children := make([]Node, len(listing.Entries))
	for i, e := range listing.Entries {
		switch e.Kind {
		case KindFile:
			children[i] = FileNode(&File{ID: e.ID, Name: e.Name})
		case KindFolder:
			children[i] = FolderNode(&Folder{ID: e.ID, Name: e.Name})
		default:
			return nil, errors.Wrapf(ErrNotFound, "folder %q: entry %q has unknown kind %v", id, e.ID, e.Kind)
		}
	}
	return &Folder{ID: id, Name: listing.Name, Children: children}, nil
}

// expandChildren substitutes every folder stub among folder's children with
// its recursively built subtree. Stubs are expanded concurrently; the first
// failure cancels the rest of the group.
func expandChildren(ctx context.Context, s Scraper, folder *Folder, depth int) error {
	if depth == 0 {
		return nil
	}
	next := depth
	if next > 0 {
		next--
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range folder.Children {
		child := folder.Children[i]
		if child.Kind != KindFolder {
			continue
		}
		i := i
		g.Go(func() error {
			sub, err := BuildFolderDepth(gctx, s, child.Folder.ID, next)
			if err != nil {
				return err
			}
			folder.Children[i] = FolderNode(sub)
			return nil
		})
	}
	return g.Wait()
}

// FindSubfolder walks path (a sequence of folder names) down from the root
// folder and returns the ID of the subfolder it ends on. Every segment must
// name an existing subfolder of the previous one.
func FindSubfolder(ctx context.Context, s Scraper, rootIDOrURL string, path []string) (string, error) {
	id := rootIDOrURL
	if IsURL(rootIDOrURL) {
		var err error
		if id, err = ExtractFolderID(rootIDOrURL); err != nil {
			return "", err
		}
	}

	folder, err := fetchShallow(ctx, s, id)
	if err != nil {
		return "", err
	}

	var traversed []string
	for _, name := range path {
		var next *Folder
		for _, item := range folder.Children {
			if item.Kind == KindFolder && item.Folder.Name == name {
				next = item.Folder
				break
			}
		}
		if next == nil {
			return "", errors.Wrapf(ErrNotFound, "no subfolder at path %q",
				"./"+strings.Join(append(traversed, name), "/"))
		}

		folder, err = fetchShallow(ctx, s, next.ID)
		if err != nil {
			return "", err
		}
		traversed = append(traversed, name)
	}

	return folder.ID, nil
}

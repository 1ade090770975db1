package gdrive

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

// titleSuffix is appended by Drive to every page title.
const titleSuffix = " - Google Drive"

// Markup classes of the folder listing page. A row is a div carrying the
// item ID in data-id; file rows and folder rows differ by one extra class.
const (
	classRow       = "WYuW0e"
	classRowItem   = "Ss7qXc"
	classRowFolder = "RDfNAe"
	classItemName  = "KL4NAf"
)

// Entry is one row of a folder listing page, in page order.
type Entry struct {
	ID   string
	Name string
	Kind NodeKind
}

// Listing is the scraped content of one folder page.
type Listing struct {
	Name    string
	Entries []Entry
}

// Scraper turns a resource ID into page-level metadata. Implementations must
// be idempotent and side-effect free; a missing or inaccessible resource is
// reported as ErrNotFound, never as a transient condition.
type Scraper interface {
	ScrapeFolder(ctx context.Context, id string) (*Listing, error)
	ScrapeFile(ctx context.Context, id string) (*File, error)
}

// HTMLScraper scrapes the Drive web UI through a Client.
type HTMLScraper struct {
	Client *Client
}

// ScrapeFolder fetches and parses the listing page of a folder.
func (s *HTMLScraper) ScrapeFolder(ctx context.Context, id string) (*Listing, error) {
	status, body, err := s.Client.GetPage(ctx, s.Client.FolderURL(id))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Wrapf(ErrNotFound, "no folder with id %q (status %d)", id, status)
	}

	listing, err := ParseFolderListing(body)
	if err != nil {
		return nil, errors.Wrapf(ErrNotFound, "folder %q: %v", id, err)
	}
	return listing, nil
}

// ScrapeFile fetches the view page of a file and extracts its name from the
// page title.
func (s *HTMLScraper) ScrapeFile(ctx context.Context, id string) (*File, error) {
	status, body, err := s.Client.GetPage(ctx, s.Client.FileViewURL(id))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Wrapf(ErrNotFound, "no file with id %q (status %d)", id, status)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(ErrNotFound, "file %q: %v", id, err)
	}
	title, ok := pageTitle(doc)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "file %q: page has no title", id)
	}
	return &File{ID: id, Name: title}, nil
}

// ParseFolderListing parses a folder listing page into its name and child
// entries. Entries keep page order, files first then folders, matching the
// markup order of the Drive listing.
func ParseFolderListing(body []byte) (*Listing, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "parse listing page")
	}

	name, ok := pageTitle(doc)
	if !ok {
		return nil, errors.New("listing page has no title")
	}

	var files, folders []Entry
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "div" || !hasClass(n, classRow, classRowItem) {
			return
		}
		id, ok := attr(n, "data-id")
		if !ok {
			return
		}
		e := Entry{ID: id, Name: itemName(n), Kind: KindFile}
		if hasClass(n, classRowFolder) {
			e.Kind = KindFolder
			folders = append(folders, e)
		} else {
			files = append(files, e)
		}
	})

	return &Listing{Name: name, Entries: append(files, folders...)}, nil
}

// ConfirmForm is the confirmation form found on an interstitial download
// page: the real download URL plus the hidden fields that must be resubmitted.
type ConfirmForm struct {
	Action string
	Fields url.Values
}

// ParseConfirmation extracts the confirmation form from an interstitial HTML
// page. It fails when the page carries no form.
func ParseConfirmation(body []byte) (*ConfirmForm, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "parse confirmation page")
	}

	form := findElement(doc, "form")
	if form == nil {
		return nil, errors.New("confirmation page has no form")
	}

	action, ok := attr(form, "action")
	if !ok {
		return nil, errors.New("confirmation form has no action")
	}

	fields := url.Values{}
	walk(form, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "input" {
			return
		}
		name, ok := attr(n, "name")
		if !ok {
			return
		}
		value, _ := attr(n, "value")
		fields.Set(name, value)
	})

	return &ConfirmForm{Action: action, Fields: fields}, nil
}

// --- html helpers ---

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, classes ...string) bool {
	raw, ok := attr(n, "class")
	if !ok {
		return false
	}
	have := strings.Fields(raw)
	for _, want := range classes {
		found := false
		for _, c := range have {
			if c == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return sb.String()
}

func pageTitle(doc *html.Node) (string, bool) {
	title := findElement(doc, "title")
	if title == nil {
		return "", false
	}
	return strings.TrimSuffix(textContent(title), titleSuffix), true
}

func itemName(row *html.Node) string {
	var name string
	walk(row, func(n *html.Node) {
		if name == "" && n.Type == html.ElementNode && n.Data == "div" && hasClass(n, classItemName) {
			name = textContent(n)
		}
	})
	return name
}

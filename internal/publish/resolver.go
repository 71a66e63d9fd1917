package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"larkpub/internal/lark"
)

// DriveClient is the slice of the drive API the publish pipeline consumes.
type DriveClient interface {
	ListFolder(ctx context.Context, folderToken string) ([]*lark.DriveItem, error)
	CreateFolder(ctx context.Context, name, parentToken string) (string, error)
	UploadFile(ctx context.Context, p *lark.UploadParams) (string, error)
	DeleteFile(ctx context.Context, fileToken string) error
}

// Resolver maps logical directory paths onto remote folder tokens, creating
// missing folders on the way down. It caches every resolved segment so a
// path is looked up remotely at most once per run, and it remembers the
// files seen in each listed folder so uploads can detect same-named
// leftovers.
//
// Not safe for concurrent use: parallel lookup-or-create under one parent
// can mint duplicate same-named folders. Resolve everything before handing
// tasks to workers.
type Resolver struct {
	drive DriveClient
	root  string

	tokens   map[string]string            // logical dir path -> folder token
	manifest map[string]map[string]string // folder token -> file name -> file token
}

func NewResolver(drive DriveClient, rootToken string) *Resolver {
	return &Resolver{
		drive:    drive,
		root:     rootToken,
		tokens:   map[string]string{"": rootToken},
		manifest: make(map[string]map[string]string),
	}
}

// Resolve walks relDir segment by segment from the anchor folder, reusing
// cached tokens and issuing one lookup-or-create per uncached segment. An
// empty relDir is the anchor itself.
func (r *Resolver) Resolve(ctx context.Context, relDir string) (string, error) {
	relDir = strings.Trim(relDir, "/")
	if relDir == "" || relDir == "." {
		return r.root, nil
	}
	if token, ok := r.tokens[relDir]; ok {
		return token, nil
	}

	parent := r.root
	prefix := ""
	for _, segment := range strings.Split(relDir, "/") {
		if prefix == "" {
			prefix = segment
		} else {
			prefix = prefix + "/" + segment
		}
		if token, ok := r.tokens[prefix]; ok {
			parent = token
			continue
		}
		token, err := r.lookupOrCreate(ctx, parent, segment)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", prefix, err)
		}
		r.tokens[prefix] = token
		parent = token
	}
	return parent, nil
}

// lookupOrCreate finds a child folder by name, creating it when absent. The
// listing done for the lookup doubles as the parent's file manifest.
func (r *Resolver) lookupOrCreate(ctx context.Context, parentToken, name string) (string, error) {
	items, err := r.drive.ListFolder(ctx, parentToken)
	if err != nil {
		return "", err
	}
	r.rememberFiles(parentToken, items)

	for _, item := range items {
		if item.IsFolder() && item.Name == name {
			return item.Token, nil
		}
	}

	token, err := r.drive.CreateFolder(ctx, name, parentToken)
	if err != nil {
		return "", err
	}
	slog.Debug("created remote folder", "name", name, "token", token)
	return token, nil
}

// Inventory lists an already-resolved folder so ExistingFile can answer for
// it. Folders listed during resolution are not listed again.
func (r *Resolver) Inventory(ctx context.Context, folderToken string) error {
	if _, ok := r.manifest[folderToken]; ok {
		return nil
	}
	items, err := r.drive.ListFolder(ctx, folderToken)
	if err != nil {
		return err
	}
	r.rememberFiles(folderToken, items)
	return nil
}

// ExistingFile returns the token of a same-named file already present in
// the folder, if the folder has been inventoried.
func (r *Resolver) ExistingFile(folderToken, name string) (string, bool) {
	files, ok := r.manifest[folderToken]
	if !ok {
		return "", false
	}
	token, ok := files[name]
	return token, ok
}

func (r *Resolver) rememberFiles(folderToken string, items []*lark.DriveItem) {
	files := make(map[string]string)
	for _, item := range items {
		if item.Type == lark.ItemTypeFile {
			files[item.Name] = item.Token
		}
	}
	r.manifest[folderToken] = files
}

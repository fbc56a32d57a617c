package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	driveRootID    = "root"
	// driveLinkBase serves the raw bytes of a publicly readable Drive file.
	driveLinkBase = "https://lh3.googleusercontent.com/d/"
)

// DriveBackend keeps root folders at the top of a Google Drive.
type DriveBackend struct {
	srv *drive.Service

	mu      sync.Mutex
	folders map[string]string
}

// NewDriveBackend authenticates with credential, which is either a service
// account JSON key or a bare OAuth2 access token.
func NewDriveBackend(ctx context.Context, credential string) (*DriveBackend, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, fmt.Errorf("drive credential must be provided")
	}

	var client *http.Client
	if strings.HasPrefix(credential, "{") {
		config, err := google.JWTConfigFromJSON([]byte(credential), drive.DriveScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account credentials: %w", err)
		}
		client = config.Client(ctx)
	} else {
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: credential}))
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}

	return NewDriveBackendFromService(srv), nil
}

// NewDriveBackendFromService wraps an already configured Drive client.
func NewDriveBackendFromService(srv *drive.Service) *DriveBackend {
	return &DriveBackend{srv: srv, folders: make(map[string]string)}
}

func (b *DriveBackend) ListTopLevel(ctx context.Context) ([]string, error) {
	files, err := b.listChildren(ctx, driveRootID, "")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names, nil
}

func (b *DriveBackend) Stat(ctx context.Context, folder string) error {
	_, err := b.folderID(ctx, folder)
	return err
}

func (b *DriveBackend) EnsureFolder(ctx context.Context, folder string) error {
	if _, err := b.folderID(ctx, folder); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	created, err := b.srv.Files.Create(&drive.File{
		Name:     folder,
		MimeType: folderMimeType,
		Parents:  []string{driveRootID},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to create folder %s: %w", folder, err)
	}

	b.mu.Lock()
	b.folders[folder] = created.Id
	b.mu.Unlock()
	return nil
}

// Put creates name under folder or replaces the content of the existing file
// with that name.
func (b *DriveBackend) Put(ctx context.Context, folder, name string, data []byte) (Item, error) {
	parent, err := b.folderID(ctx, folder)
	if err != nil {
		return Item{}, err
	}

	existing, err := b.findChild(ctx, parent, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Item{}, err
	}

	var f *drive.File
	if existing != nil {
		f, err = b.srv.Files.Update(existing.Id, &drive.File{}).
			Media(bytes.NewReader(data)).
			Fields("id, name, size").
			Context(ctx).
			Do()
	} else {
		f, err = b.srv.Files.Create(&drive.File{Name: name, Parents: []string{parent}}).
			Media(bytes.NewReader(data)).
			Fields("id, name, size").
			Context(ctx).
			Do()
	}
	if err != nil {
		return Item{}, fmt.Errorf("unable to upload %s: %w", name, err)
	}

	return Item{Name: name, Path: objectKey(folder, name), ID: f.Id, Size: int64(len(data))}, nil
}

func (b *DriveBackend) Get(ctx context.Context, folder, name string) ([]byte, error) {
	parent, err := b.folderID(ctx, folder)
	if err != nil {
		return nil, err
	}
	f, err := b.findChild(ctx, parent, name)
	if err != nil {
		return nil, err
	}

	resp, err := b.srv.Files.Get(f.Id).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("unable to download %s: %w", name, err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func (b *DriveBackend) List(ctx context.Context, folder string) ([]Item, error) {
	parent, err := b.folderID(ctx, folder)
	if err != nil {
		return nil, err
	}
	files, err := b.listChildren(ctx, parent, "")
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(files))
	for _, f := range files {
		if f.MimeType == folderMimeType {
			continue
		}
		items = append(items, Item{Name: f.Name, Path: objectKey(folder, f.Name), ID: f.Id, Size: f.Size})
	}
	return items, nil
}

// ShareLink makes the file readable by anyone and returns its direct link.
func (b *DriveBackend) ShareLink(ctx context.Context, item Item) (string, error) {
	_, err := b.srv.Permissions.Create(item.ID, &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to share %s: %w", item.Name, err)
	}
	return driveLinkBase + item.ID, nil
}

func (b *DriveBackend) folderID(ctx context.Context, folder string) (string, error) {
	b.mu.Lock()
	id, ok := b.folders[folder]
	b.mu.Unlock()
	if ok {
		return id, nil
	}

	files, err := b.listChildren(ctx, driveRootID,
		fmt.Sprintf(" and name='%s' and mimeType='%s'", escapeQuery(folder), folderMimeType))
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("folder %s: %w", folder, ErrNotFound)
	}

	b.mu.Lock()
	b.folders[folder] = files[0].Id
	b.mu.Unlock()
	return files[0].Id, nil
}

func (b *DriveBackend) findChild(ctx context.Context, parent, name string) (*drive.File, error) {
	files, err := b.listChildren(ctx, parent, fmt.Sprintf(" and name='%s'", escapeQuery(name)))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("file %s: %w", name, ErrNotFound)
	}
	return files[0], nil
}

// listChildren pages through every non-trashed child of parent. extra is
// appended to the query verbatim.
func (b *DriveBackend) listChildren(ctx context.Context, parent, extra string) ([]*drive.File, error) {
	q := fmt.Sprintf("'%s' in parents and trashed=false%s", parent, extra)

	var files []*drive.File
	err := b.srv.Files.List().
		Q(q).
		Fields("nextPageToken, files(id, name, mimeType, size)").
		Context(ctx).
		Pages(ctx, func(page *drive.FileList) error {
			files = append(files, page.Files...)
			return nil
		})
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", parent, ErrNotFound)
		}
		return nil, fmt.Errorf("unable to retrieve files: %w", err)
	}
	return files, nil
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

var _ Backend = (*DriveBackend)(nil)

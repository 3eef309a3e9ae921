package publish

import (
	"context"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ZacxDev/reelbatch/internal/logging"
)

// DrivePublisher uploads into a Drive folder and shares the file with anyone
// who has the link.
type DrivePublisher struct {
	svc      *drive.Service
	folderID string
	logger   *slog.Logger
}

// NewDrivePublisher builds a publisher. Callers pass credentials as client
// options, normally option.WithCredentialsJSON.
func NewDrivePublisher(ctx context.Context, folderID string, logger *slog.Logger, opts ...option.ClientOption) (*DrivePublisher, error) {
	if folderID == "" {
		return nil, errors.New("drive folder id is required")
	}
	opts = append([]option.ClientOption{option.WithScopes(drive.DriveFileScope)}, opts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create drive service")
	}
	return &DrivePublisher{
		svc:      svc,
		folderID: folderID,
		logger:   logging.NewComponentLogger(logger, "publish-drive"),
	}, nil
}

func (p *DrivePublisher) Publish(ctx context.Context, localPath, name string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", errors.Wrapf(ErrPublish, "open %s: %v", localPath, err)
	}
	defer f.Close()

	created, err := p.svc.Files.Create(&drive.File{Name: name, Parents: []string{p.folderID}}).
		Media(f, googleapi.ContentType(ContentType(name))).
		Fields("id", "name", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", errors.Wrapf(ErrPublish, "upload %s: %v", name, err)
	}

	_, err = p.svc.Permissions.Create(created.Id, &drive.Permission{Role: "reader", Type: "anyone"}).
		Context(ctx).
		Do()
	if err != nil {
		// An unshared upload is useless to the sheet; remove it.
		if delErr := p.svc.Files.Delete(created.Id).Context(ctx).Do(); delErr != nil {
			p.logger.Warn("failed to remove unshared upload",
				logging.String("file_id", created.Id),
				logging.Error(delErr))
		}
		return "", errors.Wrapf(ErrPublish, "share %s: %v", name, err)
	}

	link := created.WebViewLink
	if link == "" {
		link = "https://drive.google.com/file/d/" + created.Id + "/view"
	}
	p.logger.Info("uploaded to drive",
		logging.String("file_id", created.Id),
		logging.String(logging.FieldURL, link))
	return link, nil
}

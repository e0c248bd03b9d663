package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"Sahayak/internal/infrastructure/transport"
	"Sahayak/internal/ports"
	"Sahayak/internal/submission"
)

const uploadURLPath = "/content/get-upload-url"

// ContentUploader stores teaching material through a pre-signed URL.
type ContentUploader struct {
	sender ports.Sender
	logger *slog.Logger
}

// NewContentUploader builds an uploader bound to the content backend.
func NewContentUploader(sender ports.Sender, logger *slog.Logger) *ContentUploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentUploader{sender: sender, logger: logger}
}

type uploadURLRequest struct {
	TeacherID   string `json:"teacherId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

type uploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	S3Key     string `json:"s3Key"`
}

// UploadContent asks for an upload URL, then PUTs the raw bytes to it
// without the bearer token. It returns the stored object key.
func (u *ContentUploader) UploadContent(ctx context.Context, teacherID, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("content is empty")
	}
	contentType := submission.MimeType(filename)

	resp, err := u.sender.Send(ctx, http.MethodPost, uploadURLPath, uploadURLRequest{
		TeacherID:   teacherID,
		FileName:    filename,
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("request upload url: %w", err)
	}

	var target uploadURLResponse
	if err := resp.Decode(&target); err != nil {
		return "", &submission.MalformedResponseError{Reason: "upload url response is not JSON"}
	}
	if target.UploadURL == "" {
		return "", &submission.MalformedResponseError{Reason: "upload url missing"}
	}

	if _, err := u.sender.Send(ctx, http.MethodPut, target.UploadURL, nil,
		transport.WithRawBody(contentType, data),
		transport.WithoutAuth(),
	); err != nil {
		return "", fmt.Errorf("put content: %w", err)
	}

	u.logger.Info("content uploaded", "filename", filename, "key", target.S3Key, "bytes", len(data))
	return target.S3Key, nil
}

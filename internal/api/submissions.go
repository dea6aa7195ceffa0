package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"simguard/client/internal/models"
)

type UploadResponse struct {
	SubmissionID int64                   `json:"submission_id"`
	Status       models.SubmissionStatus `json:"status"`
	Message      string                  `json:"message"`
}

type StatusResponse struct {
	SubmissionID int64                   `json:"submission_id"`
	Status       models.SubmissionStatus `json:"status"`
	Message      string                  `json:"message"`
}

type HistoryQuery struct {
	Page     int
	PageSize int
	Mode     models.SubmissionMode // empty means all modes
	Risk     models.RiskLevel      // empty means all risk levels
	Sort     models.SortOrder
}

type HistoryResponse struct {
	Total       int                         `json:"total"`
	Page        int                         `json:"page"`
	PageSize    int                         `json:"page_size"`
	Submissions []models.SubmissionListItem `json:"submissions"`
}

// Upload submits the two files for comparison as a multipart form. The
// files are read fully before the request goes out, so open/read failures
// surface locally without touching the server.
func (c *Client) Upload(ctx context.Context, file1Path, file2Path string, mode models.SubmissionMode, langOverride string) (UploadResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := addFilePart(w, "file1", file1Path); err != nil {
		return UploadResponse{}, err
	}
	if err := addFilePart(w, "file2", file2Path); err != nil {
		return UploadResponse{}, err
	}
	if err := w.WriteField("mode", string(mode)); err != nil {
		return UploadResponse{}, fmt.Errorf("write mode field: %w", err)
	}
	if langOverride != "" {
		if err := w.WriteField("lang_override", langOverride); err != nil {
			return UploadResponse{}, fmt.Errorf("write lang field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return UploadResponse{}, fmt.Errorf("finish multipart body: %w", err)
	}

	var out UploadResponse
	if err := c.do(ctx, http.MethodPost, "/submissions/upload", &buf, w.FormDataContentType(), &out); err != nil {
		return UploadResponse{}, err
	}
	return out, nil
}

func addFilePart(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create %s part: %w", field, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read %s: %w", field, err)
	}
	return nil
}

func (c *Client) Status(ctx context.Context, id int64) (StatusResponse, error) {
	var out StatusResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/submissions/%d/status", id), &out); err != nil {
		return StatusResponse{}, err
	}
	return out, nil
}

func (c *Client) Report(ctx context.Context, id int64) (models.SubmissionDetail, error) {
	var out models.SubmissionDetail
	if err := c.getJSON(ctx, fmt.Sprintf("/submissions/%d/report", id), &out); err != nil {
		return models.SubmissionDetail{}, err
	}
	return out, nil
}

func (c *Client) History(ctx context.Context, q HistoryQuery) (HistoryResponse, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("page_size", strconv.Itoa(q.PageSize))
	if q.Mode != "" {
		params.Set("mode", string(q.Mode))
	}
	if q.Risk != "" {
		params.Set("risk", string(q.Risk))
	}
	if q.Sort != "" {
		params.Set("sort", string(q.Sort))
	}

	var out HistoryResponse
	if err := c.getJSON(ctx, "/submissions/history?"+params.Encode(), &out); err != nil {
		return HistoryResponse{}, err
	}
	return out, nil
}

func (c *Client) DeleteSubmission(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/submissions/%d", id), nil, "", nil)
}

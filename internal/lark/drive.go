package lark

import (
	"context"
	"strconv"
)

const (
	v1DriveFiles        = "/open-apis/drive/v1/files"
	v1DriveCreateFolder = "/open-apis/drive/v1/files/create_folder"
	v1DriveUploadAll    = "/open-apis/drive/v1/files/upload_all"
	v1DriveFileByToken  = "/open-apis/drive/v1/files/{file_token}"
)

// ListFolder returns every child of a folder, following pagination.
func (c *Client) ListFolder(ctx context.Context, folderToken string) ([]*DriveItem, error) {
	var items []*DriveItem
	pageToken := ""

	for {
		var out listFilesResponse
		r := c.http.R().
			SetContext(ctx).
			SetQueryParam("folder_token", folderToken).
			SetQueryParam("page_size", strconv.Itoa(listPageSize)).
			SetSuccessResult(&out).
			SetErrorResult(&out)
		if pageToken != "" {
			r.SetQueryParam("page_token", pageToken)
		}

		resp, err := r.Get(v1DriveFiles)
		if err := handleAPIError(resp, err, &out.baseResponse, "drive list folder"); err != nil {
			return nil, err
		}

		items = append(items, out.Data.Files...)
		if !out.Data.HasMore || out.Data.NextPageToken == "" {
			return items, nil
		}
		pageToken = out.Data.NextPageToken
	}
}

// CreateFolder creates a folder under parentToken and returns its token.
func (c *Client) CreateFolder(ctx context.Context, name, parentToken string) (string, error) {
	var out createFolderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&createFolderRequest{Name: name, FolderToken: parentToken}).
		SetSuccessResult(&out).
		SetErrorResult(&out).
		Post(v1DriveCreateFolder)

	if err := handleAPIError(resp, err, &out.baseResponse, "drive create folder"); err != nil {
		return "", err
	}

	return out.Data.Token, nil
}

// UploadFile uploads one file in a single multipart request and returns the
// new file's token. Files above MaxUploadSize are rejected remotely; callers
// precheck the size to avoid burning a request.
func (c *Client) UploadFile(ctx context.Context, p *UploadParams) (string, error) {
	var out uploadAllResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"file_name":   p.FileName,
			"parent_type": uploadParentType,
			"parent_node": p.ParentNode,
			"size":        strconv.FormatInt(p.Size, 10),
		}).
		SetFile("file", p.LocalPath).
		SetSuccessResult(&out).
		SetErrorResult(&out).
		Post(v1DriveUploadAll)

	if err := handleAPIError(resp, err, &out.baseResponse, "drive upload"); err != nil {
		return "", err
	}

	return out.Data.FileToken, nil
}

// DeleteFile removes a file by token. Deletion is asynchronous remotely; the
// returned task is not awaited.
func (c *Client) DeleteFile(ctx context.Context, fileToken string) error {
	var out deleteFileResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("file_token", fileToken).
		SetQueryParam("type", ItemTypeFile).
		SetSuccessResult(&out).
		SetErrorResult(&out).
		Delete(v1DriveFileByToken)

	return handleAPIError(resp, err, &out.baseResponse, "drive delete file")
}

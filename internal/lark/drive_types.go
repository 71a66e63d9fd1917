package lark

const (
	ItemTypeFolder = "folder"
	ItemTypeFile   = "file"

	uploadParentType = "explorer"
	listPageSize     = 200

	// MaxUploadSize is the single-request upload ceiling of the drive API.
	MaxUploadSize = 20 << 20
)

// baseResponse is the envelope every platform endpoint wraps its payload in.
// A non-zero Code is an error even on HTTP 200.
type baseResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// DriveItem is one child of a drive folder.
type DriveItem struct {
	Token       string `json:"token"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	ParentToken string `json:"parent_token"`
}

func (d *DriveItem) IsFolder() bool {
	return d.Type == ItemTypeFolder
}

type listFilesResponse struct {
	baseResponse
	Data struct {
		Files         []*DriveItem `json:"files"`
		HasMore       bool         `json:"has_more"`
		NextPageToken string       `json:"next_page_token"`
	} `json:"data"`
}

type createFolderRequest struct {
	Name        string `json:"name"`
	FolderToken string `json:"folder_token"`
}

type createFolderResponse struct {
	baseResponse
	Data struct {
		Token string `json:"token"`
		URL   string `json:"url"`
	} `json:"data"`
}

// UploadParams describes one file upload into a drive folder.
type UploadParams struct {
	// FileName is the name the remote copy gets, byte-for-byte.
	FileName string
	// ParentNode is the token of the destination folder.
	ParentNode string
	// LocalPath is the file to read.
	LocalPath string
	// Size must match the actual byte count; the API validates it.
	Size int64
}

type uploadAllResponse struct {
	baseResponse
	Data struct {
		FileToken string `json:"file_token"`
	} `json:"data"`
}

type deleteFileResponse struct {
	baseResponse
	Data struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

type tenantTokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tenantTokenResponse struct {
	baseResponse
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

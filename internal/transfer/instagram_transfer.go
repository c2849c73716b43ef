package transfer

type GraphToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// GraphUserInfo is the /me response of both Instagram and Threads. Threads
// leaves Name empty.
type GraphUserInfo struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type GraphID struct {
	ID string `json:"id"`
}

type InstagramContainerStatus struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	StatusCode string `json:"status_code"`
}

// GraphErrorResponse is the error envelope shared by the Instagram and Threads Graph APIs.
type GraphErrorResponse struct {
	Error struct {
		Message        string `json:"message"`
		Type           string `json:"type"`
		Code           int    `json:"code"`
		ErrorSubcode   int    `json:"error_subcode"`
		IsTransient    bool   `json:"is_transient"`
		ErrorUserTitle string `json:"error_user_title"`
		ErrorUserMsg   string `json:"error_user_msg"`
		FbtraceID      string `json:"fbtrace_id"`
	} `json:"error"`
}

package transfer

type TwitterProcessingInfo struct {
	State          string `json:"state"`
	CheckAfterSecs int    `json:"check_after_secs"`
	ProgressPct    int    `json:"progress_percent"`
	Error          *struct {
		Code    int    `json:"code"`
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type TwitterMediaResponse struct {
	MediaID        int64                  `json:"media_id"`
	MediaIDString  string                 `json:"media_id_string"`
	Size           int                    `json:"size"`
	ExpiresAfter   int                    `json:"expires_after_secs"`
	ProcessingInfo *TwitterProcessingInfo `json:"processing_info,omitempty"`
}

type TweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type TweetRequest struct {
	Text  string      `json:"text,omitempty"`
	Media *TweetMedia `json:"media,omitempty"`
}

type TweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type TwitterUser struct {
	Data struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"data"`
}

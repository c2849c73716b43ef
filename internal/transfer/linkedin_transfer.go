package transfer

type LinkedInServiceRelationship struct {
	RelationshipType string `json:"relationshipType"`
	Identifier       string `json:"identifier"`
}

type LinkedInRegisterUploadRequest struct {
	RegisterUploadRequest struct {
		Recipes              []string                      `json:"recipes"`
		Owner                string                        `json:"owner"`
		ServiceRelationships []LinkedInServiceRelationship `json:"serviceRelationships"`
	} `json:"registerUploadRequest"`
}

type LinkedInUploadHTTPRequest struct {
	UploadURL string            `json:"uploadUrl"`
	Headers   map[string]string `json:"headers"`
}

type LinkedInRegisterUploadResponse struct {
	Value struct {
		UploadMechanism map[string]LinkedInUploadHTTPRequest `json:"uploadMechanism"`
		Asset           string                               `json:"asset"`
	} `json:"value"`
}

type LinkedInMediaRef struct {
	ID string `json:"id"`
}

type LinkedInMultiImage struct {
	Images []LinkedInMediaRef `json:"images"`
}

type LinkedInPostContent struct {
	Media      *LinkedInMediaRef   `json:"media,omitempty"`
	MultiImage *LinkedInMultiImage `json:"multiImage,omitempty"`
}

type LinkedInDistribution struct {
	FeedDistribution               string   `json:"feedDistribution"`
	TargetEntities                 []string `json:"targetEntities"`
	ThirdPartyDistributionChannels []string `json:"thirdPartyDistributionChannels"`
}

type LinkedInPost struct {
	Author                    string               `json:"author"`
	Commentary                string               `json:"commentary"`
	Visibility                string               `json:"visibility"`
	Distribution              LinkedInDistribution `json:"distribution"`
	Content                   *LinkedInPostContent `json:"content,omitempty"`
	LifecycleState            string               `json:"lifecycleState"`
	IsReshareDisabledByAuthor bool                 `json:"isReshareDisabledByAuthor"`
}

type LinkedInShareCommentary struct {
	Text string `json:"text"`
}

type LinkedInShareContent struct {
	ShareCommentary    LinkedInShareCommentary `json:"shareCommentary"`
	ShareMediaCategory string                  `json:"shareMediaCategory"`
}

type LinkedInUGCPost struct {
	Author          string                          `json:"author"`
	LifecycleState  string                          `json:"lifecycleState"`
	SpecificContent map[string]LinkedInShareContent `json:"specificContent"`
	Visibility      map[string]string               `json:"visibility"`
}

type LinkedInUserInfo struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
}

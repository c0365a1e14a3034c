package models

// Field bounds of the persisted campaign record. Lengths are in bytes.
const (
	MaxNameLen        = 100
	MaxDescriptionLen = 500
	MaxUsernameLen    = 50
	MaxPostIDLen      = 100
	MaxPostURLLen     = 200
	MaxPosts          = 50
)

// CampaignName is a campaign title of at most MaxNameLen bytes
type CampaignName string

// Description is free text of at most MaxDescriptionLen bytes
type Description string

// InstagramHandle is a social handle of at most MaxUsernameLen bytes
type InstagramHandle string

// PostID identifies a post on the social platform
type PostID string

// PostURL links to the post on the social platform
type PostURL string

func NewCampaignName(s string) (CampaignName, error) {
	if len(s) > MaxNameLen {
		return "", ErrNameTooLong
	}
	return CampaignName(s), nil
}

func NewDescription(s string) (Description, error) {
	if len(s) > MaxDescriptionLen {
		return "", ErrDescriptionTooLong
	}
	return Description(s), nil
}

func NewInstagramHandle(s string) (InstagramHandle, error) {
	if len(s) > MaxUsernameLen {
		return "", ErrUsernameTooLong
	}
	return InstagramHandle(s), nil
}

func NewPostID(s string) (PostID, error) {
	if len(s) > MaxPostIDLen {
		return "", ErrPostIDTooLong
	}
	return PostID(s), nil
}

func NewPostURL(s string) (PostURL, error) {
	if len(s) > MaxPostURLLen {
		return "", ErrPostURLTooLong
	}
	return PostURL(s), nil
}

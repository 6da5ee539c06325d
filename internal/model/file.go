package model

import "time"

// Privacy is the closed set of file visibility tiers.
type Privacy string

const (
	// PrivacyPublic files are readable by anyone, including anonymous callers.
	PrivacyPublic Privacy = "public"
	// PrivacyRestricted files are readable by any authenticated user not on the blocked list.
	PrivacyRestricted Privacy = "restricted"
	// PrivacyPrivate files are readable only by the owner and invited users.
	PrivacyPrivate Privacy = "private"
)

// Valid reports whether p is one of the known privacy tiers.
func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPublic, PrivacyRestricted, PrivacyPrivate:
		return true
	}
	return false
}

// Views counts file views along two independent dimensions.
type Views struct {
	Country   map[string]int64 `json:"country"`
	SubRegion map[string]int64 `json:"sub_region"`
}

// File represents a stored file's metadata. The binary content lives in object
// storage under StoredName; the metadata layer never inspects it.
//
// UpdatedAt doubles as the optimistic-concurrency version stamp: metadata
// updates must present the last observed value and collide on mismatch.
type File struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"originalName"`
	StoredName   string    `json:"storedName"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	Owner        string    `json:"owner"`
	Privacy      Privacy   `json:"privacy"`
	InvitedUsers []string  `json:"invitedUsers"`
	BlockedUsers []string  `json:"blockedUsers"`
	Tags         []string  `json:"tags"`
	Views        Views     `json:"views"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsInvited reports whether the given user id is on the invited list.
func (f *File) IsInvited(userID string) bool {
	return containsID(f.InvitedUsers, userID)
}

// IsBlocked reports whether the given user id is on the blocked list.
func (f *File) IsBlocked(userID string) bool {
	return containsID(f.BlockedUsers, userID)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

package objectstore

import (
	"time"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/formats"
)

// Artifact abbreviations used in object keys.
const (
	AbbrevPosts               = "pst"
	AbbrevComments            = "cmt"
	AbbrevTransformedPosts    = "trasf_pst"
	AbbrevTransformedComments = "trasf_cmt"
)

// DateLayout is the date part of an artifact key.
const DateLayout = "2006-01-02"

// ArtifactPrefix returns "{prefix}/{abbrev}_", the prefix resolved by
// ResolveLatest for one dataset.
func ArtifactPrefix(prefix, abbrev string) string {
	return prefix + "/" + abbrev + "_"
}

// ArtifactKey returns "{prefix}/{abbrev}_{YYYY-MM-DD}.{ext}".
func ArtifactKey(prefix, abbrev string, date time.Time, f formats.Format) string {
	return ArtifactPrefix(prefix, abbrev) + date.Format(DateLayout) + "." + f.Extension()
}

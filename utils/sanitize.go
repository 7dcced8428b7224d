package utils

import "github.com/microcosm-cc/bluemonday"

// ugcPolicy accepts common user generated markup plus image sizing
// attributes, since post bodies embed CDN hosted images inserted by the
// editor.
var ugcPolicy = bluemonday.UGCPolicy().
	AllowAttrs("width", "height").OnElements("img")

// Sanitize strips markup that rendered posts and comments must not carry.
func Sanitize(input string) string {
	return ugcPolicy.Sanitize(input)
}

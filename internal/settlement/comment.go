package settlement

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Deposits are attributed by a numeric account identifier in the
// transfer comment, optionally prefixed with "tg:". Identifiers shorter
// than 8 digits collide with too many incidental numbers to trust.
var accountIDPattern = regexp.MustCompile(`(?:tg:)?(\d{8,12})`)

// ExtractAccountID pulls the first plausible account identifier out of
// a transfer comment. The second return is false when the comment
// carries nothing usable.
func ExtractAccountID(comment string) (int64, bool) {
	m := accountIDPattern.FindStringSubmatch(comment)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// DecodeRawBody recovers the text comment from a base64 message body
// when the API did not decode it. Text payloads start with a 4-byte
// zero op tag before the UTF-8 comment.
func DecodeRawBody(raw string) string {
	if raw == "" {
		return ""
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		data, err = base64.URLEncoding.DecodeString(raw)
		if err != nil {
			return ""
		}
	}
	if len(data) > 4 && data[0] == 0 && data[1] == 0 && data[2] == 0 && data[3] == 0 {
		data = data[4:]
	}
	return strings.TrimFunc(string(data), func(r rune) bool {
		return !unicode.IsPrint(r)
	})
}

package taskstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/a2aserver/a2acore/a2a"
)

// pageToken is the opaque "millis:id" keyset token from §6: the sort key
// (status.timestamp truncated to milliseconds) and id of the last row
// returned, so the next page starts strictly after it under
// (status.timestamp desc, id asc) ordering.
type pageToken struct {
	millis int64
	id     a2a.TaskID
}

func encodePageToken(millis int64, id a2a.TaskID) string {
	return fmt.Sprintf("%d:%s", millis, id)
}

func decodePageToken(token string) (pageToken, error) {
	idx := strings.LastIndex(token, ":")
	if idx < 0 {
		return pageToken{}, fmt.Errorf("malformed page token %q", token)
	}
	millis, err := strconv.ParseInt(token[:idx], 10, 64)
	if err != nil {
		return pageToken{}, fmt.Errorf("malformed page token %q: %w", token, err)
	}
	return pageToken{millis: millis, id: a2a.TaskID(token[idx+1:])}, nil
}

// after reports whether (millis, id) sorts strictly after t under
// (status.timestamp desc, id asc).
func (t pageToken) after(millis int64, id a2a.TaskID) bool {
	if millis != t.millis {
		return millis < t.millis
	}
	return id > t.id
}

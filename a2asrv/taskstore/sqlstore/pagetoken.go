package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/a2aserver/a2acore/a2a"
)

type sqlPageToken struct {
	timestamp time.Time
	id        a2a.TaskID
}

func encodeSQLPageToken(ts time.Time, id a2a.TaskID) string {
	return fmt.Sprintf("%d:%s", ts.UnixMilli(), id)
}

func decodeSQLPageToken(token string) (sqlPageToken, error) {
	idx := strings.LastIndex(token, ":")
	if idx < 0 {
		return sqlPageToken{}, fmt.Errorf("malformed page token %q", token)
	}
	millis, err := strconv.ParseInt(token[:idx], 10, 64)
	if err != nil {
		return sqlPageToken{}, fmt.Errorf("malformed page token %q: %w", token, err)
	}
	return sqlPageToken{
		timestamp: time.UnixMilli(millis).UTC(),
		id:        a2a.TaskID(token[idx+1:]),
	}, nil
}

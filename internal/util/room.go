package util

import (
	"net/url"
	"strings"
)

// RoomQueryParam is the share-link query parameter carrying a room code.
const RoomQueryParam = "room"

// ParseRoomCode accepts a bare code or a share link and returns the
// normalized, upper-case code. It returns "" when nothing usable is found.
func ParseRoomCode(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	if strings.Contains(input, "?") || strings.Contains(input, "://") {
		u, err := url.Parse(input)
		if err != nil {
			return ""
		}
		return strings.ToUpper(strings.TrimSpace(u.Query().Get(RoomQueryParam)))
	}
	return strings.ToUpper(input)
}

// ShareLink builds "<base>/?room=<code>". A websocket base is mapped to
// its http equivalent and any path on it is dropped.
func ShareLink(base, code string) string {
	if base == "" || code == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = "/"
	u.RawQuery = url.Values{RoomQueryParam: {code}}.Encode()
	u.Fragment = ""
	return u.String()
}

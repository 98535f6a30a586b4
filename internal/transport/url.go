package transport

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/arcade-live/tablesync/internal/identity"
)

// BuildURL assembles the gateway WebSocket URL for a target. An empty
// gameID subscribes to the whole games list, otherwise to one table.
func BuildURL(base, gameID string, id identity.Identity) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("gateway url scheme %q, want ws or wss", u.Scheme)
	}

	p := strings.TrimSuffix(u.Path, "/") + "/ws/games"
	if gameID != "" {
		p += "/" + gameID
	}
	u.Path = p

	q := u.Query()
	q.Set("clientId", id.ClientID)
	if id.InitData != "" {
		q.Set("initData", id.InitData)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

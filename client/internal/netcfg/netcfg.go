// Package netcfg holds the endpoints and credentials of the headless peer.
package netcfg

import "os"

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

var APIBase = getenv("TIDEWAR_API_BASE", "http://127.0.0.1:8080") // REST
var ServerURL = getenv("TIDEWAR_WS_URL", "ws://127.0.0.1:8080/ws") // WebSocket

var Username = getenv("TIDEWAR_USER", "")
var Password = getenv("TIDEWAR_PASS", "")

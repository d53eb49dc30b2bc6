// internal/protocol/hello.go
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// MinVersion is the lowest protocol version the server still speaks.
// Clients announcing an older version get HELLO::OUTDATED and are
// disconnected.
const MinVersion = 2

// HelloRequest is the first frame a protocol-aware client sends.
// Token is empty for a fresh connection (NEW) and carries the
// previous connection token for a resume attempt (REQ:<token>).
type HelloRequest struct {
	Version int
	Token   string
}

// ParseHello decodes HELLO::<ver>::NEW and HELLO::<ver>::REQ:<token>.
func ParseHello(s string) (HelloRequest, bool) {
	if !strings.HasPrefix(s, "HELLO::") {
		return HelloRequest{}, false
	}
	rest := s[len("HELLO::"):]
	sep := strings.Index(rest, "::")
	if sep < 0 {
		return HelloRequest{}, false
	}
	ver, err := strconv.Atoi(rest[:sep])
	if err != nil {
		return HelloRequest{}, false
	}
	switch arg := rest[sep+2:]; {
	case arg == "NEW":
		return HelloRequest{Version: ver}, true
	case strings.HasPrefix(arg, "REQ:") && len(arg) > len("REQ:"):
		return HelloRequest{Version: ver, Token: arg[len("REQ:"):]}, true
	default:
		return HelloRequest{}, false
	}
}

// HelloNew greets a fresh connection with its minted token.
func HelloNew(token string) string {
	return fmt.Sprintf("HELLO::NEW::%s", token)
}

// HelloFound confirms a successful resume of an existing connection.
func HelloFound(token string) string {
	return fmt.Sprintf("HELLO::FOUND::%s", token)
}

// HelloOutdated rejects a client below MinVersion.
func HelloOutdated() string {
	return "HELLO::OUTDATED"
}

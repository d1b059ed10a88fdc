package executor

import (
	"strconv"
	"strings"

	"github.com/rudolphpienaar/backupmgr/internal/outcome"
)

// parseResults scans the archiver's whitespace-separated output for the
// byte count. A killed: token or a missing bytes token is fatal for the
// target.
func parseResults(raw, context string) (int64, *outcome.Error) {
	tokens := strings.Fields(raw)

	for _, token := range tokens {
		if token == "killed:" {
			return 0, outcome.NewError(outcome.KindWorkerKilled, context,
				"archiver was killed on the client", firstLine(raw))
		}
	}

	for i, token := range tokens {
		if token != "bytes" {
			continue
		}
		if i+2 >= len(tokens) {
			return 0, outcome.NewError(outcome.KindParseResults, context,
				"bytes token has no value", firstLine(raw))
		}
		value := tokens[i+2]
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, outcome.NewError(outcome.KindParseResults, context,
				"bytes value is not numeric", value)
		}
		return n, nil
	}

	return 0, outcome.NewError(outcome.KindParseResults, context,
		"archiver output has no bytes token", firstLine(raw))
}

func firstLine(raw string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(raw), "\n")
	if len(line) > 200 {
		line = line[:200]
	}
	return line
}

package display

import (
	"encoding/json"
	"os"
)

// MarshalJSON pretty-prints for a terminal and emits one compact line when
// stdout is piped, so log shippers and jq get a single record.
func MarshalJSON(v interface{}) ([]byte, error) {
	if stdoutIsTerminal() {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

func stdoutIsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

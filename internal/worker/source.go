package worker

import (
	"fmt"
	"os"
)

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read submission source %s: %w", path, err)
	}
	return string(data), nil
}

// internal/storage/factory.go
package storage

import "fmt"

// Types lists the supported storage.type values.
var Types = []string{"memory", "sqlite", "postgres", "websocket"}

// ValidateType checks a configured storage type before any backend is built.
func ValidateType(t string) error {
	for _, known := range Types {
		if t == known {
			return nil
		}
	}
	return fmt.Errorf("unknown storage type: %s", t)
}

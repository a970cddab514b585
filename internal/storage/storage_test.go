// internal/storage/storage_test.go
package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trackmapper/editor/internal/storage"
)

func TestValidateType(t *testing.T) {
	for _, typ := range storage.Types {
		assert.NoError(t, storage.ValidateType(typ), typ)
	}

	err := storage.ValidateType("mysql")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage type: mysql")
}

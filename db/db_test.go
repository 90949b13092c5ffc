package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDBName(t *testing.T) {
	tests := map[string]string{
		"mongodb://localhost:27017/hub?replicaSet=rs0": "hub",
		"mongodb+srv://u:p@cluster.example/terreta":    "terreta",
		"mongodb://localhost:27017":                    defaultDBName,
		"mongodb://localhost:27017/":                   defaultDBName,
		"::not a uri":                                  defaultDBName,
	}
	for uri, want := range tests {
		assert.Equal(t, want, extractDBName(uri), uri)
	}
}

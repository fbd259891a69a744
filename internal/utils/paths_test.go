package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		baseDir  string
		expected string
	}{
		{
			name:     "empty path",
			path:     "",
			baseDir:  "/base",
			expected: "",
		},
		{
			name:     "absolute path unchanged",
			path:     "/abs/configs.yaml",
			baseDir:  "/base",
			expected: "/abs/configs.yaml",
		},
		{
			name:     "relative path resolved",
			path:     "configs.yaml",
			baseDir:  "/base",
			expected: "/base/configs.yaml",
		},
		{
			name:     "parent reference",
			path:     "../metrics.prom",
			baseDir:  "/base/sub",
			expected: "/base/metrics.prom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ResolvePath(tt.path, tt.baseDir)
			assert.Equal(t, filepath.Clean(tt.expected), filepath.Clean(result))
		})
	}
}

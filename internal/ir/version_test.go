package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckCompatible(t *testing.T) {
	tests := []struct {
		version string
		ok      bool
	}{
		{IRVersion, true},
		{"1.4.2", true},
		{"0.9.0", false},
		{"2.0.0", false},
		{"not-a-version", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := CheckCompatible(tt.version)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

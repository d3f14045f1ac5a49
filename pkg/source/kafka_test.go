package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjs392/otters/pkg/errors"
)

func TestNewKafkaSourceValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  KafkaConfig
	}{
		{"no brokers", KafkaConfig{Topic: "ticks", GroupID: "otters"}},
		{"no topic", KafkaConfig{Brokers: []string{"localhost:9092"}, GroupID: "otters"}},
		{"no group id", KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "ticks"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKafkaSource(tt.cfg, nil)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

package exception

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yanun0323/errors"
)

func TestWrappedSentinelsStayComparable(t *testing.T) {
	sentinels := []error{
		ErrUnsupportedDriver,
		ErrEmptyCacheURL,
		ErrMalformedRecord,
		ErrInvalidConfig,
		ErrTradeTimeout,
	}

	for _, sentinel := range sentinels {
		t.Run(sentinel.Error(), func(t *testing.T) {
			err := errors.Wrapf(sentinel, "context %d", 1)
			assert.True(t, errors.Is(err, sentinel))
			assert.True(t, errors.Is(errors.Wrap(err, "outer"), sentinel))
			assert.False(t, errors.Is(err, ErrNilInstance))
			assert.Contains(t, err.Error(), sentinel.Error())
		})
	}
}

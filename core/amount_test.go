package core

import (
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/pkg/errors"
)

func TestParseAmount(t *testing.T) {
	a, err := ParseAmount("103")
	assert.NoError(t, err)
	check.Equal(t, uint64(103), a.Uint64())

	a, err = ParseAmount(" 1000000000000000000000000 ")
	assert.NoError(t, err)
	check.Equal(t, "1000000000000000000000000", FormatAmount(a))

	for _, bad := range []string{"", "abc", "-1", "1.5", "1e100"} {
		_, err := ParseAmount(bad)
		check.True(t, errors.Is(err, ErrInvalidParameters))
	}
}

func TestTokensToUnits(t *testing.T) {
	a, err := TokensToUnits("1.5")
	assert.NoError(t, err)
	check.Equal(t, "1500000000000000000", FormatAmount(a))
	check.Equal(t, "1.5", FormatUnits(a))

	a, err = TokensToUnits("1000000")
	assert.NoError(t, err)
	check.Equal(t, "1000000000000000000000000", FormatAmount(a))

	_, err = TokensToUnits("0.0000000000000000001")
	check.True(t, errors.Is(err, ErrInvalidParameters))
}

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/entry"
	apperrors "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/errors"
)

func TestParse_SplitsOnPlus(t *testing.T) {
	plan, err := Parse("available", "chess+围棋+ board ", "", 16)
	require.NoError(t, err)
	assert.Equal(t, entry.Available, plan.Query.Availability)
	assert.Equal(t, []string{"chess", "围棋", "board"}, plan.Query.Keywords)
	assert.Equal(t, entry.ByName, plan.Query.Order)
}

func TestParse_Availability(t *testing.T) {
	for avail, want := range map[string]entry.Availability{
		"available": entry.Available,
		"disbanded": entry.Disbanded,
		"all":       entry.AnyAvailability,
	} {
		plan, err := Parse(avail, "x", "", 0)
		require.NoError(t, err)
		assert.Equal(t, want, plan.Query.Availability)
	}

	_, err := Parse("dormant", "x", "", 0)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestParse_OnlySeparatorsMatchesNothing(t *testing.T) {
	plan, err := Parse("all", "++", "", 0)
	require.NoError(t, err)
	assert.NotNil(t, plan.Query.Keywords)
	assert.Empty(t, plan.Query.Keywords)
}

func TestParse_Order(t *testing.T) {
	plan, err := Parse("all", "x", "id", 0)
	require.NoError(t, err)
	assert.Equal(t, entry.ByID, plan.Query.Order)

	_, err = Parse("all", "x", "score", 0)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestParse_KeywordLimit(t *testing.T) {
	_, err := Parse("all", "a+b+c", "", 2)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	plan, err := Parse("all", "a+b", "", 2)
	require.NoError(t, err)
	assert.Len(t, plan.Query.Keywords, 2)
}

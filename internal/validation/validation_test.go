package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCircleName(t *testing.T) {
	require.Equal(t, "Book Club", NormalizeCircleName("  Book \t Club \n"))
	require.Equal(t, "", NormalizeCircleName("   "))
}

func TestValidateCircleName(t *testing.T) {
	require.ErrorIs(t, ValidateCircleName(""), ErrNameRequired)
	require.NoError(t, ValidateCircleName("Hive"))
	require.NoError(t, ValidateCircleName(strings.Repeat("é", MaxCircleNameLength)))
	require.ErrorIs(t, ValidateCircleName(strings.Repeat("a", MaxCircleNameLength+1)), ErrNameTooLong)
}

func TestValidateDescription(t *testing.T) {
	require.NoError(t, ValidateDescription(""))
	require.NoError(t, ValidateDescription(strings.Repeat("a", MaxCircleDescriptionLength)))
	require.ErrorIs(t, ValidateDescription(strings.Repeat("a", MaxCircleDescriptionLength+1)), ErrDescriptionTooLong)
}

func TestValidateMaxUses(t *testing.T) {
	cases := []struct {
		in   int
		want error
	}{
		{in: -5, want: ErrMaxUsesNotPositive},
		{in: 0, want: ErrMaxUsesNotPositive},
		{in: 1},
		{in: MaxLimitedLinkUses},
		{in: MaxLimitedLinkUses + 1, want: ErrMaxUsesTooLarge},
	}
	for _, tc := range cases {
		err := ValidateMaxUses(tc.in)
		if tc.want == nil {
			require.NoError(t, err, "max uses %d", tc.in)
			continue
		}
		require.ErrorIs(t, err, tc.want, "max uses %d", tc.in)
	}
}

func TestValidateEvent(t *testing.T) {
	start := time.Date(2026, 11, 7, 18, 0, 0, 0, time.UTC)

	require.NoError(t, ValidateEvent("Bouldering", "", start))
	require.NoError(t, ValidateEvent(strings.Repeat("é", MaxEventTitleLength), strings.Repeat("a", MaxEventLocationLength), start))
	require.ErrorIs(t, ValidateEvent("", "Gym", start), ErrEventTitleRequired)
	require.ErrorIs(t, ValidateEvent(strings.Repeat("a", MaxEventTitleLength+1), "", start), ErrEventTitleTooLong)
	require.ErrorIs(t, ValidateEvent("Bouldering", strings.Repeat("a", MaxEventLocationLength+1), start), ErrEventLocationTooLong)
	require.ErrorIs(t, ValidateEvent("Bouldering", "", time.Time{}), ErrEventStartRequired)
}

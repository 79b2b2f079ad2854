package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Filter_Masks_Plain_Word(t *testing.T) {
	req := require.New(t)
	filter, err := NewFilter([]string{"idiot"}, '*')
	req.NoError(err)

	result := filter.Apply("what an IDIOT move")
	req.Equal("what an ***** move", result.Body)
	req.Equal(1, result.Masked)
}

func Test_Filter_Masks_Leet_Variant(t *testing.T) {
	req := require.New(t)
	filter, err := NewFilter([]string{"idiot"}, '*')
	req.NoError(err)

	result := filter.Apply("you 1d10t")
	req.Equal("you *****", result.Body)
	req.Equal(1, result.Masked)
}

func Test_Filter_Leaves_Clean_Text_Untouched(t *testing.T) {
	req := require.New(t)
	filter, err := NewFilter([]string{"idiot"}, '*')
	req.NoError(err)

	body := "the payroll export is ready"
	result := filter.Apply(body)
	req.Equal(body, result.Body)
	req.Zero(result.Masked)
}

func Test_Filter_Detects_Language(t *testing.T) {
	req := require.New(t)
	filter, err := NewFilter([]string{"idiot"}, '*')
	req.NoError(err)

	result := filter.Apply("this is a perfectly ordinary english sentence about work")
	req.Equal("en", result.Lang)
}

func Test_Default_Filter_Loads_Embedded_Words(t *testing.T) {
	req := require.New(t)
	filter, err := NewDefaultFilter('*')
	req.NoError(err)

	result := filter.Apply("damn printer again")
	req.Equal("**** printer again", result.Body)
}

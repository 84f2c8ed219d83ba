package biblioteca

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_IsValidNationalID_AcceptsWellFormedNumbers(t *testing.T) {
	testCases := []struct {
		name string
		id   string
	}{
		{name: "plain digits", id: "52998224725"},
		{name: "conventional formatting", id: "529.982.247-25"},
		{name: "spaces between groups", id: "529 982 247 25"},
		{name: "another issued number", id: "111.444.777-35"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, IsValidNationalID(tc.id))
		})
	}
}

func Test_IsValidNationalID_RejectsMalformedNumbers(t *testing.T) {
	testCases := []struct {
		name string
		id   string
	}{
		{name: "empty", id: ""},
		{name: "too short", id: "5299822472"},
		{name: "too long", id: "529982247255"},
		{name: "letters", id: "529a82247z5"},
		{name: "first check digit wrong", id: "529.982.247-35"},
		{name: "second check digit wrong", id: "529.982.247-24"},
		{name: "mutated body digit", id: "929.982.247-25"},
		{name: "repeated digits pass the checksum but are not issued", id: "111.111.111-11"},
		{name: "all zeros", id: "000.000.000-00"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, IsValidNationalID(tc.id))
		})
	}
}

func Test_NationalID_Normalized_StripsConventionalPunctuation(t *testing.T) {
	id := NationalID("529.982.247-25")

	assert.Equal(t, "52998224725", id.Normalized())
}

func Test_NationalID_Valid_MatchesPackageFunction(t *testing.T) {
	assert.True(t, NationalID("52998224725").Valid())
	assert.False(t, NationalID("52998224724").Valid())
}

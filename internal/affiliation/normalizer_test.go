package affiliation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIdentityStringDropped(t *testing.T) {
	assert.Empty(t, Normalize("Director, Department of Physics, MIT"))
}

func TestNormalizeKeepsLocationSuffix(t *testing.T) {
	assert.Equal(t, []string{"MIT, Cambridge, MA"}, Normalize("MIT, Cambridge, MA"))
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"Professor at Stanford University", []string{"Stanford University"}},
		{"PhD student @ Tsinghua University", []string{"Tsinghua University"}},
		{"Google Research; University of Toronto", []string{"Google Research", "University of Toronto"}},
		{"Peking University, China", []string{"Peking University, China"}},
		{"ETH Zurich, Switzerland, Max Planck Institute, Germany", []string{"ETH Zurich, Switzerland", "Max Planck Institute, Germany"}},
		{"Harvard University and MIT", []string{"Harvard University", "MIT"}},
		{"复旦大学，Fudan University", []string{"复旦大学", "Fudan University"}},
		{"Assistant Professor", nil},
		{"", nil},
		{"Oxford University; Oxford University", []string{"Oxford University"}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Normalize(c.in), c.in)
	}
}

func TestIsCountry(t *testing.T) {
	assert.True(t, IsCountry("Germany"))
	assert.True(t, IsCountry(" United States "))
	assert.False(t, IsCountry("MA"))
	assert.False(t, IsCountry("Cambridge"))
}

package evaluation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGroundTruth(t *testing.T) {
	csvData := `image,plates
cam1/0001.jpg,AB-123
cam1/0002.jpg,"xy 9999; Q1W2"
cam1/0003.jpg,
`
	truth, err := LoadGroundTruth(strings.NewReader(csvData))
	require.NoError(t, err)

	assert.Equal(t, []string{"AB123"}, truth["cam1/0001.jpg"])
	assert.Equal(t, []string{"XY", "9999", "Q1W2"}, truth["cam1/0002.jpg"])
	assert.Contains(t, truth, "cam1/0003.jpg")
	assert.Empty(t, truth["cam1/0003.jpg"])
}

func TestLoadGroundTruthRejectsShortRows(t *testing.T) {
	_, err := LoadGroundTruth(strings.NewReader("image,plates\nonly-one-column\n"))
	assert.Error(t, err)
}

func TestCharacterErrorRate(t *testing.T) {
	tests := []struct {
		ref, hyp string
		want     float64
	}{
		{"AB123", "AB123", 0},
		{"AB123", "A8123", 0.2},
		{"AB123", "", 1},
		{"", "", 0},
		{"", "X", 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, CharacterErrorRate(tt.ref, tt.hyp), 1e-9, "%q vs %q", tt.ref, tt.hyp)
	}
}

func TestCompare(t *testing.T) {
	exact := Compare("a.jpg", []string{"CD456", "AB123"}, []string{"ab123", "CD456"})
	assert.True(t, exact.Exact)
	assert.Zero(t, exact.WER)
	assert.Zero(t, exact.CER)

	misread := Compare("b.jpg", []string{"AB123"}, []string{"A8123"})
	assert.False(t, misread.Exact)
	assert.InDelta(t, 1.0, misread.WER, 1e-9)
	assert.InDelta(t, 0.2, misread.CER, 1e-9)

	missed := Compare("c.jpg", []string{"AB123"}, nil)
	assert.InDelta(t, 1.0, missed.CER, 1e-9)

	spurious := Compare("d.jpg", nil, []string{"ZZ99"})
	assert.Equal(t, 1.0, spurious.WER)
	assert.False(t, spurious.Exact)
}

func TestReport(t *testing.T) {
	truth := GroundTruth{"a.jpg": {"AB123"}, "b.jpg": {"CD456"}}
	var r Report

	r.Add(truth, "a.jpg", []string{"AB123"})
	r.Add(truth, "b.jpg", []string{"CD457"})
	r.Add(truth, "c.jpg", []string{"EF789"})

	assert.Equal(t, 2, r.Images)
	assert.Equal(t, 1, r.Exact)
	assert.InDelta(t, 0.5, r.Accuracy(), 1e-9)
	assert.InDelta(t, 0.1, r.MeanCER, 1e-9)
	assert.Equal(t, []string{"c.jpg"}, r.Missing)
}

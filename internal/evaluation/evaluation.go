// Package evaluation scores recognized plates against labelled ground truth.
package evaluation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"

	"go-plate-recognizer/internal/engine"
)

// GroundTruth maps an image name to the plates visible in it.
type GroundTruth map[string][]string

// LoadGroundTruth reads "image,plates" rows; plates are separated by spaces or
// semicolons and normalized. A header row starting with "image" is skipped.
func LoadGroundTruth(r io.Reader) (GroundTruth, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	truth := GroundTruth{}
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ground truth line %d: %w", line, err)
		}
		if len(record) == 0 || (line == 1 && strings.EqualFold(record[0], "image")) {
			continue
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("ground truth line %d: want image,plates", line)
		}
		var plates []string
		for _, p := range strings.FieldsFunc(record[1], func(r rune) bool { return r == ' ' || r == ';' }) {
			if n := engine.NormalizePlate(p); n != "" {
				plates = append(plates, n)
			}
		}
		truth[record[0]] = plates
	}
	return truth, nil
}

// CharacterErrorRate is the edit distance between two plate strings divided by
// the reference length. An empty reference scores 0 against an empty hypothesis
// and 1 otherwise.
func CharacterErrorRate(reference, hypothesis string) float64 {
	if reference == "" {
		if hypothesis == "" {
			return 0
		}
		return 1
	}
	return float64(levenshtein.Distance(reference, hypothesis)) / float64(len([]rune(reference)))
}

// Score compares the plates of one image.
type Score struct {
	Image    string   `json:"image"`
	Expected []string `json:"expected"`
	Got      []string `json:"got"`
	// WER treats each plate as a word, order-insensitive.
	WER float64 `json:"wer"`
	// CER averages the best per-plate character error rate over expected plates.
	CER   float64 `json:"cer"`
	Exact bool    `json:"exact"`
}

// Compare scores recognized plates against the expected ones.
func Compare(image string, expected, got []string) Score {
	exp := sortedCopy(expected)
	hyp := sortedCopy(got)
	s := Score{Image: image, Expected: exp, Got: hyp}

	switch {
	case len(exp) == 0 && len(hyp) == 0:
		s.Exact = true
		return s
	case len(exp) == 0:
		s.WER, s.CER = 1, 1
		return s
	}

	s.WER, _ = wer.WER(exp, hyp)

	total := 0.0
	for _, e := range exp {
		best := 1.0
		for _, h := range hyp {
			best = min(best, CharacterErrorRate(e, h))
		}
		total += best
	}
	s.CER = total / float64(len(exp))
	s.Exact = strings.Join(exp, " ") == strings.Join(hyp, " ")
	return s
}

// Report aggregates scores over a data set.
type Report struct {
	Scores []Score `json:"scores"`
	Images int     `json:"images"`
	Exact  int     `json:"exact"`
	// Mean error rates over images.
	MeanWER float64 `json:"mean_wer"`
	MeanCER float64 `json:"mean_cer"`
	// Missing lists recognized images that have no ground truth.
	Missing []string `json:"missing,omitempty"`
}

// Add records one image. Images without ground truth are listed as missing.
func (r *Report) Add(truth GroundTruth, image string, got []string) {
	expected, ok := truth[image]
	if !ok {
		r.Missing = append(r.Missing, image)
		return
	}
	s := Compare(image, expected, got)
	r.Scores = append(r.Scores, s)
	r.Images++
	if s.Exact {
		r.Exact++
	}
	n := float64(r.Images)
	r.MeanWER += (s.WER - r.MeanWER) / n
	r.MeanCER += (s.CER - r.MeanCER) / n
}

// Accuracy is the share of images whose plates all matched exactly.
func (r *Report) Accuracy() float64 {
	if r.Images == 0 {
		return 0
	}
	return float64(r.Exact) / float64(r.Images)
}

func sortedCopy(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := engine.NormalizePlate(s); n != "" {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

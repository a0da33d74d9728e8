package mock

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

var errNoValues = errors.New("no numeric values")

// Labels produced by the classic models
const (
	LabelDiseaseA = "Disease A"
	LabelDiseaseB = "Disease B"
	LabelHealthy  = "Healthy"
)

// Labels produced by the deep model
const (
	LabelDisease = "Disease"
	LabelNormal  = "Normal"
)

// randomForest thresholds the mean
func randomForest(values []float64) string {
	return classify(mean(values))
}

// svm thresholds the median, so it can disagree with randomForest on skewed input
func svm(values []float64) string {
	return classify(median(values))
}

func classify(x float64) string {
	switch {
	case x > 1:
		return LabelDiseaseA
	case x > 0:
		return LabelDiseaseB
	}
	return LabelHealthy
}

// deepLearning is a logistic score of the mean, labeled at 0.5
func deepLearning(values []float64) (string, float64) {
	score := 1 / (1 + math.Exp(-mean(values)))
	// keep the wire value short and stable
	score = math.Round(score*1e4) / 1e4
	if score >= 0.5 {
		return LabelDisease, score
	}
	return LabelNormal, score
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// valuesFromCSV collects every numeric cell. Non-numeric cells, such as
// a header row or gene names, are skipped.
func valuesFromCSV(r io.Reader) ([]float64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var values []float64
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, cell := range record {
			f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				continue
			}
			values = append(values, f)
		}
	}

	if len(values) == 0 {
		return nil, errNoValues
	}
	return values, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report builds the per-class precision, recall, and F1 summary
// printed after every evaluate phase.
package report

import (
	"fmt"
	"io"
	"strconv"
)

// ClassRow holds the scores for one class or one average.
type ClassRow struct {
	Name      string  `json:"name" yaml:"name"`
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`
	Support   int     `json:"support" yaml:"support"`
}

// Classification is a complete classification report.
type Classification struct {
	Classes     []ClassRow `json:"classes" yaml:"classes"`
	Accuracy    float64    `json:"accuracy" yaml:"accuracy"`
	MacroAvg    ClassRow   `json:"macro_avg" yaml:"macro_avg"`
	WeightedAvg ClassRow   `json:"weighted_avg" yaml:"weighted_avg"`
	Total       int        `json:"total" yaml:"total"`
}

// Build scores preds against labels. names[i] labels class i; classes
// seen in the data beyond len(names) are named by their index. Undefined
// ratios (no predictions or no support) score zero.
func Build(labels, preds []int, names []string) (Classification, error) {
	if len(labels) != len(preds) {
		return Classification{}, fmt.Errorf("report: %d labels for %d predictions", len(labels), len(preds))
	}

	classes := len(names)
	for i := range labels {
		classes = max(classes, labels[i]+1, preds[i]+1)
	}
	tp := make([]int, classes)
	predicted := make([]int, classes)
	support := make([]int, classes)
	var correct int
	for i, l := range labels {
		p := preds[i]
		if l < 0 || p < 0 {
			return Classification{}, fmt.Errorf("report: negative class at sample %d", i)
		}
		support[l]++
		predicted[p]++
		if l == p {
			tp[l]++
			correct++
		}
	}

	r := Classification{Total: len(labels)}
	if r.Total > 0 {
		r.Accuracy = float64(correct) / float64(r.Total)
	}
	r.MacroAvg.Name = "macro avg"
	r.WeightedAvg.Name = "weighted avg"
	for c := range classes {
		row := ClassRow{
			Name:      className(names, c),
			Precision: ratio(tp[c], predicted[c]),
			Recall:    ratio(tp[c], support[c]),
			Support:   support[c],
		}
		if row.Precision+row.Recall > 0 {
			row.F1 = 2 * row.Precision * row.Recall / (row.Precision + row.Recall)
		}
		r.Classes = append(r.Classes, row)

		r.MacroAvg.Precision += row.Precision / float64(classes)
		r.MacroAvg.Recall += row.Recall / float64(classes)
		r.MacroAvg.F1 += row.F1 / float64(classes)
		if r.Total > 0 {
			w := float64(row.Support) / float64(r.Total)
			r.WeightedAvg.Precision += row.Precision * w
			r.WeightedAvg.Recall += row.Recall * w
			r.WeightedAvg.F1 += row.F1 * w
		}
	}
	r.MacroAvg.Support = r.Total
	r.WeightedAvg.Support = r.Total
	return r, nil
}

func className(names []string, c int) string {
	if c < len(names) && names[c] != "" {
		return names[c]
	}
	return strconv.Itoa(c)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Write renders the report as an aligned text table.
func (r Classification) Write(w io.Writer) error {
	width := len("weighted avg")
	for _, c := range r.Classes {
		width = max(width, len(c.Name))
	}

	if _, err := fmt.Fprintf(w, "%*s %10s %10s %10s %10s\n\n", width, "", "precision", "recall", "f1-score", "support"); err != nil {
		return err
	}
	for _, c := range r.Classes {
		if err := writeRow(w, width, c); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "\n%*s %10s %10s %10.4f %10d\n", width, "accuracy", "", "", r.Accuracy, r.Total); err != nil {
		return err
	}
	if err := writeRow(w, width, r.MacroAvg); err != nil {
		return err
	}
	return writeRow(w, width, r.WeightedAvg)
}

func writeRow(w io.Writer, width int, c ClassRow) error {
	_, err := fmt.Fprintf(w, "%*s %10.4f %10.4f %10.4f %10d\n", width, c.Name, c.Precision, c.Recall, c.F1, c.Support)
	return err
}

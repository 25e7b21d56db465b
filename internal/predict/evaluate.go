package predict

import (
	"fmt"
	"math"
)

// ClassMetrics holds per-class precision, recall and F1.
type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Evaluation summarizes predictor quality on a held-out set. Directional
// accuracy excludes the neutral class: a model that never calls a
// non-neutral class is vacuously accurate but useless, and this metric
// exposes that.
type Evaluation struct {
	Samples             int            `json:"samples"`
	Accuracy            float64        `json:"accuracy"`
	AvgLoss             float64        `json:"avg_loss"`
	Confusion           [][]int        `json:"confusion"` // [actual][predicted]
	PerClass            []ClassMetrics `json:"per_class"`
	DirectionalAccuracy float64        `json:"directional_accuracy"`
	DirectionalCalls    int            `json:"directional_calls"`
}

// Evaluate scores the network on a labeled set without mutating it.
func (n *Network) Evaluate(samples []Sample) (Evaluation, error) {
	if len(samples) == 0 {
		return Evaluation{}, ErrInsufficientData
	}

	classes := len(n.cfg.Classes)
	confusion := make([][]int, classes)
	for i := range confusion {
		confusion[i] = make([]int, classes)
	}

	correct := 0
	totalLoss := 0.0
	dirCorrect, dirTotal := 0, 0

	for _, s := range samples {
		if s.Class < 0 || s.Class >= classes {
			return Evaluation{}, fmt.Errorf("sample class %d out of range for %d classes", s.Class, classes)
		}
		probs, err := n.Predict(s.Features)
		if err != nil {
			return Evaluation{}, err
		}

		predicted := 0
		for i := 1; i < len(probs); i++ {
			if probs[i] > probs[predicted] {
				predicted = i
			}
		}

		confusion[s.Class][predicted]++
		if predicted == s.Class {
			correct++
		}
		totalLoss += -math.Log(math.Max(probs[s.Class], probFloor))

		if predicted != n.cfg.NeutralClass {
			dirTotal++
			if predicted == s.Class {
				dirCorrect++
			}
		}
	}

	perClass := make([]ClassMetrics, classes)
	for c := 0; c < classes; c++ {
		var tp, fp, fn int
		for other := 0; other < classes; other++ {
			if other == c {
				tp = confusion[c][c]
				continue
			}
			fp += confusion[other][c]
			fn += confusion[c][other]
		}
		m := ClassMetrics{Label: n.cfg.Classes[c]}
		if tp+fp > 0 {
			m.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			m.Recall = float64(tp) / float64(tp+fn)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		perClass[c] = m
	}

	eval := Evaluation{
		Samples:          len(samples),
		Accuracy:         float64(correct) / float64(len(samples)),
		AvgLoss:          totalLoss / float64(len(samples)),
		Confusion:        confusion,
		PerClass:         perClass,
		DirectionalCalls: dirTotal,
	}
	if dirTotal > 0 {
		eval.DirectionalAccuracy = float64(dirCorrect) / float64(dirTotal)
	}
	return eval, nil
}

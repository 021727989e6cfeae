package metrics

import (
	"sort"

	"safetyvision/internal/dataset"
	"safetyvision/internal/detect"
)

// DefaultIoU is the match threshold for mAP@0.5.
const DefaultIoU = 0.5

// GroundTruth is one annotated object.
type GroundTruth struct {
	Image   string
	ClassID int
	Box     detect.Box
}

// Prediction is one scored detection.
type Prediction struct {
	Image      string
	ClassID    int
	Box        detect.Box
	Confidence float64
}

// Result holds AP per class id and their mean.
type Result struct {
	PerClass map[int]float64 `json:"per_class"`
	MAP      float64         `json:"map"`
	// GroundTruths counts annotated objects per class id.
	GroundTruths map[int]int `json:"ground_truths"`
}

// LabelBox converts normalised centre/size coordinates to corners. IoU is
// invariant under per-axis scaling, so normalised boxes can be compared directly.
func LabelBox(l dataset.Label) detect.Box {
	return detect.Box{
		X1: l.XC - l.W/2,
		Y1: l.YC - l.H/2,
		X2: l.XC + l.W/2,
		Y2: l.YC + l.H/2,
	}
}

// MeanAP computes AP for every class that has ground truth and averages them.
// Predictions of classes without ground truth do not contribute.
func MeanAP(preds []Prediction, gts []GroundTruth, iouThreshold float64) Result {
	res := Result{PerClass: make(map[int]float64), GroundTruths: make(map[int]int)}

	gtByClass := make(map[int][]GroundTruth)
	for _, g := range gts {
		gtByClass[g.ClassID] = append(gtByClass[g.ClassID], g)
		res.GroundTruths[g.ClassID]++
	}
	predByClass := make(map[int][]Prediction)
	for _, p := range preds {
		predByClass[p.ClassID] = append(predByClass[p.ClassID], p)
	}

	if len(gtByClass) == 0 {
		return res
	}

	var sum float64
	for classID, classGT := range gtByClass {
		ap := AveragePrecision(predByClass[classID], classGT, iouThreshold)
		res.PerClass[classID] = ap
		sum += ap
	}
	res.MAP = sum / float64(len(gtByClass))
	return res
}

// AveragePrecision computes all-point interpolated AP for one class. Each
// prediction, in descending confidence, matches the unmatched ground truth in
// the same image with the highest IoU when that IoU is at least iouThreshold.
func AveragePrecision(preds []Prediction, gts []GroundTruth, iouThreshold float64) float64 {
	if len(gts) == 0 || len(preds) == 0 {
		return 0
	}

	byImage := make(map[string][]int)
	for i, g := range gts {
		byImage[g.Image] = append(byImage[g.Image], i)
	}
	matched := make([]bool, len(gts))

	sorted := make([]Prediction, len(preds))
	copy(sorted, preds)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	recall := make([]float64, len(sorted))
	precision := make([]float64, len(sorted))
	tp := 0
	for i, p := range sorted {
		best, bestIoU := -1, iouThreshold
		for _, gi := range byImage[p.Image] {
			if matched[gi] {
				continue
			}
			if iou := detect.IoU(p.Box, gts[gi].Box); iou >= bestIoU {
				best, bestIoU = gi, iou
			}
		}
		if best >= 0 {
			matched[best] = true
			tp++
		}
		recall[i] = float64(tp) / float64(len(gts))
		precision[i] = float64(tp) / float64(i+1)
	}

	return interpolate(recall, precision)
}

// interpolate integrates the precision envelope over recall.
func interpolate(recall, precision []float64) float64 {
	mrec := make([]float64, 0, len(recall)+2)
	mpre := make([]float64, 0, len(precision)+2)
	mrec = append(append(append(mrec, 0), recall...), 1)
	mpre = append(append(append(mpre, 0), precision...), 0)

	for i := len(mpre) - 2; i >= 0; i-- {
		if mpre[i+1] > mpre[i] {
			mpre[i] = mpre[i+1]
		}
	}

	var ap float64
	for i := 1; i < len(mrec); i++ {
		if mrec[i] != mrec[i-1] {
			ap += (mrec[i] - mrec[i-1]) * mpre[i]
		}
	}
	return ap
}

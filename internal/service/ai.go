package service

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
)

// FaceMatcher identifies a registered user from a face image.
type FaceMatcher interface {
	Match(image []byte, candidateIDs []string) models.FaceMatchResult
}

// PlateReader extracts a licence plate from a vehicle image.
type PlateReader interface {
	Read(image []byte) (plate string, confidence float64)
}

// AnomalyDetector scores camera footage for suspicious activity.
type AnomalyDetector interface {
	Analyze(image []byte, kind string) models.AnomalyResult
}

// The simulated engines below derive every output from an FNV-1a hash of the
// input bytes, so identical images always produce identical results. They
// stand in for real computer-vision services behind the same interfaces.

func imageSeed(image []byte) uint64 {
	h := fnv.New64a()
	h.Write(image)
	return h.Sum64()
}

// SimulatedFaceMatcher fakes face recognition with deterministic confidence
// in the 60-95 range and a 128-dimension encoding.
type SimulatedFaceMatcher struct {
	Threshold float64
}

// NewSimulatedFaceMatcher constructs the matcher with its match threshold.
func NewSimulatedFaceMatcher(threshold float64) *SimulatedFaceMatcher {
	if threshold <= 0 {
		threshold = 75
	}
	return &SimulatedFaceMatcher{Threshold: threshold}
}

// Match implements FaceMatcher.
func (m *SimulatedFaceMatcher) Match(image []byte, candidateIDs []string) models.FaceMatchResult {
	seed := imageSeed(image)
	confidence := 60 + float64(seed%3500)/100 // 60.00 .. 94.99

	rng := rand.New(rand.NewSource(int64(seed)))
	encoding := make([]float64, 128)
	for i := range encoding {
		encoding[i] = rng.Float64()*2 - 1
	}

	result := models.FaceMatchResult{
		Confidence: confidence,
		Encoding:   encoding,
	}
	if confidence >= m.Threshold && len(candidateIDs) > 0 {
		result.Matched = true
		result.UserID = candidateIDs[seed%uint64(len(candidateIDs))]
	}
	return result
}

// SimulatedPlateReader fakes plate OCR, producing Bolivian-format plates
// (four digits, dash, three letters).
type SimulatedPlateReader struct{}

// NewSimulatedPlateReader constructs the reader.
func NewSimulatedPlateReader() *SimulatedPlateReader {
	return &SimulatedPlateReader{}
}

// Read implements PlateReader.
func (r *SimulatedPlateReader) Read(image []byte) (string, float64) {
	seed := imageSeed(image)
	digits := seed % 10000
	letters := [3]byte{}
	rest := seed / 10000
	for i := range letters {
		letters[i] = byte('A' + rest%26)
		rest /= 26
	}
	plate := fmt.Sprintf("%04d-%c%c%c", digits, letters[0], letters[1], letters[2])
	confidence := 70 + float64(seed%2500)/100 // 70.00 .. 94.99
	return plate, confidence
}

// SimulatedAnomalyDetector fakes footage analysis. Confidence at or above
// the sensitivity counts as a detection.
type SimulatedAnomalyDetector struct {
	Sensitivity float64
}

// NewSimulatedAnomalyDetector constructs the detector.
func NewSimulatedAnomalyDetector(sensitivity float64) *SimulatedAnomalyDetector {
	if sensitivity <= 0 {
		sensitivity = 70
	}
	return &SimulatedAnomalyDetector{Sensitivity: sensitivity}
}

// Analyze implements AnomalyDetector.
func (d *SimulatedAnomalyDetector) Analyze(image []byte, kind string) models.AnomalyResult {
	seed := imageSeed(image)
	confidence := float64(seed % 10000 / 100) // 0 .. 99
	result := models.AnomalyResult{
		Kind:       kind,
		Confidence: confidence,
	}
	if confidence < d.Sensitivity {
		return result
	}
	result.Detected = true
	result.Severity = severityForConfidence(confidence)
	return result
}

func severityForConfidence(confidence float64) models.IncidentSeverity {
	switch {
	case confidence >= 95:
		return models.SeverityCritical
	case confidence >= 85:
		return models.SeverityHigh
	case confidence >= 70:
		return models.SeverityMedium
	}
	return models.SeverityLow
}

// scoreDelinquency predicts payment risk from the on-time payment rate and
// the number of currently overdue charges.
func scoreDelinquency(unitID string, onTimeRate float64, overdueCount int) models.DelinquencyScore {
	if onTimeRate < 0 {
		onTimeRate = 0
	}
	if onTimeRate > 1 {
		onTimeRate = 1
	}
	score := (1 - onTimeRate) * 60
	overduePart := float64(overdueCount) * 10
	if overduePart > 40 {
		overduePart = 40
	}
	score += overduePart

	level, recommendation := riskBand(score)
	return models.DelinquencyScore{
		UnitID:         unitID,
		Score:          score,
		OnTimeRate:     onTimeRate,
		RiskLevel:      level,
		Recommendation: recommendation,
	}
}

func riskBand(score float64) (string, string) {
	switch {
	case score >= 80:
		return "critical", "start a formal collection process"
	case score >= 60:
		return "high", "send a formal payment demand"
	case score >= 40:
		return "medium", "send a payment reminder"
	case score >= 20:
		return "low", "monitor the next billing cycle"
	}
	return "minimal", "no action needed"
}

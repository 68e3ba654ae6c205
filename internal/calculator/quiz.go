// Package calculator scores placement quizzes and maps scores to levels.
package calculator

import "github.com/mmynk/qchemaxis/internal/models"

// Level thresholds. Lower bounds are inclusive.
const (
	AdvancedThreshold     = 15
	IntermediateThreshold = 10
)

// Question is one multiple-choice item in the placement quiz.
// Difficulty is the number of points a correct answer is worth.
type Question struct {
	ID         int
	Prompt     string
	Options    []string
	Answer     string
	Difficulty int
}

// Questions is the fixed placement quiz bank.
var Questions = []Question{
	{ID: 1, Prompt: "What is the chemical symbol for water?", Options: []string{"H2O", "CO2", "O2", "N2"}, Answer: "H2O", Difficulty: 1},
	{ID: 2, Prompt: "What is the atomic number of carbon?", Options: []string{"6", "8", "12", "14"}, Answer: "6", Difficulty: 1},
	{ID: 3, Prompt: "What is the pH of pure water?", Options: []string{"7", "0", "14", "1"}, Answer: "7", Difficulty: 2},
	{ID: 4, Prompt: "Which element has the highest electronegativity?", Options: []string{"Fluorine", "Oxygen", "Nitrogen", "Chlorine"}, Answer: "Fluorine", Difficulty: 2},
	{ID: 5, Prompt: "What is Avogadro's number?", Options: []string{"6.022 × 10^23", "3.14", "1.602 × 10^-19", "9.81"}, Answer: "6.022 × 10^23", Difficulty: 3},
	{ID: 6, Prompt: "What is the name of the process where a solid turns directly into a gas?", Options: []string{"Sublimation", "Evaporation", "Condensation", "Melting"}, Answer: "Sublimation", Difficulty: 3},
	{ID: 7, Prompt: "Which quantum number describes the orientation of an electron?", Options: []string{"Magnetic", "Principal", "Azimuthal", "Spin"}, Answer: "Magnetic", Difficulty: 4},
	{ID: 8, Prompt: "What is the formula for calculating Gibbs free energy?", Options: []string{"ΔG = ΔH - TΔS", "E = mc²", "F = ma", "PV = nRT"}, Answer: "ΔG = ΔH - TΔS", Difficulty: 4},
}

// MaxScore returns the score of a fully correct submission.
func MaxScore(questions []Question) int {
	total := 0
	for _, q := range questions {
		total += q.Difficulty
	}
	return total
}

// Score sums the difficulty of every question answered exactly right.
// Answers to unknown question IDs are ignored.
func Score(questions []Question, answers map[int]string) int {
	score := 0
	for _, q := range questions {
		if answer, ok := answers[q.ID]; ok && answer == q.Answer {
			score += q.Difficulty
		}
	}
	return score
}

// Classify maps a score onto the level ladder.
func Classify(score int) models.Level {
	switch {
	case score >= AdvancedThreshold:
		return models.LevelAdvanced
	case score >= IntermediateThreshold:
		return models.LevelIntermediate
	default:
		return models.LevelBeginner
	}
}

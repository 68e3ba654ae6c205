package calculator

import (
	"testing"

	"github.com/mmynk/qchemaxis/internal/models"
)

func allCorrect() map[int]string {
	answers := make(map[int]string, len(Questions))
	for _, q := range Questions {
		answers[q.ID] = q.Answer
	}
	return answers
}

func TestMaxScore(t *testing.T) {
	if got := MaxScore(Questions); got != 20 {
		t.Errorf("MaxScore() = %d, want 20", got)
	}
	if len(Questions) != 8 {
		t.Errorf("len(Questions) = %d, want 8", len(Questions))
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		answers map[int]string
		want    int
	}{
		{
			name:    "all correct",
			answers: allCorrect(),
			want:    20,
		},
		{
			name:    "no answers",
			answers: map[int]string{},
			want:    0,
		},
		{
			name:    "two easy questions",
			answers: map[int]string{1: "H2O", 2: "6"},
			want:    2,
		},
		{
			name:    "wrong answers score nothing",
			answers: map[int]string{1: "CO2", 7: "Spin", 8: "E = mc²"},
			want:    0,
		},
		{
			name:    "answers are case sensitive",
			answers: map[int]string{1: "h2o", 4: "fluorine"},
			want:    0,
		},
		{
			name:    "unknown question ids are ignored",
			answers: map[int]string{99: "H2O", 3: "7"},
			want:    2,
		},
		{
			name:    "hardest questions only",
			answers: map[int]string{7: "Magnetic", 8: "ΔG = ΔH - TΔS"},
			want:    8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(Questions, tt.answers); got != tt.want {
				t.Errorf("Score() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	answers := map[int]string{1: "H2O", 5: "6.022 × 10^23", 6: "Sublimation"}
	first := Score(Questions, answers)
	for i := 0; i < 10; i++ {
		if got := Score(Questions, answers); got != first {
			t.Fatalf("Score() = %d on run %d, want %d", got, i, first)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		score int
		want  models.Level
	}{
		{0, models.LevelBeginner},
		{9, models.LevelBeginner},
		{10, models.LevelIntermediate},
		{14, models.LevelIntermediate},
		{15, models.LevelAdvanced},
		{20, models.LevelAdvanced},
	}

	for _, tt := range tests {
		if got := Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

package promotion

import (
	"errors"
	"testing"

	"pump-strategy-lab/internal/domain"
)

func TestCanTransition_Matrix(t *testing.T) {
	stages := []domain.Stage{domain.StageBacktest, domain.StageSimulated, domain.StageReal, domain.StageRetired}

	allowed := map[domain.Stage]map[domain.Stage]bool{
		domain.StageBacktest:  {domain.StageSimulated: true},
		domain.StageSimulated: {domain.StageReal: true, domain.StageRetired: true},
		domain.StageReal:      {domain.StageRetired: true},
		domain.StageRetired:   {},
	}

	for _, from := range stages {
		for _, to := range stages {
			want := allowed[from][to]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTransition_InvalidReturnsError(t *testing.T) {
	if _, err := Transition(domain.StageRetired, domain.StageBacktest); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}

	got, err := Transition(domain.StageBacktest, domain.StageSimulated)
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if got != domain.StageSimulated {
		t.Errorf("Transition returned %s, want SIMULATED", got)
	}
}

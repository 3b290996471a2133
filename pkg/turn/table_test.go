package turn

import (
	"errors"
	"testing"

	"github.com/harunnryd/remy/pkg/errorsx"
)

func cookingStates() []StateDefinition {
	return []StateDefinition{
		{Name: "START", Goal: "introduce yourself", AllowedNext: []string{"INGREDIENT_SCAN"}},
		{Name: "INGREDIENT_SCAN", Goal: "identify ingredients", AllowedNext: []string{"RECIPE_CONFIRMATION", "INGREDIENT_SCAN"}, RequiresImage: true},
		{Name: "RECIPE_CONFIRMATION", Goal: "negotiate the recipe", AllowedNext: []string{"RECIPE_CONFIRMATION", "INSTRUCTION_OVERVIEW"}},
		{Name: "INSTRUCTION_OVERVIEW", Goal: "give an overview", AllowedNext: []string{"COOKING_INSTRUCTION"}},
		{Name: "COOKING_INSTRUCTION", Goal: "next step", AllowedNext: []string{"MONITORING", "FINISHED"}},
		{Name: "MONITORING", Goal: "watch progress", AllowedNext: []string{"COOKING_INSTRUCTION", "ERROR_CORRECTION", "MONITORING", "FINISHED"}, RequiresImage: true},
		{Name: "ERROR_CORRECTION", Goal: "fix the mistake", AllowedNext: []string{"COOKING_INSTRUCTION", "MONITORING"}, RequiresImage: true},
		{Name: "FINISHED", Goal: "congratulate"},
	}
}

func TestTableValidatesSuccessorClosure(t *testing.T) {
	defs := cookingStates()
	if _, err := NewTable(defs); err != nil {
		t.Fatalf("valid table rejected: %v", err)
	}

	defs[0].AllowedNext = []string{"NO_SUCH_STATE"}
	if _, err := NewTable(defs); err == nil {
		t.Fatalf("expected closure validation to fail")
	}
}

func TestTableRejectsDuplicatesAndEmpty(t *testing.T) {
	if _, err := NewTable(nil); err == nil {
		t.Fatalf("expected empty table error")
	}
	defs := append(cookingStates(), StateDefinition{Name: "START"})
	if _, err := NewTable(defs); err == nil {
		t.Fatalf("expected duplicate state error")
	}
}

func TestGetUnknownState(t *testing.T) {
	table, err := NewTable(cookingStates())
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	_, err = table.Get("PLATING")
	if err == nil {
		t.Fatalf("expected unknown state error")
	}
	var unknown *UnknownStateError
	if !errors.As(err, &unknown) || unknown.Name != "PLATING" {
		t.Fatalf("unexpected error %v", err)
	}
	if errorsx.Reason(err) != errorsx.ReasonUnknownState {
		t.Fatalf("expected unknown_state reason, got %s", errorsx.Reason(err))
	}
}

func TestIsTerminal(t *testing.T) {
	table, err := NewTable(cookingStates())
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	if !table.IsTerminal("FINISHED") {
		t.Fatalf("FINISHED should be terminal")
	}
	if table.IsTerminal("MONITORING") {
		t.Fatalf("MONITORING is not terminal")
	}
	if table.IsTerminal("PLATING") {
		t.Fatalf("unknown states are not terminal")
	}
}

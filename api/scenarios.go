/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that replace the live warehouse with
  realistic data. Each scenario is a bulk import seed, optionally
  followed by scripted operations that leave transactions, notifications
  and rank changes behind.

AVAILABLE SCENARIOS:
  empty:        Fresh warehouse, nothing registered
  grocery:      Simple products from several suppliers, competing prices
  bakery:       Derivate products with nested recipes, fabrication on sale
  late-payers:  Sales paid early and late, showing the rank fee curves

HOW SCENARIOS WORK:
  1. Reset the warehouse, which drops the snapshot association
  2. Import the seed text
  3. Run the scripted operations, if any

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "bakery"}

NOTE:
  Scenarios discard the current state but never the saved snapshot: with
  no association, autosave skips demo data until a save-as names it.

SEE ALSO:
  - handlers.go: Router-facing handlers
  - importer: Seed text format
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/warehouse-engine/warehouse"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	seed   string
	script func(w *warehouse.Warehouse) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "empty",
			Name:        "Empty Warehouse",
			Description: "Nothing registered, date 0",
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "grocery",
			Name:        "Grocery",
			Description: "Simple products stocked by three suppliers at competing prices",
		},
		seed: `PARTNER|M1|Moagem Central|Rua do Trigo 1
PARTNER|Q2|Quinta das Hortas|Estrada Velha 22
PARTNER|L3|Lacticinios Sul|Av. do Leite 5
BATCH_S|FLOUR|M1|0.8|200
BATCH_S|FLOUR|Q2|0.75|50
BATCH_S|EGG|Q2|0.2|300
BATCH_S|MILK|L3|0.9|120
BATCH_S|BUTTER|L3|2.5|40
BATCH_S|SUGAR|M1|1.1|80
`,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "bakery",
			Name:        "Bakery",
			Description: "Derivate products built from nested recipes; sales fabricate missing stock",
		},
		seed: `PARTNER|M1|Moagem Central|Rua do Trigo 1
PARTNER|Q2|Quinta das Hortas|Estrada Velha 22
PARTNER|P9|Pastelaria Nove|Praca 9
BATCH_S|FLOUR|M1|0.8|200
BATCH_S|EGG|Q2|0.2|300
BATCH_S|SUGAR|M1|1.1|80
BATCH_M|DOUGH|M1|3|5|0.1|FLOUR:2#EGG:3
BATCH_M|CAKE|Q2|12|2|0.2|DOUGH:1#SUGAR:2#EGG:2
`,
		script: func(w *warehouse.Warehouse) error {
			if _, err := w.RegisterSale("P9", "CAKE", 3, 4); err != nil {
				return err
			}
			if _, err := w.RegisterBreakdown("P9", "DOUGH", 2); err != nil {
				return err
			}
			_, err := w.RegisterAcquisition("Q2", "EGG", 100, decimal.RequireFromString("0.15"))
			return err
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "late-payers",
			Name:        "Late Payers",
			Description: "One client pays early and climbs a rank; another pays late and is fined",
		},
		seed: `PARTNER|E1|Early Bird Lda|Rua Cedo 1
PARTNER|T2|Tardio SA|Rua Tarde 2
BATCH_S|WINE|E1|15|400
`,
		script: func(w *warehouse.Warehouse) error {
			early, err := w.RegisterSale("E1", "WINE", 30, 160)
			if err != nil {
				return err
			}
			late, err := w.RegisterSale("T2", "WINE", 2, 10)
			if err != nil {
				return err
			}
			if _, err := w.ReceiveSalePayment(early.ID()); err != nil {
				return err
			}
			if err := w.AdvanceDate(12); err != nil {
				return err
			}
			_, err = w.ReceiveSalePayment(late.ID())
			return err
		},
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if s, ok := findScenario(current); ok {
		writeJSON(w, http.StatusOK, s.ScenarioDTO)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario replaces the warehouse with a demo scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}

	if err := h.loadScenario(r.Context(), s); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, s.ScenarioDTO)
}

func (h *Handler) loadScenario(ctx context.Context, s scenario) error {
	h.Manager.Reset(ctx)
	if err := h.Manager.Import(ctx, strings.NewReader(s.seed)); err != nil {
		return fmt.Errorf("seed of %s: %w", s.ID, err)
	}
	if s.script != nil {
		if err := h.Manager.Write(ctx, "scenario-"+s.ID, s.script); err != nil {
			return fmt.Errorf("script of %s: %w", s.ID, err)
		}
	}
	h.setScenario(s.ID)
	return nil
}

func (h *Handler) setScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}

package app

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
)

// DemoPlan builds a coach layout of rows A.. with four seats per row:
// window, aisle, aisle, window.
func DemoPlan(id uint64, rows int) (model.SeatPlan, error) {
	type row struct {
		Letter string                        `json:"letter"`
		Seats  map[string]model.SeatCategory `json:"seats"`
	}
	layout := struct {
		Rows []row `json:"rows"`
	}{}
	for i := 0; i < rows && i < 26; i++ {
		layout.Rows = append(layout.Rows, row{
			Letter: string(rune('A' + i)),
			Seats: map[string]model.SeatCategory{
				"1": model.SeatWindow, "2": model.SeatAisle,
				"3": model.SeatAisle, "4": model.SeatWindow,
			},
		})
	}
	raw, err := json.Marshal(layout)
	if err != nil {
		return model.SeatPlan{}, err
	}
	return model.ParseSeatPlanLayout(id, "coach-"+strconv.Itoa(rows*4), raw)
}

// SeedDemo fills an in-memory store with one 40 seat coach and trips
// scheduled over the next days.
func SeedDemo(store *repository.MemoryStore, trips int, now time.Time) error {
	plan, err := DemoPlan(1, 10)
	if err != nil {
		return fmt.Errorf("demo plan: %w", err)
	}
	store.PutSeatPlan(plan)
	for i := 1; i <= trips; i++ {
		store.PutTrip(model.Trip{
			ID:         uint64(i),
			Capacity:   len(plan.Seats()),
			Status:     model.TripScheduled,
			SeatPlanID: plan.ID,
			DepartsAt:  now.Add(time.Duration(i) * 24 * time.Hour).UTC(),
		})
	}
	return nil
}

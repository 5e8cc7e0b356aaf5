package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SeatCategory is the physical kind of a seat inside the vehicle.
type SeatCategory string

const (
	SeatNormal     SeatCategory = "normal"
	SeatAisle      SeatCategory = "aisle"
	SeatWindow     SeatCategory = "window"
	SeatAccessible SeatCategory = "accessible"
)

// Valid reports whether c is one of the known categories.
func (c SeatCategory) Valid() bool {
	switch c {
	case SeatNormal, SeatAisle, SeatWindow, SeatAccessible:
		return true
	}
	return false
}

// SeatPlanRow is a single row of the layout.  Seats maps the seat number
// (as written in the stored JSON, e.g. "1") to its category.
type SeatPlanRow struct {
	Letter string                  `json:"letter"`
	Seats  map[string]SeatCategory `json:"seats"`
}

// SeatPlan describes the seating layout of a vehicle.  It is stored as a
// JSON document in seat_plans.layout and is read-only for the inventory
// core.
type SeatPlan struct {
	ID   uint64        `json:"id"`
	Name string        `json:"name"`
	Rows []SeatPlanRow `json:"rows"`
}

// PlanSeat is one flattened seat of a plan.
type PlanSeat struct {
	Code     string       `json:"code"`
	Row      string       `json:"row"`
	Number   int          `json:"number"`
	Category SeatCategory `json:"category"`
}

// ParseSeatPlanLayout decodes the layout column.  Unknown categories fall
// back to normal and duplicate seat codes are rejected.
func ParseSeatPlanLayout(id uint64, name string, raw []byte) (SeatPlan, error) {
	var doc struct {
		Rows []SeatPlanRow `json:"rows"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return SeatPlan{}, fmt.Errorf("decode seat plan %d: %w", id, err)
	}
	plan := SeatPlan{ID: id, Name: name, Rows: doc.Rows}
	if _, err := plan.flatten(); err != nil {
		return SeatPlan{}, err
	}
	return plan, nil
}

// Seats returns the plan's seats ordered by row then numerically by seat
// number.  Rows keep the order of the layout document.
func (p SeatPlan) Seats() []PlanSeat {
	seats, _ := p.flatten()
	return seats
}

// Lookup finds a seat by its code.
func (p SeatPlan) Lookup(code string) (PlanSeat, bool) {
	for _, s := range p.Seats() {
		if s.Code == code {
			return s, true
		}
	}
	return PlanSeat{}, false
}

func (p SeatPlan) flatten() ([]PlanSeat, error) {
	out := make([]PlanSeat, 0)
	seen := make(map[string]struct{})
	for _, row := range p.Rows {
		letter := strings.ToUpper(strings.TrimSpace(row.Letter))
		numbers := make([]int, 0, len(row.Seats))
		cats := make(map[int]SeatCategory, len(row.Seats))
		for k, cat := range row.Seats {
			n, err := strconv.Atoi(strings.TrimSpace(k))
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("seat plan %d: invalid seat number %q in row %s", p.ID, k, letter)
			}
			if !cat.Valid() {
				cat = SeatNormal
			}
			numbers = append(numbers, n)
			cats[n] = cat
		}
		sort.Ints(numbers)
		for _, n := range numbers {
			code := letter + strconv.Itoa(n)
			if _, dup := seen[code]; dup {
				return nil, fmt.Errorf("seat plan %d: duplicate seat code %s", p.ID, code)
			}
			seen[code] = struct{}{}
			out = append(out, PlanSeat{Code: code, Row: letter, Number: n, Category: cats[n]})
		}
	}
	return out, nil
}

// NormalizeSeatCode upper-cases and trims a client supplied seat code and
// checks that it has the row-letter + number shape, e.g. "a1" -> "A1".
func NormalizeSeatCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || len(code) > 10 {
		return "", false
	}
	i := 0
	for i < len(code) && code[i] >= 'A' && code[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(code) {
		return "", false
	}
	n, err := strconv.Atoi(code[i:])
	if err != nil || n <= 0 {
		return "", false
	}
	return code[:i] + strconv.Itoa(n), true
}

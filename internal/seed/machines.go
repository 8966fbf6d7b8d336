package seed

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// MachinesTable is the synthetic mining dataset created by the migrations.
const MachinesTable = "Machines"

// MachineColumns lists the Machines columns in insert order.
var MachineColumns = []string{
	"machine_id", "machine_name", "machine_type", "operating_hours", "fuel_consumption",
	"temperature", "vibration_levels", "load_capacity_utilization", "maintenance_status",
	"breakdown_frequency", "location", "safety_alarms_triggered", "power_usage",
	"dust_levels", "ore_processed", "created_at",
}

// DatasetStart is the created_at of the first row of every machine model.
var DatasetStart = time.Date(2024, time.November, 3, 0, 0, 0, 0, time.UTC)

type MachineModel struct {
	Name string
	Type string
}

var MachineModels = []MachineModel{
	{Name: "CAT 797F", Type: "Excavator"},
	{Name: "Komatsu PC8000", Type: "Excavator"},
	{Name: "Volvo EC950F", Type: "Excavator"},
	{Name: "Sandvik DD422i", Type: "Drill"},
	{Name: "Caterpillar MD6310", Type: "Drill"},
	{Name: "Joy Overland Conveyor", Type: "Conveyor Belt"},
	{Name: "Fenner Dunlop Conveyor Systems", Type: "Conveyor Belt"},
	{Name: "Liebherr T 284", Type: "Loader"},
	{Name: "CAT 994K", Type: "Loader"},
	{Name: "Sandvik LH621i", Type: "Loader"},
}

type Machine struct {
	MachineID               string
	MachineName             string
	MachineType             string
	OperatingHours          int64
	FuelConsumption         *float64
	Temperature             float64
	VibrationLevels         float64
	LoadCapacityUtilization int64
	MaintenanceStatus       string
	BreakdownFrequency      int64
	Location                string
	SafetyAlarmsTriggered   int64
	PowerUsage              float64
	DustLevels              float64
	OreProcessed            int64
	CreatedAt               time.Time
}

// Values returns the row in MachineColumns order. created_at is rendered as
// text so every dialect stores the same literal.
func (m Machine) Values() []any {
	var fuel any
	if m.FuelConsumption != nil {
		fuel = *m.FuelConsumption
	}
	return []any{
		m.MachineID, m.MachineName, m.MachineType, m.OperatingHours, fuel,
		m.Temperature, m.VibrationLevels, m.LoadCapacityUtilization, m.MaintenanceStatus,
		m.BreakdownFrequency, m.Location, m.SafetyAlarmsTriggered, m.PowerUsage,
		m.DustLevels, m.OreProcessed, m.CreatedAt.UTC().Format(timestampLayout),
	}
}

const timestampLayout = "2006-01-02 15:04:05"

// Generator produces a deterministic machine fleet for a seed. Each model
// keeps its own clock: row i is stamped i hours after the model's previous
// row.
type Generator struct {
	rnd      *rand.Rand
	sequence int
	clocks   map[string]time.Time
}

func NewGenerator(seed int64) *Generator {
	return NewGeneratorAt(seed, DatasetStart)
}

func NewGeneratorAt(seed int64, start time.Time) *Generator {
	clocks := make(map[string]time.Time, len(MachineModels))
	for _, model := range MachineModels {
		clocks[model.Name] = start.UTC()
	}
	return &Generator{rnd: rand.New(rand.NewSource(seed)), clocks: clocks}
}

func (g *Generator) Next() Machine {
	index := g.sequence
	g.sequence++
	model := MachineModels[g.rnd.Intn(len(MachineModels))]

	createdAt := g.clocks[model.Name].Add(time.Duration(index) * time.Hour)
	g.clocks[model.Name] = createdAt

	m := Machine{
		MachineID:               fmt.Sprintf("%s%04d", strings.ToUpper(model.Type[:2]), index+1),
		MachineName:             model.Name,
		MachineType:             model.Type,
		OperatingHours:          g.between(100, 10000),
		Temperature:             g.uniform(30, 100, 1),
		VibrationLevels:         g.uniform(0.5, 5, 2),
		LoadCapacityUtilization: g.between(50, 101),
		BreakdownFrequency:      g.between(0, 11),
		SafetyAlarmsTriggered:   g.between(0, 6),
		PowerUsage:              g.uniform(50, 500, 1),
		DustLevels:              g.uniform(100, 500, 1),
		OreProcessed:            g.between(100, 1001),
		CreatedAt:               createdAt,
	}
	if model.Type != "Conveyor Belt" {
		fuel := g.uniform(5, 50, 1)
		m.FuelConsumption = &fuel
	}
	m.MaintenanceStatus = "No"
	if g.rnd.Float64() < 0.3 {
		m.MaintenanceStatus = "Yes"
	}
	m.Location = fmt.Sprintf("%.6f, %.6f", g.rnd.Float64()*180-90, g.rnd.Float64()*360-180)
	return m
}

// Generate returns n machines.
func (g *Generator) Generate(n int) []Machine {
	out := make([]Machine, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Next())
	}
	return out
}

// between returns an integer in [lo, hi).
func (g *Generator) between(lo, hi int64) int64 {
	return lo + g.rnd.Int63n(hi-lo)
}

func (g *Generator) uniform(lo, hi float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round((lo+g.rnd.Float64()*(hi-lo))*scale) / scale
}

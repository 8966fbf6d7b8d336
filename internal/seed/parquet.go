package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
)

type parquetMachine struct {
	MachineID               string   `parquet:"machine_id"`
	MachineName             string   `parquet:"machine_name"`
	MachineType             string   `parquet:"machine_type"`
	OperatingHours          int64    `parquet:"operating_hours"`
	FuelConsumption         *float64 `parquet:"fuel_consumption,optional"`
	Temperature             float64  `parquet:"temperature"`
	VibrationLevels         float64  `parquet:"vibration_levels"`
	LoadCapacityUtilization int64    `parquet:"load_capacity_utilization"`
	MaintenanceStatus       string   `parquet:"maintenance_status"`
	BreakdownFrequency      int64    `parquet:"breakdown_frequency"`
	Location                string   `parquet:"location"`
	SafetyAlarmsTriggered   int64    `parquet:"safety_alarms_triggered"`
	PowerUsage              float64  `parquet:"power_usage"`
	DustLevels              float64  `parquet:"dust_levels"`
	OreProcessed            int64    `parquet:"ore_processed"`
	CreatedAtUnixMs         int64    `parquet:"created_at_unix_ms"`
}

// EncodeMachines writes machines as a Parquet file.
func EncodeMachines(machines []Machine) ([]byte, error) {
	rows := make([]parquetMachine, 0, len(machines))
	for _, m := range machines {
		rows = append(rows, parquetMachine{
			MachineID:               m.MachineID,
			MachineName:             m.MachineName,
			MachineType:             m.MachineType,
			OperatingHours:          m.OperatingHours,
			FuelConsumption:         m.FuelConsumption,
			Temperature:             m.Temperature,
			VibrationLevels:         m.VibrationLevels,
			LoadCapacityUtilization: m.LoadCapacityUtilization,
			MaintenanceStatus:       m.MaintenanceStatus,
			BreakdownFrequency:      m.BreakdownFrequency,
			Location:                m.Location,
			SafetyAlarmsTriggered:   m.SafetyAlarmsTriggered,
			PowerUsage:              m.PowerUsage,
			DustLevels:              m.DustLevels,
			OreProcessed:            m.OreProcessed,
			CreatedAtUnixMs:         m.CreatedAt.UnixMilli(),
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetMachine](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeMachines reads a Parquet file written by EncodeMachines.
func DecodeMachines(data []byte) ([]Machine, error) {
	reader := parquet.NewGenericReader[parquetMachine](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()

	rows := make([]parquetMachine, reader.NumRows())
	count, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}

	out := make([]Machine, 0, count)
	for _, row := range rows[:count] {
		out = append(out, Machine{
			MachineID:               row.MachineID,
			MachineName:             row.MachineName,
			MachineType:             row.MachineType,
			OperatingHours:          row.OperatingHours,
			FuelConsumption:         row.FuelConsumption,
			Temperature:             row.Temperature,
			VibrationLevels:         row.VibrationLevels,
			LoadCapacityUtilization: row.LoadCapacityUtilization,
			MaintenanceStatus:       row.MaintenanceStatus,
			BreakdownFrequency:      row.BreakdownFrequency,
			Location:                row.Location,
			SafetyAlarmsTriggered:   row.SafetyAlarmsTriggered,
			PowerUsage:              row.PowerUsage,
			DustLevels:              row.DustLevels,
			OreProcessed:            row.OreProcessed,
			CreatedAt:               time.UnixMilli(row.CreatedAtUnixMs).UTC(),
		})
	}
	return out, nil
}

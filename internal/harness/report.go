package harness

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hotwings/hwlock/internal/config"
	"github.com/hotwings/hwlock/pkg/types"
)

// NewInvocationReport converts a result into its JSON receipt. err is the
// error returned by Invoke, if any.
func NewInvocationReport(cfg *config.Config, r *Result, err error) *types.InvocationReport {
	out := &types.InvocationReport{
		URL:         cfg.URL,
		Cluster:     cfg.Cluster,
		Commitment:  cfg.Commitment,
		Instruction: r.Instruction,
		Payer:       r.Payer.String(),
		DryRun:      cfg.DryRun,
		Success:     err == nil && r.Success(),
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Duration:    r.Duration,
		Stages:      make([]types.StageReport, 0, len(r.StageResults)),
	}
	if !r.Program.IsZero() {
		out.Program = r.Program.String()
	}
	if !r.Signature.IsZero() {
		out.Signature = r.Signature.String()
	}
	if c := r.Confirmation; c != nil {
		out.Status = c.Status.String()
		out.Slot = c.Slot
		out.Latency = c.Latency
	}
	if s := r.Simulation; s != nil {
		out.Simulation = &types.SimulationReport{
			UnitsConsumed: s.UnitsConsumed,
			Logs:          s.Logs,
			Error:         s.Err,
		}
	}
	for _, sr := range r.StageResults {
		stage := types.StageReport{
			Stage:    sr.Stage.String(),
			Success:  sr.Success,
			Duration: sr.Duration,
		}
		if sr.Error != nil {
			stage.Error = sr.Error.Error()
		}
		out.Stages = append(out.Stages, stage)
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// WriteReport writes the receipt as indented JSON
func WriteReport(path string, report *types.InvocationReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

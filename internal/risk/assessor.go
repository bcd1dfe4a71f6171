package risk

import (
	"fmt"

	"github.com/devrev/agentmesh/internal/model"
	"go.uber.org/zap"
)

// Health bands below which system-wide risk floors apply.
const (
	DefaultHighBand     = 70.0
	DefaultCriticalBand = 50.0
)

// Assessor scores the risk of executing an operation against current
// system health and component state. Assess and ShouldProceed are pure
// with respect to system state; the assessor holds only its thresholds.
type Assessor struct {
	highBand     float64
	criticalBand float64
	logger       *zap.Logger
}

// NewAssessor creates a risk assessor with the given health bands. Zero
// bands fall back to the defaults.
func NewAssessor(highBand, criticalBand float64, logger *zap.Logger) *Assessor {
	if highBand <= 0 {
		highBand = DefaultHighBand
	}
	if criticalBand <= 0 {
		criticalBand = DefaultCriticalBand
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assessor{highBand: highBand, criticalBand: criticalBand, logger: logger}
}

// Assess scores op against the snapshot. Risk rises monotonically with
// the number of unhealthy participants, with system health falling below
// the configured bands, and with the operation's declared priority.
func (a *Assessor) Assess(op model.Operation, snap model.Snapshot) model.RiskAssessment {
	level := model.RiskLow
	var factors []string

	unhealthy := 0
	unknown := 0
	for _, id := range op.Participants {
		c, ok := snap.Component(id)
		if !ok {
			unknown++
			continue
		}
		if !c.State.IsHealthy() {
			unhealthy++
		}
	}

	if unknown > 0 {
		level = raise(level, model.RiskMedium)
		factors = append(factors, fmt.Sprintf("%d participant(s) not registered", unknown))
	}
	if unhealthy > 0 {
		level = raise(level, model.RiskMedium)
		factors = append(factors, fmt.Sprintf("%d participant(s) unhealthy", unhealthy))
	}
	if n := len(op.Participants); n > 0 && unhealthy*2 > n {
		level = raise(level, model.RiskHigh)
		factors = append(factors, "majority of participants unhealthy")
	}

	if snap.Health < a.criticalBand {
		level = raise(level, model.RiskCritical)
		factors = append(factors, fmt.Sprintf("system health %.1f below critical band %.1f", snap.Health, a.criticalBand))
	} else if snap.Health < a.highBand {
		level = raise(level, model.RiskHigh)
		factors = append(factors, fmt.Sprintf("system health %.1f below high band %.1f", snap.Health, a.highBand))
	}

	if op.Priority >= model.PriorityElevated {
		level = raise(level, model.RiskMedium)
		factors = append(factors, fmt.Sprintf("operation priority %s raises exposure", op.Priority))
	}

	if len(factors) == 0 {
		factors = append(factors, "all participants healthy")
	}

	a.logger.Debug("Operation risk assessed",
		zap.String("operation_id", string(op.ID)),
		zap.String("risk_level", level.String()),
		zap.Strings("factors", factors))

	return model.RiskAssessment{Level: level, Factors: factors}
}

// ShouldProceed is the single admission gate. Critical risk blocks unless
// the operation declares the topmost priority tier and the caller passed
// an explicit override. High risk requires at least elevated priority.
// Low and medium always proceed. Pure and side-effect free.
func (a *Assessor) ShouldProceed(level model.RiskLevel, priority model.OperationPriority, override bool) bool {
	switch level {
	case model.RiskCritical:
		return priority == model.PriorityCritical && override
	case model.RiskHigh:
		return priority >= model.PriorityElevated
	default:
		return true
	}
}

func raise(current, floor model.RiskLevel) model.RiskLevel {
	if floor > current {
		return floor
	}
	return current
}

package domain

import (
	"context"
)

// Planner assembles a treatment plan from a validated patient input
type Planner interface {
	Assemble(ctx context.Context, input *PatientInput) (*TreatmentPlan, error)
}

// PhenotypePredictor estimates a CYP2D6 phenotype when genotype is unavailable
type PhenotypePredictor interface {
	Predict(ctx context.Context, req *PhenotypeRequest) (*PhenotypePrediction, error)
}

// PlanAuditRepository records de-identified plan runs
type PlanAuditRepository interface {
	SaveRun(ctx context.Context, run *PlanRun) error
	GetRun(ctx context.Context, id string) (*PlanRun, error)
	ListRuns(ctx context.Context, limit int) ([]*PlanRun, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetPhenotypeConfig() *PhenotypeConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
